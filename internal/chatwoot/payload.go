package chatwoot

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// EventMessageCreated is the only webhook event this pipeline processes.
	EventMessageCreated = "message_created"

	// ChannelWhatsApp is the conversation channel emitted for WhatsApp inboxes.
	ChannelWhatsApp = "Channel::Whatsapp"
)

// WebhookPayload is the inbound platform event. Produced by the messaging
// platform, consumed read-only.
type WebhookPayload struct {
	Event             string         `json:"event" validate:"required"`
	ID                int64          `json:"id" validate:"required"`
	Content           string         `json:"content"`
	ContentType       string         `json:"content_type"`
	ContentAttributes map[string]any `json:"content_attributes"`
	MessageType       string         `json:"message_type" validate:"required"`
	CreatedAt         string         `json:"created_at"`
	SourceID          string         `json:"source_id"`
	Sender            *Sender        `json:"sender" validate:"required"`
	Conversation      *Conversation  `json:"conversation" validate:"required"`
	Account           *Account       `json:"account" validate:"required"`
	Inbox             *Inbox         `json:"inbox"`
	Attachments       []Attachment   `json:"attachments"`
}

type Sender struct {
	ID                   int64          `json:"id"`
	Name                 string         `json:"name"`
	Type                 string         `json:"type"`
	PhoneNumber          string         `json:"phone_number"`
	AdditionalAttributes map[string]any `json:"additional_attributes"`
}

type Conversation struct {
	ID                   int64          `json:"id"`
	DisplayID            int64          `json:"display_id"`
	Channel              string         `json:"channel"`
	Status               string         `json:"status"`
	ContactInbox         *ContactInbox  `json:"contact_inbox"`
	AdditionalAttributes map[string]any `json:"additional_attributes"`
}

type ContactInbox struct {
	SourceID string `json:"source_id"`
}

type Account struct {
	ID                   int64          `json:"id"`
	Name                 string         `json:"name"`
	AdditionalAttributes map[string]any `json:"additional_attributes"`
}

type Inbox struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Attachment struct {
	ID            int64          `json:"id"`
	MessageID     int64          `json:"message_id"`
	FileType      string         `json:"file_type"`
	DataURL       string         `json:"data_url"`
	FileSize      int64          `json:"file_size"`
	Extension     string         `json:"extension"`
	Meta          map[string]any `json:"meta"`
	Transcription string         `json:"transcribed_text"`
}

var validate = validator.New()

// Validate checks the structural requirements of a payload. A nil payload or
// a missing event name is a structural defect; everything else is a filtering
// concern handled downstream.
func Validate(p *WebhookPayload) error {
	return validate.Struct(p)
}

// IsWhatsAppMessageCreated reports whether the payload is an event this
// pipeline processes. Anything else is acknowledged and dropped.
func IsWhatsAppMessageCreated(p *WebhookPayload) bool {
	if p == nil || p.Conversation == nil {
		return false
	}
	return p.Event == EventMessageCreated &&
		strings.EqualFold(p.Conversation.Channel, ChannelWhatsApp)
}
