package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/contentory/ingest/internal/chatwoot"
	"github.com/contentory/ingest/internal/identity"
	"github.com/contentory/ingest/internal/metrics"
	"github.com/contentory/ingest/internal/store"
)

// ErrInvalidPayload marks structural validation failures. The handler maps
// it to a 400 so the platform does not redeliver a payload that can never
// succeed.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// Result is the JSON body returned to the webhook dispatcher. UserID,
// Bucket and WhatsAppNumber are populated on successful processing for
// observability only.
type Result struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	UserID         string `json:"user_id,omitempty"`
	Bucket         string `json:"bucket,omitempty"`
	WhatsAppNumber string `json:"whatsapp_number,omitempty"`
}

// BucketProvisioner resolves or creates the storage bucket for a sender.
type BucketProvisioner interface {
	EnsureUserBucket(ctx context.Context, userID string) (string, error)
	EnsureContactBucket(ctx context.Context, contactID string) (string, error)
}

// ObjectUploader writes the payload envelope to object storage.
type ObjectUploader interface {
	UploadObject(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error
}

// IdentityResolver ties a payload to a known user when possible.
type IdentityResolver interface {
	Resolve(ctx context.Context, p *chatwoot.WebhookPayload) identity.Resolution
}

// MessageWriter persists the message record after a successful upload.
type MessageWriter interface {
	Insert(ctx context.Context, record store.MessageRecord) (string, error)
}

// AudioPipeline handles one audio attachment end to end. The boolean result
// is informational; attachment failures never fail the webhook.
type AudioPipeline interface {
	ProcessAttachment(ctx context.Context, att chatwoot.Attachment, p *chatwoot.WebhookPayload, bucket, userID, contactID string) bool
}

// Processor runs one webhook delivery through the full pipeline: validate,
// filter, resolve identity, ensure bucket, store the envelope, record the
// message, then fan out audio attachments.
type Processor struct {
	resolver IdentityResolver
	buckets  BucketProvisioner
	uploader ObjectUploader
	messages MessageWriter
	audio    AudioPipeline
	logger   *slog.Logger
	now      func() time.Time
}

func NewProcessor(log *slog.Logger, resolver IdentityResolver, buckets BucketProvisioner, uploader ObjectUploader, messages MessageWriter, audio AudioPipeline) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		resolver: resolver,
		buckets:  buckets,
		uploader: uploader,
		messages: messages,
		audio:    audio,
		logger:   log.With(slog.String("component", "webhook_processor")),
		now:      time.Now,
	}
}

// Process handles one delivery. Errors wrapping ErrInvalidPayload are client
// faults; any other error is an internal failure the platform may retry.
func (pr *Processor) Process(ctx context.Context, p *chatwoot.WebhookPayload) (Result, error) {
	metrics.WebhooksReceived.Inc()

	if err := chatwoot.Validate(p); err != nil {
		metrics.WebhooksRejected.Inc()
		return Result{Message: "invalid payload"}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if !chatwoot.IsWhatsAppMessageCreated(p) {
		metrics.WebhooksFiltered.Inc()
		pr.logger.Debug("event filtered",
			slog.String("event", p.Event),
			slog.String("channel", p.Conversation.Channel),
		)
		return Result{Success: true, Message: "event ignored"}, nil
	}

	res := pr.resolver.Resolve(ctx, p)

	var bucketName string
	var err error
	if res.UserID != "" {
		bucketName, err = pr.buckets.EnsureUserBucket(ctx, res.UserID)
	} else {
		bucketName, err = pr.buckets.EnsureContactBucket(ctx, res.ContactID)
	}
	if err != nil {
		return Result{Message: "bucket provisioning failed"}, fmt.Errorf("ensure bucket: %w", err)
	}

	objectPath := messageObjectPath(pr.now().UTC(), p.Conversation.ID, p.ID)
	envelope, err := json.Marshal(p)
	if err != nil {
		return Result{Message: "payload serialization failed"}, fmt.Errorf("marshal payload: %w", err)
	}

	// Upload before insert so a database row never points at a missing
	// object. The reverse failure leaves an orphaned object behind, which
	// is accepted and not cleaned up.
	if err := pr.uploader.UploadObject(ctx, bucketName, objectPath, envelope, "application/json"); err != nil {
		return Result{Message: "storage upload failed"}, fmt.Errorf("upload payload envelope: %w", err)
	}

	record := store.MessageRecord{
		UserID:                 res.UserID,
		ContactIdentifier:      res.ContactID,
		ExternalConversationID: fmt.Sprintf("%d", p.Conversation.ID),
		ExternalMessageID:      fmt.Sprintf("%d", p.ID),
		ExternalContactID:      fmt.Sprintf("%d", p.Sender.ID),
		Content:                normalizeContent(p.Content, p.ContentType),
		Source:                 "whatsapp",
		StoragePath:            objectPath,
		Status:                 store.MessageStatusProcessed,
		Metadata: map[string]any{
			"event":            p.Event,
			"message_type":     p.MessageType,
			"content_type":     p.ContentType,
			"attachment_count": len(p.Attachments),
			"whatsapp_number":  res.WhatsAppNumber,
			"payload":          json.RawMessage(envelope),
		},
	}
	if _, err := pr.messages.Insert(ctx, record); err != nil {
		return Result{Message: "message persistence failed"}, fmt.Errorf("insert message record: %w", err)
	}
	metrics.MessagesStored.Inc()

	for _, att := range p.Attachments {
		if att.FileType != "audio" {
			continue
		}
		if ok := pr.audio.ProcessAttachment(ctx, att, p, bucketName, res.UserID, res.ContactID); !ok {
			pr.logger.Warn("audio attachment processing failed",
				slog.Int64("attachment_id", att.ID),
				slog.Int64("message_id", p.ID),
			)
		}
	}

	pr.logger.Info("webhook processed",
		slog.Int64("message_id", p.ID),
		slog.String("bucket", bucketName),
		slog.String("contact_id", res.ContactID),
		slog.Bool("identified", res.UserID != ""),
	)

	return Result{
		Success:        true,
		Message:        "message processed",
		UserID:         res.UserID,
		Bucket:         bucketName,
		WhatsAppNumber: res.WhatsAppNumber,
	}, nil
}

func messageObjectPath(now time.Time, conversationID, messageID int64) string {
	return fmt.Sprintf("whatsapp-messages/%s/%d/%d.json",
		now.Format("2006-01-02"), conversationID, messageID)
}

// normalizeContent replaces empty text content with a placeholder keyed by
// content type. A stored record never carries an empty content field.
func normalizeContent(content, contentType string) string {
	if trimmed := strings.TrimSpace(content); trimmed != "" {
		return trimmed
	}
	switch contentType {
	case "audio":
		return "[Audio Message]"
	case "image":
		return "[Image Message]"
	case "video":
		return "[Video Message]"
	case "file":
		return "[File Attachment]"
	default:
		return "[Media Message]"
	}
}
