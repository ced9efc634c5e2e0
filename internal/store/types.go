package store

import "time"

// UserBucketMapping associates a user with their provisioned storage bucket.
// At most one row per user; bucket names are globally unique in the backend.
type UserBucketMapping struct {
	UserID     string
	BucketName string
	CreatedAt  time.Time
}

// WhatsAppUserMapping links a canonical WhatsApp number to a user. Lookups
// must still probe alternate representations because historical rows may
// predate normalization.
type WhatsAppUserMapping struct {
	UserID            string
	WhatsAppNumber    string
	ExternalContactID string
	ExternalAccountID string
	Verified          bool
	CreatedAt         time.Time
}

// MessageRecord is the persisted representation of one processed webhook
// message. UserID is empty when the sender could not be identified;
// ContactIdentifier is always present.
type MessageRecord struct {
	ID                     string
	UserID                 string
	ContactIdentifier      string
	ExternalConversationID string
	ExternalMessageID      string
	ExternalContactID      string
	Content                string
	Source                 string
	StoragePath            string
	Status                 string
	Metadata               map[string]any
	CreatedAt              time.Time
}

// AudioFileRecord tracks one processed audio attachment and its
// transcription outcome.
type AudioFileRecord struct {
	ID                   string
	UserID               string
	ContactIdentifier    string
	MessageRecordID      string
	ExternalAttachmentID string
	ExternalURL          string
	StoragePath          string
	Transcription        string
	TranscriptionStatus  string
	TranscriptionError   string
	TranscriptionModel   string
	FileSize             int64
	ProcessedAt          time.Time
}

// KnowledgeFileRecord mirrors a transcribed audio file into the user's
// knowledge base. Only created for identified users.
type KnowledgeFileRecord struct {
	ID                 string
	UserID             string
	Name               string
	FileType           string
	FileSize           int64
	StorageBucket      string
	StoragePath        string
	Extracted          bool
	ExtractedText      string
	ExtractionMetadata map[string]any
	Metadata           map[string]any
	CreatedAt          time.Time
}

const (
	MessageStatusProcessed = "processed"

	TranscriptionStatusCompleted = "completed"
	TranscriptionStatusError     = "error"
)
