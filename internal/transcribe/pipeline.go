package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/contentory/ingest/internal/chatwoot"
	"github.com/contentory/ingest/internal/metrics"
	"github.com/contentory/ingest/internal/store"
)

// SpeechToText is the transcription backend.
type SpeechToText interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
	Model() string
}

// ObjectUploader stores the raw audio bytes next to the parent message.
type ObjectUploader interface {
	UploadObject(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error
}

// ParentLookup locates the parent message record for the foreign key.
type ParentLookup interface {
	FindIDByExternal(ctx context.Context, externalMessageID, contactID string) (string, error)
}

// AudioRecorder persists the attachment's processing outcome.
type AudioRecorder interface {
	Insert(ctx context.Context, record store.AudioFileRecord) (string, error)
}

// KnowledgeRecorder mirrors successful transcriptions into the user's
// knowledge base.
type KnowledgeRecorder interface {
	Insert(ctx context.Context, record store.KnowledgeFileRecord) (string, error)
}

// Pipeline processes audio attachments after the parent message has been
// stored. Every failure is scoped to the attachment; the webhook that
// carried it has already succeeded.
type Pipeline struct {
	platformBase string
	downloader   *http.Client
	uploader     ObjectUploader
	stt          SpeechToText
	messages     ParentLookup
	audio        AudioRecorder
	knowledge    KnowledgeRecorder
	logger       *slog.Logger
	now          func() time.Time
}

func NewPipeline(log *slog.Logger, platformBase string, uploader ObjectUploader, stt SpeechToText, messages ParentLookup, audio AudioRecorder, knowledge KnowledgeRecorder) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		platformBase: strings.TrimRight(platformBase, "/"),
		downloader: &http.Client{
			Timeout: 60 * time.Second,
		},
		uploader:  uploader,
		stt:       stt,
		messages:  messages,
		audio:     audio,
		knowledge: knowledge,
		logger:    log.With(slog.String("component", "audio_pipeline")),
		now:       time.Now,
	}
}

// ProcessAttachment downloads, stores, and transcribes one audio attachment,
// then records the outcome. Transcription failure is a recorded status;
// download, upload, and parent-lookup failures abort the attachment.
func (pl *Pipeline) ProcessAttachment(ctx context.Context, att chatwoot.Attachment, p *chatwoot.WebhookPayload, bucket, userID, contactID string) bool {
	log := pl.logger.With(
		slog.Int64("attachment_id", att.ID),
		slog.Int64("message_id", p.ID),
	)

	url := pl.resolveDataURL(att.DataURL)
	if url == "" {
		log.Warn("attachment has no data URL")
		metrics.AudioFailed.Inc()
		return false
	}

	audioBytes, err := pl.download(ctx, url)
	if err != nil {
		log.Warn("audio download failed", slog.String("error", err.Error()))
		metrics.AudioFailed.Inc()
		return false
	}

	date := pl.now().UTC().Format("2006-01-02")
	objectPath := fmt.Sprintf("whatsapp-audio/%s/%d/%d/%d.mp3",
		date, p.Conversation.ID, p.ID, att.ID)
	if err := pl.uploader.UploadObject(ctx, bucket, objectPath, audioBytes, "audio/mpeg"); err != nil {
		log.Warn("audio upload failed", slog.String("error", err.Error()))
		metrics.AudioFailed.Inc()
		return false
	}

	filename := fmt.Sprintf("%d.mp3", att.ID)
	text, transcribeErr := pl.stt.Transcribe(ctx, filename, audioBytes)

	parentID, err := pl.messages.FindIDByExternal(ctx, fmt.Sprintf("%d", p.ID), contactID)
	if err != nil || parentID == "" {
		if err == nil {
			err = store.ErrMessageNotFound
		}
		log.Warn("parent message lookup failed", slog.String("error", err.Error()))
		metrics.AudioFailed.Inc()
		return false
	}

	record := store.AudioFileRecord{
		UserID:               userID,
		ContactIdentifier:    contactID,
		MessageRecordID:      parentID,
		ExternalAttachmentID: fmt.Sprintf("%d", att.ID),
		ExternalURL:          att.DataURL,
		StoragePath:          objectPath,
		Transcription:        text,
		TranscriptionModel:   pl.stt.Model(),
		FileSize:             int64(len(audioBytes)),
	}
	if transcribeErr == nil && text != "" {
		record.TranscriptionStatus = store.TranscriptionStatusCompleted
	} else {
		record.TranscriptionStatus = store.TranscriptionStatusError
		if transcribeErr != nil {
			record.TranscriptionError = transcribeErr.Error()
		} else {
			record.TranscriptionError = "empty transcription result"
		}
	}

	if _, err := pl.audio.Insert(ctx, record); err != nil {
		log.Warn("audio record insert failed", slog.String("error", err.Error()))
		metrics.AudioFailed.Inc()
		return false
	}

	if userID != "" && record.TranscriptionStatus == store.TranscriptionStatusCompleted {
		knowledge := store.KnowledgeFileRecord{
			UserID:        userID,
			Name:          fmt.Sprintf("WhatsApp Audio - %s - %s.mp3", date, contactID),
			FileType:      "audio",
			FileSize:      int64(len(audioBytes)),
			StorageBucket: bucket,
			StoragePath:   objectPath,
			Extracted:     true,
			ExtractedText: text,
			ExtractionMetadata: map[string]any{
				"model": pl.stt.Model(),
			},
			Metadata: map[string]any{
				"source":                 "whatsapp",
				"external_message_id":    fmt.Sprintf("%d", p.ID),
				"external_attachment_id": fmt.Sprintf("%d", att.ID),
			},
		}
		if _, err := pl.knowledge.Insert(ctx, knowledge); err != nil {
			log.Warn("knowledge record insert failed", slog.String("error", err.Error()))
		}
	}

	metrics.AudioProcessed.Inc()
	log.Info("audio attachment processed",
		slog.String("status", record.TranscriptionStatus),
		slog.String("path", objectPath),
	)
	return true
}

// resolveDataURL rewrites attachment URLs against the platform base.
// The platform occasionally emits a malformed triple-slash relative form.
func (pl *Pipeline) resolveDataURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "///") {
		return pl.platformBase + strings.TrimPrefix(raw, "//")
	}
	if strings.HasPrefix(raw, "/") {
		return pl.platformBase + raw
	}
	return pl.platformBase + "/" + raw
}

func (pl *Pipeline) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := pl.downloader.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read attachment body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("attachment body is empty")
	}
	return data, nil
}
