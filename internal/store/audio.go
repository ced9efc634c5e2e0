package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/contentory/ingest/internal/db"
)

// AudioStore persists audio attachment processing results.
type AudioStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAudioStore creates an audio file record store.
func NewAudioStore(log *slog.Logger, pool *pgxpool.Pool) *AudioStore {
	if log == nil {
		log = slog.Default()
	}
	return &AudioStore{
		pool:   pool,
		logger: log.With(slog.String("store", "audio")),
	}
}

// Insert writes a new audio file record and returns its id.
func (s *AudioStore) Insert(ctx context.Context, record AudioFileRecord) (string, error) {
	pgUserID, err := dbpkg.ParseOptionalUUID(record.UserID)
	if err != nil {
		return "", fmt.Errorf("invalid user id: %w", err)
	}
	pgMessageID, err := dbpkg.ParseUUID(record.MessageRecordID)
	if err != nil {
		return "", fmt.Errorf("invalid message record id: %w", err)
	}
	id := uuid.NewString()
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audio_file_records
		   (id, user_id, contact_identifier, message_record_id,
		    external_attachment_id, external_url, storage_path, transcription,
		    transcription_status, transcription_error, transcription_model, file_size)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		pgID,
		pgUserID,
		record.ContactIdentifier,
		pgMessageID,
		dbpkg.ToPgText(record.ExternalAttachmentID),
		dbpkg.ToPgText(record.ExternalURL),
		dbpkg.ToPgText(record.StoragePath),
		dbpkg.ToPgText(record.Transcription),
		record.TranscriptionStatus,
		dbpkg.ToPgText(record.TranscriptionError),
		dbpkg.ToPgText(record.TranscriptionModel),
		record.FileSize,
	)
	if err != nil {
		return "", fmt.Errorf("insert audio record: %w", err)
	}
	return id, nil
}
