package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/contentory/ingest/internal/db"
)

// KnowledgeStore mirrors transcribed audio into the product's knowledge base
// tables for identified users.
type KnowledgeStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewKnowledgeStore creates a knowledge file record store.
func NewKnowledgeStore(log *slog.Logger, pool *pgxpool.Pool) *KnowledgeStore {
	if log == nil {
		log = slog.Default()
	}
	return &KnowledgeStore{
		pool:   pool,
		logger: log.With(slog.String("store", "knowledge")),
	}
}

// Insert writes a new knowledge file record and returns its id. UserID is
// required; anonymous contacts have no knowledge base.
func (s *KnowledgeStore) Insert(ctx context.Context, record KnowledgeFileRecord) (string, error) {
	pgUserID, err := dbpkg.ParseUUID(record.UserID)
	if err != nil {
		return "", fmt.Errorf("invalid user id: %w", err)
	}
	extractionBytes, err := json.Marshal(nonNilMap(record.ExtractionMetadata))
	if err != nil {
		return "", fmt.Errorf("marshal extraction metadata: %w", err)
	}
	metaBytes, err := json.Marshal(nonNilMap(record.Metadata))
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	id := uuid.NewString()
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO knowledge_file_records
		   (id, user_id, name, file_type, file_size, storage_bucket,
		    storage_path, extracted, extracted_text, extraction_metadata, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pgID,
		pgUserID,
		record.Name,
		record.FileType,
		record.FileSize,
		dbpkg.ToPgText(record.StorageBucket),
		dbpkg.ToPgText(record.StoragePath),
		record.Extracted,
		dbpkg.ToPgText(record.ExtractedText),
		extractionBytes,
		metaBytes,
	)
	if err != nil {
		return "", fmt.Errorf("insert knowledge record: %w", err)
	}
	return id, nil
}
