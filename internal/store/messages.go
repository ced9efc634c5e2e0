package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/contentory/ingest/internal/db"
)

// ErrMessageNotFound is returned when a parent message lookup misses.
var ErrMessageNotFound = errors.New("message record not found")

// MessageStore persists processed message records. Rows are append-only from
// this pipeline's point of view.
type MessageStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewMessageStore creates a message record store.
func NewMessageStore(log *slog.Logger, pool *pgxpool.Pool) *MessageStore {
	if log == nil {
		log = slog.Default()
	}
	return &MessageStore{
		pool:   pool,
		logger: log.With(slog.String("store", "messages")),
	}
}

// Insert writes a new message record and returns its id.
func (s *MessageStore) Insert(ctx context.Context, record MessageRecord) (string, error) {
	pgUserID, err := dbpkg.ParseOptionalUUID(record.UserID)
	if err != nil {
		return "", fmt.Errorf("invalid user id: %w", err)
	}
	metaBytes, err := json.Marshal(nonNilMap(record.Metadata))
	if err != nil {
		return "", fmt.Errorf("marshal message metadata: %w", err)
	}
	id := uuid.NewString()
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO message_records
		   (id, user_id, contact_identifier, external_conversation_id,
		    external_message_id, external_contact_id, content, source,
		    storage_path, status, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		pgID,
		pgUserID,
		record.ContactIdentifier,
		dbpkg.ToPgText(record.ExternalConversationID),
		dbpkg.ToPgText(record.ExternalMessageID),
		dbpkg.ToPgText(record.ExternalContactID),
		record.Content,
		record.Source,
		dbpkg.ToPgText(record.StoragePath),
		record.Status,
		metaBytes,
	)
	if err != nil {
		return "", fmt.Errorf("insert message record: %w", err)
	}
	return id, nil
}

// FindIDByExternal resolves the internal id of a message by its external
// message id and contact identifier. Returns ErrMessageNotFound on a miss.
func (s *MessageStore) FindIDByExternal(ctx context.Context, externalMessageID, contactID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM message_records
		 WHERE external_message_id = $1 AND contact_identifier = $2
		 ORDER BY created_at DESC LIMIT 1`,
		externalMessageID, contactID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrMessageNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find message by external id: %w", err)
	}
	return id, nil
}

// FindUserIDByContact returns the user id of the most recent prior message
// for a contact that already carries one, or "" when no such row exists.
func (s *MessageStore) FindUserIDByContact(ctx context.Context, contactID string) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM message_records
		 WHERE contact_identifier = $1 AND user_id IS NOT NULL
		 ORDER BY created_at DESC LIMIT 1`,
		contactID,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find user by contact history: %w", err)
	}
	return userID, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
