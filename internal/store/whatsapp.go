package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/contentory/ingest/internal/db"
)

// WhatsAppStore persists phone↔user mappings discovered during identity
// resolution.
type WhatsAppStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewWhatsAppStore creates a WhatsApp mapping store.
func NewWhatsAppStore(log *slog.Logger, pool *pgxpool.Pool) *WhatsAppStore {
	if log == nil {
		log = slog.Default()
	}
	return &WhatsAppStore{
		pool:   pool,
		logger: log.With(slog.String("store", "whatsapp")),
	}
}

// FindUserID probes the mapping table with each candidate number in order
// and returns the first matching user id, or "" when none match.
func (s *WhatsAppStore) FindUserID(ctx context.Context, numbers []string) (string, error) {
	for _, number := range numbers {
		var userID string
		err := s.pool.QueryRow(ctx,
			`SELECT user_id FROM whatsapp_user_mappings WHERE whatsapp_number = $1 LIMIT 1`,
			number,
		).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("probe whatsapp mapping: %w", err)
		}
		return userID, nil
	}
	return "", nil
}

// Save records a mapping keyed by the canonical number so future lookups are
// stable regardless of which variation originally matched.
func (s *WhatsAppStore) Save(ctx context.Context, mapping WhatsAppUserMapping) error {
	pgUserID, err := dbpkg.ParseUUID(mapping.UserID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO whatsapp_user_mappings
		   (user_id, whatsapp_number, external_contact_id, external_account_id, verified)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, whatsapp_number) DO NOTHING`,
		pgUserID,
		mapping.WhatsAppNumber,
		dbpkg.ToPgText(mapping.ExternalContactID),
		dbpkg.ToPgText(mapping.ExternalAccountID),
		mapping.Verified,
	)
	if err != nil {
		return fmt.Errorf("save whatsapp mapping: %w", err)
	}
	return nil
}
