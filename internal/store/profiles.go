package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileStore looks up registered users by the phone number on their
// profile. The profile table is owned by the product backend; this pipeline
// only reads it.
type ProfileStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewProfileStore creates a user-profile lookup store.
func NewProfileStore(log *slog.Logger, pool *pgxpool.Pool) *ProfileStore {
	if log == nil {
		log = slog.Default()
	}
	return &ProfileStore{
		pool:   pool,
		logger: log.With(slog.String("store", "profiles")),
	}
}

// FindUserID probes the profile phone field with each candidate number in
// order and returns the first matching user id, or "" when none match.
func (s *ProfileStore) FindUserID(ctx context.Context, numbers []string) (string, error) {
	for _, number := range numbers {
		var userID string
		err := s.pool.QueryRow(ctx,
			`SELECT id FROM user_profiles WHERE whatsapp_number = $1 LIMIT 1`,
			number,
		).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("probe user profile: %w", err)
		}
		return userID, nil
	}
	return "", nil
}
