package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contentory/ingest/internal/config"
)

// Open connects a pgx pool using the configured credentials and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// ParseUUID parses a string id into a pgtype.UUID.
func ParseUUID(id string) (pgtype.UUID, error) {
	var value pgtype.UUID
	if err := value.Scan(strings.TrimSpace(id)); err != nil {
		return pgtype.UUID{}, fmt.Errorf("invalid uuid %q: %w", id, err)
	}
	return value, nil
}

// ParseOptionalUUID parses an id, mapping empty to NULL.
func ParseOptionalUUID(id string) (pgtype.UUID, error) {
	if strings.TrimSpace(id) == "" {
		return pgtype.UUID{}, nil
	}
	return ParseUUID(id)
}

// ToPgText converts a string to pgtype.Text, empty meaning NULL.
func ToPgText(value string) pgtype.Text {
	value = strings.TrimSpace(value)
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}

// TextToString unwraps a nullable text column.
func TextToString(value pgtype.Text) string {
	if !value.Valid {
		return ""
	}
	return value.String
}
