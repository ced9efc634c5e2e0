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

// BucketStore persists user↔bucket mappings. Reads happen before any storage
// network call so a recorded mapping short-circuits existence probes.
type BucketStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewBucketStore creates a bucket mapping store.
func NewBucketStore(log *slog.Logger, pool *pgxpool.Pool) *BucketStore {
	if log == nil {
		log = slog.Default()
	}
	return &BucketStore{
		pool:   pool,
		logger: log.With(slog.String("store", "buckets")),
	}
}

// GetByUserID returns the mapped bucket name for a user, or "" when no
// mapping exists.
func (s *BucketStore) GetByUserID(ctx context.Context, userID string) (string, error) {
	pgUserID, err := dbpkg.ParseUUID(userID)
	if err != nil {
		return "", err
	}
	var bucketName string
	err = s.pool.QueryRow(ctx,
		`SELECT bucket_name FROM user_bucket_mappings WHERE user_id = $1`,
		pgUserID,
	).Scan(&bucketName)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get bucket mapping: %w", err)
	}
	return bucketName, nil
}

// GetByBucketName returns the user id mapped to a bucket, or "" when the
// bucket has no recorded owner.
func (s *BucketStore) GetByBucketName(ctx context.Context, bucketName string) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM user_bucket_mappings WHERE bucket_name = $1`,
		bucketName,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get bucket mapping by name: %w", err)
	}
	return userID, nil
}

// Save records a user↔bucket mapping. Redundant inserts from concurrent
// deliveries are tolerated.
func (s *BucketStore) Save(ctx context.Context, userID, bucketName string) error {
	pgUserID, err := dbpkg.ParseUUID(userID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO user_bucket_mappings (user_id, bucket_name)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		pgUserID, bucketName,
	)
	if err != nil {
		return fmt.Errorf("save bucket mapping: %w", err)
	}
	return nil
}
