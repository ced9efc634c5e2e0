package bucket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/contentory/ingest/internal/metrics"
)

// StorageGateway is the subset of the object-storage client the manager
// needs.
type StorageGateway interface {
	BucketExists(ctx context.Context, name string) (bool, error)
	CreateBucket(ctx context.Context, name string) error
}

// MappingStore persists user↔bucket associations.
type MappingStore interface {
	GetByUserID(ctx context.Context, userID string) (string, error)
	GetByBucketName(ctx context.Context, bucketName string) (string, error)
	Save(ctx context.Context, userID, bucketName string) error
}

// Manager resolves and provisions per-user storage buckets. The mapping
// table is authoritative and consulted before any storage network call.
type Manager struct {
	prefix   string
	gateway  StorageGateway
	mappings MappingStore
	logger   *slog.Logger
}

// NewManager creates a bucket manager.
func NewManager(log *slog.Logger, prefix string, gateway StorageGateway, mappings MappingStore) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		prefix:   prefix,
		gateway:  gateway,
		mappings: mappings,
		logger:   log.With(slog.String("component", "bucket_manager")),
	}
}

// EnsureUserBucket returns the bucket name for a user, creating the bucket
// and its mapping when needed. A creation failure aborts the current webhook;
// the platform's redelivery policy covers the retry.
func (m *Manager) EnsureUserBucket(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	mapped, err := m.mappings.GetByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("lookup bucket mapping: %w", err)
	}
	if mapped != "" {
		return mapped, nil
	}

	candidate := UserBucketName(m.prefix, userID)

	// A mapping row keyed by the candidate name, or an existing bucket with
	// no row at all, are both leftovers of a prior partial run: reuse and
	// backfill rather than re-create.
	owner, err := m.mappings.GetByBucketName(ctx, candidate)
	if err != nil {
		return "", fmt.Errorf("lookup bucket by name: %w", err)
	}
	if owner != "" {
		if err := m.mappings.Save(ctx, userID, candidate); err != nil {
			return "", fmt.Errorf("backfill bucket mapping: %w", err)
		}
		return candidate, nil
	}

	exists, err := m.gateway.BucketExists(ctx, candidate)
	if err != nil {
		return "", err
	}
	if exists {
		m.logger.Info("bucket exists without mapping, backfilling",
			slog.String("bucket", candidate),
			slog.String("user_id", userID),
		)
		if err := m.mappings.Save(ctx, userID, candidate); err != nil {
			return "", fmt.Errorf("backfill bucket mapping: %w", err)
		}
		return candidate, nil
	}

	if err := m.gateway.CreateBucket(ctx, candidate); err != nil {
		return "", fmt.Errorf("create user bucket: %w", err)
	}
	metrics.BucketsCreated.Inc()
	if err := m.mappings.Save(ctx, userID, candidate); err != nil {
		return "", fmt.Errorf("save bucket mapping: %w", err)
	}
	return candidate, nil
}

// EnsureContactBucket provisions the deterministic bucket for an anonymous
// contact. No mapping table is involved on this path.
func (m *Manager) EnsureContactBucket(ctx context.Context, contactID string) (string, error) {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return "", fmt.Errorf("contact id is required")
	}

	name := ContactBucketName(m.prefix, contactID)
	exists, err := m.gateway.BucketExists(ctx, name)
	if err != nil {
		return "", err
	}
	if exists {
		return name, nil
	}
	if err := m.gateway.CreateBucket(ctx, name); err != nil {
		return "", fmt.Errorf("create contact bucket: %w", err)
	}
	metrics.BucketsCreated.Inc()
	return name, nil
}
