// Package store provides persistent storage for the collection state.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/queue"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// Sentinel errors for store operations.
var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrLockTimeout      = errors.New("failed to acquire store lock")
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

const documentVersion = 1

// Freshness reports when the cached mirrors were last refreshed from the
// remote. Zero values mean never.
type Freshness struct {
	VariantsFetchedAt  time.Time
	InstancesFetchedAt time.Time
}

// IsStale reports whether data fetched at fetched is older than ttl at now.
// Data never fetched is always stale; a non-positive ttl never expires.
func IsStale(fetched time.Time, ttl time.Duration, now time.Time) bool {
	if fetched.IsZero() {
		return true
	}
	if ttl <= 0 {
		return false
	}
	return now.Sub(fetched) >= ttl
}

// Repository persists the snapshot, the variant mirror and the pending-write
// queue.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/repository.go . Repository
type Repository interface {
	// GetSnapshot returns the stored snapshot, empty if none was saved.
	GetSnapshot(ctx context.Context) (instance.Snapshot, error)

	// PutSnapshot replaces the stored snapshot.
	PutSnapshot(ctx context.Context, snap instance.Snapshot) error

	// GetVariants returns the cached catalog and when it was fetched.
	GetVariants(ctx context.Context) ([]variant.Variant, time.Time, error)

	// PutVariants replaces the cached catalog.
	PutVariants(ctx context.Context, variants []variant.Variant, fetchedAt time.Time) error

	// GetPendingWrites returns the persisted queue in sequence order.
	GetPendingWrites(ctx context.Context) ([]queue.Delta, error)

	// PutPendingWrites replaces the persisted queue.
	PutPendingWrites(ctx context.Context, deltas []queue.Delta) error

	// Freshness returns both mirror timestamps.
	Freshness(ctx context.Context) (Freshness, error)

	// MarkInstancesFetched records a successful snapshot fetch.
	MarkInstancesFetched(ctx context.Context, at time.Time) error

	// Close releases resources held by the repository.
	Close() error
}

// Open returns the repository for backend at path.
func Open(ctx context.Context, backend, path string) (Repository, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(ctx, path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// document is the persisted state shared by every backend.
type document struct {
	Version            int                                       `json:"version"`
	Instances          map[identity.InstanceID]instance.Instance `json:"instances"`
	Timestamp          int64                                     `json:"timestamp"`
	Variants           []variant.Variant                         `json:"variants,omitempty"`
	VariantsFetchedAt  time.Time                                 `json:"variants_fetched_at,omitzero"`
	InstancesFetchedAt time.Time                                 `json:"instances_fetched_at,omitzero"`
	PendingWrites      []queue.Delta                             `json:"pending_writes,omitempty"`
}

func newDocument() *document {
	return &document{
		Version:   documentVersion,
		Instances: make(map[identity.InstanceID]instance.Instance),
	}
}

func (d *document) snapshot() instance.Snapshot {
	return instance.Snapshot{Instances: d.Instances, Timestamp: d.Timestamp}.Clone()
}

func (d *document) setSnapshot(s instance.Snapshot) {
	c := s.Clone()
	d.Instances = c.Instances
	d.Timestamp = c.Timestamp
}

func (d *document) freshness() Freshness {
	return Freshness{VariantsFetchedAt: d.VariantsFetchedAt, InstancesFetchedAt: d.InstancesFetchedAt}
}

// unavailable marks err as a storage failure unless it is a context error.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
