package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/queue"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// Buckets of the state table. Each row holds one JSON payload.
const (
	bucketSnapshot  = "snapshot"
	bucketVariants  = "variants"
	bucketPending   = "pending_writes"
	bucketFreshness = "freshness"
)

type freshnessRow struct {
	VariantsFetchedAt  time.Time `json:"variants_fetched_at,omitzero"`
	InstancesFetchedAt time.Time `json:"instances_fetched_at,omitzero"`
}

// SQLiteStore keeps each part of the document in its own row of a single
// key/value table.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, unavailable("create state directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, unavailable("open sqlite", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		db.Close() //nolint:errcheck
		return nil, unavailable("create state table", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context) (instance.Snapshot, error) {
	snap := instance.NewSnapshot()
	if _, err := s.get(ctx, bucketSnapshot, &snap); err != nil {
		return instance.Snapshot{}, err
	}
	if snap.Instances == nil {
		snap = instance.NewSnapshot()
	}
	return snap, nil
}

func (s *SQLiteStore) PutSnapshot(ctx context.Context, snap instance.Snapshot) error {
	return s.put(ctx, map[string]any{bucketSnapshot: snap.Clone()})
}

func (s *SQLiteStore) GetVariants(ctx context.Context) ([]variant.Variant, time.Time, error) {
	var variants []variant.Variant
	if _, err := s.get(ctx, bucketVariants, &variants); err != nil {
		return nil, time.Time{}, err
	}
	fresh, err := s.Freshness(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	return variants, fresh.VariantsFetchedAt, nil
}

func (s *SQLiteStore) PutVariants(ctx context.Context, variants []variant.Variant, fetchedAt time.Time) error {
	return s.updateFreshness(ctx, func(f *freshnessRow) map[string]any {
		f.VariantsFetchedAt = fetchedAt.UTC()
		return map[string]any{bucketVariants: variants}
	})
}

func (s *SQLiteStore) GetPendingWrites(ctx context.Context) ([]queue.Delta, error) {
	var deltas []queue.Delta
	if _, err := s.get(ctx, bucketPending, &deltas); err != nil {
		return nil, err
	}
	sort.Slice(deltas, func(a, b int) bool { return deltas[a].Seq < deltas[b].Seq })
	return deltas, nil
}

func (s *SQLiteStore) PutPendingWrites(ctx context.Context, deltas []queue.Delta) error {
	if deltas == nil {
		deltas = []queue.Delta{}
	}
	return s.put(ctx, map[string]any{bucketPending: deltas})
}

func (s *SQLiteStore) Freshness(ctx context.Context) (Freshness, error) {
	var row freshnessRow
	if _, err := s.get(ctx, bucketFreshness, &row); err != nil {
		return Freshness{}, err
	}
	return Freshness(row), nil
}

func (s *SQLiteStore) MarkInstancesFetched(ctx context.Context, at time.Time) error {
	return s.updateFreshness(ctx, func(f *freshnessRow) map[string]any {
		f.InstancesFetchedAt = at.UTC()
		return nil
	})
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// get decodes the payload of bucket into out and reports whether the row
// exists.
func (s *SQLiteStore) get(ctx context.Context, bucket string, out any) (bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, bucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("select "+bucket, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, unavailable("decode "+bucket, err)
	}
	return true, nil
}

// updateFreshness reads the freshness row, lets fn modify it, and writes it
// back together with any extra buckets fn returns.
func (s *SQLiteStore) updateFreshness(ctx context.Context, fn func(*freshnessRow) map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row freshnessRow
	if _, err := s.get(ctx, bucketFreshness, &row); err != nil {
		return err
	}
	rows := fn(&row)
	if rows == nil {
		rows = make(map[string]any, 1)
	}
	rows[bucketFreshness] = row
	return s.write(ctx, rows)
}

func (s *SQLiteStore) put(ctx context.Context, rows map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, rows)
}

// write upserts every row in one transaction.
func (s *SQLiteStore) write(ctx context.Context, rows map[string]any) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	buckets := make([]string, 0, len(rows))
	for b := range rows {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)

	for _, bucket := range buckets {
		data, err := json.Marshal(rows[bucket])
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return unavailable("upsert "+bucket, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}
