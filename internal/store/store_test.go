package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/queue"
	"github.com/jmgilman/dexkeep/internal/variant"
)

func testID(n int) identity.InstanceID {
	return identity.MustParseID(fmt.Sprintf("0025-default_00000000-0000-4000-9000-%012d", n))
}

// backends returns a fresh repository per backend rooted in a temp dir.
func backends(t *testing.T) map[string]func(dir string) Repository {
	t.Helper()
	return map[string]func(dir string) Repository{
		BackendJSON: func(dir string) Repository {
			return NewJSONStore(filepath.Join(dir, "state.json"))
		},
		BackendSQLite: func(dir string) Repository {
			s, err := NewSQLiteStore(context.Background(), filepath.Join(dir, "state.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() }) //nolint:errcheck
			return s
		},
	}
}

func TestRepository(t *testing.T) {
	ctx := context.Background()

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("empty repository", func(t *testing.T) {
				repo := open(t.TempDir())

				snap, err := repo.GetSnapshot(ctx)
				require.NoError(t, err)
				assert.Equal(t, 0, snap.Len())
				assert.NotNil(t, snap.Instances)

				variants, fetched, err := repo.GetVariants(ctx)
				require.NoError(t, err)
				assert.Empty(t, variants)
				assert.True(t, fetched.IsZero())

				pending, err := repo.GetPendingWrites(ctx)
				require.NoError(t, err)
				assert.Empty(t, pending)

				fresh, err := repo.Freshness(ctx)
				require.NoError(t, err)
				assert.Equal(t, Freshness{}, fresh)
			})

			t.Run("snapshot round trip", func(t *testing.T) {
				repo := open(t.TempDir())
				iv := 14
				snap := instance.NewSnapshot()
				snap.Instances[testID(1)] = instance.Instance{
					ID:         testID(1),
					VariantKey: "0025-default",
					SpeciesID:  25,
					IsOwned:    true,
					Details:    instance.Details{Nickname: "Sparky", AttackIV: &iv},
					LastUpdate: 100,
				}
				snap.Timestamp = 100

				require.NoError(t, repo.PutSnapshot(ctx, snap))
				got, err := repo.GetSnapshot(ctx)

				require.NoError(t, err)
				assert.Equal(t, snap, got)
			})

			t.Run("variants and freshness", func(t *testing.T) {
				repo := open(t.TempDir())
				fetched := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
				variants := []variant.Variant{{Key: "0025-default", Name: "Pikachu", SpeciesID: 25, Kind: variant.KindDefault}}

				require.NoError(t, repo.PutVariants(ctx, variants, fetched))
				require.NoError(t, repo.MarkInstancesFetched(ctx, fetched.Add(time.Hour)))

				got, gotFetched, err := repo.GetVariants(ctx)
				require.NoError(t, err)
				assert.Equal(t, variants, got)
				assert.True(t, fetched.Equal(gotFetched))

				fresh, err := repo.Freshness(ctx)
				require.NoError(t, err)
				assert.True(t, fetched.Equal(fresh.VariantsFetchedAt))
				assert.True(t, fetched.Add(time.Hour).Equal(fresh.InstancesFetchedAt))
			})

			t.Run("pending writes are ordered", func(t *testing.T) {
				repo := open(t.TempDir())
				deltas := []queue.Delta{
					{Seq: 3, InstanceID: testID(3), Timestamp: 30, Deleted: true},
					{Seq: 1, InstanceID: testID(1), Timestamp: 10, Fields: map[string]any{"is_owned": true}},
				}

				require.NoError(t, repo.PutPendingWrites(ctx, deltas))
				got, err := repo.GetPendingWrites(ctx)

				require.NoError(t, err)
				require.Len(t, got, 2)
				assert.Equal(t, uint64(1), got[0].Seq)
				assert.Equal(t, true, got[0].Fields["is_owned"])
				assert.Equal(t, uint64(3), got[1].Seq)
				assert.True(t, got[1].Deleted)

				require.NoError(t, repo.PutPendingWrites(ctx, nil))
				got, err = repo.GetPendingWrites(ctx)
				require.NoError(t, err)
				assert.Empty(t, got)
			})

			t.Run("writes do not clobber other parts", func(t *testing.T) {
				repo := open(t.TempDir())
				snap := instance.NewSnapshot()
				snap.Instances[testID(1)] = instance.Instance{ID: testID(1), IsOwned: true, LastUpdate: 1}

				require.NoError(t, repo.PutSnapshot(ctx, snap))
				require.NoError(t, repo.PutPendingWrites(ctx, []queue.Delta{{Seq: 1, InstanceID: testID(1)}}))
				require.NoError(t, repo.PutVariants(ctx, []variant.Variant{{Key: "0025-default", SpeciesID: 25}}, time.Now()))

				got, err := repo.GetSnapshot(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, got.Len())
				pending, err := repo.GetPendingWrites(ctx)
				require.NoError(t, err)
				assert.Len(t, pending, 1)
			})
		})
	}
}

func TestRepository_Persistence(t *testing.T) {
	ctx := context.Background()

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			snap := instance.NewSnapshot()
			snap.Instances[testID(1)] = instance.Instance{ID: testID(1), IsWanted: true, LastUpdate: 5}

			first := open(dir)
			require.NoError(t, first.PutSnapshot(ctx, snap))
			require.NoError(t, first.Close())

			second := open(dir)
			got, err := second.GetSnapshot(ctx)

			require.NoError(t, err)
			assert.True(t, got.Instances[testID(1)].IsWanted)
		})
	}
}

func TestJSONStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewJSONStore(filepath.Join(t.TempDir(), "state.json"))

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			if err := s.PutPendingWrites(ctx, []queue.Delta{{Seq: uint64(idx + 1), InstanceID: testID(idx + 1)}}); err != nil {
				errs <- err
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := s.GetPendingWrites(ctx); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	got, err := s.GetPendingWrites(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestJSONStore_ContextCancellation(t *testing.T) {
	t.Run("cancelled before locking", func(t *testing.T) {
		s := NewJSONStore(filepath.Join(t.TempDir(), "state.json"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := s.PutSnapshot(ctx, instance.NewSnapshot())

		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("deadline while another process holds the lock", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		holder, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, fileMode)
		require.NoError(t, err)
		defer holder.Close()
		require.NoError(t, syscall.Flock(int(holder.Fd()), syscall.LOCK_EX))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err = NewJSONStore(path).GetSnapshot(ctx)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestJSONStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), fileMode))

	_, err := NewJSONStore(path).GetSnapshot(context.Background())

	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, BackendJSON, filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, repo)

	repo, err = Open(ctx, BackendSQLite, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, repo)
	require.NoError(t, repo.Close())

	_, err = Open(ctx, "postgres", "")
	assert.Error(t, err)
}

func TestIsStale(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsStale(time.Time{}, time.Hour, now))
	assert.False(t, IsStale(now.Add(-30*time.Minute), time.Hour, now))
	assert.True(t, IsStale(now.Add(-time.Hour), time.Hour, now))
	assert.False(t, IsStale(now.Add(-24*time.Hour), 0, now))
}
