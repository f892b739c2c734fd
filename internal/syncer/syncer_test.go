package syncer

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jmgilman/dexkeep/internal/auth"
	"github.com/jmgilman/dexkeep/internal/collection"
	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/queue"
	"github.com/jmgilman/dexkeep/internal/receiver"
	"github.com/jmgilman/dexkeep/internal/remote"
	"github.com/jmgilman/dexkeep/internal/store"
	"github.com/jmgilman/dexkeep/internal/variant"
	"github.com/jmgilman/dexkeep/internal/variant/mocks"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

var testVariants = []variant.Variant{
	{Key: "0025-default", Name: "Pikachu", SpeciesID: 25, Kind: variant.KindDefault},
	{Key: "0001-default", Name: "Bulbasaur", SpeciesID: 1, Kind: variant.KindDefault},
}

func newEngine(t *testing.T) *collection.Manager {
	t.Helper()
	repo := store.NewJSONStore(filepath.Join(t.TempDir(), "state.json"))
	source := &mocks.SourceMock{
		VariantsFunc: func(context.Context) ([]variant.Variant, error) {
			return testVariants, nil
		},
	}
	m, err := collection.Open(context.Background(), repo, source, collection.ManagerConfig{Owner: "ash"})
	require.NoError(t, err)
	return m
}

func markOwned(t *testing.T, m *collection.Manager, key string) {
	t.Helper()
	_, err := m.SetStatus(context.Background(), key, instance.StatusOwned)
	require.NoError(t, err)
}

type fakeRemote struct {
	mu       sync.Mutex
	push     func([]queue.Delta) (remote.PushResult, error)
	snap     instance.Snapshot
	fetchErr error
	pushed   [][]queue.Delta
}

func (f *fakeRemote) Push(_ context.Context, deltas []queue.Delta) (remote.PushResult, error) {
	f.mu.Lock()
	f.pushed = append(f.pushed, deltas)
	f.mu.Unlock()
	if f.push != nil {
		return f.push(deltas)
	}
	res := remote.PushResult{}
	for _, d := range deltas {
		res.Applied = append(res.Applied, d.Seq)
	}
	return res, nil
}

func (f *fakeRemote) FetchSnapshot(context.Context) (instance.Snapshot, error) {
	if f.fetchErr != nil {
		return instance.Snapshot{}, f.fetchErr
	}
	if f.snap.Instances == nil {
		return instance.NewSnapshot(), nil
	}
	return f.snap.Clone(), nil
}

func TestSyncOnce_AgainstReceiver(t *testing.T) {
	ctx := context.Background()
	tokens := auth.TokenService{Secret: []byte("secret"), Duration: time.Hour}
	srv := httptest.NewServer(receiver.New(receiver.Config{Tokens: tokens}).Handler())
	defer srv.Close()

	token, _, err := tokens.Sign("ash")
	require.NoError(t, err)
	client, err := remote.NewClient(remote.Config{URL: srv.URL, Token: token})
	require.NoError(t, err)
	actor, err := client.Actor()
	require.NoError(t, err)

	engine := newEngine(t)
	markOwned(t, engine, "0025-default")
	queued := len(engine.Pending())
	require.Positive(t, queued)

	report, err := New(engine, client, Config{Actor: actor}).SyncOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, queued, report.Pushed)
	assert.Zero(t, report.Rejected)
	assert.Empty(t, engine.Pending())
	assert.NotEmpty(t, report.TraceID)

	remoteSnap, err := client.FetchSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.Snapshot().Len(), remoteSnap.Len())

	t.Run("second device converges", func(t *testing.T) {
		other := newEngine(t)

		_, err := New(other, client, Config{Actor: actor}).SyncOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, engine.Snapshot().Instances, other.Snapshot().Instances)
	})
}

func TestSyncOnce_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("transient push keeps writes queued", func(t *testing.T) {
		engine := newEngine(t)
		markOwned(t, engine, "0025-default")
		queued := len(engine.Pending())
		rem := &fakeRemote{push: func([]queue.Delta) (remote.PushResult, error) {
			return remote.PushResult{}, fmt.Errorf("push: %w", remote.ErrTransient)
		}}

		report, err := New(engine, rem, Config{}).SyncOnce(ctx)

		assert.ErrorIs(t, err, remote.ErrTransient)
		assert.Equal(t, queued, report.Requeued)
		assert.Len(t, engine.Pending(), queued)
	})

	t.Run("unauthorized drops the batch", func(t *testing.T) {
		engine := newEngine(t)
		markOwned(t, engine, "0025-default")
		queued := len(engine.Pending())
		rem := &fakeRemote{push: func([]queue.Delta) (remote.PushResult, error) {
			return remote.PushResult{}, &remote.StatusError{Op: "push", StatusCode: 401}
		}}
		agent := New(engine, rem, Config{})

		report, err := agent.SyncOnce(ctx)

		assert.ErrorIs(t, err, remote.ErrUnauthorized)
		assert.ErrorIs(t, err, remote.ErrPermanent)
		assert.Equal(t, queued, report.Rejected)
		assert.Empty(t, engine.Pending())

		// nothing is pushed again
		for range 2 {
			report, err = agent.SyncOnce(ctx)
			require.NoError(t, err)
			assert.Zero(t, report.Rejected)
		}
		assert.Len(t, rem.pushed, 1)
	})

	t.Run("permanent push drops the batch", func(t *testing.T) {
		engine := newEngine(t)
		markOwned(t, engine, "0025-default")
		queued := len(engine.Pending())
		rem := &fakeRemote{push: func([]queue.Delta) (remote.PushResult, error) {
			return remote.PushResult{}, &remote.StatusError{Op: "push", StatusCode: 422}
		}}

		report, err := New(engine, rem, Config{}).SyncOnce(ctx)

		assert.ErrorIs(t, err, remote.ErrPermanent)
		assert.Equal(t, queued, report.Rejected)
		assert.Empty(t, engine.Pending())
	})

	t.Run("per write rejections", func(t *testing.T) {
		engine := newEngine(t)
		markOwned(t, engine, "0025-default")
		markOwned(t, engine, "0001-default")
		pending := engine.Pending()
		require.GreaterOrEqual(t, len(pending), 2)
		rem := &fakeRemote{push: func(deltas []queue.Delta) (remote.PushResult, error) {
			res := remote.PushResult{Rejected: []remote.Rejection{{Seq: deltas[0].Seq, Reason: "bad"}}}
			for _, d := range deltas[1:] {
				res.Applied = append(res.Applied, d.Seq)
			}
			return res, nil
		}}

		report, err := New(engine, rem, Config{}).SyncOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Rejected)
		assert.Equal(t, len(pending)-1, report.Pushed)
		assert.Empty(t, engine.Pending())
	})

	t.Run("fetch failure skips merge", func(t *testing.T) {
		engine := newEngine(t)
		rem := &fakeRemote{fetchErr: fmt.Errorf("fetch: %w", remote.ErrTransient)}

		_, err := New(engine, rem, Config{}).SyncOnce(ctx)

		assert.ErrorIs(t, err, remote.ErrTransient)
		assert.Empty(t, rem.pushed)
	})
}

func TestSyncOnce_MergeScope(t *testing.T) {
	ctx := context.Background()
	mine := identity.MustParseID("0001-default_00000000-0000-4000-8000-000000000001")
	theirs := identity.MustParseID("0001-default_00000000-0000-4000-8000-000000000002")

	snap := instance.NewSnapshot()
	snap.Instances[mine] = instance.Instance{ID: mine, VariantKey: "0001-default", SpeciesID: 1, Owner: "ash", IsOwned: true, Registered: true, LastUpdate: 1}
	snap.Instances[theirs] = instance.Instance{ID: theirs, VariantKey: "0001-default", SpeciesID: 1, Owner: "misty", IsOwned: true, Registered: true, LastUpdate: 1}
	snap.Timestamp = 1

	engine := newEngine(t)
	report, err := New(engine, &fakeRemote{snap: snap}, Config{Actor: "ash"}).SyncOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	_, ok := engine.Get(mine)
	assert.True(t, ok)
	_, ok = engine.Get(theirs)
	assert.False(t, ok)
}

func TestRun(t *testing.T) {
	t.Run("retries transient failures until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var attempts []error
		agent := New(newEngine(t), &fakeRemote{fetchErr: fmt.Errorf("fetch: %w", remote.ErrTransient)}, Config{
			Interval:   time.Hour,
			RetryBase:  time.Millisecond,
			MaxBackoff: 2 * time.Millisecond,
			OnSync: func(_ Report, err error) {
				attempts = append(attempts, err)
				if len(attempts) == 3 {
					cancel()
				}
			},
		})

		require.NoError(t, agent.Run(ctx))
		require.Len(t, attempts, 3)
		for _, err := range attempts {
			assert.ErrorIs(t, err, remote.ErrTransient)
		}
	})

	t.Run("returns on unauthorized", func(t *testing.T) {
		attempts := 0
		agent := New(newEngine(t), &fakeRemote{fetchErr: &remote.StatusError{Op: "fetch snapshot", StatusCode: 403}}, Config{
			Interval: time.Millisecond,
			OnSync:   func(Report, error) { attempts++ },
		})

		err := agent.Run(context.Background())

		assert.ErrorIs(t, err, remote.ErrUnauthorized)
		assert.Equal(t, 1, attempts)
	})

	t.Run("stops on cancellation while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		agent := New(newEngine(t), &fakeRemote{}, Config{
			Interval: time.Hour,
			OnSync: func(_ Report, err error) {
				assert.NoError(t, err)
				cancel()
			},
		})

		done := make(chan error, 1)
		go func() { done <- agent.Run(ctx) }()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("agent did not stop")
		}
	})
}

func TestBackoff(t *testing.T) {
	a := New(nil, nil, Config{RetryBase: time.Second, MaxBackoff: 10 * time.Second})

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{50, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.failures), func(t *testing.T) {
			assert.Equal(t, tt.want, a.backoff(tt.failures))
		})
	}
}
