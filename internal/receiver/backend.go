package receiver

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/store"
)

// Backend persists one snapshot per user.
type Backend interface {
	Load(ctx context.Context, user string) (instance.Snapshot, error)
	Save(ctx context.Context, user string, snap instance.Snapshot) error
}

// MemoryBackend keeps snapshots in memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	snaps map[string]instance.Snapshot
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{snaps: make(map[string]instance.Snapshot)}
}

func (b *MemoryBackend) Load(_ context.Context, user string) (instance.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap, ok := b.snaps[user]
	if !ok {
		return instance.NewSnapshot(), nil
	}
	return snap.Clone(), nil
}

func (b *MemoryBackend) Save(_ context.Context, user string, snap instance.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps[user] = snap.Clone()
	return nil
}

var safeUser = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// RepositoryBackend keeps one store repository per user under a directory.
type RepositoryBackend struct {
	dir     string
	backend string

	mu    sync.Mutex
	repos map[string]store.Repository
}

// NewRepositoryBackend stores user snapshots in dir using the given store
// backend.
func NewRepositoryBackend(dir, backend string) *RepositoryBackend {
	return &RepositoryBackend{dir: dir, backend: backend, repos: make(map[string]store.Repository)}
}

func (b *RepositoryBackend) repo(ctx context.Context, user string) (store.Repository, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.repos[user]; ok {
		return r, nil
	}
	ext := ".json"
	if b.backend == store.BackendSQLite {
		ext = ".db"
	}
	path := filepath.Join(b.dir, safeUser.ReplaceAllString(user, "_")+ext)
	r, err := store.Open(ctx, b.backend, path)
	if err != nil {
		return nil, fmt.Errorf("open store for %s: %w", user, err)
	}
	b.repos[user] = r
	return r, nil
}

func (b *RepositoryBackend) Load(ctx context.Context, user string) (instance.Snapshot, error) {
	r, err := b.repo(ctx, user)
	if err != nil {
		return instance.Snapshot{}, err
	}
	return r.GetSnapshot(ctx)
}

func (b *RepositoryBackend) Save(ctx context.Context, user string, snap instance.Snapshot) error {
	r, err := b.repo(ctx, user)
	if err != nil {
		return err
	}
	return r.PutSnapshot(ctx, snap)
}

// Close closes every opened repository.
func (b *RepositoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for user, r := range b.repos {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.repos, user)
	}
	return firstErr
}
