package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/queue"
	"github.com/jmgilman/dexkeep/internal/variant"
)

const (
	lockTimeout = 5 * time.Second
	lockPoll    = 10 * time.Millisecond
	fileMode    = 0644
	dirMode     = 0755
)

// JSONStore keeps the whole document in one JSON file guarded by flock so
// several dexkeep processes can share it.
type JSONStore struct {
	path string
	mu   sync.RWMutex
}

// NewJSONStore creates a JSON-backed repository at path. The file is
// created on first write.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) GetSnapshot(ctx context.Context) (instance.Snapshot, error) {
	var out instance.Snapshot
	err := s.withSharedLock(ctx, func(doc *document) error {
		out = doc.snapshot()
		return nil
	})
	return out, err
}

func (s *JSONStore) PutSnapshot(ctx context.Context, snap instance.Snapshot) error {
	return s.withExclusiveLock(ctx, func(doc *document) error {
		doc.setSnapshot(snap)
		return nil
	})
}

func (s *JSONStore) GetVariants(ctx context.Context) ([]variant.Variant, time.Time, error) {
	var (
		out     []variant.Variant
		fetched time.Time
	)
	err := s.withSharedLock(ctx, func(doc *document) error {
		out = append([]variant.Variant(nil), doc.Variants...)
		fetched = doc.VariantsFetchedAt
		return nil
	})
	return out, fetched, err
}

func (s *JSONStore) PutVariants(ctx context.Context, variants []variant.Variant, fetchedAt time.Time) error {
	return s.withExclusiveLock(ctx, func(doc *document) error {
		doc.Variants = append([]variant.Variant(nil), variants...)
		doc.VariantsFetchedAt = fetchedAt.UTC()
		return nil
	})
}

func (s *JSONStore) GetPendingWrites(ctx context.Context) ([]queue.Delta, error) {
	var out []queue.Delta
	err := s.withSharedLock(ctx, func(doc *document) error {
		out = append([]queue.Delta(nil), doc.PendingWrites...)
		return nil
	})
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out, err
}

func (s *JSONStore) PutPendingWrites(ctx context.Context, deltas []queue.Delta) error {
	return s.withExclusiveLock(ctx, func(doc *document) error {
		doc.PendingWrites = append([]queue.Delta(nil), deltas...)
		return nil
	})
}

func (s *JSONStore) Freshness(ctx context.Context) (Freshness, error) {
	var out Freshness
	err := s.withSharedLock(ctx, func(doc *document) error {
		out = doc.freshness()
		return nil
	})
	return out, err
}

func (s *JSONStore) MarkInstancesFetched(ctx context.Context, at time.Time) error {
	return s.withExclusiveLock(ctx, func(doc *document) error {
		doc.InstancesFetchedAt = at.UTC()
		return nil
	})
}

// Close is a no-op; locks are held only for the duration of each call.
func (s *JSONStore) Close() error {
	return nil
}

// withSharedLock executes fn with a shared (read) lock.
func (s *JSONStore) withSharedLock(ctx context.Context, fn func(*document) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, file, err := s.openAndLock(ctx, false)
	if err != nil {
		return err
	}
	defer s.unlockAndClose(file)

	return fn(doc)
}

// withExclusiveLock executes fn with an exclusive (write) lock.
// Changes made by fn are persisted to disk.
func (s *JSONStore) withExclusiveLock(ctx context.Context, fn func(*document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, file, err := s.openAndLock(ctx, true)
	if err != nil {
		return err
	}
	defer s.unlockAndClose(file)

	if err := fn(doc); err != nil {
		return err
	}

	return s.save(doc)
}

// openAndLock opens the state file and acquires a lock.
func (s *JSONStore) openAndLock(ctx context.Context, exclusive bool) (*document, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return nil, nil, unavailable("create state directory", err)
	}

	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, fileMode)
	if err != nil {
		return nil, nil, unavailable("open state file", err)
	}

	lockType := syscall.LOCK_SH
	if exclusive {
		lockType = syscall.LOCK_EX
	}

	if err := s.acquireLock(ctx, file, lockType); err != nil {
		file.Close() //nolint:errcheck
		return nil, nil, err
	}

	doc, err := s.load(file)
	if err != nil {
		s.unlockAndClose(file)
		return nil, nil, err
	}

	return doc, file, nil
}

// acquireLock attempts to acquire a file lock with timeout.
func (s *JSONStore) acquireLock(ctx context.Context, file *os.File, lockType int) error {
	deadline := time.Now().Add(lockTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := syscall.Flock(int(file.Fd()), lockType|syscall.LOCK_NB)
		if err == nil {
			return nil
		}

		if err != syscall.EWOULDBLOCK {
			return unavailable("acquire file lock", err)
		}

		if time.Now().After(deadline) {
			return unavailable("acquire file lock", ErrLockTimeout)
		}

		time.Sleep(lockPoll)
	}
}

// unlockAndClose releases the lock and closes the file.
func (s *JSONStore) unlockAndClose(file *os.File) {
	syscall.Flock(int(file.Fd()), syscall.LOCK_UN) //nolint:errcheck
	file.Close()                                   //nolint:errcheck
}

// load reads and parses the state file.
func (s *JSONStore) load(file *os.File) (*document, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, unavailable("stat state file", err)
	}

	if info.Size() == 0 {
		return newDocument(), nil
	}

	if _, err := file.Seek(0, 0); err != nil {
		return nil, unavailable("seek state file", err)
	}

	doc := newDocument()
	if err := json.NewDecoder(file).Decode(doc); err != nil {
		return nil, unavailable("decode state file", err)
	}
	if doc.Version > documentVersion {
		return nil, unavailable("decode state file", fmt.Errorf("unsupported version %d", doc.Version))
	}

	return doc, nil
}

// save writes the document to disk atomically.
func (s *JSONStore) save(doc *document) error {
	doc.Version = documentVersion

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "state-*.json.tmp")
	if err != nil {
		return unavailable("create temp file", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath) //nolint:errcheck
		}
	}()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		tmp.Close() //nolint:errcheck
		return unavailable("encode state", err)
	}

	if err := tmp.Close(); err != nil {
		return unavailable("close temp file", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return unavailable("rename state file", err)
	}

	tmpPath = ""
	return nil
}
