// Package collection provides the high-level collection manager that ties
// the ownership engine to persistence and the pending-write queue.
package collection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmgilman/dexkeep/internal/bucket"
	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/queue"
	"github.com/jmgilman/dexkeep/internal/reconcile"
	"github.com/jmgilman/dexkeep/internal/slogger"
	"github.com/jmgilman/dexkeep/internal/store"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// repository is the internal interface for persistence.
type repository interface {
	GetSnapshot(ctx context.Context) (instance.Snapshot, error)
	PutSnapshot(ctx context.Context, snap instance.Snapshot) error
	GetVariants(ctx context.Context) ([]variant.Variant, time.Time, error)
	PutVariants(ctx context.Context, variants []variant.Variant, fetchedAt time.Time) error
	GetPendingWrites(ctx context.Context) ([]queue.Delta, error)
	PutPendingWrites(ctx context.Context, deltas []queue.Delta) error
	Freshness(ctx context.Context) (store.Freshness, error)
	MarkInstancesFetched(ctx context.Context, at time.Time) error
}

// ManagerConfig configures the Manager.
type ManagerConfig struct {
	Owner      string        // Actor stamped on new instances
	CatalogTTL time.Duration // Refresh the cached catalog when older than this

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
	// NewID mints instance identities. Defaults to identity.New.
	NewID func(variantKey string) (identity.InstanceID, error)
}

// Manager owns the in-memory snapshot and serializes every change to it.
type Manager struct {
	mu      sync.Mutex
	repo    repository
	source  variant.Source
	catalog *variant.Catalog
	snap    instance.Snapshot
	queue   *queue.Queue
	cfg     ManagerConfig

	// deletes acknowledged since the last Reconcile; a snapshot fetched
	// alongside the push may still hold them
	acked reconcile.Tombstones
}

// Open loads the catalog, snapshot and pending writes from repo. The catalog
// is refreshed from source when the cached copy is stale; a failed refresh
// falls back to the cache. source may be nil.
func Open(ctx context.Context, repo repository, source variant.Source, cfg ManagerConfig) (*Manager, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = identity.New
	}

	m := &Manager{repo: repo, source: source, cfg: cfg}

	if err := m.loadCatalog(ctx, false); err != nil {
		return nil, err
	}

	snap, err := repo.GetSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap.Instances == nil {
		snap = instance.NewSnapshot()
	}
	m.snap = snap

	pending, err := repo.GetPendingWrites(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending writes: %w", err)
	}
	m.queue = queue.New(pending...)

	slogger.L(ctx).Debug("opened collection",
		"instances", snap.Len(),
		"variants", m.catalog.Len(),
		"pending", len(pending))

	return m, nil
}

// RefreshCatalog fetches the catalog from the source regardless of age.
func (m *Manager) RefreshCatalog(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCatalog(ctx, true)
}

func (m *Manager) loadCatalog(ctx context.Context, force bool) error {
	log := slogger.L(ctx)

	cached, fetched, err := m.repo.GetVariants(ctx)
	if err != nil {
		return fmt.Errorf("load cached variants: %w", err)
	}

	variants := cached
	if m.source != nil && (force || store.IsStale(fetched, m.cfg.CatalogTTL, m.cfg.Now())) {
		fresh, fetchErr := m.source.Variants(ctx)
		switch {
		case fetchErr != nil && len(cached) == 0:
			return fmt.Errorf("fetch variants: %w", fetchErr)
		case fetchErr != nil:
			log.Warn("catalog refresh failed, using cached copy", "error", fetchErr, "fetched_at", fetched)
		default:
			variants = fresh
			if putErr := m.repo.PutVariants(ctx, fresh, m.cfg.Now()); putErr != nil {
				log.Warn("failed to cache catalog", "error", putErr)
			}
		}
	}

	cat, err := variant.NewCatalog(variants)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	m.catalog = cat
	return nil
}

// Catalog returns the loaded catalog.
func (m *Manager) Catalog() *variant.Catalog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog
}

// Owner returns the actor new instances are attributed to.
func (m *Manager) Owner() string {
	return m.cfg.Owner
}

// SetStatus moves the instance or variant named by key to status.
func (m *Manager) SetStatus(ctx context.Context, key string, status instance.Status) (instance.Mutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mut, err := instance.Transition(m.snap, m.catalog, key, status, m.options())
	if err != nil {
		return instance.Mutation{}, fmt.Errorf("set %s to %s: %w", key, status, err)
	}

	return mut, m.commit(ctx, "set status", mut)
}

// MegaEvolve evolves an owned instance into form.
func (m *Manager) MegaEvolve(ctx context.Context, id identity.InstanceID, form string) (instance.Mutation, error) {
	return m.apply(ctx, "mega evolve", func(snap instance.Snapshot, opts instance.Options) (instance.Mutation, error) {
		return instance.MegaEvolve(snap, id, form, opts)
	})
}

// MegaRevert reverts a mega evolved instance.
func (m *Manager) MegaRevert(ctx context.Context, id identity.InstanceID) (instance.Mutation, error) {
	return m.apply(ctx, "mega revert", func(snap instance.Snapshot, opts instance.Options) (instance.Mutation, error) {
		return instance.MegaRevert(snap, id, opts)
	})
}

// Fuse fuses partner into base.
func (m *Manager) Fuse(ctx context.Context, base, partner identity.InstanceID, fusionID int, form string) (instance.Mutation, error) {
	return m.apply(ctx, "fuse", func(snap instance.Snapshot, opts instance.Options) (instance.Mutation, error) {
		return instance.Fuse(snap, base, partner, fusionID, form, opts)
	})
}

// Unfuse splits a fused instance from its partner.
func (m *Manager) Unfuse(ctx context.Context, base identity.InstanceID) (instance.Mutation, error) {
	return m.apply(ctx, "unfuse", func(snap instance.Snapshot, opts instance.Options) (instance.Mutation, error) {
		return instance.Unfuse(snap, base, opts)
	})
}

// UpdateDetails replaces the descriptive details of an instance.
func (m *Manager) UpdateDetails(ctx context.Context, id identity.InstanceID, d instance.Details) (instance.Mutation, error) {
	return m.apply(ctx, "update details", func(snap instance.Snapshot, opts instance.Options) (instance.Mutation, error) {
		return instance.UpdateDetails(snap, id, d, opts)
	})
}

// Bootstrap creates one placeholder for every catalog variant that has no
// instance yet and returns how many were created.
func (m *Manager) Bootstrap(ctx context.Context) (int, error) {
	mut, err := m.apply(ctx, "bootstrap", func(snap instance.Snapshot, opts instance.Options) (instance.Mutation, error) {
		return instance.Bootstrap(snap, m.catalog.Variants(), opts)
	})
	return len(mut.Upserts), err
}

func (m *Manager) apply(ctx context.Context, op string, fn func(instance.Snapshot, instance.Options) (instance.Mutation, error)) (instance.Mutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mut, err := fn(m.snap, m.options())
	if err != nil {
		return instance.Mutation{}, fmt.Errorf("%s: %w", op, err)
	}

	return mut, m.commit(ctx, op, mut)
}

// commit applies mut in memory, queues it for the remote and persists both.
// The in-memory change is kept when persistence fails.
func (m *Manager) commit(ctx context.Context, op string, mut instance.Mutation) error {
	log := slogger.L(ctx)

	if mut.IsEmpty() {
		log.Debug("no changes", "op", op)
		return nil
	}

	m.snap.Apply(mut)

	deltas, err := queue.FromMutation(mut)
	if err != nil {
		return fmt.Errorf("queue %s: %w", op, err)
	}
	for _, d := range deltas {
		m.queue.Enqueue(d)
	}

	log.Debug("applied mutation",
		"op", op,
		"target", mut.Target,
		"upserts", len(mut.Upserts),
		"deletes", len(mut.Deletes))

	if err := m.persist(ctx); err != nil {
		return &StoreError{Op: op, Mutation: mut, Err: err}
	}
	return nil
}

func (m *Manager) persist(ctx context.Context) error {
	if err := m.repo.PutSnapshot(ctx, m.snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := m.repo.PutPendingWrites(ctx, m.queue.Pending()); err != nil {
		return fmt.Errorf("save pending writes: %w", err)
	}
	return nil
}

// Reconcile merges remote into the local snapshot, scoped to actor, and
// replaces the local snapshot with the result.
func (m *Manager) Reconcile(ctx context.Context, remote instance.Snapshot, actor string) (reconcile.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := slogger.L(ctx)

	if !remote.Comparable() {
		log.Warn("remote snapshot has records without a last-update stamp; local copies win for them")
	}

	merged, report := reconcile.MergeTombstoned(m.snap, remote, actor, m.tombstones())
	m.snap = merged
	m.acked = nil

	if report.Changed() {
		log.Debug("merge repaired snapshot",
			"filtered", len(report.Filtered),
			"dropped", len(report.Dropped),
			"cleared", len(report.Cleared),
			"tombstoned", len(report.Tombstoned))
	}
	log.Info("merged remote snapshot",
		"instances", merged.Len(),
		"superseded", len(report.Superseded))

	if err := m.repo.PutSnapshot(ctx, m.snap); err != nil {
		return report, &StoreError{Op: "reconcile", Err: fmt.Errorf("save snapshot: %w", err)}
	}
	return report, nil
}

// tombstones collects local deletes the remote may not reflect yet: those
// still queued and those acknowledged since the last merge.
func (m *Manager) tombstones() reconcile.Tombstones {
	tombs := make(reconcile.Tombstones, len(m.acked))
	for id, ts := range m.acked {
		tombs[id] = ts
	}
	for _, d := range m.queue.Pending() {
		if d.Deleted {
			tombs[d.InstanceID] = max(tombs[d.InstanceID], d.Timestamp)
		}
	}
	return tombs
}

// MarkFetched records a successful remote snapshot fetch.
func (m *Manager) MarkFetched(ctx context.Context) error {
	if err := m.repo.MarkInstancesFetched(ctx, m.cfg.Now()); err != nil {
		return &StoreError{Op: "mark fetched", Err: err}
	}
	return nil
}

// Freshness returns when the mirrors were last refreshed.
func (m *Manager) Freshness(ctx context.Context) (store.Freshness, error) {
	return m.repo.Freshness(ctx)
}

// Buckets derives a fresh bucket view from the current snapshot.
func (m *Manager) Buckets(opts ...bucket.Option) (bucket.View, []bucket.Diagnostic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bucket.Build(m.snap, m.catalog, opts...)
}

// Snapshot returns a copy of the current snapshot.
func (m *Manager) Snapshot() instance.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone()
}

// Get returns a copy of one instance.
func (m *Manager) Get(id identity.InstanceID) (instance.Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.snap.Get(id)
	return inst.Clone(), ok
}

// Verify checks the current snapshot against the collection invariants.
func (m *Manager) Verify() []instance.Violation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return instance.Verify(m.snap)
}

// Pending lists queued writes without draining them.
func (m *Manager) Pending() []queue.Delta {
	return m.queue.Pending()
}

// Drain takes every queued write for transmission. The batch must be
// handed back through Settle.
func (m *Manager) Drain() *queue.Batch {
	return m.queue.Drain()
}

// Settle requeues unsettled deltas of batch, logs rejected ones and
// persists the resulting queue.
func (m *Manager) Settle(ctx context.Context, batch *queue.Batch) error {
	log := slogger.L(ctx)

	requeued := batch.Release()

	m.mu.Lock()
	for _, d := range batch.Acked() {
		if !d.Deleted {
			continue
		}
		if m.acked == nil {
			m.acked = make(reconcile.Tombstones)
		}
		m.acked[d.InstanceID] = max(m.acked[d.InstanceID], d.Timestamp)
	}
	m.mu.Unlock()

	for _, r := range batch.Rejected() {
		log.Debug("remote rejected write", "instance", r.Delta.InstanceID, "seq", r.Delta.Seq, "error", r.Err)
	}
	log.Debug("settled batch", "size", batch.Len(), "requeued", requeued, "rejected", len(batch.Rejected()))

	if err := m.repo.PutPendingWrites(ctx, m.queue.Pending()); err != nil {
		return &StoreError{Op: "settle", Err: fmt.Errorf("save pending writes: %w", err)}
	}
	return nil
}

func (m *Manager) options() instance.Options {
	return instance.Options{
		Now:   m.cfg.Now,
		NewID: m.cfg.NewID,
		Owner: m.cfg.Owner,
	}
}
