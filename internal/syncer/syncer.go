// Package syncer runs the synchronization loop between the local engine
// and the remote store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/queue"
	"github.com/jmgilman/dexkeep/internal/reconcile"
	"github.com/jmgilman/dexkeep/internal/remote"
	"github.com/jmgilman/dexkeep/internal/slogger"
)

// Defaults for Config.
const (
	DefaultInterval   = 5 * time.Minute
	DefaultRetryBase  = 2 * time.Second
	DefaultMaxBackoff = 5 * time.Minute
)

// Engine is the local side of a sync. It is satisfied by *collection.Manager.
type Engine interface {
	Drain() *queue.Batch
	Settle(ctx context.Context, batch *queue.Batch) error
	Reconcile(ctx context.Context, remote instance.Snapshot, actor string) (reconcile.Report, error)
	MarkFetched(ctx context.Context) error
}

// Remote is the transport side of a sync.
type Remote interface {
	Push(ctx context.Context, deltas []queue.Delta) (remote.PushResult, error)
	FetchSnapshot(ctx context.Context) (instance.Snapshot, error)
}

// RejectedError is recorded against a write the remote refused.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "rejected by remote: " + e.Reason
}

// Config configures an Agent.
type Config struct {
	// Actor scopes merges to one user's records. Empty merges everything.
	Actor string

	// Interval is the pause between successful syncs.
	Interval time.Duration

	// RetryBase is the first delay after a transient failure. It doubles
	// with each consecutive failure up to MaxBackoff.
	RetryBase  time.Duration
	MaxBackoff time.Duration

	// OnSync is called after every attempt made by Run.
	OnSync func(Report, error)
}

// Report summarizes one sync.
type Report struct {
	TraceID  string
	Pushed   int
	Rejected int
	Requeued int
	Fetched  int
	Merge    reconcile.Report
}

// Agent synchronizes an engine with a remote.
type Agent struct {
	engine Engine
	remote Remote
	cfg    Config
}

// New creates an agent.
func New(engine Engine, rem Remote, cfg Config) *Agent {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	return &Agent{engine: engine, remote: rem, cfg: cfg}
}

// SyncOnce pushes pending writes and merges the remote snapshot. Writes
// that were not acknowledged stay queued for the next sync.
func (a *Agent) SyncOnce(ctx context.Context) (Report, error) {
	log := slogger.L(ctx)
	var report Report

	batch := a.engine.Drain()
	deltas := batch.Deltas()

	var (
		pushed  remote.PushResult
		pushErr error
		fetched instance.Snapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	if len(deltas) > 0 {
		g.Go(func() error {
			pushed, pushErr = a.remote.Push(gctx, deltas)
			return pushErr
		})
	}
	g.Go(func() error {
		snap, err := a.remote.FetchSnapshot(gctx)
		if err != nil {
			return err
		}
		fetched = snap
		return nil
	})
	syncErr := g.Wait()

	report.TraceID = pushed.TraceID
	for _, seq := range pushed.Applied {
		batch.Ack(seq)
	}
	for _, r := range pushed.Rejected {
		batch.Reject(r.Seq, &RejectedError{Reason: r.Reason})
	}
	if pushErr != nil && errors.Is(pushErr, remote.ErrPermanent) {
		for _, d := range deltas {
			batch.Reject(d.Seq, pushErr)
		}
	}

	report.Pushed = len(pushed.Applied)
	report.Rejected = len(batch.Rejected())
	report.Requeued = batch.Len() - report.Pushed - report.Rejected

	if err := a.engine.Settle(ctx, batch); err != nil {
		return report, errors.Join(syncErr, fmt.Errorf("settle batch: %w", err))
	}
	if report.Rejected > 0 {
		log.Warn("remote rejected writes", "count", report.Rejected, "trace_id", report.TraceID)
	}
	if syncErr != nil {
		return report, fmt.Errorf("sync: %w", syncErr)
	}

	merge, err := a.engine.Reconcile(ctx, fetched, a.cfg.Actor)
	report.Merge = merge
	report.Fetched = fetched.Len()
	if err != nil {
		return report, fmt.Errorf("reconcile: %w", err)
	}
	if err := a.engine.MarkFetched(ctx); err != nil {
		return report, fmt.Errorf("mark fetched: %w", err)
	}

	log.Info("sync complete",
		"pushed", report.Pushed,
		"rejected", report.Rejected,
		"fetched", report.Fetched,
		"trace_id", report.TraceID)
	return report, nil
}

// Run syncs until ctx is cancelled. Transient failures are retried with
// exponential backoff; other failures wait for the regular interval. An
// authorization failure ends the run and is returned.
func (a *Agent) Run(ctx context.Context) error {
	log := slogger.L(ctx)
	failures := 0

	for {
		report, err := a.SyncOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if a.cfg.OnSync != nil {
			a.cfg.OnSync(report, err)
		}

		wait := a.cfg.Interval
		switch {
		case err == nil:
			failures = 0
		case errors.Is(err, remote.ErrUnauthorized):
			log.Error("sync stopped: remote refused the credentials", "error", err)
			return err
		case remote.IsTransient(err):
			failures++
			wait = a.backoff(failures)
			log.Warn("sync failed, retrying", "error", err, "attempt", failures, "retry_in", wait)
		default:
			failures = 0
			log.Error("sync failed", "error", err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// backoff returns the delay after n consecutive transient failures.
func (a *Agent) backoff(n int) time.Duration {
	d := a.cfg.RetryBase
	for i := 1; i < n; i++ {
		d *= 2
		if d >= a.cfg.MaxBackoff {
			return a.cfg.MaxBackoff
		}
	}
	return min(d, a.cfg.MaxBackoff)
}
