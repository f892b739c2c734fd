// Package queue holds pending writes awaiting transmission to the remote
// store.
//
// Producers enqueue from any goroutine. A consumer takes everything queued
// so far in one atomic swap, settles each delta in the resulting Batch, and
// releases the rest back to the queue. No locks are taken on either path.
package queue

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/instance"
)

// Delta is one idempotent "set these fields as of Timestamp" write.
type Delta struct {
	Seq        uint64              `json:"seq"`
	InstanceID identity.InstanceID `json:"instance_id"`
	Fields     map[string]any      `json:"fields,omitempty"`
	Timestamp  int64               `json:"timestamp"`
	Deleted    bool                `json:"deleted,omitempty"`
}

type node struct {
	delta Delta
	next  *node
}

// Queue is a lock-free multi-producer pending-write queue.
type Queue struct {
	head atomic.Pointer[node]
	seq  atomic.Uint64
}

// New returns a queue pre-filled with initial, typically deltas restored
// from persistence. Sequence numbers continue after the highest restored one.
func New(initial ...Delta) *Queue {
	q := &Queue{}
	var top uint64
	for _, d := range initial {
		top = max(top, d.Seq)
	}
	q.seq.Store(top)
	for _, d := range initial {
		q.Enqueue(d)
	}
	return q
}

// Enqueue adds d and returns it with its sequence number assigned. A delta
// that already carries a sequence number keeps it.
func (q *Queue) Enqueue(d Delta) Delta {
	if d.Seq == 0 {
		d.Seq = q.seq.Add(1)
	}
	q.push(&node{delta: d})
	return d
}

func (q *Queue) push(n *node) {
	for {
		old := q.head.Load()
		n.next = old
		if q.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// Drain atomically takes every queued delta. The caller must settle the
// batch and call Release, otherwise unsettled deltas are lost.
func (q *Queue) Drain() *Batch {
	list := q.head.Swap(nil)
	return &Batch{
		q:       q,
		deltas:  collect(list),
		settled: make(map[uint64]bool),
	}
}

// Pending returns a copy of the queued deltas ordered by sequence without
// removing them.
func (q *Queue) Pending() []Delta {
	return collect(q.head.Load())
}

// Len returns the number of queued deltas.
func (q *Queue) Len() int {
	n := 0
	for cur := q.head.Load(); cur != nil; cur = cur.next {
		n++
	}
	return n
}

// collect flattens a list of immutable nodes into Seq order.
func collect(list *node) []Delta {
	var out []Delta
	for cur := list; cur != nil; cur = cur.next {
		out = append(out, cur.delta)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out
}

// Rejection records a delta the remote refused permanently.
type Rejection struct {
	Delta Delta
	Err   error
}

// Batch is a drained set of deltas. It is owned by a single consumer and is
// not safe for concurrent use.
type Batch struct {
	q        *Queue
	deltas   []Delta
	settled  map[uint64]bool
	rejected []Rejection
	released bool
}

// Deltas returns the batch contents ordered by sequence.
func (b *Batch) Deltas() []Delta {
	return b.deltas
}

// Len returns the number of deltas in the batch.
func (b *Batch) Len() int {
	return len(b.deltas)
}

// Ack marks a delta as applied remotely.
func (b *Batch) Ack(seq uint64) {
	b.settled[seq] = true
}

// AckAll marks every delta as applied.
func (b *Batch) AckAll() {
	for _, d := range b.deltas {
		b.settled[d.Seq] = true
	}
}

// Reject drops a delta that can never succeed.
func (b *Batch) Reject(seq uint64, err error) {
	if b.settled[seq] {
		return
	}
	b.settled[seq] = true
	for _, d := range b.deltas {
		if d.Seq == seq {
			b.rejected = append(b.rejected, Rejection{Delta: d, Err: err})
			return
		}
	}
}

// Acked returns the deltas marked applied, ordered by sequence.
func (b *Batch) Acked() []Delta {
	var out []Delta
	rejected := make(map[uint64]bool, len(b.rejected))
	for _, r := range b.rejected {
		rejected[r.Delta.Seq] = true
	}
	for _, d := range b.deltas {
		if b.settled[d.Seq] && !rejected[d.Seq] {
			out = append(out, d)
		}
	}
	return out
}

// Rejected returns the deltas dropped by Reject.
func (b *Batch) Rejected() []Rejection {
	return b.rejected
}

// Release returns every unsettled delta to the queue with its original
// sequence number and reports how many were requeued. Calling it again is a
// no-op.
func (b *Batch) Release() int {
	if b.released {
		return 0
	}
	b.released = true

	n := 0
	for _, d := range b.deltas {
		if b.settled[d.Seq] {
			continue
		}
		b.q.push(&node{delta: d})
		n++
	}
	return n
}

// FromMutation converts a mutation into deltas carrying the full record of
// every upserted instance and a tombstone per delete.
func FromMutation(m instance.Mutation) ([]Delta, error) {
	out := make([]Delta, 0, len(m.Upserts)+len(m.Deletes))
	for _, inst := range m.Upserts {
		fields, err := toFields(inst)
		if err != nil {
			return nil, fmt.Errorf("encode instance %s: %w", inst.ID, err)
		}
		out = append(out, Delta{InstanceID: inst.ID, Fields: fields, Timestamp: inst.LastUpdate})
	}
	for _, id := range m.Deletes {
		out = append(out, Delta{InstanceID: id, Timestamp: m.Timestamp, Deleted: true})
	}
	return out, nil
}

func toFields(inst instance.Instance) (map[string]any, error) {
	data, err := json.Marshal(inst)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Instance decodes the delta fields back into an instance.
func (d Delta) Instance() (instance.Instance, error) {
	var inst instance.Instance
	data, err := json.Marshal(d.Fields)
	if err != nil {
		return inst, fmt.Errorf("encode fields: %w", err)
	}
	if err := json.Unmarshal(data, &inst); err != nil {
		return inst, fmt.Errorf("decode instance: %w", err)
	}
	if inst.ID.IsZero() {
		inst.ID = d.InstanceID
	}
	if inst.LastUpdate == 0 {
		inst.LastUpdate = d.Timestamp
	}
	return inst, nil
}
