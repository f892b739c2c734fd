package instance

import (
	"time"

	"github.com/jmgilman/dexkeep/internal/identity"
)

// Options supplies the clock, id source and actor for an operation.
type Options struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// NewID mints an identifier for a new instance. Defaults to identity.New.
	NewID func(variantKey string) (identity.InstanceID, error)

	// Owner is recorded on instances created by the operation.
	Owner string
}

func (o Options) now() int64 {
	if o.Now != nil {
		return o.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

func (o Options) newID(variantKey string) (identity.InstanceID, error) {
	if o.NewID != nil {
		return o.NewID(variantKey)
	}
	return identity.New(variantKey)
}

// workset overlays pending upserts and deletes on a snapshot so one
// operation can read its own writes before producing a Mutation.
type workset struct {
	base    Snapshot
	upserts map[identity.InstanceID]Instance
	deletes map[identity.InstanceID]bool
	now     int64
}

func newWorkset(base Snapshot, now int64) *workset {
	return &workset{
		base:    base,
		upserts: make(map[identity.InstanceID]Instance),
		deletes: make(map[identity.InstanceID]bool),
		now:     now,
	}
}

func (w *workset) get(id identity.InstanceID) (Instance, bool) {
	if inst, ok := w.upserts[id]; ok {
		return inst, true
	}
	if w.deletes[id] {
		return Instance{}, false
	}
	return w.base.Get(id)
}

// group returns the live instances of a variant, ordered by id.
func (w *workset) group(variantKey string) []Instance {
	seen := make(map[identity.InstanceID]bool)
	var out []Instance
	for _, inst := range w.base.Group(variantKey) {
		seen[inst.ID] = true
		if live, ok := w.get(inst.ID); ok {
			out = append(out, live)
		}
	}
	for id, inst := range w.upserts {
		if id.VariantKey() == variantKey && !seen[id] {
			out = append(out, inst)
		}
	}
	sortInstances(out)
	return out
}

func (w *workset) put(inst Instance) {
	w.upserts[inst.ID] = inst
	delete(w.deletes, inst.ID)
}

func (w *workset) remove(id identity.InstanceID) {
	delete(w.upserts, id)
	if _, ok := w.base.Get(id); ok {
		w.deletes[id] = true
	}
}

// mutation stamps every upsert with a last-update strictly newer than the
// stored record and returns the changes in id order.
func (w *workset) mutation(target identity.InstanceID) Mutation {
	m := Mutation{Target: target, Timestamp: w.now}

	for id := range w.deletes {
		m.Deletes = append(m.Deletes, id)
	}
	sortIDs(m.Deletes)

	for _, inst := range w.upserts {
		prev := inst.LastUpdate
		if stored, ok := w.base.Get(inst.ID); ok {
			prev = stored.LastUpdate
		}
		inst.LastUpdate = max(w.now, prev+1)
		if inst.LastUpdate > m.Timestamp {
			m.Timestamp = inst.LastUpdate
		}
		m.Upserts = append(m.Upserts, inst)
	}
	sortInstances(m.Upserts)

	if _, ok := w.get(target); !ok {
		m.Target = identity.InstanceID{}
	}
	return m
}
