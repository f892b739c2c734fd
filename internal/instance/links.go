package instance

import (
	"fmt"
	"slices"

	"github.com/jmgilman/dexkeep/internal/identity"
)

// MegaEvolve marks an owned instance as mega evolved into form. Any other
// copy of the same species that is currently evolved is reverted, since only
// one mega evolution is active at a time.
func MegaEvolve(snap Snapshot, id identity.InstanceID, form string, opts Options) (Mutation, error) {
	inst, err := owned(snap, id)
	if err != nil {
		return Mutation{}, err
	}

	w := newWorkset(snap, opts.now())
	for _, other := range snap.Instances {
		if other.ID != id && other.SpeciesID == inst.SpeciesID && other.IsMega {
			other = other.Clone()
			other.IsMega = false
			w.put(other)
		}
	}

	inst = inst.Clone()
	inst.IsMega = true
	inst.Mega = true
	inst.MegaForm = form
	w.put(inst)

	return w.mutation(id), nil
}

// MegaRevert ends an active mega evolution. The instance keeps its Mega
// history flag.
func MegaRevert(snap Snapshot, id identity.InstanceID, opts Options) (Mutation, error) {
	inst, err := owned(snap, id)
	if err != nil {
		return Mutation{}, err
	}
	if !inst.IsMega {
		return Mutation{Target: id}, nil
	}

	w := newWorkset(snap, opts.now())
	inst = inst.Clone()
	inst.IsMega = false
	w.put(inst)
	return w.mutation(id), nil
}

// Fuse fuses partner into base. The base records the fusion and links to the
// partner; the partner is disabled and links back.
func Fuse(snap Snapshot, baseID, partnerID identity.InstanceID, fusionID int, form string, opts Options) (Mutation, error) {
	if baseID == partnerID {
		return Mutation{}, fmt.Errorf("%w: cannot fuse %s with itself", ErrAlreadyFused, baseID)
	}

	base, err := owned(snap, baseID)
	if err != nil {
		return Mutation{}, err
	}
	partner, err := owned(snap, partnerID)
	if err != nil {
		return Mutation{}, err
	}
	if base.IsFused || !base.FusedWith.IsZero() {
		return Mutation{}, fmt.Errorf("%w: %s", ErrAlreadyFused, baseID)
	}
	if partner.IsFused || !partner.FusedWith.IsZero() {
		return Mutation{}, fmt.Errorf("%w: %s", ErrAlreadyFused, partnerID)
	}

	w := newWorkset(snap, opts.now())

	base = base.Clone()
	base.IsFused = true
	base.FusedWith = partnerID
	base.FusionForm = form
	if !slices.Contains(base.Fusions, fusionID) {
		base.Fusions = append(base.Fusions, fusionID)
		slices.Sort(base.Fusions)
	}
	base.IsForTrade = false
	w.put(base)

	partner = partner.Clone()
	partner.Disabled = true
	partner.FusedWith = baseID
	partner.IsForTrade = false
	w.put(partner)

	return w.mutation(baseID), nil
}

// Unfuse reverses Fuse. A missing partner is tolerated; the base link is
// cleared regardless.
func Unfuse(snap Snapshot, baseID identity.InstanceID, opts Options) (Mutation, error) {
	base, ok := snap.Get(baseID)
	if !ok {
		return Mutation{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, baseID)
	}
	if !base.IsFused {
		return Mutation{}, fmt.Errorf("%w: %s", ErrNotFused, baseID)
	}

	w := newWorkset(snap, opts.now())

	if partner, ok := snap.Get(base.FusedWith); ok && partner.FusedWith == baseID {
		partner = partner.Clone()
		partner.Disabled = false
		partner.FusedWith = identity.InstanceID{}
		w.put(partner)
	}

	base = base.Clone()
	base.IsFused = false
	base.FusedWith = identity.InstanceID{}
	base.FusionForm = ""
	w.put(base)

	return w.mutation(baseID), nil
}

func owned(snap Snapshot, id identity.InstanceID) (Instance, error) {
	inst, ok := snap.Get(id)
	if !ok {
		return Instance{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	if inst.Disabled {
		return Instance{}, fmt.Errorf("%w: %s", ErrInstanceDisabled, id)
	}
	if !inst.IsOwned {
		return Instance{}, fmt.Errorf("%w: %s", ErrNotOwned, id)
	}
	return inst, nil
}
