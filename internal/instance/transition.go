package instance

import (
	"fmt"

	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// Catalog is the read-only view of the variant catalog the state machine
// needs.
type Catalog interface {
	Lookup(key string) (variant.Variant, bool)
	SharedGroup(key string) []string
}

// State is the current state of a transition operand.
type State int

// Operand states.
const (
	StateAbsent State = iota
	StateUnowned
	StateOwned
	StateTrade
	StateWanted
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateUnowned:
		return "unowned"
	case StateOwned:
		return "owned"
	case StateTrade:
		return "trade"
	case StateWanted:
		return "wanted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func stateOf(inst Instance) State {
	switch inst.Status() {
	case StatusTrade:
		return StateTrade
	case StatusOwned:
		return StateOwned
	case StatusWanted:
		return StateWanted
	default:
		return StateUnowned
	}
}

// Effect is what a transition does to its operand.
type Effect int

// Transition effects.
const (
	// EffectNoop changes nothing.
	EffectNoop Effect = iota
	// EffectCreate creates a new instance carrying the target status.
	EffectCreate
	// EffectCreatePlaceholder creates the group's placeholder when the group
	// has no instance at all.
	EffectCreatePlaceholder
	// EffectFlip rewrites the operand's status flags in place.
	EffectFlip
	// EffectCloneWanted leaves the operand untouched and creates a wanted
	// sibling.
	EffectCloneWanted
	// EffectRelease deletes the operand when siblings exist, otherwise
	// demotes it to the group placeholder.
	EffectRelease
)

func (e Effect) String() string {
	switch e {
	case EffectNoop:
		return "noop"
	case EffectCreate:
		return "create"
	case EffectCreatePlaceholder:
		return "create-placeholder"
	case EffectFlip:
		return "flip"
	case EffectCloneWanted:
		return "clone-wanted"
	case EffectRelease:
		return "release"
	default:
		return fmt.Sprintf("Effect(%d)", int(e))
	}
}

// transitions is the complete (state, target) table.
var transitions = map[State]map[Status]Effect{
	StateAbsent: {
		StatusOwned:   EffectCreate,
		StatusTrade:   EffectCreate,
		StatusWanted:  EffectCreate,
		StatusUnowned: EffectCreatePlaceholder,
	},
	StateUnowned: {
		StatusOwned:   EffectFlip,
		StatusTrade:   EffectFlip,
		StatusWanted:  EffectFlip,
		StatusUnowned: EffectRelease,
	},
	StateOwned: {
		StatusOwned:   EffectNoop,
		StatusTrade:   EffectFlip,
		StatusWanted:  EffectCloneWanted,
		StatusUnowned: EffectRelease,
	},
	StateTrade: {
		StatusOwned:   EffectFlip,
		StatusTrade:   EffectNoop,
		StatusWanted:  EffectCloneWanted,
		StatusUnowned: EffectRelease,
	},
	StateWanted: {
		StatusOwned:   EffectFlip,
		StatusTrade:   EffectFlip,
		StatusWanted:  EffectNoop,
		StatusUnowned: EffectRelease,
	},
}

// EffectFor returns the table entry for a state and target.
func EffectFor(from State, to Status) (Effect, bool) {
	row, ok := transitions[from]
	if !ok {
		return EffectNoop, false
	}
	effect, ok := row[to]
	return effect, ok
}

// Transition computes the mutation that moves the instance or variant named
// by key to target. The snapshot is not modified. On error no mutation is
// returned.
func Transition(snap Snapshot, cat Catalog, key string, target Status, opts Options) (Mutation, error) {
	if !target.IsValid() {
		return Mutation{}, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	parsed, err := identity.Parse(key)
	if err != nil {
		return Mutation{}, err
	}

	v, ok := cat.Lookup(parsed.VariantKey)
	if !ok {
		return Mutation{}, &VariantError{VariantKey: parsed.VariantKey}
	}

	operand, found, err := resolveOperand(snap, parsed)
	if err != nil {
		return Mutation{}, err
	}

	from := StateAbsent
	if found {
		if operand.Disabled {
			return Mutation{}, fmt.Errorf("%w: %s", ErrInstanceDisabled, operand.ID)
		}
		from = stateOf(operand)
	}

	effect, ok := EffectFor(from, target)
	if !ok {
		return Mutation{}, fmt.Errorf("%w: no transition from %s to %s", ErrInvalidStatus, from, target)
	}
	if effect == EffectRelease && operand.IsFused {
		return Mutation{}, fmt.Errorf("%w: %s", ErrFusedRelease, operand.ID)
	}

	if target == StatusTrade || target == StatusWanted {
		probe := operand
		if !found {
			probe = fromVariant(v, identity.InstanceID{}, opts.Owner, 0)
		}
		if effect != EffectNoop && !tradeable(probe) {
			return Mutation{}, fmt.Errorf("%w: %s", ErrNotTradeable, describe(probe))
		}
	}

	w := newWorkset(snap, opts.now())
	targetID, err := applyEffect(w, v, operand, effect, target, opts)
	if err != nil {
		return Mutation{}, err
	}

	enforceGroup(w, v.Key)
	propagateRegistration(w, cat, targetID)

	return w.mutation(targetID), nil
}

// resolveOperand finds the instance a key refers to. A variant-level key
// resolves to the group's reusable placeholder, if any.
func resolveOperand(snap Snapshot, key identity.Key) (Instance, bool, error) {
	if id, ok := key.ID(); ok {
		inst, found := snap.Get(id)
		if !found {
			return Instance{}, false, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
		}
		return inst, true, nil
	}

	for _, inst := range snap.Group(key.VariantKey) {
		if inst.IsPlaceholder() && !inst.Disabled {
			return inst, true, nil
		}
	}
	return Instance{}, false, nil
}

func applyEffect(w *workset, v variant.Variant, operand Instance, effect Effect, target Status, opts Options) (identity.InstanceID, error) {
	switch effect {
	case EffectNoop:
		return operand.ID, nil

	case EffectCreate:
		id, err := opts.newID(v.Key)
		if err != nil {
			return identity.InstanceID{}, fmt.Errorf("create instance: %w", err)
		}
		inst := fromVariant(v, id, opts.Owner, w.now)
		setStatus(&inst, target, ownedElsewhere(w, v.Key, id))
		w.put(inst)
		return id, nil

	case EffectCreatePlaceholder:
		if len(w.group(v.Key)) > 0 {
			return identity.InstanceID{}, nil
		}
		id, err := opts.newID(v.Key)
		if err != nil {
			return identity.InstanceID{}, fmt.Errorf("create placeholder: %w", err)
		}
		w.put(newPlaceholder(v, id, opts.Owner, w.now))
		return id, nil

	case EffectFlip:
		inst := operand.Clone()
		setStatus(&inst, target, ownedElsewhere(w, v.Key, inst.ID))
		w.put(inst)
		return inst.ID, nil

	case EffectCloneWanted:
		id, err := opts.newID(v.Key)
		if err != nil {
			return identity.InstanceID{}, fmt.Errorf("create wanted copy: %w", err)
		}
		inst := operand.Clone()
		inst.ID = id
		inst.Details = Details{}
		inst.IsFused, inst.FusedWith, inst.FusionForm, inst.Fusions = false, identity.InstanceID{}, "", nil
		inst.IsMega, inst.Mega = false, false
		inst.DateAdded = w.now
		inst.LastUpdate = 0
		if opts.Owner != "" {
			inst.Owner = opts.Owner
		}
		setStatus(&inst, StatusWanted, true)
		w.put(inst)
		return id, nil

	case EffectRelease:
		if len(w.group(v.Key)) > 1 {
			w.remove(operand.ID)
			return operand.ID, nil
		}
		if operand.IsPlaceholder() {
			return operand.ID, nil
		}
		inst := operand.Clone()
		setStatus(&inst, StatusUnowned, false)
		w.put(inst)
		return inst.ID, nil
	}

	return identity.InstanceID{}, fmt.Errorf("%w: unknown effect %s", ErrInvalidStatus, effect)
}

// setStatus rewrites the status flags for target. ownedSibling reports
// whether another instance of the group is owned, which decides whether a
// wanted copy also carries the placeholder flag.
func setStatus(inst *Instance, target Status, ownedSibling bool) {
	inst.IsOwned, inst.IsForTrade, inst.IsWanted, inst.IsUnowned = false, false, false, false
	switch target {
	case StatusOwned:
		inst.IsOwned = true
		inst.Mirror = false
	case StatusTrade:
		inst.IsOwned = true
		inst.IsForTrade = true
		inst.Mirror = false
	case StatusWanted:
		inst.IsWanted = true
		inst.IsUnowned = !ownedSibling
	case StatusUnowned:
		inst.IsUnowned = true
		inst.Mirror = false
	}
	inst.Registered = inst.derivedRegistration()
}

func ownedElsewhere(w *workset, variantKey string, self identity.InstanceID) bool {
	for _, inst := range w.group(variantKey) {
		if inst.ID != self && inst.IsOwned {
			return true
		}
	}
	return false
}

// tradeable reports whether an instance may be listed for trade or wanted.
// A copy that was ever mega evolved stays excluded after reverting.
func tradeable(inst Instance) bool {
	return !inst.Lucky && !inst.Shadow && !inst.IsMega && !inst.Mega && !inst.IsFused &&
		!inst.Kind.IsMega() && inst.Kind != variant.KindFusion
}

func describe(inst Instance) string {
	name := inst.VariantKey
	if !inst.ID.IsZero() {
		name = inst.ID.String()
	}
	switch {
	case inst.Lucky:
		return name + " is lucky"
	case inst.Shadow:
		return name + " is shadow"
	case inst.IsMega || inst.Kind.IsMega():
		return name + " is mega evolved"
	default:
		return name + " is fused"
	}
}

// fromVariant creates an instance carrying the variant's form fields and no
// status.
func fromVariant(v variant.Variant, id identity.InstanceID, owner string, now int64) Instance {
	inst := Instance{
		ID:         id,
		VariantKey: v.Key,
		SpeciesID:  v.SpeciesID,
		Owner:      owner,
		Kind:       v.Kind,
		Shiny:      v.Shiny,
		Shadow:     v.Shadow,
		CostumeID:  v.CostumeID,
		FusionID:   v.FusionID,
		Dynamax:    v.Dynamax,
		Gigantamax: v.Gigantamax,
		DateAdded:  now,
	}
	if v.Kind.IsMega() {
		inst.MegaForm = v.MegaForm
	}
	return inst
}

func newPlaceholder(v variant.Variant, id identity.InstanceID, owner string, now int64) Instance {
	inst := fromVariant(v, id, owner, now)
	inst.IsUnowned = true
	return inst
}
