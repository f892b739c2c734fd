// Package instance models the physical copies a collector holds or wants and
// the state machine that moves them between ownership states.
package instance

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// Sentinel errors for instance operations.
var (
	ErrVariantNotFound  = errors.New("variant not found")
	ErrInstanceNotFound = errors.New("instance not found")
	ErrInstanceDisabled = errors.New("instance is disabled")
	ErrNotTradeable     = errors.New("instance cannot be traded or wanted")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrNotOwned         = errors.New("instance is not owned")
	ErrAlreadyFused     = errors.New("instance is already fused")
	ErrNotFused         = errors.New("instance is not fused")
	ErrFusedRelease     = errors.New("fused instance must be unfused before release")
	ErrInvalidDetails   = errors.New("invalid instance details")
)

// VariantError describes a key whose variant is absent from the catalog.
type VariantError struct {
	VariantKey string
}

func (e *VariantError) Error() string {
	return fmt.Sprintf("variant %s not found in catalog", e.VariantKey)
}

func (e *VariantError) Unwrap() error {
	return ErrVariantNotFound
}

// Status is a user-requested ownership state.
type Status string

// Ownership statuses.
const (
	StatusOwned   Status = "owned"
	StatusTrade   Status = "trade"
	StatusWanted  Status = "wanted"
	StatusUnowned Status = "unowned"
)

var statusAliases = map[string]Status{
	"owned":     StatusOwned,
	"caught":    StatusOwned,
	"trade":     StatusTrade,
	"for-trade": StatusTrade,
	"for_trade": StatusTrade,
	"wanted":    StatusWanted,
	"unowned":   StatusUnowned,
	"missing":   StatusUnowned,
}

// ParseStatus parses a status name, accepting the display aliases.
func ParseStatus(s string) (Status, error) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q (valid: owned, trade, wanted, unowned)", ErrInvalidStatus, s)
	}
	return status, nil
}

// IsValid reports whether s is one of the four statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusOwned, StatusTrade, StatusWanted, StatusUnowned:
		return true
	}
	return false
}

// Details holds per-copy attributes the engine never interprets.
type Details struct {
	Nickname   string  `json:"nickname,omitempty" validate:"omitempty,max=12"`
	CP         int     `json:"cp,omitempty" validate:"omitempty,min=10"`
	AttackIV   *int    `json:"attack_iv,omitempty" validate:"omitempty,min=0,max=15"`
	DefenseIV  *int    `json:"defense_iv,omitempty" validate:"omitempty,min=0,max=15"`
	StaminaIV  *int    `json:"stamina_iv,omitempty" validate:"omitempty,min=0,max=15"`
	Gender     string  `json:"gender,omitempty" validate:"omitempty,oneof=male female genderless"`
	Weight     float64 `json:"weight,omitempty" validate:"omitempty,gt=0"`
	Height     float64 `json:"height,omitempty" validate:"omitempty,gt=0"`
	Location   string  `json:"location_caught,omitempty" validate:"omitempty,max=100"`
	DateCaught string  `json:"date_caught,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Favorite   bool    `json:"favorite,omitempty"`
}

func (d Details) clone() Details {
	out := d
	out.AttackIV = cloneInt(d.AttackIV)
	out.DefenseIV = cloneInt(d.DefenseIV)
	out.StaminaIV = cloneInt(d.StaminaIV)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Instance is one physical copy of a variant, or a placeholder for one.
type Instance struct {
	ID         identity.InstanceID `json:"instance_id"`
	VariantKey string              `json:"variant_key"`
	SpeciesID  int                 `json:"species_id"`
	Owner      string              `json:"username,omitempty"`

	IsUnowned  bool `json:"is_unowned"`
	IsOwned    bool `json:"is_owned"`
	IsForTrade bool `json:"is_for_trade"`
	IsWanted   bool `json:"is_wanted"`
	Registered bool `json:"registered"`
	Mirror     bool `json:"mirror,omitempty"`
	Disabled   bool `json:"disabled,omitempty"`

	// Creation-time form fields copied from the variant.
	Kind       variant.Kind `json:"kind"`
	Shiny      bool         `json:"shiny,omitempty"`
	Shadow     bool         `json:"shadow,omitempty"`
	Lucky      bool         `json:"lucky,omitempty"`
	Purified   bool         `json:"purified,omitempty"`
	CostumeID  int          `json:"costume_id,omitempty"`
	FusionID   int          `json:"fusion_id,omitempty"`
	Dynamax    bool         `json:"dynamax,omitempty"`
	Gigantamax bool         `json:"gigantamax,omitempty"`

	// Mega is set once the copy has mega evolved; IsMega while it is evolved.
	Mega     bool   `json:"mega,omitempty"`
	IsMega   bool   `json:"is_mega,omitempty"`
	MegaForm string `json:"mega_form,omitempty"`

	IsFused    bool                `json:"is_fused,omitempty"`
	FusedWith  identity.InstanceID `json:"fused_with"`
	FusionForm string              `json:"fusion_form,omitempty"`
	Fusions    []int               `json:"fusion,omitempty"`

	Details    Details `json:"details"`
	DateAdded  int64   `json:"date_added,omitempty"`
	LastUpdate int64   `json:"last_update"`
}

// Clone returns a deep copy.
func (i Instance) Clone() Instance {
	out := i
	out.Fusions = slices.Clone(i.Fusions)
	out.Details = i.Details.clone()
	return out
}

// IsPlaceholder reports whether the instance only marks its group as not
// yet obtained.
func (i Instance) IsPlaceholder() bool {
	return i.IsUnowned && !i.IsOwned && !i.IsForTrade && !i.IsWanted
}

// HasFused reports whether the copy has ever been fused into fusionID.
func (i Instance) HasFused(fusionID int) bool {
	return slices.Contains(i.Fusions, fusionID)
}

// Status returns the dominant status of the instance.
func (i Instance) Status() Status {
	switch {
	case i.IsForTrade:
		return StatusTrade
	case i.IsOwned:
		return StatusOwned
	case i.IsWanted:
		return StatusWanted
	default:
		return StatusUnowned
	}
}

// derivedRegistration is the registration implied by the status flags.
func (i Instance) derivedRegistration() bool {
	return i.IsOwned || i.IsForTrade || (i.IsWanted && !i.IsUnowned)
}

// Snapshot is the complete set of instances plus a comparison timestamp.
type Snapshot struct {
	Instances map[identity.InstanceID]Instance `json:"instances"`
	Timestamp int64                            `json:"timestamp"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{Instances: make(map[identity.InstanceID]Instance)}
}

// Len returns the number of instances.
func (s Snapshot) Len() int {
	return len(s.Instances)
}

// Get returns the instance with the given id.
func (s Snapshot) Get(id identity.InstanceID) (Instance, bool) {
	inst, ok := s.Instances[id]
	return inst, ok
}

// IDs returns all instance ids in composed-key order.
func (s Snapshot) IDs() []identity.InstanceID {
	ids := make([]identity.InstanceID, 0, len(s.Instances))
	for id := range s.Instances {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Group returns the instances of a variant ordered by id.
func (s Snapshot) Group(variantKey string) []Instance {
	var group []Instance
	for id, inst := range s.Instances {
		if id.VariantKey() == variantKey {
			group = append(group, inst)
		}
	}
	sortInstances(group)
	return group
}

// Comparable reports whether every instance carries a last-update stamp.
func (s Snapshot) Comparable() bool {
	for _, inst := range s.Instances {
		if inst.LastUpdate <= 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Instances: make(map[identity.InstanceID]Instance, len(s.Instances)),
		Timestamp: s.Timestamp,
	}
	for id, inst := range s.Instances {
		out.Instances[id] = inst.Clone()
	}
	return out
}

// Apply applies a mutation in place: deletes first, then upserts.
func (s *Snapshot) Apply(m Mutation) {
	if s.Instances == nil {
		s.Instances = make(map[identity.InstanceID]Instance)
	}
	for _, id := range m.Deletes {
		delete(s.Instances, id)
	}
	for _, inst := range m.Upserts {
		s.Instances[inst.ID] = inst.Clone()
	}
	if m.Timestamp > s.Timestamp {
		s.Timestamp = m.Timestamp
	}
}

// Mutation is the set of changes produced by one operation. It is applied
// atomically with Snapshot.Apply.
type Mutation struct {
	// Target is the instance the operation resolved to. It is zero when the
	// operation deleted its operand or was a no-op on a variant-level key.
	Target    identity.InstanceID
	Upserts   []Instance
	Deletes   []identity.InstanceID
	Timestamp int64
}

// IsEmpty reports whether the mutation changes nothing.
func (m Mutation) IsEmpty() bool {
	return len(m.Upserts) == 0 && len(m.Deletes) == 0
}

func sortIDs(ids []identity.InstanceID) {
	sort.Slice(ids, func(a, b int) bool { return ids[a].Less(ids[b]) })
}

func sortInstances(insts []Instance) {
	sort.Slice(insts, func(a, b int) bool { return insts[a].ID.Less(insts[b].ID) })
}
