package instance

import (
	"fmt"
	"sort"

	"github.com/jmgilman/dexkeep/internal/identity"
)

// Rule names reported by Verify.
const (
	RuleSinglePlaceholder = "single-placeholder"
	RuleTradeRequiresOwn  = "trade-requires-ownership"
	RuleUniqueIdentity    = "unique-identity"
	RuleFusionLinkage     = "fusion-linkage"
)

// Violation describes a broken snapshot invariant.
type Violation struct {
	Rule   string
	IDs    []identity.InstanceID
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
}

// Verify checks a snapshot against the collection invariants and returns
// every violation found, ordered by rule then id.
func Verify(snap Snapshot) []Violation {
	var out []Violation

	unowned := make(map[string][]identity.InstanceID)
	discriminators := make(map[string][]identity.InstanceID)

	for _, id := range snap.IDs() {
		inst := snap.Instances[id]

		if inst.ID != id {
			out = append(out, Violation{
				Rule:   RuleUniqueIdentity,
				IDs:    []identity.InstanceID{id},
				Detail: fmt.Sprintf("record stored under %s carries id %s", id, inst.ID),
			})
		}
		discriminators[id.Discriminator()] = append(discriminators[id.Discriminator()], id)

		if inst.IsUnowned {
			unowned[id.VariantKey()] = append(unowned[id.VariantKey()], id)
		}

		if inst.IsForTrade && !inst.IsOwned {
			out = append(out, Violation{
				Rule:   RuleTradeRequiresOwn,
				IDs:    []identity.InstanceID{id},
				Detail: fmt.Sprintf("%s is for trade but not owned", id),
			})
		}

		out = append(out, checkFusion(snap, inst)...)
	}

	for _, key := range sortedKeys(unowned) {
		if ids := unowned[key]; len(ids) > 1 {
			out = append(out, Violation{
				Rule:   RuleSinglePlaceholder,
				IDs:    ids,
				Detail: fmt.Sprintf("%s has %d unowned records", key, len(ids)),
			})
		}
	}

	for _, d := range sortedKeys(discriminators) {
		if ids := discriminators[d]; len(ids) > 1 {
			out = append(out, Violation{
				Rule:   RuleUniqueIdentity,
				IDs:    ids,
				Detail: fmt.Sprintf("discriminator %s is used %d times", d, len(ids)),
			})
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Rule < out[b].Rule })
	return out
}

func checkFusion(snap Snapshot, inst Instance) []Violation {
	switch {
	case inst.IsFused:
		partner, ok := snap.Get(inst.FusedWith)
		if !ok {
			return []Violation{{
				Rule:   RuleFusionLinkage,
				IDs:    []identity.InstanceID{inst.ID},
				Detail: fmt.Sprintf("%s is fused with missing instance %s", inst.ID, inst.FusedWith),
			}}
		}
		if !partner.Disabled || partner.FusedWith != inst.ID {
			return []Violation{{
				Rule:   RuleFusionLinkage,
				IDs:    []identity.InstanceID{inst.ID, partner.ID},
				Detail: fmt.Sprintf("%s is fused with %s but the partner does not link back", inst.ID, partner.ID),
			}}
		}
	case inst.Disabled && !inst.FusedWith.IsZero():
		base, ok := snap.Get(inst.FusedWith)
		if !ok || !base.IsFused || base.FusedWith != inst.ID {
			return []Violation{{
				Rule:   RuleFusionLinkage,
				IDs:    []identity.InstanceID{inst.ID},
				Detail: fmt.Sprintf("%s is disabled for a fusion with %s that does not exist", inst.ID, inst.FusedWith),
			}}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
