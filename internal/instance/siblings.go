package instance

import (
	"github.com/jmgilman/dexkeep/internal/identity"
)

// enforceGroup keeps at most one placeholder flag in a variant group.
//
// When the group holds an owned copy no record needs the flag: bare
// placeholders are deleted and wanted copies lose it. Otherwise the lowest
// flagged id keeps it; later bare placeholders are deleted and other records
// have the flag cleared. A group without an owned copy whose only records are
// wanted gets its first wanted copy flagged.
func enforceGroup(w *workset, variantKey string) {
	group := w.group(variantKey)

	owned := false
	for _, inst := range group {
		if inst.IsOwned {
			owned = true
			break
		}
	}

	kept := false
	for _, inst := range group {
		if !inst.IsUnowned {
			continue
		}
		if !owned && !kept {
			kept = true
			continue
		}
		if inst.IsPlaceholder() {
			w.remove(inst.ID)
			continue
		}
		inst = inst.Clone()
		inst.IsUnowned = false
		inst.Registered = inst.Registered || inst.derivedRegistration()
		w.put(inst)
	}

	if owned || kept {
		return
	}
	for _, inst := range group {
		if inst.IsWanted && !inst.Disabled {
			inst = inst.Clone()
			inst.IsUnowned = true
			w.put(inst)
			return
		}
	}
}

// propagateRegistration marks every instance of a shared registration group
// registered once the operand is. Registration is never removed here.
func propagateRegistration(w *workset, cat Catalog, target identity.InstanceID) {
	if target.IsZero() {
		return
	}
	inst, ok := w.get(target)
	if !ok || !inst.Registered {
		return
	}

	for _, key := range cat.SharedGroup(inst.VariantKey) {
		for _, sibling := range w.group(key) {
			if sibling.Registered {
				continue
			}
			sibling = sibling.Clone()
			sibling.Registered = true
			w.put(sibling)
		}
	}
}
