// Package reconcile merges two independently evolved ownership snapshots.
package reconcile

import (
	"sort"

	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// Report describes what a merge changed beyond plain last-writer-wins.
type Report struct {
	// Filtered lists records dropped because they belong to another actor.
	Filtered []identity.InstanceID
	// Superseded lists local records replaced by a newer remote copy.
	Superseded []identity.InstanceID
	// Dropped lists stale local placeholders removed because the remote side
	// already shows the form as obtained.
	Dropped []identity.InstanceID
	// Cleared lists records whose placeholder flag was removed to keep one
	// placeholder per variant group.
	Cleared []identity.InstanceID
	// Tombstoned lists remote-only records ignored because a local delete
	// for them has not reached the remote yet.
	Tombstoned []identity.InstanceID
}

// Tombstones maps deleted instances to the time of their delete.
type Tombstones map[identity.InstanceID]int64

// Changed reports whether the merge had to repair or filter anything.
func (r Report) Changed() bool {
	return len(r.Filtered)+len(r.Dropped)+len(r.Cleared)+len(r.Tombstoned) > 0
}

// Merge combines local and remote into one snapshot. When scope is
// non-empty, records attributed to a different owner are ignored on both
// sides. Neither input is modified.
func Merge(local, remote instance.Snapshot, scope string) instance.Snapshot {
	merged, _ := MergeWithReport(local, remote, scope)
	return merged
}

// MergeWithReport is Merge that also reports repairs.
//
// The result is deterministic for identical inputs. For inputs that already
// hold at most one placeholder per group, Merge(S, S) == S and
// Merge(Merge(A, B), B) == Merge(A, B).
func MergeWithReport(local, remote instance.Snapshot, scope string) (instance.Snapshot, Report) {
	return MergeTombstoned(local, remote, scope, nil)
}

// MergeTombstoned is MergeWithReport for a local side with deletes still in
// flight. A remote-only record named in tombs is left out unless the remote
// copy was updated after the delete.
func MergeTombstoned(local, remote instance.Snapshot, scope string, tombs Tombstones) (instance.Snapshot, Report) {
	var report Report

	localRecs := filterScope(local, scope, &report)
	remoteRecs := filterScope(remote, scope, &report)
	remoteRecs = dropTombstoned(remoteRecs, localRecs, tombs, &report)

	merged := instance.Snapshot{
		Instances: make(map[identity.InstanceID]instance.Instance, max(len(localRecs), len(remoteRecs))),
		Timestamp: max(local.Timestamp, remote.Timestamp),
	}

	for id, l := range localRecs {
		r, ok := remoteRecs[id]
		switch {
		case !ok:
			merged.Instances[id] = l.Clone()
		case r.LastUpdate > l.LastUpdate:
			merged.Instances[id] = r.Clone()
			report.Superseded = append(report.Superseded, id)
		default:
			merged.Instances[id] = l.Clone()
		}
	}
	for id, r := range remoteRecs {
		if _, ok := localRecs[id]; !ok {
			merged.Instances[id] = r.Clone()
		}
	}

	dropStalePlaceholders(merged, localRecs, remoteRecs, &report)
	enforceSinglePlaceholder(merged, &report)

	sortIDs(report.Filtered)
	sortIDs(report.Superseded)
	sortIDs(report.Dropped)
	sortIDs(report.Tombstoned)
	return merged, report
}

// dropTombstoned returns remote without the records deleted locally after
// their last remote update. remote is not modified.
func dropTombstoned(remote, local map[identity.InstanceID]instance.Instance, tombs Tombstones, report *Report) map[identity.InstanceID]instance.Instance {
	if len(tombs) == 0 {
		return remote
	}
	out := make(map[identity.InstanceID]instance.Instance, len(remote))
	for id, r := range remote {
		deletedAt, ok := tombs[id]
		if _, inLocal := local[id]; ok && !inLocal && r.LastUpdate <= deletedAt {
			report.Tombstoned = append(report.Tombstoned, id)
			continue
		}
		out[id] = r
	}
	return out
}

// filterScope returns the records visible to scope.
func filterScope(s instance.Snapshot, scope string, report *Report) map[identity.InstanceID]instance.Instance {
	if scope == "" {
		return s.Instances
	}
	out := make(map[identity.InstanceID]instance.Instance, len(s.Instances))
	for id, inst := range s.Instances {
		if inst.Owner != "" && inst.Owner != scope {
			report.Filtered = append(report.Filtered, id)
			continue
		}
		out[id] = inst
	}
	return out
}

// dropStalePlaceholders removes local-only mega and fusion placeholders whose
// form the remote side already shows as obtained on a sibling of the same
// species.
func dropStalePlaceholders(merged instance.Snapshot, local, remote map[identity.InstanceID]instance.Instance, report *Report) {
	if len(remote) == 0 {
		return
	}

	bySpecies := make(map[int][]instance.Instance)
	for _, r := range remote {
		if r.Mega || r.IsMega || len(r.Fusions) > 0 {
			bySpecies[r.SpeciesID] = append(bySpecies[r.SpeciesID], r)
		}
	}
	if len(bySpecies) == 0 {
		return
	}

	for id := range local {
		if _, inRemote := remote[id]; inRemote {
			continue
		}
		inst := merged.Instances[id]
		if !inst.IsPlaceholder() {
			continue
		}
		if supersededByRemote(inst, bySpecies[inst.SpeciesID]) {
			delete(merged.Instances, id)
			report.Dropped = append(report.Dropped, id)
		}
	}
}

func supersededByRemote(placeholder instance.Instance, siblings []instance.Instance) bool {
	for _, s := range siblings {
		if s.Shiny != placeholder.Shiny {
			continue
		}
		switch {
		case placeholder.Kind.IsMega():
			if (s.Mega || s.IsMega) && megaFormMatches(placeholder, s) {
				return true
			}
		case placeholder.Kind == variant.KindFusion:
			if placeholder.FusionID != 0 && s.HasFused(placeholder.FusionID) {
				return true
			}
		}
	}
	return false
}

func megaFormMatches(placeholder, sibling instance.Instance) bool {
	if placeholder.Kind == variant.KindPrimal {
		return sibling.MegaForm == "primal" || sibling.MegaForm == placeholder.MegaForm
	}
	return placeholder.MegaForm == "" || sibling.MegaForm == placeholder.MegaForm
}

// enforceSinglePlaceholder walks records in id order and clears the
// placeholder flag on every flagged record after the first in its group.
func enforceSinglePlaceholder(merged instance.Snapshot, report *Report) {
	seen := make(map[string]bool)
	for _, id := range merged.IDs() {
		inst := merged.Instances[id]
		if !inst.IsUnowned {
			continue
		}
		group := id.VariantKey()
		if !seen[group] {
			seen[group] = true
			continue
		}
		inst.IsUnowned = false
		merged.Instances[id] = inst
		report.Cleared = append(report.Cleared, id)
	}
}

func sortIDs(ids []identity.InstanceID) {
	sort.Slice(ids, func(a, b int) bool { return ids[a].Less(ids[b]) })
}
