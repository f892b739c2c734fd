package reconcile

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/variant"
)

var compareIDs = cmp.Comparer(func(a, b identity.InstanceID) bool { return a == b })

func testID(variantKey string, n int) identity.InstanceID {
	return identity.MustParseID(fmt.Sprintf("%s_00000000-0000-4000-9000-%012d", variantKey, n))
}

func snapshotOf(ts int64, insts ...instance.Instance) instance.Snapshot {
	s := instance.NewSnapshot()
	s.Timestamp = ts
	for _, inst := range insts {
		s.Instances[inst.ID] = inst
	}
	return s
}

func TestMerge_LastWriterWins(t *testing.T) {
	k1 := testID("0025-default", 1)

	t.Run("newer remote replaces local", func(t *testing.T) {
		local := snapshotOf(100, instance.Instance{ID: k1, VariantKey: "0025-default", IsUnowned: true, LastUpdate: 100})
		remote := snapshotOf(200, instance.Instance{ID: k1, VariantKey: "0025-default", IsOwned: true, LastUpdate: 200})

		merged, report := MergeWithReport(local, remote, "")

		got := merged.Instances[k1]
		assert.True(t, got.IsOwned)
		assert.False(t, got.IsUnowned)
		assert.Equal(t, int64(200), merged.Timestamp)
		assert.Equal(t, []identity.InstanceID{k1}, report.Superseded)
	})

	t.Run("newer local is kept", func(t *testing.T) {
		local := snapshotOf(300, instance.Instance{ID: k1, IsOwned: true, IsForTrade: true, LastUpdate: 300})
		remote := snapshotOf(200, instance.Instance{ID: k1, IsOwned: true, LastUpdate: 200})

		merged := Merge(local, remote, "")

		assert.True(t, merged.Instances[k1].IsForTrade)
		assert.Equal(t, int64(300), merged.Timestamp)
	})

	t.Run("ties keep local", func(t *testing.T) {
		local := snapshotOf(5, instance.Instance{ID: k1, IsOwned: true, Details: instance.Details{Nickname: "local"}, LastUpdate: 5})
		remote := snapshotOf(5, instance.Instance{ID: k1, IsOwned: true, Details: instance.Details{Nickname: "remote"}, LastUpdate: 5})

		merged := Merge(local, remote, "")

		assert.Equal(t, "local", merged.Instances[k1].Details.Nickname)
	})

	t.Run("union of disjoint keys", func(t *testing.T) {
		k2 := testID("0025-shiny", 2)
		local := snapshotOf(1, instance.Instance{ID: k1, IsOwned: true, LastUpdate: 1})
		remote := snapshotOf(2, instance.Instance{ID: k2, IsWanted: true, LastUpdate: 2})

		merged := Merge(local, remote, "")

		assert.Equal(t, []identity.InstanceID{k1, k2}, merged.IDs())
	})

	t.Run("inputs are not modified", func(t *testing.T) {
		local := snapshotOf(1, instance.Instance{ID: k1, Fusions: []int{1}, LastUpdate: 1})
		remote := instance.NewSnapshot()

		merged := Merge(local, remote, "")
		inst := merged.Instances[k1]
		inst.Fusions[0] = 9

		assert.Equal(t, []int{1}, local.Instances[k1].Fusions)
	})
}

func TestMerge_SinglePlaceholder(t *testing.T) {
	low := testID("0025-default", 1)
	high := testID("0025-default", 2)
	local := snapshotOf(10, instance.Instance{ID: high, VariantKey: "0025-default", IsUnowned: true, LastUpdate: 10})
	remote := snapshotOf(20, instance.Instance{ID: low, VariantKey: "0025-default", IsUnowned: true, LastUpdate: 20})

	merged, report := MergeWithReport(local, remote, "")

	require.Equal(t, 2, merged.Len())
	assert.True(t, merged.Instances[low].IsUnowned)
	assert.False(t, merged.Instances[high].IsUnowned)
	assert.Equal(t, []identity.InstanceID{high}, report.Cleared)
	assert.True(t, report.Changed())
	assert.Empty(t, instance.Verify(merged))

	// the other direction picks the same survivor
	swapped := Merge(remote, local, "")
	assert.True(t, swapped.Instances[low].IsUnowned)
	assert.False(t, swapped.Instances[high].IsUnowned)
}

func TestMerge_Scope(t *testing.T) {
	mine := testID("0025-default", 1)
	theirs := testID("0025-default", 2)
	legacy := testID("0025-shiny", 3)

	local := snapshotOf(1, instance.Instance{ID: mine, Owner: "ash", IsOwned: true, LastUpdate: 1})
	remote := snapshotOf(2,
		instance.Instance{ID: theirs, Owner: "gary", IsOwned: true, LastUpdate: 2},
		instance.Instance{ID: legacy, IsWanted: true, LastUpdate: 2},
	)

	merged, report := MergeWithReport(local, remote, "ash")

	assert.Equal(t, []identity.InstanceID{mine, legacy}, merged.IDs())
	assert.Equal(t, []identity.InstanceID{theirs}, report.Filtered)

	unscoped := Merge(local, remote, "")
	assert.Equal(t, 3, unscoped.Len())
}

func TestMerge_Tombstones(t *testing.T) {
	kept := testID("0025-default", 1)
	deleted := testID("0025-default", 2)

	local := snapshotOf(10, instance.Instance{ID: kept, Owner: "ash", IsOwned: true, LastUpdate: 5})

	t.Run("pending delete hides the remote copy", func(t *testing.T) {
		remote := snapshotOf(8,
			instance.Instance{ID: kept, Owner: "ash", IsOwned: true, LastUpdate: 5},
			instance.Instance{ID: deleted, Owner: "ash", IsOwned: true, LastUpdate: 5},
		)

		merged, report := MergeTombstoned(local, remote, "ash", Tombstones{deleted: 10})

		assert.Equal(t, []identity.InstanceID{kept}, merged.IDs())
		assert.Equal(t, []identity.InstanceID{deleted}, report.Tombstoned)
		assert.True(t, report.Changed())
		assert.Equal(t, 2, remote.Len())
	})

	t.Run("remote update after the delete wins", func(t *testing.T) {
		remote := snapshotOf(20, instance.Instance{ID: deleted, Owner: "ash", IsOwned: true, LastUpdate: 20})

		merged, report := MergeTombstoned(local, remote, "ash", Tombstones{deleted: 10})

		assert.Equal(t, []identity.InstanceID{kept, deleted}, merged.IDs())
		assert.Empty(t, report.Tombstoned)
	})

	t.Run("no tombstones is a plain merge", func(t *testing.T) {
		remote := snapshotOf(8, instance.Instance{ID: deleted, Owner: "ash", IsOwned: true, LastUpdate: 5})

		got, _ := MergeTombstoned(local, remote, "ash", nil)

		assert.Empty(t, cmp.Diff(Merge(local, remote, "ash"), got, compareIDs))
	})
}

func TestMerge_StalePlaceholders(t *testing.T) {
	megaPlaceholder := instance.Instance{
		ID:         testID("0006-mega_x", 1),
		VariantKey: "0006-mega_x",
		SpeciesID:  6,
		Kind:       variant.KindMega,
		MegaForm:   "x",
		IsUnowned:  true,
		LastUpdate: 10,
	}
	fusionPlaceholder := instance.Instance{
		ID:         testID("0800-fusion_dusk_mane", 2),
		VariantKey: "0800-fusion_dusk_mane",
		SpeciesID:  800,
		Kind:       variant.KindFusion,
		FusionID:   1,
		IsUnowned:  true,
		LastUpdate: 10,
	}

	t.Run("drops mega placeholder when remote has evolved", func(t *testing.T) {
		evolved := instance.Instance{ID: testID("0006-default", 3), VariantKey: "0006-default", SpeciesID: 6, IsOwned: true, Mega: true, MegaForm: "x", LastUpdate: 20}

		merged, report := MergeWithReport(snapshotOf(10, megaPlaceholder), snapshotOf(20, evolved), "")

		assert.NotContains(t, merged.Instances, megaPlaceholder.ID)
		assert.Equal(t, []identity.InstanceID{megaPlaceholder.ID}, report.Dropped)
	})

	t.Run("keeps mega placeholder for a different form", func(t *testing.T) {
		evolved := instance.Instance{ID: testID("0006-default", 3), SpeciesID: 6, IsOwned: true, Mega: true, MegaForm: "y", LastUpdate: 20}

		merged := Merge(snapshotOf(10, megaPlaceholder), snapshotOf(20, evolved), "")

		assert.Contains(t, merged.Instances, megaPlaceholder.ID)
	})

	t.Run("keeps mega placeholder when shininess differs", func(t *testing.T) {
		evolved := instance.Instance{ID: testID("0006-shiny", 3), SpeciesID: 6, Shiny: true, IsOwned: true, Mega: true, MegaForm: "x", LastUpdate: 20}

		merged := Merge(snapshotOf(10, megaPlaceholder), snapshotOf(20, evolved), "")

		assert.Contains(t, merged.Instances, megaPlaceholder.ID)
	})

	t.Run("drops fusion placeholder when remote has fused", func(t *testing.T) {
		fused := instance.Instance{ID: testID("0800-default", 4), SpeciesID: 800, IsOwned: true, Fusions: []int{1}, LastUpdate: 20}

		merged, report := MergeWithReport(snapshotOf(10, fusionPlaceholder), snapshotOf(20, fused), "")

		assert.NotContains(t, merged.Instances, fusionPlaceholder.ID)
		assert.Equal(t, []identity.InstanceID{fusionPlaceholder.ID}, report.Dropped)
	})

	t.Run("keeps placeholders known to remote", func(t *testing.T) {
		fused := instance.Instance{ID: testID("0800-default", 4), SpeciesID: 800, IsOwned: true, Fusions: []int{1}, LastUpdate: 20}

		merged := Merge(snapshotOf(10, fusionPlaceholder), snapshotOf(20, fused, fusionPlaceholder), "")

		assert.Contains(t, merged.Instances, fusionPlaceholder.ID)
	})
}

var variantKeys = []string{"0025-default", "0025-shiny", "0006-mega_x", "0006-default"}

// snapshotGen draws snapshots holding at most one placeholder per group. The
// small id space makes local and remote overlap often.
func snapshotGen() *rapid.Generator[instance.Snapshot] {
	return rapid.Custom(func(t *rapid.T) instance.Snapshot {
		n := rapid.IntRange(0, 8).Draw(t, "n")
		s := instance.NewSnapshot()
		for i := 0; i < n; i++ {
			vk := rapid.SampledFrom(variantKeys).Draw(t, "variant")
			id := testID(vk, rapid.IntRange(1, 6).Draw(t, "disc"))
			inst := instance.Instance{
				ID:         id,
				VariantKey: vk,
				SpeciesID:  map[string]int{"0025": 25, "0006": 6}[vk[:4]],
				LastUpdate: rapid.Int64Range(1, 4).Draw(t, "lastUpdate"),
			}
			switch rapid.IntRange(0, 3).Draw(t, "status") {
			case 0:
				inst.IsUnowned = true
			case 1:
				inst.IsOwned = true
			case 2:
				inst.IsOwned, inst.IsForTrade = true, true
			case 3:
				inst.IsWanted = true
			}
			s.Instances[id] = inst
			s.Timestamp = max(s.Timestamp, inst.LastUpdate)
		}
		enforceSinglePlaceholder(s, &Report{})
		return s
	})
}

func marshal(t *rapid.T, s instance.Snapshot) string {
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestMerge_Properties(t *testing.T) {
	t.Run("merging with itself is identity", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			s := snapshotGen().Draw(t, "s")

			got := Merge(s, s, "")

			if diff := cmp.Diff(s, got, compareIDs); diff != "" {
				t.Fatalf("Merge(s, s) mismatch (-want +got):\n%s", diff)
			}
		})
	})

	t.Run("is deterministic", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			a := snapshotGen().Draw(t, "a")
			b := snapshotGen().Draw(t, "b")

			first := marshal(t, Merge(a, b, ""))
			second := marshal(t, Merge(a.Clone(), b.Clone(), ""))

			if first != second {
				t.Fatalf("merge output differs:\n%s\n%s", first, second)
			}
		})
	})

	t.Run("re-merging the same remote is stable", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			a := snapshotGen().Draw(t, "a")
			b := snapshotGen().Draw(t, "b")

			once := Merge(a, b, "")
			twice := Merge(once, b, "")

			if diff := cmp.Diff(once, twice, compareIDs); diff != "" {
				t.Fatalf("Merge(Merge(a, b), b) mismatch (-want +got):\n%s", diff)
			}
		})
	})

	t.Run("keeps one placeholder per group", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			a := snapshotGen().Draw(t, "a")
			b := snapshotGen().Draw(t, "b")

			for _, v := range instance.Verify(Merge(a, b, "")) {
				if v.Rule == instance.RuleSinglePlaceholder {
					t.Fatalf("unexpected violation: %s", v)
				}
			}
		})
	})
}
