package instance

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/variant"
)

func testCatalog(t testing.TB) *variant.Catalog {
	t.Helper()
	cat, err := variant.NewCatalog([]variant.Variant{
		{Key: "0025-default", SpeciesID: 25, Kind: variant.KindDefault},
		{Key: "0025-shiny", SpeciesID: 25, Kind: variant.KindShiny, Shiny: true},
		{Key: "0025-shadow", SpeciesID: 25, Kind: variant.KindShadow, Shadow: true},
		{Key: "0006-mega_x", SpeciesID: 6, Kind: variant.KindMega, MegaForm: "x"},
		{Key: "0006-default", SpeciesID: 6},
		{Key: "0201-default", SpeciesID: 201, SharedRegistration: "unown"},
		{Key: "0201-form_b", SpeciesID: 201, SharedRegistration: "unown"},
		{Key: "0800-default", SpeciesID: 800},
		{Key: "0791-default", SpeciesID: 791},
	})
	require.NoError(t, err)
	return cat
}

// sequentialIDs returns an id source producing predictable discriminators.
func sequentialIDs() func(string) (identity.InstanceID, error) {
	n := 0
	return func(variantKey string) (identity.InstanceID, error) {
		n++
		return identity.Compose(variantKey, fmt.Sprintf("00000000-0000-4000-8000-%012d", n))
	}
}

func testOptions() Options {
	return Options{
		Now:   func() time.Time { return time.UnixMilli(1_000) },
		NewID: sequentialIDs(),
	}
}

func testID(variantKey string, n int) identity.InstanceID {
	return identity.MustParseID(fmt.Sprintf("%s_00000000-0000-4000-9000-%012d", variantKey, n))
}

func snapshotOf(insts ...Instance) Snapshot {
	s := NewSnapshot()
	for _, inst := range insts {
		s.Instances[inst.ID] = inst
	}
	return s
}

func TestParseStatus(t *testing.T) {
	for raw, want := range map[string]Status{
		"owned":     StatusOwned,
		"Caught":    StatusOwned,
		"for-trade": StatusTrade,
		"wanted":    StatusWanted,
		" missing ": StatusUnowned,
	} {
		t.Run(raw, func(t *testing.T) {
			got, err := ParseStatus(raw)

			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := ParseStatus("lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestInstance_Status(t *testing.T) {
	assert.Equal(t, StatusTrade, Instance{IsOwned: true, IsForTrade: true}.Status())
	assert.Equal(t, StatusOwned, Instance{IsOwned: true}.Status())
	assert.Equal(t, StatusWanted, Instance{IsWanted: true, IsUnowned: true}.Status())
	assert.Equal(t, StatusUnowned, Instance{IsUnowned: true}.Status())
	assert.Equal(t, StatusUnowned, Instance{}.Status())
}

func TestSnapshot_JSON(t *testing.T) {
	id := testID("0025-default", 1)
	iv := 15
	snap := snapshotOf(Instance{
		ID:         id,
		VariantKey: "0025-default",
		SpeciesID:  25,
		IsOwned:    true,
		Kind:       variant.KindDefault,
		Details:    Details{Nickname: "Sparky", AttackIV: &iv},
		LastUpdate: 42,
	})
	snap.Timestamp = 42

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"0025-default_00000000-0000-4000-9000-000000000001":{`)
	assert.Contains(t, string(data), `"is_owned":true`)

	var out Snapshot
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, snap, out)
}

func TestSnapshot_Clone(t *testing.T) {
	id := testID("0025-default", 1)
	iv := 10
	snap := snapshotOf(Instance{ID: id, Fusions: []int{1}, Details: Details{AttackIV: &iv}})

	clone := snap.Clone()
	inst := clone.Instances[id]
	inst.Fusions[0] = 2
	*inst.Details.AttackIV = 3

	assert.Equal(t, []int{1}, snap.Instances[id].Fusions)
	assert.Equal(t, 10, *snap.Instances[id].Details.AttackIV)
}

func TestSnapshot_Apply(t *testing.T) {
	a := testID("0025-default", 1)
	b := testID("0025-default", 2)
	snap := snapshotOf(Instance{ID: a, IsUnowned: true})

	snap.Apply(Mutation{
		Upserts:   []Instance{{ID: b, IsOwned: true}},
		Deletes:   []identity.InstanceID{a},
		Timestamp: 50,
	})

	assert.Equal(t, 1, snap.Len())
	assert.True(t, snap.Instances[b].IsOwned)
	assert.Equal(t, int64(50), snap.Timestamp)

	var empty Snapshot
	empty.Apply(Mutation{Upserts: []Instance{{ID: a}}})
	assert.Equal(t, 1, empty.Len())
}

func TestSnapshot_Comparable(t *testing.T) {
	assert.True(t, snapshotOf(Instance{ID: testID("0025-default", 1), LastUpdate: 1}).Comparable())
	assert.False(t, snapshotOf(Instance{ID: testID("0025-default", 1)}).Comparable())
}

func TestSnapshot_Group(t *testing.T) {
	a := testID("0025-default", 2)
	b := testID("0025-default", 1)
	c := testID("0025-shiny", 1)
	snap := snapshotOf(Instance{ID: a}, Instance{ID: b}, Instance{ID: c})

	group := snap.Group("0025-default")

	require.Len(t, group, 2)
	assert.Equal(t, b, group[0].ID)
	assert.Equal(t, a, group[1].ID)
	assert.Equal(t, []identity.InstanceID{b, a, c}, snap.IDs())
}
