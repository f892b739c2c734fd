package instance

import (
	"fmt"

	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// Bootstrap creates one placeholder for every variant that has no instance in
// the snapshot. Variants already represented are left alone.
func Bootstrap(snap Snapshot, variants []variant.Variant, opts Options) (Mutation, error) {
	present := make(map[string]bool, len(snap.Instances))
	for id := range snap.Instances {
		present[id.VariantKey()] = true
	}

	w := newWorkset(snap, opts.now())
	for _, v := range variants {
		if present[v.Key] {
			continue
		}
		id, err := opts.newID(v.Key)
		if err != nil {
			return Mutation{}, fmt.Errorf("create placeholder for %s: %w", v.Key, err)
		}
		w.put(newPlaceholder(v, id, opts.Owner, w.now))
		present[v.Key] = true
	}

	return w.mutation(identity.InstanceID{}), nil
}
