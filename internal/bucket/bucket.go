// Package bucket derives read-optimized status lists from a snapshot.
package bucket

import (
	"fmt"

	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// Name identifies one of the four buckets.
type Name string

// Bucket names.
const (
	Owned   Name = "owned"
	Trade   Name = "trade"
	Wanted  Name = "wanted"
	Unowned Name = "unowned"
)

// Names lists the buckets in display order.
var Names = []Name{Owned, Trade, Wanted, Unowned}

// ParseName validates a bucket name.
func ParseName(s string) (Name, error) {
	for _, n := range Names {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown bucket %q", s)
}

// Catalog is the variant lookup the builder needs.
type Catalog interface {
	Lookup(key string) (variant.Variant, bool)
}

// Item is a denormalized instance ready for display.
type Item struct {
	Instance instance.Instance
	Variant  variant.Variant
	Image    string
}

// View holds the four buckets keyed by instance id. An instance may appear
// in more than one bucket (owned and trade).
type View struct {
	Owned   map[identity.InstanceID]Item
	Trade   map[identity.InstanceID]Item
	Wanted  map[identity.InstanceID]Item
	Unowned map[identity.InstanceID]Item
}

// Bucket returns the map for name, or nil for an unknown name.
func (v View) Bucket(name Name) map[identity.InstanceID]Item {
	switch name {
	case Owned:
		return v.Owned
	case Trade:
		return v.Trade
	case Wanted:
		return v.Wanted
	case Unowned:
		return v.Unowned
	default:
		return nil
	}
}

// Diagnostic reports an instance that could not be placed cleanly.
type Diagnostic struct {
	ID      identity.InstanceID
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.ID, d.Message)
}

// Option configures Build.
type Option func(*builder)

// WithResolver overrides the image resolver.
func WithResolver(r ImageResolver) Option {
	return func(b *builder) {
		b.resolver = r
	}
}

// WithDisabled keeps disabled instances in the view.
func WithDisabled() Option {
	return func(b *builder) {
		b.includeDisabled = true
	}
}

type builder struct {
	resolver        ImageResolver
	includeDisabled bool
}

// Build derives a fresh view from snap. Instances whose variant is missing
// from the catalog are skipped and reported as diagnostics.
func Build(snap instance.Snapshot, cat Catalog, opts ...Option) (View, []Diagnostic) {
	b := builder{resolver: CatalogResolver{}}
	for _, opt := range opts {
		opt(&b)
	}

	view := View{
		Owned:   make(map[identity.InstanceID]Item),
		Trade:   make(map[identity.InstanceID]Item),
		Wanted:  make(map[identity.InstanceID]Item),
		Unowned: make(map[identity.InstanceID]Item),
	}
	var diags []Diagnostic

	for _, id := range snap.IDs() {
		inst := snap.Instances[id]
		if inst.Disabled && !b.includeDisabled {
			continue
		}

		v, ok := cat.Lookup(id.VariantKey())
		if !ok {
			diags = append(diags, Diagnostic{ID: id, Message: fmt.Sprintf("variant %s is not in the catalog", id.VariantKey())})
			continue
		}

		item := Item{Instance: inst, Variant: v, Image: b.resolver.Resolve(v, inst)}

		if inst.IsOwned {
			view.Owned[id] = item
		}
		if inst.IsForTrade {
			if inst.IsOwned {
				view.Trade[id] = item
			} else {
				diags = append(diags, Diagnostic{ID: id, Message: "marked for trade without ownership"})
			}
		}
		if inst.IsWanted {
			view.Wanted[id] = item
		}
		if inst.IsUnowned && !inst.IsOwned {
			view.Unowned[id] = item
		}
	}

	return view, diags
}
