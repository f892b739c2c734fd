package variant

import (
	"fmt"
	"sort"

	"github.com/jmgilman/dexkeep/internal/identity"
)

// Catalog is an immutable index over a set of variants.
type Catalog struct {
	byKey  map[string]Variant
	keys   []string
	shared map[string][]string
}

// NewCatalog validates variants and indexes them by key. Keys that would be
// read back as instance identifiers are rejected.
func NewCatalog(variants []Variant) (*Catalog, error) {
	c := &Catalog{
		byKey:  make(map[string]Variant, len(variants)),
		keys:   make([]string, 0, len(variants)),
		shared: make(map[string][]string),
	}

	for i := range variants {
		v := variants[i]
		if err := v.normalize(); err != nil {
			return nil, err
		}

		key, err := identity.Parse(v.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidVariant, err)
		}
		if key.InstanceLevel {
			return nil, fmt.Errorf("%w: %s looks like an instance key", ErrInvalidVariant, v.Key)
		}

		if _, exists := c.byKey[v.Key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, v.Key)
		}

		c.byKey[v.Key] = v
		c.keys = append(c.keys, v.Key)
		if v.SharedRegistration != "" {
			c.shared[v.SharedRegistration] = append(c.shared[v.SharedRegistration], v.Key)
		}
	}

	sort.Strings(c.keys)
	for name := range c.shared {
		sort.Strings(c.shared[name])
	}

	return c, nil
}

// Lookup returns the variant for key.
func (c *Catalog) Lookup(key string) (Variant, bool) {
	if c == nil {
		return Variant{}, false
	}
	v, ok := c.byKey[key]
	return v, ok
}

// Len returns the number of variants.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Keys returns all variant keys in sorted order.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

// Variants returns all variants ordered by key.
func (c *Catalog) Variants() []Variant {
	if c == nil {
		return nil
	}
	out := make([]Variant, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.byKey[k])
	}
	return out
}

// SharedGroup returns the keys registered together with key, including key
// itself. It returns nil when key has no shared registration group.
func (c *Catalog) SharedGroup(key string) []string {
	v, ok := c.Lookup(key)
	if !ok || v.SharedRegistration == "" {
		return nil
	}
	return append([]string(nil), c.shared[v.SharedRegistration]...)
}
