// Package identity parses and composes instance identifiers.
//
// An instance identifier is a variant key followed by an underscore and a
// discriminator, e.g. "0006-mega_x_3f2b9c1e-8a4d-4c6e-9f10-2b7d5e8a1c44".
// Variant keys may themselves contain underscores, so a key is only treated
// as instance-level when its final segment has the exact discriminator shape.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrMalformed is returned when a key cannot be parsed into a variant key and
// optional discriminator.
var ErrMalformed = errors.New("malformed instance identity")

// DiscriminatorLen is the length of a canonical discriminator.
const DiscriminatorLen = 36

// separator joins a variant key and its discriminator.
const separator = "_"

// Key is the result of parsing a raw key string.
type Key struct {
	VariantKey    string
	Discriminator string
	InstanceLevel bool
}

// ID returns the instance identifier for an instance-level key.
func (k Key) ID() (InstanceID, bool) {
	if !k.InstanceLevel {
		return InstanceID{}, false
	}
	return InstanceID{variantKey: k.VariantKey, discriminator: k.Discriminator}, true
}

// InstanceID identifies one physical copy of a variant. The zero value is not
// a valid identifier; construct one with New, Compose or ParseID.
type InstanceID struct {
	variantKey    string
	discriminator string
}

// VariantKey returns the catalog variant the instance belongs to.
func (id InstanceID) VariantKey() string { return id.variantKey }

// Discriminator returns the per-copy token.
func (id InstanceID) Discriminator() string { return id.discriminator }

// IsZero reports whether id is the zero value.
func (id InstanceID) IsZero() bool { return id.variantKey == "" && id.discriminator == "" }

// String returns the composed key.
func (id InstanceID) String() string {
	if id.IsZero() {
		return ""
	}
	return id.variantKey + separator + id.discriminator
}

// Less orders identifiers by their composed key.
func (id InstanceID) Less(other InstanceID) bool {
	return id.String() < other.String()
}

// MarshalText implements encoding.TextMarshaler so identifiers can be used as
// JSON object keys.
func (id InstanceID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *InstanceID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*id = InstanceID{}
		return nil
	}
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Parse classifies raw as a variant-level or instance-level key.
func Parse(raw string) (Key, error) {
	if strings.TrimSpace(raw) == "" {
		return Key{}, fmt.Errorf("%w: empty key", ErrMalformed)
	}

	idx := strings.LastIndex(raw, separator)
	if idx >= 0 && IsDiscriminator(raw[idx+1:]) {
		variantKey := raw[:idx]
		if variantKey == "" {
			return Key{}, fmt.Errorf("%w: %q has no variant key", ErrMalformed, raw)
		}
		return Key{VariantKey: variantKey, Discriminator: raw[idx+1:], InstanceLevel: true}, nil
	}

	if IsDiscriminator(raw) {
		return Key{}, fmt.Errorf("%w: %q has no variant key", ErrMalformed, raw)
	}

	return Key{VariantKey: raw}, nil
}

// ParseID parses raw and requires it to be instance-level.
func ParseID(raw string) (InstanceID, error) {
	key, err := Parse(raw)
	if err != nil {
		return InstanceID{}, err
	}
	id, ok := key.ID()
	if !ok {
		return InstanceID{}, fmt.Errorf("%w: %q is not an instance key", ErrMalformed, raw)
	}
	return id, nil
}

// Compose builds an identifier from its parts.
func Compose(variantKey, discriminator string) (InstanceID, error) {
	if variantKey == "" {
		return InstanceID{}, fmt.Errorf("%w: empty variant key", ErrMalformed)
	}
	if !IsDiscriminator(discriminator) {
		return InstanceID{}, fmt.Errorf("%w: invalid discriminator %q", ErrMalformed, discriminator)
	}
	return InstanceID{variantKey: variantKey, discriminator: discriminator}, nil
}

// New mints an identifier with a fresh discriminator.
func New(variantKey string) (InstanceID, error) {
	if variantKey == "" {
		return InstanceID{}, fmt.Errorf("%w: empty variant key", ErrMalformed)
	}
	d, err := uuid.NewRandom()
	if err != nil {
		return InstanceID{}, fmt.Errorf("generate discriminator: %w", err)
	}
	return InstanceID{variantKey: variantKey, discriminator: d.String()}, nil
}

// MustParseID is like ParseID but panics on error. Intended for tests and
// static tables.
func MustParseID(raw string) InstanceID {
	id, err := ParseID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// IsDiscriminator reports whether s has the canonical discriminator shape:
// a lowercase 8-4-4-4-12 hexadecimal UUID.
func IsDiscriminator(s string) bool {
	if len(s) != DiscriminatorLen {
		return false
	}
	for i := range len(s) {
		c := s[i]
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			if !isLowerHex(c) {
				return false
			}
		}
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isLowerHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f')
}
