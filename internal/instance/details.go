package instance

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jmgilman/dexkeep/internal/identity"
)

// validate is the shared validator instance.
var validate = validator.New()

// ValidateDetails checks details against their field constraints.
func ValidateDetails(d Details) error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDetails, err)
	}
	return nil
}

// UpdateDetails replaces the opaque details of an instance.
func UpdateDetails(snap Snapshot, id identity.InstanceID, d Details, opts Options) (Mutation, error) {
	inst, ok := snap.Get(id)
	if !ok {
		return Mutation{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	if inst.Disabled {
		return Mutation{}, fmt.Errorf("%w: %s", ErrInstanceDisabled, id)
	}
	if err := ValidateDetails(d); err != nil {
		return Mutation{}, err
	}

	w := newWorkset(snap, opts.now())
	inst = inst.Clone()
	inst.Details = d.clone()
	w.put(inst)
	return w.mutation(id), nil
}
