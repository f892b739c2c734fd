package collection

import (
	"fmt"

	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/store"
)

// StoreError reports a change that was applied in memory but could not be
// persisted. Mutation holds the change so callers can report or retry it.
type StoreError struct {
	Op       string
	Mutation instance.Mutation
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: change kept in memory only: %v", e.Op, e.Err)
}

// Unwrap exposes both store.ErrStoreUnavailable and the underlying failure.
func (e *StoreError) Unwrap() []error {
	return []error{store.ErrStoreUnavailable, e.Err}
}
