// Package names generates and checks device names. A device name tags the
// writes a sync agent pushes so the remote can tell installations apart.
package names

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/docker/docker/pkg/namesgenerator"
)

// ErrInvalidName is returned for names outside [a-z0-9_-] or longer than 64.
var ErrInvalidName = errors.New("invalid device name")

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Generate returns a random adjective_surname name (e.g., "focused_turing").
func Generate() string {
	return namesgenerator.GetRandomName(0)
}

// Validate checks a user supplied device name.
func Validate(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
