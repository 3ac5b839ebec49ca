package util

import (
	"fmt"

	"github.com/lxc/incus/v6/shared/osarch"
)

// SameArchitecture returns nil if the two architecture names resolve to the
// same architecture ID, accepting aliases such as "x86_64" and "amd64".
func SameArchitecture(a string, b string) error {
	idA, err := osarch.ArchitectureID(a)
	if err != nil {
		return fmt.Errorf("Architecture %q is invalid: %w", a, err)
	}

	idB, err := osarch.ArchitectureID(b)
	if err != nil {
		return fmt.Errorf("Architecture %q is invalid: %w", b, err)
	}

	if idA != idB {
		return fmt.Errorf("Architecture %q does not match %q", a, b)
	}

	return nil
}
