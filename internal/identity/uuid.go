// Package identity manages the disk, volume and VM identifiers used
// throughout a conversion run. Disk UUIDs may be supplied by the caller to
// allow re-importing into known disk IDs; volume and VM UUIDs are always
// generated fresh.
package identity

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

const nilUUID = "00000000-0000-0000-0000-000000000000"

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidateUUID returns true only for the canonical 8-4-4-4-12 hexadecimal
// form. The all-zero nil UUID is rejected, since the remote engine treats it
// as "no ID".
func ValidateUUID(s string) bool {
	if !uuidRegex.MatchString(s) {
		return false
	}

	return s != nilUUID
}

// ResolveDiskUUIDs returns one UUID per disk, in disk ordinal order.
// If the caller supplied a list, it must contain exactly count valid entries;
// otherwise a fresh random UUID is generated for every disk.
func ResolveDiskUUIDs(count int, supplied []string) ([]string, error) {
	if len(supplied) == 0 {
		uuids := make([]string, 0, count)
		for range count {
			uuids = append(uuids, uuid.New().String())
		}

		return uuids, nil
	}

	if len(supplied) != count {
		return nil, fmt.Errorf("Expected %d disk UUIDs, got %d", count, len(supplied))
	}

	for _, s := range supplied {
		if !ValidateUUID(s) {
			return nil, fmt.Errorf("Disk UUID %q is not a valid UUID", s)
		}
	}

	return append([]string(nil), supplied...), nil
}

// NewUUID generates a fresh random UUID in canonical textual form.
func NewUUID() string {
	return uuid.New().String()
}
