// Package store resolves which nutrition database a process works against
// and carries the embedded schema migrations.
package store

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidStoreID indicates the store ID format is invalid.
	ErrInvalidStoreID = errors.New("invalid store ID: must be lowercase alphanumeric with hyphens, 1-4 path segments")

	// ErrReservedStoreID indicates the store ID is reserved and cannot be created.
	ErrReservedStoreID = errors.New("reserved store ID: cannot create stores with reserved IDs")
)

// Segments are lowercase alphanumeric with inner hyphens, 1-64 chars each,
// at most four of them joined by "/".
var storeIDRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?(\/[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?){0,3}$`)

const maxStoreIDLen = 256

// DefaultStoreID is used when nothing else selects a store.
const DefaultStoreID = "default"

var reservedStoreIDs = map[string]bool{
	DefaultStoreID: true,
	"_system":      true,
}

// ValidateStoreID checks the format of id. Reserved IDs pass so they can be
// targeted.
func ValidateStoreID(id string) error {
	if id == "" || len(id) > maxStoreIDLen {
		return ErrInvalidStoreID
	}
	if reservedStoreIDs[id] {
		return nil
	}
	if strings.Contains(id, "--") || !storeIDRegex.MatchString(id) {
		return ErrInvalidStoreID
	}
	return nil
}

// IsReservedStoreID reports whether id is reserved.
func IsReservedStoreID(id string) bool {
	return reservedStoreIDs[id]
}

// ValidateStoreIDForCreation rejects reserved IDs on top of ValidateStoreID.
func ValidateStoreIDForCreation(id string) error {
	if err := ValidateStoreID(id); err != nil {
		return err
	}
	if IsReservedStoreID(id) {
		return ErrReservedStoreID
	}
	return nil
}
