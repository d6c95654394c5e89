package nutrilens

import (
	"errors"
	"fmt"
)

// Common errors returned by the nutrilens client and store.
var (
	// ErrNotFound is returned when an ingredient library entry is not found.
	ErrNotFound = errors.New("ingredient not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrVersionConflict is returned when a library entry changed between
	// read and write, or a concurrent insert claimed the same name first.
	ErrVersionConflict = errors.New("ingredient version conflict")

	// ErrEmptyFieldName is returned when a correction names no field.
	ErrEmptyFieldName = errors.New("field name cannot be empty")

	// ErrEmptyUserID is returned when a user-scoped operation has no user.
	ErrEmptyUserID = errors.New("user ID cannot be empty")

	// ErrNoNutrients is returned when an observation carries no nutrient values.
	ErrNoNutrients = errors.New("observation has no nutrient values")
)

// ValidationError is returned when configuration validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}
