package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before touching the store.
	ErrValidation = errors.New("validation failed")

	// ErrOverlap is returned when a residency would overlap the person's
	// existing address history.
	ErrOverlap = errors.New("residency overlaps existing history")

	// ErrStorageDisabled is returned by attachment operations when no object
	// storage backend is configured.
	ErrStorageDisabled = errors.New("object storage is not configured")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
