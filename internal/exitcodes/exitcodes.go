package exitcodes

import (
	"errors"

	"dirscrub/internal/config"
	"dirscrub/internal/faults"
)

// Exit codes for dirscrub
// These codes form the operational contract with scripts and CI
const (
	Success         = 0 // Successful execution
	InvalidConfig   = 2 // Configuration file or arguments invalid
	SafetyViolation = 3 // Protected root or root locked by another scrub
	RuntimeError    = 4 // Runtime error during execution
	NotFound        = 5 // Root missing or not a directory
)

// FromError maps an error returned by a command to its exit code
func FromError(err error) int {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, config.ErrInvalid), errors.Is(err, faults.ErrInvalidTarget):
		return InvalidConfig
	case errors.Is(err, faults.ErrProtectedPath), errors.Is(err, faults.ErrLocked):
		return SafetyViolation
	case errors.Is(err, faults.ErrNotFound), errors.Is(err, faults.ErrNotDirectory):
		return NotFound
	default:
		return RuntimeError
	}
}
