package fsops

import (
	"errors"
	"io/fs"
)

// Class is the category a failed removal falls into.
type Class int

const (
	// Other covers every failure that is neither AlreadyGone nor Permission.
	Other Class = iota
	// AlreadyGone means the entry no longer exists; callers treat it as success.
	AlreadyGone
	// Permission means the OS refused the removal for access reasons.
	Permission
)

func (c Class) String() string {
	switch c {
	case AlreadyGone:
		return "already_gone"
	case Permission:
		return "permission"
	default:
		return "other"
	}
}

// Classify maps a removal error to exactly one Class. A nil error is Other;
// callers only classify failures.
func Classify(err error) Class {
	switch {
	case err == nil:
		return Other
	case errors.Is(err, fs.ErrNotExist) || isGone(err):
		return AlreadyGone
	case errors.Is(err, fs.ErrPermission) || isDenied(err):
		return Permission
	default:
		return Other
	}
}
