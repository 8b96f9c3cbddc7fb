// Package faults defines the error taxonomy shared by every stage of a scrub.
//
// Each failure carries one kind sentinel plus the offending path. Callers
// match kinds with errors.Is and reach the underlying cause with errors.As or
// errors.Unwrap.
package faults

import (
	"errors"
	"fmt"
)

// Pre-flight kinds. These stop a scrub before any deletion starts.
var (
	ErrInvalidTarget = errors.New("invalid target name")
	ErrNotFound      = errors.New("path not found")
	ErrNotDirectory  = errors.New("path is not a directory")
	ErrTraversal     = errors.New("traversal failed")
	ErrProtectedPath = errors.New("protected path")
	ErrLocked        = errors.New("root is locked by another scrub")
)

// Per-entry kinds. These are recorded and the scrub keeps going.
var (
	ErrIO               = errors.New("io error")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTask             = errors.New("task failed")
)

// Error is a classified failure for one path.
type Error struct {
	Kind error  // one of the sentinels above
	Path string // path the failure refers to
	Err  error  // underlying cause (optional)
}

// New returns an *Error of the given kind.
func New(kind error, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the kind sentinel carried by err, or nil when err is not
// classified.
func KindOf(err error) error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return nil
}

// IsPreflight reports whether err aborts a scrub before deletion starts.
func IsPreflight(err error) bool {
	switch KindOf(err) {
	case ErrInvalidTarget, ErrNotFound, ErrNotDirectory, ErrTraversal, ErrProtectedPath, ErrLocked:
		return true
	}
	return false
}

// Label returns a short snake_case name for a kind, used for metric labels
// and history rows.
func Label(kind error) string {
	switch kind {
	case ErrInvalidTarget:
		return "invalid_target"
	case ErrNotFound:
		return "not_found"
	case ErrNotDirectory:
		return "not_directory"
	case ErrTraversal:
		return "traversal"
	case ErrProtectedPath:
		return "protected_path"
	case ErrLocked:
		return "locked"
	case ErrIO:
		return "io"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrTask:
		return "task"
	case nil:
		return ""
	default:
		return "unknown"
	}
}
