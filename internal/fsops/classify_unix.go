//go:build unix

package fsops

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ENOTDIR shows up when a parent directory was swapped out or removed while
// a walk snapshot still referenced it.
func isGone(err error) bool {
	return errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOTDIR)
}

func isDenied(err error) bool {
	return errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM)
}
