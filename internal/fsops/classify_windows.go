//go:build windows

package fsops

import (
	"errors"

	"golang.org/x/sys/windows"
)

func isGone(err error) bool {
	return errors.Is(err, windows.ERROR_FILE_NOT_FOUND) ||
		errors.Is(err, windows.ERROR_PATH_NOT_FOUND)
}

func isDenied(err error) bool {
	return errors.Is(err, windows.ERROR_ACCESS_DENIED)
}
