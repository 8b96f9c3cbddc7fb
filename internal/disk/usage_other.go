//go:build !linux && !darwin && !freebsd && !windows

package disk

import "errors"

// GetUsage is not supported on this platform
func GetUsage(string) (Usage, error) {
	return Usage{}, errors.New("filesystem usage not supported on this platform")
}
