//go:build windows

package disk

import "golang.org/x/sys/windows"

// GetUsage returns free and total bytes of the volume holding path
func GetUsage(path string) (Usage, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return Usage{}, err
	}
	var freeAvail, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &freeAvail, &total, &totalFree); err != nil {
		return Usage{}, err
	}
	return Usage{FreeBytes: int64(freeAvail), TotalBytes: int64(total)}, nil
}
