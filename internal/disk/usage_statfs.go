//go:build linux || darwin || freebsd

package disk

import "golang.org/x/sys/unix"

// GetUsage returns free and total bytes of the filesystem holding path
func GetUsage(path string) (Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Usage{}, err
	}
	bsize := int64(stat.Bsize)
	return Usage{
		FreeBytes:  int64(stat.Bavail) * bsize,
		TotalBytes: int64(stat.Blocks) * bsize,
	}, nil
}
