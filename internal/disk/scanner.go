package disk

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// PathStats contains size statistics about a filesystem entry
type PathStats struct {
	UsedBytes int64 // Total bytes of regular files at or under this path
	FileCount int64 // Total number of regular files
}

// Add accumulates other into s
func (s *PathStats) Add(other *PathStats) {
	if other == nil {
		return
	}
	s.UsedBytes += other.UsedBytes
	s.FileCount += other.FileCount
}

// Measure computes the regular-file bytes held by path without following
// symlinks. A symlink or special file measures as zero. Unreadable parts of
// a tree are skipped.
func Measure(path string) (*PathStats, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}

	stats := &PathStats{}
	switch {
	case info.Mode().IsRegular():
		stats.UsedBytes = info.Size()
		stats.FileCount = 1
		return stats, nil
	case !info.IsDir():
		return stats, nil
	}

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			stats.UsedBytes += info.Size()
			stats.FileCount++
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// MeasureAll measures multiple paths concurrently
func MeasureAll(paths []string) (map[string]*PathStats, error) {
	results := make(map[string]*PathStats, len(paths))
	var mu sync.Mutex
	var wg sync.WaitGroup
	errChan := make(chan error, len(paths))

	for _, path := range paths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()

			stats, err := Measure(p)
			if err != nil {
				errChan <- fmt.Errorf("measure %s: %w", p, err)
				return
			}

			mu.Lock()
			results[p] = stats
			mu.Unlock()
		}(path)
	}

	wg.Wait()
	close(errChan)

	// Return first error if any
	if err := <-errChan; err != nil {
		return results, err
	}

	return results, nil
}
