//go:build unix

package remediate

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const (
	userWX  = 0o300
	userW   = 0o200
	userRWX = 0o700
)

type posixRemediator struct{}

func newPlatform(Options) Remediator { return posixRemediator{} }

// Remediate grants the owner write+search on the parent so the entry can be
// unlinked, then write on a file or rwx on every directory of a tree.
// A parent that already has u+wx is left untouched; one that lacked it keeps
// the added bits, since siblings in the same layer may be relying on them.
func (posixRemediator) Remediate(path string, isDir bool) error {
	var errs []error
	if err := addBits(filepath.Dir(path), userWX); err != nil {
		errs = append(errs, err)
	}
	if !isDir {
		if err := addBits(path, userW); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}

	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d == nil {
				return err
			}
			// ReadDir failed after the chmod below; keep going.
			errs = append(errs, err)
			return nil
		}
		if d.IsDir() {
			if err := addBits(p, userRWX); err != nil {
				errs = append(errs, err)
			}
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return errors.Join(errs...)
}

// addBits ORs bits into the permission mode of path. Symlinks are left
// alone since chmod would follow them.
func addBits(path string, bits uint32) error {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return fmt.Errorf("lstat %s: %w", path, err)
	}
	mode := uint32(st.Mode)
	if mode&unix.S_IFMT == unix.S_IFLNK {
		return nil
	}
	perm := mode & 0o7777
	if perm&bits == bits {
		return nil
	}
	if err := unix.Chmod(path, perm|bits); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
