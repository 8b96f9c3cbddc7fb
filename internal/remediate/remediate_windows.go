//go:build windows

package remediate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/windows"
)

type windowsRemediator struct {
	skipOwnership bool
}

func newPlatform(opts Options) Remediator {
	return windowsRemediator{skipOwnership: opts.SkipOwnership}
}

// Remediate clears read-only attributes, takes ownership and grants the
// current user full control. Each step runs even if an earlier one fails.
func (r windowsRemediator) Remediate(path string, isDir bool) error {
	var errs []error

	if isDir {
		walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if d == nil {
					return err
				}
				errs = append(errs, err)
				return nil
			}
			if err := clearReadOnly(p); err != nil {
				errs = append(errs, err)
			}
			return nil
		})
		if walkErr != nil {
			errs = append(errs, walkErr)
		}
	} else if err := clearReadOnly(path); err != nil {
		errs = append(errs, err)
	}

	if !r.skipOwnership {
		args := []string{"/F", path}
		if isDir {
			args = append(args, "/R", "/D", "Y")
		}
		if err := run("takeown", args...); err != nil {
			errs = append(errs, err)
		}
	}

	user := os.Getenv("USERNAME")
	if user == "" {
		errs = append(errs, errors.New("icacls: USERNAME not set"))
		return errors.Join(errs...)
	}
	args := []string{path, "/grant", user + ":F"}
	if isDir {
		args = append(args, "/T")
	}
	if err := run("icacls", args...); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func clearReadOnly(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return fmt.Errorf("get attributes %s: %w", path, err)
	}
	if attrs&windows.FILE_ATTRIBUTE_READONLY == 0 {
		return nil
	}
	if err := windows.SetFileAttributes(p, attrs&^windows.FILE_ATTRIBUTE_READONLY); err != nil {
		return fmt.Errorf("set attributes %s: %w", path, err)
	}
	return nil
}

func run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}
