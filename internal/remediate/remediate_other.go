//go:build !unix && !windows

package remediate

import (
	"errors"
	"os"
	"path/filepath"
)

type chmodRemediator struct{}

func newPlatform(Options) Remediator { return chmodRemediator{} }

func (chmodRemediator) Remediate(path string, isDir bool) error {
	return errors.Join(
		os.Chmod(filepath.Dir(path), 0o700),
		os.Chmod(path, 0o700),
	)
}
