package safety

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"dirscrub/internal/faults"
)

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrProtectedPath = errors.New("protected path")
	ErrOutsideRoot   = errors.New("outside scrub root")
	ErrTraversal     = errors.New("path traversal detected")
	ErrSymlinkEscape = errors.New("symlink escape detected")
)

// Validator enforces the safety contract for every scrub
type Validator struct {
	ProtectedPaths []string
}

// NewValidator creates a validator with the built-in protected paths plus extras
func NewValidator(extraProtected []string) *Validator {
	return &Validator{
		ProtectedPaths: defaultProtected(extraProtected),
	}
}

// ValidateRoot decides whether root may be scrubbed at all.
// Violations are returned as faults.ErrProtectedPath wrapping the reason.
func (v *Validator) ValidateRoot(root string) error {
	if err := v.validateRoot(root); err != nil {
		return faults.New(faults.ErrProtectedPath, root, err)
	}
	return nil
}

func (v *Validator) validateRoot(root string) error {
	// 1. Detect path traversal in raw input
	if DetectTraversal(root) {
		return ErrTraversal
	}

	// 2. Normalize path to absolute, cleaned form
	p, err := NormalizePath(root)
	if err != nil {
		return err
	}

	// 3. Block protected paths (system-critical)
	if IsProtectedPath(p, v.ProtectedPaths) {
		return ErrProtectedPath
	}

	// 4. A root that is a symlink must not land on a protected path
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		// Missing roots are reported by discovery
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if IsProtectedPath(resolved, v.ProtectedPaths) {
		return fmt.Errorf("%w: %s resolves to %s", ErrSymlinkEscape, p, resolved)
	}
	return nil
}

// ValidateMatch ensures a discovered match lies strictly inside root and that
// its parent directory does not resolve outside root. The match itself may be
// a symlink; only the link is ever removed.
func (v *Validator) ValidateMatch(root, path string) error {
	if err := validateMatch(root, path); err != nil {
		return faults.New(faults.ErrProtectedPath, path, err)
	}
	return nil
}

func validateMatch(root, path string) error {
	r := filepath.Clean(root)
	p := filepath.Clean(path)
	if p == r || !IsWithinAllowedRoots(p, []string{r}) {
		return ErrOutsideRoot
	}

	resolvedRoot, err := filepath.EvalSymlinks(r)
	if err != nil {
		return err
	}
	escaped, err := DetectSymlinkEscape(filepath.Dir(p), []string{resolvedRoot})
	if err != nil {
		// Parent vanished between discovery and validation; removal will
		// report it as already gone.
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if escaped {
		return ErrSymlinkEscape
	}
	return nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	parts := strings.Split(filepath.ToSlash(raw), "/")
	for _, p := range parts {
		if p == ".." {
			return true
		}
	}
	return false
}

// IsWithinAllowedRoots checks if path is within any allowed root
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	p := filepath.Clean(path)
	for _, r := range allowedRoots {
		if hasPathPrefix(p, r) {
			return true
		}
	}
	return false
}

// DetectSymlinkEscape resolves symlinks and checks if resolved path escapes allowed roots
func DetectSymlinkEscape(cleanAbs string, allowedRoots []string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(cleanAbs)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	return !IsWithinAllowedRoots(filepath.Clean(resolvedAbs), allowedRoots), nil
}

// IsProtectedPath checks if path matches protected system paths.
// A filesystem root in the list protects only itself, not everything below.
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)

	// Hard block: filesystem root exact
	if isFSRoot(p) {
		return true
	}

	for _, prot := range protected {
		prot = filepath.Clean(prot)
		if isFSRoot(prot) {
			continue
		}
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

func isFSRoot(p string) bool {
	return p == filepath.VolumeName(p)+string(os.PathSeparator)
}

// hasPathPrefix checks if path has the given prefix
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if path == prefix {
		return true
	}
	if isFSRoot(prefix) {
		return strings.HasPrefix(path, prefix)
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

// defaultProtected returns the base set of protected paths plus any extras
func defaultProtected(extra []string) []string {
	var base []string
	if runtime.GOOS == "windows" {
		for _, env := range []string{"SystemRoot", "ProgramFiles", "ProgramFiles(x86)", "ProgramData"} {
			if v := os.Getenv(env); v != "" {
				base = append(base, v)
			}
		}
	} else {
		base = []string{
			"/",
			"/etc",
			"/bin",
			"/usr",
			"/boot",
			"/lib",
			"/lib64",
			"/sbin",
			"/proc",
			"/sys",
			"/dev",
			"/System",
			"/Library",
		}
	}
	return append(base, extra...)
}
