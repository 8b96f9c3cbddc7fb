package safety

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"dirscrub/internal/faults"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix path layout")
	}
}

// TestProtectedPathBlocking verifies protected paths are blocked
func TestProtectedPathBlocking(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"root slash", "/", true},
		{"etc", "/etc", true},
		{"etc subdir", "/etc/ssh", true},
		{"bin", "/bin", true},
		{"usr", "/usr", true},
		{"usr local", "/usr/local", true},
		{"boot grub", "/boot/grub2", true},
		{"lib64", "/lib64", true},
		{"sbin", "/sbin", true},
		{"proc", "/proc/1", true},
		{"extra", "/srv/keep/sub", true},
		{"tmp allowed", "/tmp", false},
		{"tmp project", "/tmp/project/node_modules", false},
		{"var tmp", "/var/tmp", false},
		{"home", "/home", false},
		{"home user", "/home/user/src", false},
		{"similar prefix", "/etcetera", false},
	}

	protected := defaultProtected([]string{"/srv/keep"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsProtectedPath(tt.path, protected)
			if result != tt.expected {
				t.Errorf("IsProtectedPath(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

// TestAllowedRootEnforcement verifies paths are restricted to allowed roots
func TestAllowedRootEnforcement(t *testing.T) {
	skipOnWindows(t)
	allowed := []string{"/tmp/allowed", "/var/cleanup"}

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"inside allowed tmp", "/tmp/allowed/file.txt", true},
		{"inside allowed var", "/var/cleanup/old.log", true},
		{"allowed root exact", "/tmp/allowed", true},
		{"outside allowed", "/tmp/notallowed/file.txt", false},
		{"parent of allowed", "/tmp", false},
		{"completely different", "/home/user/file.txt", false},
		{"root", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsWithinAllowedRoots(tt.path, allowed)
			if result != tt.expected {
				t.Errorf("IsWithinAllowedRoots(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

// TestPathNormalization verifies paths are normalized correctly
func TestPathNormalization(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{"relative path", "file.txt", false}, // Gets normalized to absolute
		{"path with dots", filepath.Join(os.TempDir(), ".", "file.txt"), false},
		{"empty path", "", true},
		{"whitespace only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizePath(tt.path)
			if tt.expectError {
				if err == nil {
					t.Errorf("NormalizePath(%s) expected error, got nil", tt.path)
				}
				return
			}
			if err != nil {
				t.Errorf("NormalizePath(%s) unexpected error: %v", tt.path, err)
			}
			if !filepath.IsAbs(result) {
				t.Errorf("NormalizePath(%s) = %s, expected absolute path", tt.path, result)
			}
		})
	}
}

// TestTraversalDetection verifies ".." segments are detected
func TestTraversalDetection(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"normal path", "/tmp/file.txt", false},
		{"dotdot parent", "/tmp/../etc/passwd", true},
		{"dotdot at start", "../etc/passwd", true},
		{"dotdot at end", "/tmp/..", true},
		{"single dot ok", "/tmp/./file", false},
		{"dots in name ok", "/tmp/a..b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectTraversal(tt.path)
			if result != tt.expected {
				t.Errorf("DetectTraversal(%s) = %v, expected %v", tt.path, result, tt.expected)
			}
		})
	}
}

// TestValidateRoot covers the root-level safety contract
func TestValidateRoot(t *testing.T) {
	skipOnWindows(t)
	tmpDir := t.TempDir()
	linkToUsr := filepath.Join(tmpDir, "usr_link")
	if err := os.Symlink("/usr", linkToUsr); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	validator := NewValidator([]string{filepath.Join(tmpDir, "keep")})

	tests := []struct {
		name   string
		root   string
		reason error
	}{
		{"plain temp dir", tmpDir, nil},
		{"missing root is left to discovery", filepath.Join(tmpDir, "absent"), nil},
		{"filesystem root", "/", ErrProtectedPath},
		{"system dir", "/usr/lib", ErrProtectedPath},
		{"configured extra", filepath.Join(tmpDir, "keep", "x"), ErrProtectedPath},
		{"symlink to system dir", linkToUsr, ErrSymlinkEscape},
		{"traversal", tmpDir + "/../x", ErrTraversal},
		{"empty", "", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateRoot(tt.root)
			if tt.reason == nil {
				if err != nil {
					t.Errorf("ValidateRoot(%s) unexpected error: %v", tt.root, err)
				}
				return
			}
			if !errors.Is(err, faults.ErrProtectedPath) {
				t.Errorf("ValidateRoot(%s) = %v, expected faults.ErrProtectedPath", tt.root, err)
			}
			if !errors.Is(err, tt.reason) {
				t.Errorf("ValidateRoot(%s) = %v, expected reason %v", tt.root, err, tt.reason)
			}
		})
	}
}

// TestValidateMatch verifies matches stay inside the root
func TestValidateMatch(t *testing.T) {
	skipOnWindows(t)
	tmpDir := t.TempDir()
	root := filepath.Join(tmpDir, "root")
	outside := filepath.Join(tmpDir, "outside")
	for _, d := range []string{filepath.Join(root, "a"), filepath.Join(outside, "node_modules")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	// root/escape -> outside, so root/escape/node_modules resolves outside
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	// a match that is itself a symlink pointing outside is fine
	if err := os.Symlink(outside, filepath.Join(root, "a", "node_modules")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	validator := NewValidator(nil)

	tests := []struct {
		name   string
		path   string
		reason error
	}{
		{"direct child", filepath.Join(root, "node_modules"), nil},
		{"symlink match", filepath.Join(root, "a", "node_modules"), nil},
		{"root itself", root, ErrOutsideRoot},
		{"sibling tree", filepath.Join(outside, "node_modules"), ErrOutsideRoot},
		{"through escaping parent", filepath.Join(root, "escape", "node_modules"), ErrSymlinkEscape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateMatch(root, tt.path)
			if tt.reason == nil {
				if err != nil {
					t.Errorf("ValidateMatch(%s) unexpected error: %v", tt.path, err)
				}
				return
			}
			if !errors.Is(err, tt.reason) {
				t.Errorf("ValidateMatch(%s) = %v, expected %v", tt.path, err, tt.reason)
			}
		})
	}
}

// TestHasPathPrefix verifies the path prefix checking logic
func TestHasPathPrefix(t *testing.T) {
	skipOnWindows(t)
	tests := []struct {
		name     string
		path     string
		prefix   string
		expected bool
	}{
		{"exact match", "/tmp/allowed", "/tmp/allowed", true},
		{"subdirectory", "/tmp/allowed/sub", "/tmp/allowed", true},
		{"not a prefix", "/tmp/other", "/tmp/allowed", false},
		{"partial match", "/tmp/allowedother", "/tmp/allowed", false},
		{"root prefix", "/tmp", "/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := hasPathPrefix(tt.path, tt.prefix)
			if result != tt.expected {
				t.Errorf("hasPathPrefix(%s, %s) = %v, expected %v", tt.path, tt.prefix, result, tt.expected)
			}
		})
	}
}
