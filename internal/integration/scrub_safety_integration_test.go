package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"dirscrub/internal/config"
	"dirscrub/internal/faults"
	"dirscrub/internal/metrics"
	"dirscrub/internal/scrub"
)

func init() {
	// Initialize metrics once for all integration tests
	metrics.Init()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LockDir = t.TempDir()
	return cfg
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// TestScrubSafetyIntegration verifies the safety contract on a real filesystem:
// nested matches go, siblings stay, and a symlinked match never takes its
// target with it.
func TestScrubSafetyIntegration(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}

	tmpRoot := t.TempDir()
	root := filepath.Join(tmpRoot, "workspace")
	protectedDir := filepath.Join(tmpRoot, "protected")

	nestedOuter := filepath.Join(root, "web", "node_modules")
	nestedInner := filepath.Join(nestedOuter, "lib", "node_modules")
	mustWrite(t, filepath.Join(nestedInner, "dep", "index.js"), "inner")
	mustWrite(t, filepath.Join(nestedOuter, "lib", "package.json"), "{}")

	// A file match is as valid as a directory match
	fileMatch := filepath.Join(root, "api", "node_modules")
	mustWrite(t, fileMatch, "not a dir")

	// Look-alikes that must survive
	sibling := filepath.Join(root, "web", "node_modules_backup", "keep.js")
	mustWrite(t, sibling, "keep")
	source := filepath.Join(root, "web", "src", "app.js")
	mustWrite(t, source, "keep")

	protectedFile := filepath.Join(protectedDir, "keep.txt")
	mustWrite(t, protectedFile, "MUST KEEP")

	// Symlink named like the target, pointing outside the root
	link := filepath.Join(root, "docs", "node_modules")
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		t.Fatalf("Failed to create docs dir: %v", err)
	}
	if err := os.Symlink(protectedDir, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	report, err := scrub.Run(context.Background(), scrub.Options{
		Root:      root,
		Target:    "node_modules",
		Recursive: true,
		Config:    testConfig(t),
	})
	if err != nil {
		t.Fatalf("Scrub failed: %v", err)
	}

	if report.Matches != 4 {
		t.Errorf("Expected 4 matches, got %d", report.Matches)
	}
	if report.Removed != 4 {
		t.Errorf("Expected 4 removals, got %d", report.Removed)
	}

	for _, p := range []string{nestedOuter, nestedInner, fileMatch, link} {
		if exists(p) {
			t.Errorf("Match still exists: %s", p)
		}
	}
	for _, p := range []string{sibling, source, protectedFile} {
		if !exists(p) {
			t.Errorf("SAFETY VIOLATION: %s was deleted", p)
		}
	}
}

// TestScrubProtectedRootIntegration verifies that a configured protected
// root is refused before anything is touched.
func TestScrubProtectedRootIntegration(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "cache")
	mustWrite(t, filepath.Join(target, "blob"), "data")

	cfg := testConfig(t)
	cfg.ProtectedPaths = []string{root}

	_, err := scrub.Run(context.Background(), scrub.Options{Root: root, Target: "cache", Config: cfg})
	if !errors.Is(err, faults.ErrProtectedPath) {
		t.Fatalf("Expected ErrProtectedPath, got %v", err)
	}
	if !faults.IsPreflight(err) {
		t.Errorf("Protected root should be a pre-flight failure")
	}
	if !exists(target) {
		t.Error("SAFETY VIOLATION: match under protected root was deleted")
	}
}

// TestScrubRemediationIntegration verifies read-only entries are repaired
// and removed on the retry.
func TestScrubRemediationIntegration(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix permission bits")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}

	root := t.TempDir()
	readOnlyParent := filepath.Join(root, "pkg")
	match := filepath.Join(readOnlyParent, "node_modules")
	lockedDir := filepath.Join(match, "locked")
	mustWrite(t, filepath.Join(lockedDir, "file.js"), "data")

	if err := os.Chmod(lockedDir, 0555); err != nil {
		t.Fatalf("chmod locked: %v", err)
	}
	if err := os.Chmod(readOnlyParent, 0555); err != nil {
		t.Fatalf("chmod parent: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chmod(readOnlyParent, 0755)
		_ = os.Chmod(lockedDir, 0755)
	})

	before := testutil.ToFloat64(metrics.RemediationsTotal.WithLabelValues("ok"))

	t.Run("Disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Remediation.Disabled = true

		report, err := scrub.Run(context.Background(), scrub.Options{
			Root: root, Target: "node_modules", Recursive: true, Config: cfg,
		})
		if !errors.Is(err, faults.ErrPermissionDenied) {
			t.Fatalf("Expected ErrPermissionDenied, got %v", err)
		}
		if report == nil || report.Failed != 1 {
			t.Fatalf("Expected one failure, got %+v", report)
		}
		if !exists(match) {
			t.Error("match should survive when remediation is disabled")
		}
	})

	t.Run("Enabled", func(t *testing.T) {
		report, err := scrub.Run(context.Background(), scrub.Options{
			Root: root, Target: "node_modules", Recursive: true, Config: testConfig(t),
		})
		if err != nil {
			t.Fatalf("Scrub failed: %v", err)
		}
		if report.Removed != 1 || report.Remediated != 1 {
			t.Errorf("Expected 1 removal after 1 remediation, got removed=%d remediated=%d",
				report.Removed, report.Remediated)
		}
		if exists(match) {
			t.Error("match should be removed after remediation")
		}
	})

	after := testutil.ToFloat64(metrics.RemediationsTotal.WithLabelValues("ok"))
	if after-before != 1 {
		t.Errorf("Expected 1 successful remediation recorded, got %v", after-before)
	}
}
