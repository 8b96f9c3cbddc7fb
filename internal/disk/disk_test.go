package disk

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasureTree(t *testing.T) {
	root := t.TempDir()
	tree := filepath.Join(root, "node_modules")
	require.NoError(t, os.MkdirAll(filepath.Join(tree, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "one"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "a", "b", "two"), make([]byte, 50), 0o644))

	stats, err := Measure(tree)
	require.NoError(t, err)
	assert.Equal(t, int64(150), stats.UsedBytes)
	assert.Equal(t, int64(2), stats.FileCount)
}

func TestMeasureFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, make([]byte, 42), 0o644))

	stats, err := Measure(file)
	require.NoError(t, err)
	assert.Equal(t, &PathStats{UsedBytes: 42, FileCount: 1}, stats)
}

func TestMeasureSymlinkIsZero(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	target := filepath.Join(root, "big")
	require.NoError(t, os.WriteFile(target, make([]byte, 1000), 0o644))
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(target, link))

	stats, err := Measure(link)
	require.NoError(t, err)
	assert.Zero(t, stats.UsedBytes)
}

func TestMeasureMissing(t *testing.T) {
	_, err := Measure(filepath.Join(t.TempDir(), "gone"))
	assert.True(t, os.IsNotExist(err))
}

func TestMeasureAll(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	require.NoError(t, os.WriteFile(a, make([]byte, 10), 0o644))
	require.NoError(t, os.WriteFile(b, make([]byte, 20), 0o644))

	results, err := MeasureAll([]string{a, b, filepath.Join(root, "missing")})
	require.Error(t, err)
	assert.Len(t, results, 2)

	total := &PathStats{}
	for _, s := range results {
		total.Add(s)
	}
	assert.Equal(t, int64(30), total.UsedBytes)
}

func TestGetUsage(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		t.Skip("no filesystem usage on this platform")
	}
	u, err := GetUsage(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, u.TotalBytes, int64(0))
	assert.GreaterOrEqual(t, u.UsedPercent(), 0.0)
	assert.LessOrEqual(t, u.UsedPercent(), 100.0)
}
