package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardAllowsPathsUnderRoot(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.sea")
	require.NoError(t, os.WriteFile(path, []byte("Entity \"X\"\n"), 0o644))

	g := NewGuard([]string{root})
	resolved, err := g.CheckPath(path)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))
}

func TestGuardDeniesPathsOutsideRoots(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret.sea")
	require.NoError(t, os.WriteFile(outside, []byte("Entity \"X\"\n"), 0o644))

	g := NewGuard([]string{root})
	_, err := g.CheckPath(outside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the workspace roots")
}

func TestGuardDeniesEverythingWithoutRoots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.sea")
	require.NoError(t, os.WriteFile(path, []byte("Entity \"X\"\n"), 0o644))

	g := NewGuard(nil)
	_, err := g.CheckPath(path)
	assert.Error(t, err)
}

func TestGuardDeniesMissingPath(t *testing.T) {
	root := t.TempDir()
	g := NewGuard([]string{root})

	_, err := g.CheckPath(filepath.Join(root, "missing.sea"))
	assert.Error(t, err)
}

func TestGuardResolvesSymlinkedPaths(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.sea")
	require.NoError(t, os.WriteFile(path, []byte("Entity \"X\"\n"), 0o644))

	linkDir := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(root, linkDir))

	g := NewGuard([]string{root})
	resolved, err := g.CheckPath(filepath.Join(linkDir, "doc.sea"))
	require.NoError(t, err)

	direct, err := g.CheckPath(path)
	require.NoError(t, err)
	assert.Equal(t, direct, resolved)
}

func TestGuardRateLimitsPerTool(t *testing.T) {
	g := NewGuard(nil)

	for i := 0; i < toolRates["forge_references"]; i++ {
		require.NoError(t, g.CheckRateLimit("forge_references"))
	}
	err := g.CheckRateLimit("forge_references")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")

	// buckets are independent per tool
	assert.NoError(t, g.CheckRateLimit("forge_hover"))
}
