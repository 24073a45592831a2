package fetch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarty-pants-inc/botpack/pkg/types"
)

func TestPathAbsolute(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentpkg.toml"), []byte("agentpkg = \"1\"\n"), 0o644))

	tree, err := Path(types.PathDependency{Path: dir}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, dir, tree.Path)
	assert.Equal(t, "path", tree.Resolved["type"])
}

func TestPathRelative(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "vendor", "pack"), 0o755))

	tree, err := Path(types.PathDependency{Path: "vendor/pack"}, base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "vendor", "pack"), tree.Path)
}

func TestPathMissing(t *testing.T) {
	_, err := Path(types.PathDependency{Path: "no/such/dir"}, t.TempDir())
	require.Error(t, err)
	var ferr *Error
	assert.ErrorAs(t, err, &ferr)
}

func TestGitOfflineCacheMiss(t *testing.T) {
	_, err := Git(types.GitDependency{Git: "https://example.test/repo.git"}, t.TempDir(), true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOfflineCacheMiss))
}

func TestSafeDirName(t *testing.T) {
	assert.Equal(t,
		"https_example.test_acme_pack.git",
		safeDirName("https://example.test/acme/pack.git"))
}
