package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarty-pants-inc/botpack/pkg/types"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "botpack.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFull(t *testing.T) {
	path := writeManifest(t, `version = 1

[assets]
dir = ".botpack/workspace"
name = "acme"

[dependencies]
"@acme/quality" = "^1"
"local-pack" = { path = "../local-pack" }
"git-pack" = { git = "https://example.test/pack.git", rev = "v1.0.0" }
"url-pack" = { url = "https://example.test/pack.tar.gz", integrity = "sha256:abc" }

[sync]
onAdd = false
linkMode = "copy"

[targets.claude]
root = ".claude"

[aliases.skills]
web = "fetch_web"

[entry]
agent = "default"
target = "claude"
`)

	m, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, 1, m.Version)
	assert.Equal(t, ".botpack/workspace", m.Assets.Dir)
	assert.Equal(t, "acme", m.Assets.Name)
	assert.True(t, m.Assets.Private)

	assert.Equal(t, types.SemverDependency{Spec: "^1"}, m.Dependencies["@acme/quality"])
	assert.Equal(t, types.PathDependency{Path: "../local-pack"}, m.Dependencies["local-pack"])
	assert.Equal(t, types.GitDependency{Git: "https://example.test/pack.git", Rev: "v1.0.0"}, m.Dependencies["git-pack"])
	assert.Equal(t, types.URLDependency{URL: "https://example.test/pack.tar.gz", Integrity: "sha256:abc"}, m.Dependencies["url-pack"])

	assert.False(t, m.Sync.OnAdd)
	assert.True(t, m.Sync.OnInstall)
	assert.Equal(t, types.LinkModeCopy, m.Sync.LinkMode)

	assert.Equal(t, ".claude", m.Targets["claude"].Root)
	assert.Equal(t, "fetch_web", m.Aliases.Skills["web"])
	assert.Equal(t, "default", m.Entry.Agent)
	assert.Equal(t, "claude", m.Entry.Target)
}

func TestParseDefaults(t *testing.T) {
	m, err := Parse(writeManifest(t, "version = 1\n"))
	require.NoError(t, err)

	assert.Equal(t, "botpack", m.Assets.Dir)
	assert.True(t, m.Sync.OnAdd)
	assert.True(t, m.Sync.OnInstall)
	assert.True(t, m.Sync.Catalog)
	assert.Equal(t, types.LinkModeAuto, m.Sync.LinkMode)
	assert.Empty(t, m.Dependencies)
}

func TestParseLegacyWorkspace(t *testing.T) {
	m, err := Parse(writeManifest(t, "version = 1\n\n[workspace]\ndir = \"ws\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "ws", m.Assets.Dir)
}

func TestParseValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "unknown top-level key",
			content: "version = 1\nbogus = true\n",
			wantMsg: "unknown keys: bogus",
		},
		{
			name:    "wrong version",
			content: "version = 2\n",
			wantMsg: "version: expected 1",
		},
		{
			name:    "assets and workspace both present",
			content: "version = 1\n[assets]\ndir = \"a\"\n[workspace]\ndir = \"b\"\n",
			wantMsg: "cannot have both [assets] and [workspace]",
		},
		{
			name:    "unknown sync key",
			content: "version = 1\n[sync]\nfrequency = 5\n",
			wantMsg: "sync: unknown keys: frequency",
		},
		{
			name:    "bad link mode",
			content: "version = 1\n[sync]\nlinkMode = \"reflink\"\n",
			wantMsg: "sync.linkMode",
		},
		{
			name:    "dependency with mixed keys",
			content: "version = 1\n[dependencies]\nfoo = { git = \"x\", path = \"y\" }\n",
			wantMsg: "dependencies.foo: unknown keys: path",
		},
		{
			name:    "dependency with no recognized key",
			content: "version = 1\n[dependencies]\nfoo = { rev = \"y\" }\n",
			wantMsg: "dependencies.foo: unsupported spec",
		},
		{
			name:    "unknown target key",
			content: "version = 1\n[targets.claude]\ncolor = \"red\"\n",
			wantMsg: "targets.claude: unknown keys: color",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(writeManifest(t, tt.content))
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Message, tt.wantMsg)
		})
	}
}

func TestParseErrorCarriesPosition(t *testing.T) {
	_, err := Parse(writeManifest(t, "version = \n"))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Greater(t, perr.Line, 0)
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "botpack.toml"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file not found", verr.Message)
}

func TestParsePackage(t *testing.T) {
	dir := t.TempDir()
	content := `agentpkg = "1"
name = "@acme/exec"
version = "1.0.0"
description = "runs things"

[capabilities]
exec = true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentpkg.toml"), []byte(content), 0o644))

	// Accepts the directory or the file itself.
	for _, p := range []string{dir, filepath.Join(dir, "agentpkg.toml")} {
		pm, err := ParsePackage(p)
		require.NoError(t, err)
		assert.Equal(t, "@acme/exec", pm.Name)
		assert.Equal(t, "1.0.0", pm.Version)
		assert.True(t, pm.Capabilities.Exec)
		assert.False(t, pm.Capabilities.Mcp)
	}
}

func TestParsePackageUnknownKey(t *testing.T) {
	dir := t.TempDir()
	content := "agentpkg = \"1\"\nname = \"x\"\nversion = \"1.0.0\"\nshiny = true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentpkg.toml"), []byte(content), 0o644))

	_, err := ParsePackage(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys: shiny")
}
