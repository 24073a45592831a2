package trust

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarty-pants-inc/botpack/pkg/types"
)

func loadTrust(t *testing.T, content string) *types.TrustConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trust.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	return cfg
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "trust.toml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Packages)
}

func TestCheckPackage(t *testing.T) {
	cfg := loadTrust(t, `version = 1

["@acme/exec@1.0.0"]
allowExec = true

["@acme/pinned@1.0.0"]
allowExec = true

["@acme/pinned@1.0.0".digest]
integrity = "sha256:aaaa"
`)

	tests := []struct {
		name      string
		pkgKey    string
		integrity string
		needsExec bool
		needsMcp  bool
		wantOK    bool
		reason    string
	}{
		{
			name:   "no capabilities, no entry",
			pkgKey: "@acme/benign@1.0.0",
			wantOK: true,
		},
		{
			name:      "needs exec, no entry",
			pkgKey:    "@acme/rogue@1.0.0",
			needsExec: true,
			wantOK:    false,
			reason:    "@acme/rogue@1.0.0: requires trust for exec/mcp",
		},
		{
			name:      "needs exec, granted",
			pkgKey:    "@acme/exec@1.0.0",
			needsExec: true,
			wantOK:    true,
		},
		{
			name:     "needs mcp, only exec granted",
			pkgKey:   "@acme/exec@1.0.0",
			needsMcp: true,
			wantOK:   false,
			reason:   "mcp not trusted",
		},
		{
			name:      "digest pin matches",
			pkgKey:    "@acme/pinned@1.0.0",
			integrity: "sha256:aaaa",
			needsExec: true,
			wantOK:    true,
		},
		{
			name:      "digest pin mismatch is hard deny",
			pkgKey:    "@acme/pinned@1.0.0",
			integrity: "sha256:bbbb",
			needsExec: true,
			wantOK:    false,
			reason:    "trust.digest mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CheckPackage(cfg, tt.pkgKey, tt.integrity, tt.needsExec, tt.needsMcp)
			assert.Equal(t, tt.wantOK, d.OK)
			if tt.reason != "" {
				assert.Contains(t, d.Reason, tt.reason)
			}
		})
	}
}

func TestCheckMcpServerOverlay(t *testing.T) {
	cfg := loadTrust(t, `version = 1

["@acme/mcp-pack@0.3.0"]
allowExec = true
allowMcp = true

["@acme/mcp-pack@0.3.0".mcp."@acme/mcp-pack/sketchy"]
allowExec = false
allowMcp = false
`)

	// Package-level grant applies to servers without overrides.
	d := CheckMcpServer(cfg, "@acme/mcp-pack@0.3.0", "", "@acme/mcp-pack/fine", true, false)
	assert.True(t, d.OK)

	// Per-fqid override wins over the package-level grant.
	d = CheckMcpServer(cfg, "@acme/mcp-pack@0.3.0", "", "@acme/mcp-pack/sketchy", true, false)
	assert.False(t, d.OK)
	assert.Contains(t, d.Reason, "exec not trusted for @acme/mcp-pack/sketchy")
}

func TestCheckMcpServerWorkspace(t *testing.T) {
	cfg := loadTrust(t, `version = 1

["__workspace__"]
allowExec = true
allowMcp = true
`)
	d := CheckMcpServer(cfg, WorkspaceKey, "", "workspace/zeta", true, false)
	assert.True(t, d.OK)

	empty := &types.TrustConfig{Version: 1, Packages: map[string]types.TrustEntry{}}
	d = CheckMcpServer(empty, WorkspaceKey, "", "workspace/zeta", true, false)
	assert.False(t, d.OK)
}

func TestLoadValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trust.toml")

	require.NoError(t, os.WriteFile(path, []byte("version = 2\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version = 1\n[\"a@1.0.0\"]\nshiny = true\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys: shiny")
}

func TestAllowRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trust.toml")

	yes := true
	require.NoError(t, Allow(path, "@acme/exec@1.0.0", AllowOptions{AllowExec: &yes}))
	require.NoError(t, Allow(path, "@acme/mcp@2.0.0", AllowOptions{AllowMcp: &yes, Integrity: "sha256:abcd"}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `version = 1

["@acme/exec@1.0.0"]
allowExec = true

["@acme/mcp@2.0.0"]
allowMcp = true

["@acme/mcp@2.0.0".digest]
integrity = "sha256:abcd"
`
	assert.Equal(t, want, string(got))

	cfg, err := Load(path)
	require.NoError(t, err)
	d := CheckPackage(cfg, "@acme/exec@1.0.0", "", true, false)
	assert.True(t, d.OK)
	d = CheckPackage(cfg, "@acme/mcp@2.0.0", "sha256:abcd", false, true)
	assert.True(t, d.OK)

	existed, err := Revoke(path, "@acme/exec@1.0.0")
	require.NoError(t, err)
	assert.True(t, existed)

	cfg, err = Load(path)
	require.NoError(t, err)
	d = CheckPackage(cfg, "@acme/exec@1.0.0", "", true, false)
	assert.False(t, d.OK)
}
