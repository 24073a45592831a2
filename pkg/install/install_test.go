package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarty-pants-inc/botpack/pkg/lock"
	"github.com/smarty-pants-inc/botpack/pkg/store"
	"github.com/smarty-pants-inc/botpack/pkg/trust"
)

func writePackage(t *testing.T, dir, name, version string, exec bool) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "commands"), 0o755))
	content := "agentpkg = \"1\"\nname = \"" + name + "\"\nversion = \"" + version + "\"\n"
	if exec {
		content += "\n[capabilities]\nexec = true\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentpkg.toml"), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "commands", "hi.md"), []byte("hi"), 0o644))
}

func writeRootManifest(t *testing.T, root, depName, depDir string) {
	t.Helper()
	content := "version = 1\n\n[dependencies]\n\"" + depName + "\" = { path = \"" + depDir + "\" }\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "botpack.toml"), []byte(content), 0o644))
}

func TestInstallPathDependency(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "vendor", "benign")
	writePackage(t, pkgDir, "@acme/benign", "1.0.0", false)
	writeRootManifest(t, root, "@acme/benign", "vendor/benign")

	lockPath, err := Install(Options{Root: root, Store: store.New(t.TempDir())})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "botpack.lock"), lockPath)

	lf, err := lock.Load(lockPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"@acme/benign": "*"}, lf.Dependencies)

	pkg, ok := lf.Packages["@acme/benign@1.0.0"]
	require.True(t, ok)
	assert.Equal(t, "path", pkg.Source["type"])
	assert.NotEmpty(t, pkg.Integrity)
	assert.Equal(t, map[string]bool{"exec": false, "network": false, "mcp": false}, pkg.Capabilities)
}

func TestInstallTrustGate(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "vendor", "exec")
	writePackage(t, pkgDir, "@acme/exec", "1.0.0", true)
	writeRootManifest(t, root, "@acme/exec", "vendor/exec")

	st := store.New(t.TempDir())

	// No trust entry: denial naming the package key.
	_, err := Install(Options{Root: root, Store: st})
	require.Error(t, err)
	var denial *DenialError
	require.ErrorAs(t, err, &denial)
	assert.Contains(t, denial.Reason, "@acme/exec@1.0.0")

	// Grant exec: install succeeds.
	yes := true
	trustPath := filepath.Join(root, ".botpack", "trust.toml")
	require.NoError(t, trust.Allow(trustPath, "@acme/exec@1.0.0", trust.AllowOptions{AllowExec: &yes}))

	lockPath, err := Install(Options{Root: root, Store: st})
	require.NoError(t, err)

	lf, err := lock.Load(lockPath)
	require.NoError(t, err)
	pkg := lf.Packages["@acme/exec@1.0.0"]
	assert.Equal(t, map[string]bool{"exec": true, "network": false, "mcp": false}, pkg.Capabilities)
}

func TestInstallDeterministicLockfile(t *testing.T) {
	root := t.TempDir()
	writePackage(t, filepath.Join(root, "vendor", "a"), "@acme/a", "1.0.0", false)
	writePackage(t, filepath.Join(root, "vendor", "b"), "@acme/b", "2.0.0", false)
	content := `version = 1

[dependencies]
"@acme/a" = { path = "vendor/a" }
"@acme/b" = { path = "vendor/b" }
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "botpack.toml"), []byte(content), 0o644))

	st := store.New(t.TempDir())

	lockPath, err := Install(Options{Root: root, Store: st})
	require.NoError(t, err)
	first, err := os.ReadFile(lockPath)
	require.NoError(t, err)

	_, err = Install(Options{Root: root, Store: st})
	require.NoError(t, err)
	second, err := os.ReadFile(lockPath)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}
