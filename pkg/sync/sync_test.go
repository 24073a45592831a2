package sync

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarty-pants-inc/botpack/pkg/lock"
	"github.com/smarty-pants-inc/botpack/pkg/store"
)

type project struct {
	root  string
	store *store.Store
}

func newProject(t *testing.T) project {
	t.Helper()
	root := t.TempDir()
	manifest := `version = 1

[assets]
dir = ".botpack/workspace"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "botpack.toml"), []byte(manifest), 0o644))
	return project{root: root, store: store.New(t.TempDir())}
}

func (p project) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(p.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (p project) sync(t *testing.T, target string, clean, force bool) *Result {
	t.Helper()
	res, err := Run(target, Options{Root: p.root, Store: p.store, Clean: clean, Force: force})
	require.NoError(t, err)
	return res
}

func TestSyncCreate(t *testing.T) {
	p := newProject(t)
	p.write(t, ".botpack/workspace/commands/hi.md", "hi")

	res := p.sync(t, "claude", false, false)

	out := filepath.Join(p.root, ".claude", "commands", "assets.hi.md")
	assert.Equal(t, []string{out}, res.Created)
	assert.Empty(t, res.Conflicts)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	// Sync state records the written content's SHA-256.
	stateData, err := os.ReadFile(filepath.Join(p.root, ".botpack", "state", "sync-claude.json"))
	require.NoError(t, err)
	var st syncState
	require.NoError(t, json.Unmarshal(stateData, &st))
	assert.Equal(t, 2, st.Version)
	assert.Equal(t, "claude", st.Target)
	entry, ok := st.Paths[out]
	require.True(t, ok)
	assert.Equal(t, sha256Bytes([]byte("hi")), entry.Sha256)
	assert.Equal(t, "command:hi", entry.AssetAddress)
	assert.Equal(t, "assets_dir", entry.SourceType)
}

func TestSyncDriftThenForce(t *testing.T) {
	p := newProject(t)
	p.write(t, ".botpack/workspace/commands/hi.md", "hi")
	p.sync(t, "claude", false, false)

	out := filepath.Join(p.root, ".claude", "commands", "assets.hi.md")
	conflictsFile := filepath.Join(p.root, ".botpack", "state", "conflicts-claude.json")

	// Change the source so a write is needed, then edit the output.
	p.write(t, ".botpack/workspace/commands/hi.md", "hi v2")
	require.NoError(t, os.WriteFile(out, []byte("user edit"), 0o644))

	res := p.sync(t, "claude", false, false)
	assert.Equal(t, []string{out}, res.Conflicts)
	require.Len(t, res.ConflictRecords, 1)
	assert.Equal(t, "command:hi", res.ConflictRecords[0].AssetAddress)
	assert.Equal(t, sha256Bytes([]byte("hi")), res.ConflictRecords[0].LastKnownGoodSha256)

	// User bytes preserved; conflicts file persisted.
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "user edit", string(got))
	_, err = os.Stat(conflictsFile)
	require.NoError(t, err)

	// Force demotes the conflict to an update and clears the record.
	res = p.sync(t, "claude", false, true)
	assert.Equal(t, []string{out}, res.Updated)
	assert.Empty(t, res.Conflicts)

	got, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hi v2", string(got))
	_, err = os.Stat(conflictsFile)
	assert.True(t, os.IsNotExist(err))
}

func TestSyncUpdateAfterCleanEdit(t *testing.T) {
	p := newProject(t)
	p.write(t, ".botpack/workspace/commands/hi.md", "hi")
	p.sync(t, "claude", false, false)

	// Source changes; output untouched by the user: plain UPDATE.
	p.write(t, ".botpack/workspace/commands/hi.md", "hello")
	res := p.sync(t, "claude", false, false)

	out := filepath.Join(p.root, ".claude", "commands", "assets.hi.md")
	assert.Equal(t, []string{out}, res.Updated)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestSyncSkillLayout(t *testing.T) {
	p := newProject(t)
	p.write(t, ".botpack/workspace/skills/hello/SKILL.md", "---\nid: hello\n---\nbody\n")

	res := p.sync(t, "amp", false, false)

	out := filepath.Join(p.root, ".agents", "skills", "assets.hello", "SKILL.md")
	assert.Equal(t, []string{out}, res.Created)
}

func TestSyncCleanRemovesStale(t *testing.T) {
	p := newProject(t)
	p.write(t, ".botpack/workspace/commands/hi.md", "hi")
	p.sync(t, "claude", false, false)

	out := filepath.Join(p.root, ".claude", "commands", "assets.hi.md")
	require.NoError(t, os.Remove(filepath.Join(p.root, ".botpack", "workspace", "commands", "hi.md")))

	res := p.sync(t, "claude", true, false)
	assert.Equal(t, []string{out}, res.Removed)
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestSyncCleanKeepsDriftedStale(t *testing.T) {
	p := newProject(t)
	p.write(t, ".botpack/workspace/commands/hi.md", "hi")
	p.sync(t, "claude", false, false)

	out := filepath.Join(p.root, ".claude", "commands", "assets.hi.md")
	require.NoError(t, os.Remove(filepath.Join(p.root, ".botpack", "workspace", "commands", "hi.md")))
	require.NoError(t, os.WriteFile(out, []byte("user edit"), 0o644))

	res := p.sync(t, "claude", true, false)
	assert.Empty(t, res.Removed)
	assert.Equal(t, []string{out}, res.Conflicts)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "user edit", string(got))
}

func TestSyncPackageAssets(t *testing.T) {
	p := newProject(t)

	// Build a package tree and publish it to the store.
	pkgSrc := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(pkgSrc, "commands"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkgSrc, "commands", "review.md"), []byte("review"), 0o644))
	tree, err := p.store.PutTree(pkgSrc)
	require.NoError(t, err)

	lf := &lock.Lockfile{
		LockfileVersion: 1,
		BotpackVersion:  "0.1.0",
		SpecVersion:     "0.1",
		Dependencies:    map[string]string{"@acme/quality": "*"},
		Packages: map[string]lock.Package{
			"@acme/quality@1.0.0": {
				Source:       map[string]any{"type": "path"},
				Resolved:     map[string]any{},
				Integrity:    tree.Digest,
				Dependencies: map[string]string{},
				Capabilities: map[string]bool{},
			},
		},
	}
	require.NoError(t, lock.Save(filepath.Join(p.root, "botpack.lock"), lf))

	res := p.sync(t, "claude", false, false)

	out := filepath.Join(p.root, ".claude", "commands", "acme-quality.review.md")
	assert.Contains(t, res.Created, out)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "review", string(got))

	// Package also materialized under .botpack/pkgs.
	pkgRoot := filepath.Join(p.root, ".botpack", "pkgs", "@acme", "quality@1.0.0")
	assert.Contains(t, res.Created, pkgRoot)
}

func TestSyncDeterministicResults(t *testing.T) {
	p := newProject(t)
	p.write(t, ".botpack/workspace/commands/b.md", "b")
	p.write(t, ".botpack/workspace/commands/a.md", "a")
	p.write(t, ".botpack/workspace/agents/main.md", "m")

	first := p.sync(t, "droid", false, false)
	require.Len(t, first.Created, 3)
	assert.Equal(t, filepath.Join(p.root, ".factory", "commands", "assets.a.md"), first.Created[0])
	assert.Equal(t, filepath.Join(p.root, ".factory", "commands", "assets.b.md"), first.Created[1])
	assert.Equal(t, filepath.Join(p.root, ".factory", "agents", "assets.main.md"), first.Created[2])
}

func TestSyncUnsupportedTarget(t *testing.T) {
	p := newProject(t)
	_, err := Run("emacs", Options{Root: p.root, Store: p.store})
	assert.Error(t, err)
}
