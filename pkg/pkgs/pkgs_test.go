package pkgs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarty-pants-inc/botpack/pkg/lock"
	"github.com/smarty-pants-inc/botpack/pkg/store"
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

func TestKeyRelPath(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "@acme/thing@1.2.3", want: filepath.Join("@acme", "thing@1.2.3")},
		{key: "plain@0.1.0", want: "plain@0.1.0"},
		{key: "no-version", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := KeyRelPath(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fixture struct {
	store     *store.Store
	lf        *lock.Lockfile
	root      string
	statePath string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "commands"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "commands", "hi.md"), []byte("hi"), 0o644))

	s := store.New(t.TempDir())
	tree, err := s.PutTree(src)
	require.NoError(t, err)

	lf := &lock.Lockfile{
		LockfileVersion: 1,
		BotpackVersion:  "0.1.0",
		SpecVersion:     "0.1",
		Dependencies:    map[string]string{},
		Packages: map[string]lock.Package{
			"@acme/pack@1.0.0": {
				Source:       map[string]any{"type": "path"},
				Resolved:     map[string]any{},
				Integrity:    tree.Digest,
				Dependencies: map[string]string{},
				Capabilities: map[string]bool{},
			},
		},
	}

	botpackDir := t.TempDir()
	return fixture{
		store:     s,
		lf:        lf,
		root:      filepath.Join(botpackDir, "pkgs"),
		statePath: filepath.Join(botpackDir, "state", "pkgs.json"),
	}
}

func (f fixture) opts() Options {
	return Options{
		Lock:      f.lf,
		Store:     f.store,
		Root:      f.root,
		StatePath: f.statePath,
		Mode:      types.LinkModeCopy,
	}
}

func TestMaterializeCreateThenNoop(t *testing.T) {
	f := newFixture(t)
	dest := filepath.Join(f.root, "@acme", "pack@1.0.0")

	res, err := Materialize(f.opts())
	require.NoError(t, err)
	assert.Equal(t, []string{dest}, res.Created)

	got, err := os.ReadFile(filepath.Join(dest, "commands", "hi.md"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	// Second pass: content matches, nothing to do.
	res, err = Materialize(f.opts())
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Updated)
	assert.Empty(t, res.Conflicts)
}

func TestMaterializeRepairsOwnedDrift(t *testing.T) {
	f := newFixture(t)
	dest := filepath.Join(f.root, "@acme", "pack@1.0.0")

	_, err := Materialize(f.opts())
	require.NoError(t, err)

	// Drift the owned copy.
	require.NoError(t, os.WriteFile(filepath.Join(dest, "commands", "hi.md"), []byte("edited"), 0o644))

	res, err := Materialize(f.opts())
	require.NoError(t, err)
	assert.Equal(t, []string{dest}, res.Updated)

	got, err := os.ReadFile(filepath.Join(dest, "commands", "hi.md"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestMaterializeForeignDirIsConflict(t *testing.T) {
	f := newFixture(t)
	dest := filepath.Join(f.root, "@acme", "pack@1.0.0")

	// A directory the tool never created.
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "user.txt"), []byte("mine"), 0o644))

	res, err := Materialize(f.opts())
	require.NoError(t, err)
	assert.Equal(t, []string{dest}, res.Conflicts)

	// User data untouched.
	got, err := os.ReadFile(filepath.Join(dest, "user.txt"))
	require.NoError(t, err)
	assert.Equal(t, "mine", string(got))

	// force overwrites.
	opts := f.opts()
	opts.Force = true
	res, err = Materialize(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{dest}, res.Updated)
	_, err = os.Stat(filepath.Join(dest, "user.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestMaterializeCleanRemovesUndesired(t *testing.T) {
	f := newFixture(t)
	dest := filepath.Join(f.root, "@acme", "pack@1.0.0")

	_, err := Materialize(f.opts())
	require.NoError(t, err)

	// Package no longer desired.
	f.lf.Packages = map[string]lock.Package{}
	opts := f.opts()
	opts.Clean = true

	res, err := Materialize(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{dest}, res.Removed)

	_, err = os.Lstat(dest)
	assert.True(t, os.IsNotExist(err))
	// Empty scope dir pruned too, pkgs root retained.
	_, err = os.Lstat(filepath.Join(f.root, "@acme"))
	assert.True(t, os.IsNotExist(err))
}

func TestMaterializeCleanKeepsModifiedOwned(t *testing.T) {
	f := newFixture(t)
	dest := filepath.Join(f.root, "@acme", "pack@1.0.0")

	_, err := Materialize(f.opts())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dest, "commands", "hi.md"), []byte("edited"), 0o644))

	opts := f.opts()
	opts.Lock = &lock.Lockfile{
		LockfileVersion: 1,
		BotpackVersion:  "0.1.0",
		SpecVersion:     "0.1",
		Dependencies:    map[string]string{},
		Packages:        map[string]lock.Package{},
	}
	opts.Clean = true

	res, err := Materialize(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{dest}, res.Conflicts)
	assert.Empty(t, res.Removed)

	// The modified copy is retained.
	got, err := os.ReadFile(filepath.Join(dest, "commands", "hi.md"))
	require.NoError(t, err)
	assert.Equal(t, "edited", string(got))
}
