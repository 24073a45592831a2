package pkgs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smarty-pants-inc/botpack/pkg/lock"
	"github.com/smarty-pants-inc/botpack/pkg/store"
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

// Result reports what the materializer changed.
type Result struct {
	Created   []string
	Updated   []string
	Removed   []string
	Conflicts []string
}

// Options configures one materializer pass.
type Options struct {
	Lock      *lock.Lockfile
	Store     *store.Store
	Root      string // project-local pkgs root (.botpack/pkgs)
	StatePath string // ownership map (.botpack/state/pkgs.json)
	Mode      types.LinkMode
	DryRun    bool
	Clean     bool
	Force     bool
}

type stateEntry struct {
	PkgKey    string `json:"pkgKey"`
	Integrity string `json:"integrity"`
	Mode      string `json:"mode"`
}

type stateFile struct {
	Version int                   `json:"version"`
	Paths   map[string]stateEntry `json:"paths"`
}

// KeyRelPath maps a package key to its human-readable directory path:
// "@acme/thing@1.2.3" -> "@acme/thing@1.2.3" with the scope as a nested
// directory.
func KeyRelPath(pkgKey string) (string, error) {
	name, ver, err := lock.SplitPackageKey(pkgKey)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, p := range strings.Split(name, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("invalid pkg key %q", pkgKey)
	}
	parts[len(parts)-1] = parts[len(parts)-1] + "@" + ver
	return filepath.Join(parts...), nil
}

// Materialize maintains stable, human-readable package roots under
// <project>/.botpack/pkgs/ for every installed package whose store entry
// exists.
//
// Destinations created by a previous pass are tool-owned (tracked in the
// ownership map) and repaired when drifted. A pre-existing destination
// that is NOT owned is a conflict unless force is set: user data is never
// silently overwritten. With clean, owned destinations whose package is
// no longer desired are removed and empty parents pruned.
func Materialize(opts Options) (Result, error) {
	var res Result

	state, err := loadState(opts.StatePath)
	if err != nil {
		return res, err
	}
	prev := state.Paths
	next := map[string]stateEntry{}

	type desiredEntry struct {
		pkgKey    string
		integrity string
	}
	desired := map[string]desiredEntry{}
	if opts.Lock != nil {
		for pkgKey, pkg := range opts.Lock.Packages {
			if pkg.Integrity == "" {
				continue
			}
			if _, ok := opts.Store.Entry(pkg.Integrity); !ok {
				continue
			}
			rel, err := KeyRelPath(pkgKey)
			if err != nil {
				return res, err
			}
			dest := filepath.Join(opts.Root, rel)
			desired[dest] = desiredEntry{pkgKey: pkgKey, integrity: pkg.Integrity}
		}
	}

	var destPaths []string
	for dest := range desired {
		destPaths = append(destPaths, dest)
	}
	sort.Strings(destPaths)

	for _, dest := range destPaths {
		spec := desired[dest]
		storePath := opts.Store.EntryPath(spec.integrity)

		prevEntry, owned := prev[dest]
		preExists := pathExists(dest)

		if preExists {
			if !owned && !opts.Force {
				res.Conflicts = append(res.Conflicts, dest)
				continue
			}
			if isCorrect(dest, spec.integrity, storePath) {
				mode := prevEntry.Mode
				next[dest] = stateEntry{PkgKey: spec.pkgKey, Integrity: spec.integrity, Mode: mode}
				continue
			}
			// Owned but drifted or pointing at the wrong entry: repair.
		}

		used := opts.Mode
		if !opts.DryRun {
			used, err = store.Materialize(store.StoredTree{Digest: spec.integrity, Path: storePath}, dest, opts.Mode)
			if err != nil {
				return res, fmt.Errorf("materializing %s: %w", spec.pkgKey, err)
			}
		}

		if preExists {
			res.Updated = append(res.Updated, dest)
		} else {
			res.Created = append(res.Created, dest)
		}
		next[dest] = stateEntry{PkgKey: spec.pkgKey, Integrity: spec.integrity, Mode: string(used)}
	}

	if opts.Clean {
		var stale []string
		for dest := range prev {
			if _, ok := next[dest]; !ok {
				stale = append(stale, dest)
			}
		}
		sort.Strings(stale)

		for _, dest := range stale {
			prevEntry := prev[dest]
			if !pathExists(dest) {
				continue
			}
			storePath := opts.Store.EntryPath(prevEntry.Integrity)
			if prevEntry.Integrity != "" && pathExists(storePath) && !opts.Force {
				// Refuse to delete a destination that was modified.
				if !isCorrect(dest, prevEntry.Integrity, storePath) {
					res.Conflicts = append(res.Conflicts, dest)
					next[dest] = prevEntry
					continue
				}
			}
			if !opts.DryRun {
				if err := rmAny(dest); err != nil {
					return res, err
				}
				pruneEmptyParents(dest, opts.Root)
			}
			res.Removed = append(res.Removed, dest)
		}
	}

	state.Version = 1
	state.Paths = next
	if err := writeState(opts.StatePath, state, opts.DryRun); err != nil {
		return res, err
	}
	return res, nil
}

// isCorrect reports whether dest already matches the requested integrity:
// either a symlink resolving to the store entry, or a directory whose
// tree digest equals the integrity.
func isCorrect(dest, integrity, storePath string) bool {
	fi, err := os.Lstat(dest)
	if err != nil {
		return false
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(dest)
		if err != nil {
			return false
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(dest), target)
		}
		resolved, err := filepath.EvalSymlinks(target)
		if err != nil {
			return false
		}
		wantResolved, err := filepath.EvalSymlinks(storePath)
		if err != nil {
			return false
		}
		return resolved == wantResolved
	}
	if fi.IsDir() {
		d, err := store.TreeDigest(dest)
		if err != nil {
			return false
		}
		return d == integrity
	}
	return false
}

func loadState(path string) (stateFile, error) {
	empty := stateFile{Version: 1, Paths: map[string]stateEntry{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return empty, nil
		}
		return empty, err
	}
	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil || state.Version != 1 {
		return empty, nil
	}
	if state.Paths == nil {
		state.Paths = map[string]stateEntry{}
	}
	return state, nil
}

func writeState(path string, state stateFile, dryRun bool) error {
	if dryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func pruneEmptyParents(dest, stop string) {
	stopAbs, err := filepath.Abs(stop)
	if err != nil {
		return
	}
	cur := filepath.Dir(dest)
	for {
		curAbs, err := filepath.Abs(cur)
		if err != nil {
			return
		}
		if curAbs == stopAbs || !strings.HasPrefix(curAbs, stopAbs+string(filepath.Separator)) {
			return
		}
		if err := os.Remove(curAbs); err != nil {
			return
		}
		cur = filepath.Dir(cur)
	}
}

func rmAny(p string) error {
	fi, err := os.Lstat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.IsDir() {
		return os.RemoveAll(p)
	}
	return os.Remove(p)
}

func pathExists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
