package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/smarty-pants-inc/botpack/pkg/assets"
	"github.com/smarty-pants-inc/botpack/pkg/lock"
	"github.com/smarty-pants-inc/botpack/pkg/log"
	"github.com/smarty-pants-inc/botpack/pkg/manifest"
	"github.com/smarty-pants-inc/botpack/pkg/metrics"
	"github.com/smarty-pants-inc/botpack/pkg/paths"
	"github.com/smarty-pants-inc/botpack/pkg/pkgs"
	"github.com/smarty-pants-inc/botpack/pkg/store"
	"github.com/smarty-pants-inc/botpack/pkg/trust"
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

// targetRoots maps target names to their root directory under the
// project root.
var targetRoots = map[string]string{
	"claude":     ".claude",
	"amp":        ".agents",
	"droid":      ".factory",
	"letta-code": ".letta",
}

// Targets returns the supported target names, sorted.
func Targets() []string {
	out := make([]string, 0, len(targetRoots))
	for t := range targetRoots {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Options configures a sync invocation.
type Options struct {
	Root         string
	ManifestPath string // default: paths.ManifestPath(Root)
	Store        *store.Store
	DryRun       bool
	Clean        bool
	Force        bool
}

// Result is the outcome of one per-target sync.
type Result struct {
	Target          string
	Created         []string
	Updated         []string
	Removed         []string
	Conflicts       []string
	Blocked         []string
	ConflictRecords []ConflictRecord
}

// sourceType values recorded in sync state.
const (
	sourceAssetsDir = "assets_dir"
	sourcePkg       = "pkg"
)

type pkgIndex struct {
	key       string
	name      string
	prefix    string
	integrity string
	root      string
	idx       assets.Index
}

// engine carries the per-invocation state for one target sync.
type engine struct {
	target string
	root   string

	prev map[string]pathState
	next map[string]pathState

	res    *Result
	dryRun bool
	force  bool
}

// Run syncs assets to one target as a single logical transaction:
// gather -> plan -> drift-check -> commit. Conflicting paths are never
// written; they stay at their last-known-good bytes and are reported.
func Run(target string, opts Options) (*Result, error) {
	rootDirName, ok := targetRoots[target]
	if !ok {
		return nil, fmt.Errorf("unsupported target: %q", target)
	}

	manifestPath := opts.ManifestPath
	if manifestPath == "" {
		manifestPath = paths.ManifestPath(opts.Root)
	}
	cfg, err := manifest.Parse(manifestPath)
	if err != nil {
		return nil, err
	}

	assetsDir := cfg.Assets.Dir
	if !filepath.IsAbs(assetsDir) {
		assetsDir = filepath.Join(opts.Root, assetsDir)
	}

	metrics.SyncRunsTotal.WithLabelValues(target).Inc()
	logger := log.For("sync").With().Str("target", target).Logger()
	logger.Debug().
		Str("sync_id", uuid.NewString()).
		Str("assets_dir", assetsDir).
		Bool("dry_run", opts.DryRun).
		Msg("starting sync")

	if target == "letta-code" {
		return runLetta(cfg, assetsDir, opts)
	}

	st := opts.Store
	if st == nil {
		if st, err = store.Default(); err != nil {
			return nil, err
		}
	}

	trustCfg, err := trust.Load(paths.TrustPath(opts.Root))
	if err != nil {
		return nil, err
	}

	var lf *lock.Lockfile
	lockPath := paths.LockPath(opts.Root)
	if _, statErr := os.Stat(lockPath); statErr == nil {
		if lf, err = lock.Load(lockPath); err != nil {
			return nil, err
		}
	}

	res := &Result{Target: target}
	e := &engine{
		target: target,
		root:   filepath.Join(opts.Root, rootDirName),
		prev:   loadState(statePath(paths.StateDir(opts.Root), target)).Paths,
		next:   map[string]pathState{},
		res:    res,
		dryRun: opts.DryRun,
		force:  opts.Force,
	}

	// Stable project-local package roots for shared assets.
	if lf != nil {
		pr, err := pkgs.Materialize(pkgs.Options{
			Lock:      lf,
			Store:     st,
			Root:      paths.PkgsDir(opts.Root),
			StatePath: filepath.Join(paths.StateDir(opts.Root), "pkgs.json"),
			Mode:      cfg.Sync.LinkMode,
			DryRun:    opts.DryRun,
			Clean:     opts.Clean,
			Force:     opts.Force,
		})
		if err != nil {
			return nil, err
		}
		res.Created = append(res.Created, pr.Created...)
		res.Updated = append(res.Updated, pr.Updated...)
		res.Removed = append(res.Removed, pr.Removed...)
		res.Conflicts = append(res.Conflicts, pr.Conflicts...)
	}

	assetsIdx := assets.Scan(assetsDir)
	assetsPrefix := assetsDirPrefix(cfg)

	var pkgIndices []pkgIndex
	if lf != nil {
		keys := make([]string, 0, len(lf.Packages))
		for k := range lf.Packages {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			pkg := lf.Packages[key]
			if pkg.Integrity == "" {
				continue
			}
			entry, ok := st.Entry(pkg.Integrity)
			if !ok {
				// Store drift; nothing to project from a missing entry.
				logger.Warn().Str("pkg_key", key).Msg("store entry missing, skipping package")
				continue
			}
			name, _, err := lock.SplitPackageKey(key)
			if err != nil {
				return nil, err
			}
			pkgIndices = append(pkgIndices, pkgIndex{
				key:       key,
				name:      name,
				prefix:    sanitizePackagePrefix(name),
				integrity: pkg.Integrity,
				root:      entry.Path,
				idx:       assets.Scan(entry.Path),
			})
		}
	}

	// Skills: first-party, then packages.
	for _, s := range assetsIdx.Skills {
		e.syncSkill(assetsPrefix, s, sourceAssetsDir, "")
	}
	for _, pi := range pkgIndices {
		for _, s := range pi.idx.Skills {
			e.syncSkill(pi.prefix, s, sourcePkg, pi.name)
		}
	}

	// Commands.
	for _, c := range assetsIdx.Commands {
		e.syncFlat("commands", assetsPrefix, c.ID, c.Path, "command", sourceAssetsDir, "")
	}
	for _, pi := range pkgIndices {
		for _, c := range pi.idx.Commands {
			e.syncFlat("commands", pi.prefix, c.ID, c.Path, "command", sourcePkg, pi.name)
		}
	}

	// Agents.
	for _, a := range assetsIdx.Agents {
		e.syncFlat("agents", assetsPrefix, a.ID, a.Path, "agent", sourceAssetsDir, "")
	}
	for _, pi := range pkgIndices {
		for _, a := range pi.idx.Agents {
			e.syncFlat("agents", pi.prefix, a.ID, a.Path, "agent", sourcePkg, pi.name)
		}
	}

	// MCP document. First-party servers are namespaced by the assets name,
	// or "workspace" when none is set.
	mcpNamespace := cfg.Assets.Name
	if mcpNamespace == "" {
		mcpNamespace = "workspace"
	}
	if err := e.syncMcp(assetsDir, mcpNamespace, pkgIndices, trustCfg); err != nil {
		return nil, err
	}

	// Clean stale outputs.
	if opts.Clean {
		e.cleanStale()
	}

	stateDir := paths.StateDir(opts.Root)
	if err := writeState(statePath(stateDir, target), syncState{
		Version:   stateVersion,
		Target:    target,
		AssetsDir: assetsDir,
		Paths:     e.next,
	}, opts.DryRun); err != nil {
		return nil, err
	}
	if err := writeConflicts(conflictsPath(stateDir, target), res.ConflictRecords, opts.DryRun); err != nil {
		return nil, err
	}

	countSyncMetrics(res)
	logger.Info().
		Int("created", len(res.Created)).
		Int("updated", len(res.Updated)).
		Int("removed", len(res.Removed)).
		Int("conflicts", len(res.Conflicts)).
		Int("blocked", len(res.Blocked)).
		Msg("sync complete")
	return res, nil
}

func (e *engine) syncSkill(prefix string, s assets.SkillAsset, sourceType, sourceName string) {
	outDir := filepath.Join(e.root, "skills", prefix+"."+s.ID)
	dst := filepath.Join(outDir, "SKILL.md")
	e.syncPath(s.Path, dst, "skill:"+s.ID, sourceType, sourceName)
}

func (e *engine) syncFlat(category, prefix, id, src, assetType, sourceType, sourceName string) {
	dst := filepath.Join(e.root, category, prefix+"."+id+".md")
	e.syncPath(src, dst, assetType+":"+id, sourceType, sourceName)
}

// syncPath applies the per-path state machine for a verbatim source copy:
// absent -> create; equal -> no-op; differing -> update when the current
// bytes still match last-known-good, conflict otherwise (force demotes
// conflicts to updates). On conflict the previous state entry is carried
// forward and the path is not written.
func (e *engine) syncPath(src, dst, addr, sourceType, sourceName string) {
	desired, err := os.ReadFile(src)
	if err != nil {
		// Source disappeared mid-sync; skip the path entirely.
		return
	}
	desiredHash := sha256Bytes(desired)
	next := pathState{
		Src:          src,
		Sha256:       desiredHash,
		SourceType:   sourceType,
		SourceName:   sourceName,
		AssetAddress: addr,
	}

	prevEntry, hasPrev := e.prev[dst]
	current, readErr := os.ReadFile(dst)

	switch {
	case readErr != nil:
		// CREATE
		if err := e.write(dst, desired); err != nil {
			return
		}
		e.res.Created = append(e.res.Created, dst)
		e.next[dst] = next

	case string(current) == string(desired):
		// No-op; carry the (refreshed) state forward.
		e.next[dst] = next

	default:
		currentHash := sha256Bytes(current)
		drifted := !hasPrev || prevEntry.Sha256 == "" || currentHash != prevEntry.Sha256
		if drifted && !e.force {
			e.res.Conflicts = append(e.res.Conflicts, dst)
			rec := ConflictRecord{
				Path:         dst,
				AssetAddress: addr,
				Reason:       "target file modified since last sync",
			}
			if hasPrev {
				rec.LastKnownGoodSha256 = prevEntry.Sha256
				e.next[dst] = prevEntry
			}
			e.res.ConflictRecords = append(e.res.ConflictRecords, rec)
			return
		}
		// UPDATE
		if err := e.write(dst, desired); err != nil {
			return
		}
		e.res.Updated = append(e.res.Updated, dst)
		e.next[dst] = next
	}
}

func (e *engine) write(dst string, data []byte) error {
	if e.dryRun {
		return nil
	}
	return atomicWrite(dst, data)
}

// cleanStale removes paths present in prior state but absent from the
// new plan, unless they drifted, in which case they become conflicts and
// are retained.
func (e *engine) cleanStale() {
	var stale []string
	for p := range e.prev {
		if _, ok := e.next[p]; !ok {
			stale = append(stale, p)
		}
	}
	sort.Strings(stale)

	for _, p := range stale {
		prevEntry := e.prev[p]
		fi, err := os.Lstat(p)
		if err != nil {
			continue
		}
		if fi.IsDir() {
			continue
		}
		currentHash, err := sha256File(p)
		drifted := err != nil || prevEntry.Sha256 == "" || currentHash != prevEntry.Sha256
		if drifted && !e.force {
			e.res.Conflicts = append(e.res.Conflicts, p)
			e.res.ConflictRecords = append(e.res.ConflictRecords, ConflictRecord{
				Path:                p,
				Reason:              "stale file modified since last sync",
				LastKnownGoodSha256: prevEntry.Sha256,
			})
			e.next[p] = prevEntry
			continue
		}
		if !e.dryRun {
			if err := os.Remove(p); err != nil {
				continue
			}
		}
		e.res.Removed = append(e.res.Removed, p)
	}
}

// assetsDirPrefix names first-party outputs: the assets name when set
// (sanitized like a package name), otherwise "assets".
func assetsDirPrefix(cfg *types.Manifest) string {
	if cfg.Assets.Name != "" {
		return sanitizePackagePrefix(cfg.Assets.Name)
	}
	return "assets"
}

// sanitizePackagePrefix makes a package name file-safe:
// "@acme/quality" -> "acme-quality".
func sanitizePackagePrefix(pkgName string) string {
	out := make([]rune, 0, len(pkgName))
	for _, r := range pkgName {
		switch r {
		case '/':
			out = append(out, '-')
		case '@':
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func countSyncMetrics(res *Result) {
	metrics.SyncFilesTotal.WithLabelValues(res.Target, "created").Add(float64(len(res.Created)))
	metrics.SyncFilesTotal.WithLabelValues(res.Target, "updated").Add(float64(len(res.Updated)))
	metrics.SyncFilesTotal.WithLabelValues(res.Target, "removed").Add(float64(len(res.Removed)))
	metrics.SyncFilesTotal.WithLabelValues(res.Target, "conflict").Add(float64(len(res.Conflicts)))
	metrics.SyncFilesTotal.WithLabelValues(res.Target, "blocked").Add(float64(len(res.Blocked)))
}
