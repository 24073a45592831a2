package issues

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/smarty-pants-inc/botpack/pkg/lock"
	"github.com/smarty-pants-inc/botpack/pkg/paths"
	"github.com/smarty-pants-inc/botpack/pkg/sync"
	"github.com/smarty-pants-inc/botpack/pkg/trust"
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

// TargetStatus summarizes one target's persisted sync state.
type TargetStatus struct {
	Name       string
	StatePath  string
	Exists     bool
	PathsCount int
	Conflicts  []Conflict
}

// Conflict is a persisted sync conflict with its stable issue id.
type Conflict struct {
	ID     string
	Target string
	Record sync.ConflictRecord
}

// TrustGate is a locked package that needs exec/mcp but is not trusted.
type TrustGate struct {
	ID        string
	PkgKey    string
	NeedsExec bool
	NeedsMcp  bool
	Reason    string
}

// Status aggregates project health without any network access. Formatting
// is the caller's concern; these are plain records.
type Status struct {
	Root           string
	ManifestPath   string
	ManifestExists bool
	LockPath       string
	LockExists     bool
	PackagesCount  int
	Targets        map[string]TargetStatus
	Conflicts      []Conflict
	TrustGates     []TrustGate
	Errors         []string
}

// HasIssues reports whether anything needs user attention.
func (s *Status) HasIssues() bool {
	return len(s.Conflicts) > 0 || len(s.TrustGates) > 0 || len(s.Errors) > 0
}

// Collect gathers status for a project root: manifest and lock presence,
// per-target sync state summaries, persisted conflicts, and trust gates.
func Collect(root string) *Status {
	st := &Status{
		Root:    root,
		Targets: map[string]TargetStatus{},
	}

	st.ManifestPath = paths.ManifestPath(root)
	st.ManifestExists = fileExists(st.ManifestPath)

	st.LockPath = paths.LockPath(root)
	var lf *lock.Lockfile
	if fileExists(st.LockPath) {
		st.LockExists = true
		parsed, err := lock.Load(st.LockPath)
		if err != nil {
			st.Errors = append(st.Errors, err.Error())
		} else {
			lf = parsed
			st.PackagesCount = len(lf.Packages)
		}
	}

	stateDir := paths.StateDir(root)
	for _, target := range sync.Targets() {
		ts := TargetStatus{
			Name:      target,
			StatePath: filepath.Join(stateDir, "sync-"+target+".json"),
		}
		if data, err := os.ReadFile(ts.StatePath); err == nil {
			ts.Exists = true
			var state struct {
				Paths map[string]any `json:"paths"`
			}
			if err := json.Unmarshal(data, &state); err == nil {
				ts.PathsCount = len(state.Paths)
			}
		}
		for _, rec := range sync.LoadConflicts(stateDir, target) {
			c := Conflict{
				ID:     ConflictID(target, rec.Path),
				Target: target,
				Record: rec,
			}
			ts.Conflicts = append(ts.Conflicts, c)
			st.Conflicts = append(st.Conflicts, c)
		}
		st.Targets[target] = ts
	}

	if lf != nil {
		trustCfg, err := trust.Load(paths.TrustPath(root))
		if err != nil {
			st.Errors = append(st.Errors, err.Error())
			trustCfg = &types.TrustConfig{Version: 1, Packages: map[string]types.TrustEntry{}}
		}
		st.TrustGates = collectTrustGates(lf, trustCfg)
	}

	return st
}

func collectTrustGates(lf *lock.Lockfile, trustCfg *types.TrustConfig) []TrustGate {
	var gates []TrustGate
	for _, key := range sortedPackageKeys(lf) {
		pkg := lf.Packages[key]
		needsExec := pkg.Capabilities["exec"]
		needsMcp := pkg.Capabilities["mcp"]
		if !needsExec && !needsMcp {
			continue
		}
		decision := trust.CheckPackage(trustCfg, key, pkg.Integrity, needsExec, needsMcp)
		if decision.OK {
			continue
		}
		gates = append(gates, TrustGate{
			ID:        TrustID(key),
			PkgKey:    key,
			NeedsExec: needsExec,
			NeedsMcp:  needsMcp,
			Reason:    decision.Reason,
		})
	}
	return gates
}

// Explain resolves an issue id back to an actionable description.
func (s *Status) Explain(id string) (string, bool) {
	for _, c := range s.Conflicts {
		if c.ID == id {
			msg := fmt.Sprintf(
				"Sync conflict on target %q: %s\nReason: %s\nResolve by reverting the file or re-running sync with --force.",
				c.Target, c.Record.Path, c.Record.Reason)
			if c.Record.LastKnownGoodSha256 != "" {
				msg += fmt.Sprintf("\nLast-known-good sha256: %s", c.Record.LastKnownGoodSha256)
			}
			return msg, true
		}
	}
	for _, g := range s.TrustGates {
		if g.ID == id {
			return fmt.Sprintf(
				"Package %s declares capabilities (exec=%v, mcp=%v) that are not trusted.\n"+
					"Grant trust in .botpack/trust.toml (botpack trust allow %s) and re-run install.",
				g.PkgKey, g.NeedsExec, g.NeedsMcp, g.PkgKey), true
		}
	}
	return "", false
}

func sortedPackageKeys(lf *lock.Lockfile) []string {
	keys := make([]string, 0, len(lf.Packages))
	for k := range lf.Packages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
