package sync

import (
	"path/filepath"

	"github.com/smarty-pants-inc/botpack/pkg/letta"
	"github.com/smarty-pants-inc/botpack/pkg/paths"
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

// runLetta handles the letta-code target: a managed settings.json only,
// with settings.local.json always preserved.
func runLetta(cfg *types.Manifest, assetsDir string, opts Options) (*Result, error) {
	res := &Result{Target: "letta-code"}

	settings := letta.Settings{DefaultAgent: cfg.Entry.Agent}
	mr, err := letta.Materialize(opts.Root, settings, opts.DryRun, opts.Force)
	if err != nil {
		return nil, err
	}
	res.Created = append(res.Created, mr.Created...)
	res.Updated = append(res.Updated, mr.Updated...)

	stateDir := paths.StateDir(opts.Root)
	prevState := loadState(statePath(stateDir, "letta-code"))
	nextPaths := prevState.Paths
	settingsPath := filepath.Join(opts.Root, ".letta", "settings.json")

	for _, c := range mr.Conflicts {
		res.Conflicts = append(res.Conflicts, settingsPath)
		rec := ConflictRecord{
			Path:         settingsPath,
			AssetAddress: "letta-code:settings",
			Reason:       c,
		}
		if prev, ok := prevState.Paths[settingsPath]; ok {
			rec.LastKnownGoodSha256 = prev.Sha256
		}
		res.ConflictRecords = append(res.ConflictRecords, rec)
	}

	if !opts.DryRun && (len(mr.Created) > 0 || len(mr.Updated) > 0) {
		if sha, err := sha256File(settingsPath); err == nil {
			nextPaths[settingsPath] = pathState{
				Sha256:       sha,
				SourceType:   sourceAssetsDir,
				AssetAddress: "letta-code:settings",
			}
		}
	}

	if err := writeConflicts(conflictsPath(stateDir, "letta-code"), res.ConflictRecords, opts.DryRun); err != nil {
		return nil, err
	}
	if err := writeState(statePath(stateDir, "letta-code"), syncState{
		Version:   stateVersion,
		Target:    "letta-code",
		AssetsDir: assetsDir,
		Paths:     nextPaths,
	}, opts.DryRun); err != nil {
		return nil, err
	}

	countSyncMetrics(res)
	return res, nil
}
