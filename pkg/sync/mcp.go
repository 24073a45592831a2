package sync

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/smarty-pants-inc/botpack/pkg/mcp"
	"github.com/smarty-pants-inc/botpack/pkg/trust"
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

// syncMcp aggregates first-party and per-package MCP servers into the
// target's mcp.json, trust-gating each server. Denied servers are
// omitted and recorded as blocked; the document itself follows the same
// per-path drift rules as every other output.
func (e *engine) syncMcp(assetsDir, namespace string, pkgIndices []pkgIndex, trustCfg *types.TrustConfig) error {
	var inputs []string
	var servers []mcp.Server

	workspaceServers := filepath.Join(assetsDir, "mcp", "servers.toml")
	if fileExists(workspaceServers) {
		inputs = append(inputs, workspaceServers)
		parsed, err := mcp.ParseServersFile(namespace, workspaceServers)
		if err != nil {
			return err
		}
		for _, s := range parsed {
			decision := trust.CheckMcpServer(trustCfg, trust.WorkspaceKey, "", s.Fqid, s.NeedsExec(), s.NeedsMcp())
			if !decision.OK {
				e.res.Blocked = append(e.res.Blocked, decision.Reason)
				continue
			}
			servers = append(servers, s)
		}
	}

	for _, pi := range pkgIndices {
		serversToml := filepath.Join(pi.root, "mcp", "servers.toml")
		if !fileExists(serversToml) {
			continue
		}
		inputs = append(inputs, serversToml)
		parsed, err := mcp.ParseServersFile(pi.name, serversToml)
		if err != nil {
			return err
		}
		for _, s := range parsed {
			decision := trust.CheckMcpServer(trustCfg, pi.key, pi.integrity, s.Fqid, s.NeedsExec(), s.NeedsMcp())
			if !decision.OK {
				e.res.Blocked = append(e.res.Blocked, decision.Reason)
				continue
			}
			servers = append(servers, s)
		}
	}

	if len(inputs) == 0 {
		return nil
	}

	payload, err := mcp.BuildDocument(servers)
	if err != nil {
		return err
	}

	dst := filepath.Join(e.root, "mcp.json")
	sort.Strings(inputs)
	next := pathState{
		Srcs:         inputs,
		Sha256:       sha256Bytes(payload),
		SourceType:   sourceAssetsDir,
		AssetAddress: "mcp:servers",
	}

	prevEntry, hasPrev := e.prev[dst]
	current, readErr := os.ReadFile(dst)

	switch {
	case readErr != nil:
		if err := e.write(dst, payload); err != nil {
			return err
		}
		e.res.Created = append(e.res.Created, dst)
		e.next[dst] = next

	case string(current) == string(payload):
		e.next[dst] = next

	default:
		currentHash := sha256Bytes(current)
		drifted := !hasPrev || prevEntry.Sha256 == "" || currentHash != prevEntry.Sha256
		if drifted && !e.force {
			e.res.Conflicts = append(e.res.Conflicts, dst)
			rec := ConflictRecord{
				Path:         dst,
				AssetAddress: "mcp:servers",
				Reason:       "mcp.json modified since last sync",
			}
			if hasPrev {
				rec.LastKnownGoodSha256 = prevEntry.Sha256
				e.next[dst] = prevEntry
			}
			e.res.ConflictRecords = append(e.res.ConflictRecords, rec)
			return nil
		}
		if err := e.write(dst, payload); err != nil {
			return err
		}
		e.res.Updated = append(e.res.Updated, dst)
		e.next[dst] = next
	}
	return nil
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
