package trust

import (
	"fmt"
	"os"

	"github.com/smarty-pants-inc/botpack/pkg/manifest"
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

// WorkspaceKey is the reserved trust key for first-party (repo-local)
// assets. The trust.toml schema accepts arbitrary string keys, so the
// workspace is represented with a reserved key rather than a fake
// package version.
const WorkspaceKey = "__workspace__"

// Decision is the outcome of a trust check. Non-ok decisions carry a
// human-actionable reason and are reported, not thrown.
type Decision struct {
	OK     bool
	Reason string
}

func allow() Decision {
	return Decision{OK: true}
}

func deny(format string, args ...any) Decision {
	return Decision{OK: false, Reason: fmt.Sprintf(format, args...)}
}

// Load reads and validates .botpack/trust.toml. A missing file yields an
// empty config: nothing is trusted by default.
func Load(path string) (*types.TrustConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &types.TrustConfig{Version: 1, Packages: map[string]types.TrustEntry{}}, nil
	}
	raw, err := manifest.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return parseTrust(path, raw)
}

// CheckPackage evaluates trust for a whole package at install time.
//
// A package that needs exec or mcp and has no trust entry is denied. A
// pinned digest that does not match the observed integrity is a hard
// deny, never silently accepted.
func CheckPackage(cfg *types.TrustConfig, pkgKey, integrity string, needsExec, needsMcp bool) Decision {
	entry, ok := cfg.Packages[pkgKey]
	if !ok {
		if needsExec || needsMcp {
			return deny("%s: requires trust for exec/mcp", pkgKey)
		}
		return allow()
	}

	if integrity != "" && entry.Digest != nil && entry.Digest.Integrity != integrity {
		return deny("%s: trust.digest mismatch (trust=%s, got=%s)", pkgKey, entry.Digest.Integrity, integrity)
	}

	if needsExec && !entry.AllowExec {
		return deny("%s: exec not trusted", pkgKey)
	}
	if needsMcp && !entry.AllowMcp {
		return deny("%s: mcp not trusted", pkgKey)
	}
	return allow()
}

// CheckMcpServer evaluates trust for a single MCP server coming from a
// package (or the workspace). Trust is keyed by package and may include
// per-server overrides under entry.mcp[<fqid>].
func CheckMcpServer(cfg *types.TrustConfig, pkgKey, integrity, fqid string, needsExec, needsMcp bool) Decision {
	entry, ok := cfg.Packages[pkgKey]
	if !ok {
		if needsExec || needsMcp {
			return deny("%s: requires trust for exec/mcp", pkgKey)
		}
		return allow()
	}

	if integrity != "" && entry.Digest != nil && entry.Digest.Integrity != integrity {
		return deny("%s: trust.digest mismatch (trust=%s, got=%s)", pkgKey, entry.Digest.Integrity, integrity)
	}

	allowExec := entry.AllowExec
	allowMcp := entry.AllowMcp
	if override, ok := entry.Mcp[fqid]; ok {
		allowExec = override.AllowExec
		allowMcp = override.AllowMcp
	}

	if needsExec && !allowExec {
		return deny("%s: exec not trusted for %s", pkgKey, fqid)
	}
	if needsMcp && !allowMcp {
		return deny("%s: mcp not trusted for %s", pkgKey, fqid)
	}
	return allow()
}
