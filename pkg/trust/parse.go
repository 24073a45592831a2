package trust

import (
	"fmt"

	"github.com/smarty-pants-inc/botpack/pkg/manifest"
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

func parseTrust(path string, raw map[string]any) (*types.TrustConfig, error) {
	if _, ok := raw["version"]; !ok {
		return nil, &manifest.ValidationError{Path: path, Message: "version: required"}
	}
	version, err := intField(path, raw["version"], "version")
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, validationErrf(path, "version: expected 1, got %d", version)
	}

	cfg := &types.TrustConfig{Version: version, Packages: map[string]types.TrustEntry{}}
	for key, v := range raw {
		if key == "version" {
			continue
		}
		tbl, ok := v.(map[string]any)
		if !ok {
			return nil, validationErrf(path, "%s: expected table", key)
		}
		entry, err := parseEntry(path, key, tbl)
		if err != nil {
			return nil, err
		}
		cfg.Packages[key] = entry
	}
	return cfg, nil
}

func parseEntry(path, pkgRef string, tbl map[string]any) (types.TrustEntry, error) {
	var entry types.TrustEntry

	for k := range tbl {
		switch k {
		case "allowExec", "allowMcp", "digest", "mcp":
		default:
			return entry, validationErrf(path, "%s: unknown keys: %s", pkgRef, k)
		}
	}

	var err error
	if v, ok := tbl["allowExec"]; ok {
		if entry.AllowExec, err = boolField(path, v, pkgRef+".allowExec"); err != nil {
			return entry, err
		}
	}
	if v, ok := tbl["allowMcp"]; ok {
		if entry.AllowMcp, err = boolField(path, v, pkgRef+".allowMcp"); err != nil {
			return entry, err
		}
	}

	if v, ok := tbl["digest"]; ok {
		digestTbl, ok := v.(map[string]any)
		if !ok {
			return entry, validationErrf(path, "%s.digest: expected table", pkgRef)
		}
		for k := range digestTbl {
			if k != "integrity" {
				return entry, validationErrf(path, "%s.digest: unknown keys: %s", pkgRef, k)
			}
		}
		integrity, err := stringField(path, digestTbl["integrity"], pkgRef+".digest.integrity")
		if err != nil {
			return entry, err
		}
		entry.Digest = &types.TrustDigest{Integrity: integrity}
	}

	if v, ok := tbl["mcp"]; ok {
		mcpTbl, ok := v.(map[string]any)
		if !ok {
			return entry, validationErrf(path, "%s.mcp: expected table", pkgRef)
		}
		entry.Mcp = map[string]types.McpTrust{}
		for serverID, sv := range mcpTbl {
			serverTbl, ok := sv.(map[string]any)
			if !ok {
				return entry, validationErrf(path, "%s.mcp.%s: expected table", pkgRef, serverID)
			}
			var mt types.McpTrust
			for k := range serverTbl {
				switch k {
				case "allowExec", "allowMcp":
				default:
					return entry, validationErrf(path, "%s.mcp.%s: unknown keys: %s", pkgRef, serverID, k)
				}
			}
			if bv, ok := serverTbl["allowExec"]; ok {
				if mt.AllowExec, err = boolField(path, bv, pkgRef+".mcp."+serverID+".allowExec"); err != nil {
					return entry, err
				}
			}
			if bv, ok := serverTbl["allowMcp"]; ok {
				if mt.AllowMcp, err = boolField(path, bv, pkgRef+".mcp."+serverID+".allowMcp"); err != nil {
					return entry, err
				}
			}
			entry.Mcp[serverID] = mt
		}
	}

	return entry, nil
}

func validationErrf(path, format string, args ...any) error {
	return &manifest.ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
}

func intField(path string, v any, where string) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, validationErrf(path, "%s: expected integer", where)
}

func boolField(path string, v any, where string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, validationErrf(path, "%s: expected bool", where)
	}
	return b, nil
}

func stringField(path string, v any, where string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", validationErrf(path, "%s: expected string", where)
	}
	return s, nil
}
