package trust

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smarty-pants-inc/botpack/pkg/manifest"
)

// Deterministic editing + rewriting of .botpack/trust.toml. Like the
// manifest rewriter, comments are not preserved: entries are re-emitted
// sorted by package key with a stable key order.

// AllowOptions describes a grant to record for a package key.
type AllowOptions struct {
	AllowExec *bool
	AllowMcp  *bool
	Integrity string // when non-empty, pins the entry to this digest
}

func loadTrustRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{"version": int64(1)}, nil
		}
		return nil, &manifest.ValidationError{Path: path, Message: "unable to read file: " + err.Error()}
	}
	raw, err := manifest.ParseBytes(path, data)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Allow records a trust grant for pkgKey and rewrites trust.toml.
func Allow(path, pkgKey string, opts AllowOptions) error {
	data, err := loadTrustRaw(path)
	if err != nil {
		return err
	}
	if _, ok := data["version"]; !ok {
		data["version"] = int64(1)
	}

	entry := map[string]any{}
	if raw, ok := data[pkgKey]; ok {
		tbl, ok := raw.(map[string]any)
		if !ok {
			return validationErrf(path, "%s: expected table", pkgKey)
		}
		entry = tbl
	}

	if opts.AllowExec != nil {
		entry["allowExec"] = *opts.AllowExec
	}
	if opts.AllowMcp != nil {
		entry["allowMcp"] = *opts.AllowMcp
	}
	if opts.Integrity != "" {
		digest := map[string]any{}
		if raw, ok := entry["digest"]; ok {
			tbl, ok := raw.(map[string]any)
			if !ok {
				return validationErrf(path, "%s.digest: expected table", pkgKey)
			}
			digest = tbl
		}
		digest["integrity"] = opts.Integrity
		entry["digest"] = digest
	}

	data[pkgKey] = entry
	return saveTrust(path, data)
}

// Revoke removes a trust entry and rewrites trust.toml. Reports whether
// the entry existed.
func Revoke(path, pkgKey string) (bool, error) {
	data, err := loadTrustRaw(path)
	if err != nil {
		return false, err
	}
	_, existed := data[pkgKey]
	delete(data, pkgKey)
	if _, ok := data["version"]; !ok {
		data["version"] = int64(1)
	}
	return existed, saveTrust(path, data)
}

func saveTrust(path string, data map[string]any) error {
	var lines []string
	lines = append(lines, "version = 1")

	var pkgKeys []string
	for k := range data {
		if k != "version" {
			pkgKeys = append(pkgKeys, k)
		}
	}
	sort.Strings(pkgKeys)

	for _, pkgKey := range pkgKeys {
		entry, ok := data[pkgKey].(map[string]any)
		if !ok {
			return validationErrf(path, "%s: expected table", pkgKey)
		}

		lines = append(lines, "", "["+quote(pkgKey)+"]")
		if v, ok := entry["allowExec"].(bool); ok {
			lines = append(lines, "allowExec = "+boolStr(v))
		}
		if v, ok := entry["allowMcp"].(bool); ok {
			lines = append(lines, "allowMcp = "+boolStr(v))
		}

		if digestRaw, ok := entry["digest"]; ok {
			digest, ok := digestRaw.(map[string]any)
			if !ok {
				return validationErrf(path, "%s.digest: expected table", pkgKey)
			}
			integrity, ok := digest["integrity"].(string)
			if !ok {
				return validationErrf(path, "%s.digest.integrity: required", pkgKey)
			}
			lines = append(lines, "", "["+quote(pkgKey)+".digest]")
			lines = append(lines, "integrity = "+quote(integrity))
		}

		if mcpRaw, ok := entry["mcp"]; ok {
			mcp, ok := mcpRaw.(map[string]any)
			if !ok {
				return validationErrf(path, "%s.mcp: expected table", pkgKey)
			}
			var serverIDs []string
			for id := range mcp {
				serverIDs = append(serverIDs, id)
			}
			sort.Strings(serverIDs)
			for _, id := range serverIDs {
				srv, ok := mcp[id].(map[string]any)
				if !ok {
					return validationErrf(path, "%s.mcp.%s: expected table", pkgKey, id)
				}
				lines = append(lines, "", "["+quote(pkgKey)+".mcp."+quote(id)+"]")
				if v, ok := srv["allowExec"].(bool); ok {
					lines = append(lines, "allowExec = "+boolStr(v))
				}
				if v, ok := srv["allowMcp"].(bool); ok {
					lines = append(lines, "allowMcp = "+boolStr(v))
				}
			}
		}
	}

	text := strings.Join(lines, "\n") + "\n"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func boolStr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
