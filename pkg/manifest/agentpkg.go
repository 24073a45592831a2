package manifest

import (
	"os"
	"path/filepath"

	"github.com/smarty-pants-inc/botpack/pkg/types"
)

// ParsePackage loads and validates a package manifest (agentpkg.toml).
// Accepts either the file itself or the directory containing it.
func ParsePackage(path string) (*types.PackageManifest, error) {
	p := path
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		p = filepath.Join(p, "agentpkg.toml")
	}
	raw, err := LoadFile(p)
	if err != nil {
		return nil, err
	}
	return parsePackage(p, raw)
}

func parsePackage(path string, raw map[string]any) (*types.PackageManifest, error) {
	if unknown := unknownKeys(raw,
		"agentpkg", "name", "version", "description", "license", "repository",
		"compat", "exports", "capabilities",
	); len(unknown) > 0 {
		return nil, validationErr(path, "%s", unknownKeysMessage(unknown))
	}

	var pm types.PackageManifest
	var err error

	if pm.Agentpkg, err = requireString(path, raw["agentpkg"], "agentpkg"); err != nil {
		return nil, err
	}
	if pm.Name, err = requireString(path, raw["name"], "name"); err != nil {
		return nil, err
	}
	if pm.Version, err = requireString(path, raw["version"], "version"); err != nil {
		return nil, err
	}

	optional := []struct {
		key string
		dst *string
	}{
		{"description", &pm.Description},
		{"license", &pm.License},
		{"repository", &pm.Repository},
	}
	for _, f := range optional {
		if v, ok := raw[f.key]; ok {
			if *f.dst, err = requireString(path, v, f.key); err != nil {
				return nil, err
			}
		}
	}

	if v, ok := raw["compat"]; ok {
		tbl, err := requireTable(path, v, "compat")
		if err != nil {
			return nil, err
		}
		if unknown := unknownKeys(tbl, "requires"); len(unknown) > 0 {
			return nil, validationErr(path, "compat: %s", unknownKeysMessage(unknown))
		}
		if rv, ok := tbl["requires"]; ok {
			if pm.Compat.Requires, err = requireStringList(path, rv, "compat.requires"); err != nil {
				return nil, err
			}
		}
	}

	if v, ok := raw["exports"]; ok {
		tbl, err := requireTable(path, v, "exports")
		if err != nil {
			return nil, err
		}
		if unknown := unknownKeys(tbl, "skills", "commands", "agents"); len(unknown) > 0 {
			return nil, validationErr(path, "exports: %s", unknownKeysMessage(unknown))
		}
		if sv, ok := tbl["skills"]; ok {
			if pm.Exports.Skills, err = requireStringList(path, sv, "exports.skills"); err != nil {
				return nil, err
			}
		}
		if cv, ok := tbl["commands"]; ok {
			if pm.Exports.Commands, err = requireStringList(path, cv, "exports.commands"); err != nil {
				return nil, err
			}
		}
		if av, ok := tbl["agents"]; ok {
			if pm.Exports.Agents, err = requireStringList(path, av, "exports.agents"); err != nil {
				return nil, err
			}
		}
	}

	if v, ok := raw["capabilities"]; ok {
		tbl, err := requireTable(path, v, "capabilities")
		if err != nil {
			return nil, err
		}
		if unknown := unknownKeys(tbl, "exec", "network", "mcp"); len(unknown) > 0 {
			return nil, validationErr(path, "capabilities: %s", unknownKeysMessage(unknown))
		}
		if ev, ok := tbl["exec"]; ok {
			if pm.Capabilities.Exec, err = requireBool(path, ev, "capabilities.exec"); err != nil {
				return nil, err
			}
		}
		if nv, ok := tbl["network"]; ok {
			if pm.Capabilities.Network, err = requireBool(path, nv, "capabilities.network"); err != nil {
				return nil, err
			}
		}
		if mv, ok := tbl["mcp"]; ok {
			if pm.Capabilities.Mcp, err = requireBool(path, mv, "capabilities.mcp"); err != nil {
				return nil, err
			}
		}
	}

	return &pm, nil
}
