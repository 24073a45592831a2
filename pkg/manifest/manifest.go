package manifest

import (
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

// Parse loads and validates the project manifest (botpack.toml, legacy
// botyard.toml) into the typed config model.
func Parse(path string) (*types.Manifest, error) {
	raw, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return parseManifest(path, raw)
}

func parseManifest(path string, raw map[string]any) (*types.Manifest, error) {
	// "assets" is the current key; "workspace" is the legacy read alias.
	if unknown := unknownKeys(raw,
		"version", "assets", "workspace", "dependencies", "sync", "targets", "aliases", "entry",
	); len(unknown) > 0 {
		return nil, validationErr(path, "%s", unknownKeysMessage(unknown))
	}

	version, err := requireInt(path, raw["version"], "version")
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, validationErr(path, "version: expected 1, got %d", version)
	}

	m := &types.Manifest{
		Version:      version,
		Assets:       types.DefaultAssetsConfig(),
		Dependencies: map[string]types.Dependency{},
		Sync:         types.DefaultSyncConfig(),
		Targets:      map[string]types.TargetConfig{},
	}

	assetsRaw, hasAssets := raw["assets"]
	wsRaw, hasWorkspace := raw["workspace"]
	if hasAssets && hasWorkspace {
		return nil, validationErr(path, "cannot have both [assets] and [workspace]; use [assets]")
	}
	combined := assetsRaw
	if !hasAssets {
		combined = wsRaw
	}
	if combined != nil {
		tbl, err := requireTable(path, combined, "assets")
		if err != nil {
			return nil, err
		}
		if unknown := unknownKeys(tbl, "dir", "name", "private"); len(unknown) > 0 {
			return nil, validationErr(path, "assets: %s", unknownKeysMessage(unknown))
		}
		if v, ok := tbl["dir"]; ok {
			if m.Assets.Dir, err = requireString(path, v, "assets.dir"); err != nil {
				return nil, err
			}
		}
		if v, ok := tbl["name"]; ok {
			if m.Assets.Name, err = requireString(path, v, "assets.name"); err != nil {
				return nil, err
			}
		}
		if v, ok := tbl["private"]; ok {
			if m.Assets.Private, err = requireBool(path, v, "assets.private"); err != nil {
				return nil, err
			}
		}
	}

	if depsRaw, ok := raw["dependencies"]; ok {
		tbl, err := requireTable(path, depsRaw, "dependencies")
		if err != nil {
			return nil, err
		}
		for name, spec := range tbl {
			dep, err := parseDependency(path, name, spec)
			if err != nil {
				return nil, err
			}
			m.Dependencies[name] = dep
		}
	}

	if syncRaw, ok := raw["sync"]; ok {
		tbl, err := requireTable(path, syncRaw, "sync")
		if err != nil {
			return nil, err
		}
		if unknown := unknownKeys(tbl, "onAdd", "onInstall", "catalog", "linkMode"); len(unknown) > 0 {
			return nil, validationErr(path, "sync: %s", unknownKeysMessage(unknown))
		}
		if v, ok := tbl["onAdd"]; ok {
			if m.Sync.OnAdd, err = requireBool(path, v, "sync.onAdd"); err != nil {
				return nil, err
			}
		}
		if v, ok := tbl["onInstall"]; ok {
			if m.Sync.OnInstall, err = requireBool(path, v, "sync.onInstall"); err != nil {
				return nil, err
			}
		}
		if v, ok := tbl["catalog"]; ok {
			if m.Sync.Catalog, err = requireBool(path, v, "sync.catalog"); err != nil {
				return nil, err
			}
		}
		if v, ok := tbl["linkMode"]; ok {
			s, err := requireString(path, v, "sync.linkMode")
			if err != nil {
				return nil, err
			}
			mode := types.LinkMode(s)
			if !types.ValidLinkMode(mode) {
				return nil, validationErr(path, "sync.linkMode: expected one of [auto copy hardlink symlink], got %q", s)
			}
			m.Sync.LinkMode = mode
		}
	}

	if targetsRaw, ok := raw["targets"]; ok {
		tbl, err := requireTable(path, targetsRaw, "targets")
		if err != nil {
			return nil, err
		}
		for name, tRaw := range tbl {
			tTbl, err := requireTable(path, tRaw, "targets."+name)
			if err != nil {
				return nil, err
			}
			tc, err := parseTarget(path, name, tTbl)
			if err != nil {
				return nil, err
			}
			m.Targets[name] = tc
		}
	}

	if aliasesRaw, ok := raw["aliases"]; ok {
		tbl, err := requireTable(path, aliasesRaw, "aliases")
		if err != nil {
			return nil, err
		}
		if unknown := unknownKeys(tbl, "skills", "commands"); len(unknown) > 0 {
			return nil, validationErr(path, "aliases: %s", unknownKeysMessage(unknown))
		}
		if v, ok := tbl["skills"]; ok {
			if m.Aliases.Skills, err = requireStringMap(path, v, "aliases.skills"); err != nil {
				return nil, err
			}
		}
		if v, ok := tbl["commands"]; ok {
			if m.Aliases.Commands, err = requireStringMap(path, v, "aliases.commands"); err != nil {
				return nil, err
			}
		}
	}

	if entryRaw, ok := raw["entry"]; ok {
		tbl, err := requireTable(path, entryRaw, "entry")
		if err != nil {
			return nil, err
		}
		if unknown := unknownKeys(tbl, "agent", "target"); len(unknown) > 0 {
			return nil, validationErr(path, "entry: %s", unknownKeysMessage(unknown))
		}
		if v, ok := tbl["agent"]; ok {
			if m.Entry.Agent, err = requireString(path, v, "entry.agent"); err != nil {
				return nil, err
			}
		}
		if v, ok := tbl["target"]; ok {
			if m.Entry.Target, err = requireString(path, v, "entry.target"); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// parseDependency dispatches on key presence: a bare string is a semver
// spec; tables must be exactly one of {path}, {git, rev?}, {url, integrity?}.
func parseDependency(path, name string, spec any) (types.Dependency, error) {
	if s, ok := spec.(string); ok {
		return types.SemverDependency{Spec: s}, nil
	}
	tbl, ok := asTable(spec)
	if !ok {
		return nil, validationErr(path, "dependencies.%s: expected string or table", name)
	}

	if _, ok := tbl["git"]; ok {
		if unknown := unknownKeys(tbl, "git", "rev"); len(unknown) > 0 {
			return nil, validationErr(path, "dependencies.%s: %s", name, unknownKeysMessage(unknown))
		}
		git, err := requireString(path, tbl["git"], "dependencies."+name+".git")
		if err != nil {
			return nil, err
		}
		rev := ""
		if v, ok := tbl["rev"]; ok {
			if rev, err = requireString(path, v, "dependencies."+name+".rev"); err != nil {
				return nil, err
			}
		}
		return types.GitDependency{Git: git, Rev: rev}, nil
	}

	if _, ok := tbl["path"]; ok {
		if unknown := unknownKeys(tbl, "path"); len(unknown) > 0 {
			return nil, validationErr(path, "dependencies.%s: %s", name, unknownKeysMessage(unknown))
		}
		p, err := requireString(path, tbl["path"], "dependencies."+name+".path")
		if err != nil {
			return nil, err
		}
		return types.PathDependency{Path: p}, nil
	}

	if _, ok := tbl["url"]; ok {
		if unknown := unknownKeys(tbl, "url", "integrity"); len(unknown) > 0 {
			return nil, validationErr(path, "dependencies.%s: %s", name, unknownKeysMessage(unknown))
		}
		url, err := requireString(path, tbl["url"], "dependencies."+name+".url")
		if err != nil {
			return nil, err
		}
		integrity := ""
		if v, ok := tbl["integrity"]; ok {
			if integrity, err = requireString(path, v, "dependencies."+name+".integrity"); err != nil {
				return nil, err
			}
		}
		return types.URLDependency{URL: url, Integrity: integrity}, nil
	}

	return nil, validationErr(path,
		"dependencies.%s: unsupported spec; expected string or one of {git=...}, {path=...}, {url=...}", name)
}

func parseTarget(path, name string, tbl map[string]any) (types.TargetConfig, error) {
	var tc types.TargetConfig
	if unknown := unknownKeys(tbl,
		"root", "skillsDir", "commandsDir", "agentsDir", "mcpOut",
		"policyMode", "skillsFallbackRoot", "skillsFallbackDir",
	); len(unknown) > 0 {
		return tc, validationErr(path, "targets.%s: %s", name, unknownKeysMessage(unknown))
	}

	fields := []struct {
		key string
		dst *string
	}{
		{"root", &tc.Root},
		{"skillsDir", &tc.SkillsDir},
		{"commandsDir", &tc.CommandsDir},
		{"agentsDir", &tc.AgentsDir},
		{"mcpOut", &tc.McpOut},
		{"policyMode", &tc.PolicyMode},
		{"skillsFallbackRoot", &tc.SkillsFallbackRoot},
		{"skillsFallbackDir", &tc.SkillsFallbackDir},
	}
	for _, f := range fields {
		if v, ok := tbl[f.key]; ok {
			s, err := requireString(path, v, "targets."+name+"."+f.key)
			if err != nil {
				return tc, err
			}
			*f.dst = s
		}
	}
	return tc, nil
}
