package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Deterministic editing + rewriting of the project manifest, backing the
// `botpack add` / `botpack remove` commands. Comments and original
// formatting are not preserved; the file is rewritten in a canonical
// minimal layout with stable ordering.

var editTopAllowed = []string{"version", "assets", "workspace", "dependencies", "sync", "targets", "aliases", "entry"}

// LoadRaw loads the manifest as a loose tree for editing. A missing file
// yields a minimal new manifest.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{"version": int64(1), "dependencies": map[string]any{}}, nil
		}
		return nil, &ValidationError{Path: path, Message: "unable to read file: " + err.Error()}
	}
	return ParseBytes(path, data)
}

// canonicalize validates the schema subset the rewriter understands and
// normalizes legacy [workspace] to [assets].
func canonicalize(path string, data map[string]any) (map[string]any, error) {
	if unknown := unknownKeys(data, editTopAllowed...); len(unknown) > 0 {
		return nil, validationErr(path, "%s", unknownKeysMessage(unknown))
	}
	if _, ok := data["version"]; !ok {
		return nil, validationErr(path, "version: required")
	}
	version, err := requireInt(path, data["version"], "version")
	if err != nil {
		return nil, err
	}

	out := map[string]any{"version": version}

	assetsRaw, hasAssets := data["assets"]
	wsRaw, hasWorkspace := data["workspace"]
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
		out["assets"] = tbl
	}

	deps := map[string]any{}
	if depsRaw, ok := data["dependencies"]; ok {
		tbl, err := requireTable(path, depsRaw, "dependencies")
		if err != nil {
			return nil, err
		}
		deps = tbl
	}
	out["dependencies"] = deps

	if syncRaw, ok := data["sync"]; ok {
		tbl, err := requireTable(path, syncRaw, "sync")
		if err != nil {
			return nil, err
		}
		out["sync"] = tbl
	}
	if targetsRaw, ok := data["targets"]; ok {
		tbl, err := requireTable(path, targetsRaw, "targets")
		if err != nil {
			return nil, err
		}
		for name, tRaw := range tbl {
			if _, err := requireTable(path, tRaw, "targets."+name); err != nil {
				return nil, err
			}
		}
		out["targets"] = tbl
	}
	if aliasesRaw, ok := data["aliases"]; ok {
		tbl, err := requireTable(path, aliasesRaw, "aliases")
		if err != nil {
			return nil, err
		}
		out["aliases"] = tbl
	}
	if entryRaw, ok := data["entry"]; ok {
		tbl, err := requireTable(path, entryRaw, "entry")
		if err != nil {
			return nil, err
		}
		out["entry"] = tbl
	}
	return out, nil
}

// AddPathDependency adds or replaces a local path dependency and rewrites
// the manifest.
func AddPathDependency(path, name, depPath string) error {
	return editDependencies(path, func(deps map[string]any) {
		deps[name] = map[string]any{"path": depPath}
	})
}

// AddGitDependency adds or replaces a git dependency and rewrites the
// manifest.
func AddGitDependency(path, name, url, rev string) error {
	return editDependencies(path, func(deps map[string]any) {
		spec := map[string]any{"git": url}
		if rev != "" {
			spec["rev"] = rev
		}
		deps[name] = spec
	})
}

// AddSemverDependency adds or replaces a version-spec dependency (e.g.
// "^1") and rewrites the manifest.
func AddSemverDependency(path, name, spec string) error {
	return editDependencies(path, func(deps map[string]any) {
		deps[name] = spec
	})
}

// RemoveDependency removes a dependency and rewrites the manifest.
// Reports whether the dependency was present.
func RemoveDependency(path, name string) (bool, error) {
	existed := false
	err := editDependencies(path, func(deps map[string]any) {
		_, existed = deps[name]
		delete(deps, name)
	})
	return existed, err
}

func editDependencies(path string, mutate func(deps map[string]any)) error {
	raw, err := LoadRaw(path)
	if err != nil {
		return err
	}
	data, err := canonicalize(path, raw)
	if err != nil {
		return err
	}
	deps := data["dependencies"].(map[string]any)
	mutate(deps)
	return Save(path, data)
}

// ParseAddSpec splits `name@versionSpec` where the name may itself contain
// `@` (scoped packages), so the split is from the right.
func ParseAddSpec(spec string) (name, version string, err error) {
	s := strings.TrimSpace(spec)
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return "", "", fmt.Errorf("invalid add spec %q (expected name@version)", spec)
	}
	name = strings.TrimSpace(s[:at])
	version = strings.TrimSpace(s[at+1:])
	if name == "" || version == "" {
		return "", "", fmt.Errorf("invalid add spec %q (expected name@version)", spec)
	}
	return name, version, nil
}

// Save writes the manifest in canonical minimal formatting: section order
// version, [assets], [dependencies], [sync], [targets.*], [aliases.*],
// [entry]; dependency keys sorted; inline tables with fixed key order.
func Save(path string, data map[string]any) error {
	d, err := canonicalize(path, data)
	if err != nil {
		return err
	}

	var lines []string
	versionStr, err := tomlValue(d["version"])
	if err != nil {
		return err
	}
	lines = append(lines, "version = "+versionStr)

	if assets, ok := asTable(d["assets"]); ok && len(assets) > 0 {
		lines = append(lines, "", "[assets]")
		for _, k := range []string{"dir", "name", "private"} {
			if v, ok := assets[k]; ok {
				s, err := tomlValue(v)
				if err != nil {
					return err
				}
				lines = append(lines, k+" = "+s)
			}
		}
	}

	deps, _ := asTable(d["dependencies"])
	if len(deps) > 0 {
		lines = append(lines, "", "[dependencies]")
		for _, pkg := range sortedKeys(deps) {
			line, err := renderDependency(path, pkg, deps[pkg])
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}
	}

	if sync, ok := asTable(d["sync"]); ok && len(sync) > 0 {
		lines = append(lines, "", "[sync]")
		for _, k := range []string{"onAdd", "onInstall", "catalog", "linkMode"} {
			if v, ok := sync[k]; ok {
				s, err := tomlValue(v)
				if err != nil {
					return err
				}
				lines = append(lines, k+" = "+s)
			}
		}
	}

	if targets, ok := asTable(d["targets"]); ok && len(targets) > 0 {
		targetKeyOrder := []string{
			"root", "skillsDir", "commandsDir", "agentsDir", "mcpOut",
			"policyMode", "skillsFallbackRoot", "skillsFallbackDir",
		}
		for _, tname := range sortedKeys(targets) {
			tcfg, ok := asTable(targets[tname])
			if !ok {
				return validationErr(path, "targets.%s: expected table", tname)
			}
			lines = append(lines, "", "[targets."+tname+"]")
			for _, k := range targetKeyOrder {
				if v, ok := tcfg[k]; ok {
					s, err := tomlValue(v)
					if err != nil {
						return err
					}
					lines = append(lines, k+" = "+s)
				}
			}
		}
	}

	if aliases, ok := asTable(d["aliases"]); ok && len(aliases) > 0 {
		for _, section := range []string{"skills", "commands"} {
			tbl, ok := asTable(aliases[section])
			if !ok || len(tbl) == 0 {
				continue
			}
			lines = append(lines, "", "[aliases."+section+"]")
			for _, k := range sortedKeys(tbl) {
				s, err := tomlValue(tbl[k])
				if err != nil {
					return err
				}
				lines = append(lines, k+" = "+s)
			}
		}
	}

	if entry, ok := asTable(d["entry"]); ok && len(entry) > 0 {
		lines = append(lines, "", "[entry]")
		for _, k := range []string{"agent", "target"} {
			if v, ok := entry[k]; ok {
				s, err := tomlValue(v)
				if err != nil {
					return err
				}
				lines = append(lines, k+" = "+s)
			}
		}
	}

	text := strings.Join(lines, "\n") + "\n"
	return atomicWriteFile(path, []byte(text))
}

func renderDependency(path, pkg string, spec any) (string, error) {
	key := tomlBasicString(pkg)
	if s, ok := spec.(string); ok {
		return key + " = " + tomlBasicString(s), nil
	}
	tbl, ok := asTable(spec)
	if !ok {
		return "", validationErr(path, "dependencies.%s: expected string or table", pkg)
	}

	var allowed, keyOrder []string
	switch {
	case tbl["path"] != nil:
		allowed, keyOrder = []string{"path"}, []string{"path"}
	case tbl["git"] != nil:
		allowed, keyOrder = []string{"git", "rev"}, []string{"git", "rev"}
	case tbl["url"] != nil:
		allowed, keyOrder = []string{"url", "integrity"}, []string{"url", "integrity"}
	default:
		return "", validationErr(path,
			"dependencies.%s: unsupported spec; expected string or one of {git=...}, {path=...}, {url=...}", pkg)
	}
	if unknown := unknownKeys(tbl, allowed...); len(unknown) > 0 {
		return "", validationErr(path, "dependencies.%s: %s", pkg, unknownKeysMessage(unknown))
	}
	inline, err := tomlInlineTable(tbl, keyOrder)
	if err != nil {
		return "", err
	}
	return key + " = " + inline, nil
}

func atomicWriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
