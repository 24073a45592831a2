package catalog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/smarty-pants-inc/botpack/pkg/assets"
)

// Version is the catalog schema version.
const Version = 1

// defaultGeneratedAt pins the timestamp so catalog output is a pure
// function of the scanned assets.
const defaultGeneratedAt = "1970-01-01T00:00:00Z"

// Catalog is the human-readable asset inventory written to
// .botpack/catalog.json.
type Catalog struct {
	Version         int
	GeneratedAt     string
	WorkspaceDir    string
	WorkspaceAssets assets.Index
	Packages        []map[string]any
}

// Generate builds a catalog for the scanned workspace assets.
func Generate(workspaceDir string, idx assets.Index) Catalog {
	return Catalog{
		Version:         Version,
		GeneratedAt:     defaultGeneratedAt,
		WorkspaceDir:    workspaceDir,
		WorkspaceAssets: idx,
		Packages:        []map[string]any{},
	}
}

// Marshal renders canonical catalog JSON (sorted keys, 2-space indent,
// trailing newline).
func Marshal(c Catalog) ([]byte, error) {
	skills := make([]map[string]any, 0, len(c.WorkspaceAssets.Skills))
	for _, s := range c.WorkspaceAssets.Skills {
		skills = append(skills, skillToJSON(s))
	}
	commands := make([]map[string]any, 0, len(c.WorkspaceAssets.Commands))
	for _, cmd := range c.WorkspaceAssets.Commands {
		commands = append(commands, map[string]any{"id": cmd.ID, "path": cmd.Path})
	}
	agents := make([]map[string]any, 0, len(c.WorkspaceAssets.Agents))
	for _, a := range c.WorkspaceAssets.Agents {
		agents = append(agents, map[string]any{"id": a.ID, "path": a.Path})
	}

	doc := map[string]any{
		"version":     c.Version,
		"generatedAt": c.GeneratedAt,
		"workspace":   map[string]any{"dir": c.WorkspaceDir},
		"workspaceAssets": map[string]any{
			"skills":   skills,
			"commands": commands,
			"agents":   agents,
		},
		"packages": c.Packages,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func skillToJSON(s assets.SkillAsset) map[string]any {
	out := map[string]any{
		"id":          s.ID,
		"title":       s.Title,
		"description": s.Description,
		"path":        s.Path,
	}
	if s.Runner != "" {
		out["runner"] = s.Runner
	}
	// Skill-level pep723 summary from the first metadata-bearing script.
	for _, sc := range s.Scripts {
		if sc.Pep723 == nil {
			continue
		}
		deps := sc.Pep723.Dependencies
		if deps == nil {
			deps = []string{}
		}
		out["pep723"] = map[string]any{
			"requiresPython": sc.Pep723.RequiresPython,
			"dependencies":   deps,
		}
		break
	}
	if len(s.Scripts) > 0 {
		scripts := make([]map[string]any, 0, len(s.Scripts))
		for _, sc := range s.Scripts {
			entry := map[string]any{
				"path":    sc.Path,
				"runtime": sc.Runtime,
			}
			if sc.Runner != "" {
				entry["runner"] = sc.Runner
			}
			if sc.Pep723 != nil {
				deps := sc.Pep723.Dependencies
				if deps == nil {
					deps = []string{}
				}
				entry["pep723"] = map[string]any{
					"requiresPython": sc.Pep723.RequiresPython,
					"dependencies":   deps,
				}
			}
			scripts = append(scripts, entry)
		}
		out["scripts"] = scripts
	}
	return out
}

// Write generates and atomically writes the catalog for a workspace.
func Write(path, workspaceDir string, idx assets.Index) error {
	data, err := Marshal(Generate(workspaceDir, idx))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
