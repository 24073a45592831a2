package assets

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smarty-pants-inc/botpack/pkg/pep723"
)

// ScriptAsset is a script bundled with a skill. Scripts carrying PEP 723
// metadata are marked runner=uv so targets can execute them with uv.
type ScriptAsset struct {
	Path    string
	Runtime string
	Runner  string
	Pep723  *pep723.Metadata
}

// SkillAsset is a skill directory with its SKILL.md metadata. Runner is
// "uv" when any bundled script declares PEP 723 metadata.
type SkillAsset struct {
	ID          string
	Title       string
	Description string
	Path        string // path to SKILL.md
	Runner      string
	Scripts     []ScriptAsset
}

// CommandAsset is a slash-command markdown file.
type CommandAsset struct {
	ID   string
	Path string
}

// AgentAsset is an agent prompt markdown file.
type AgentAsset struct {
	ID   string
	Path string
}

// Index is the set of assets discovered under one root, each category
// sorted by id.
type Index struct {
	Skills   []SkillAsset
	Commands []CommandAsset
	Agents   []AgentAsset
}

// Scan discovers skills, commands, and agents under root:
//
//	skills/<dir>/SKILL.md   (frontmatter: id, name, description)
//	skills/<dir>/scripts/*.py  (optional PEP 723 metadata)
//	commands/*.md           (id = stem)
//	agents/*.md             (id = stem)
//
// Hidden (dot-prefixed) entries are skipped. Results are sorted by id.
func Scan(root string) Index {
	var idx Index

	skillsDir := filepath.Join(root, "skills")
	if entries, err := os.ReadDir(skillsDir); err == nil {
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			dir := filepath.Join(skillsDir, e.Name())
			skillMD := filepath.Join(dir, "SKILL.md")
			text, err := os.ReadFile(skillMD)
			if err != nil {
				continue
			}
			fm := readFrontmatter(string(text))

			id := strings.TrimSpace(fm["id"])
			if id == "" {
				id = e.Name()
			}
			title := strings.TrimSpace(fm["name"])
			if title == "" {
				title = id
			}

			scripts := scanScripts(filepath.Join(dir, "scripts"))
			runner := ""
			for _, sc := range scripts {
				if sc.Runner != "" {
					runner = sc.Runner
					break
				}
			}

			idx.Skills = append(idx.Skills, SkillAsset{
				ID:          id,
				Title:       title,
				Description: strings.TrimSpace(fm["description"]),
				Path:        skillMD,
				Runner:      runner,
				Scripts:     scripts,
			})
		}
	}

	idx.Commands = scanMarkdown(filepath.Join(root, "commands"), func(id, path string) CommandAsset {
		return CommandAsset{ID: id, Path: path}
	})
	idx.Agents = scanMarkdown(filepath.Join(root, "agents"), func(id, path string) AgentAsset {
		return AgentAsset{ID: id, Path: path}
	})

	sort.Slice(idx.Skills, func(i, j int) bool { return idx.Skills[i].ID < idx.Skills[j].ID })
	sort.Slice(idx.Commands, func(i, j int) bool { return idx.Commands[i].ID < idx.Commands[j].ID })
	sort.Slice(idx.Agents, func(i, j int) bool { return idx.Agents[i].ID < idx.Agents[j].ID })
	return idx
}

func scanMarkdown[T any](dir string, build func(id, path string) T) []T {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []T
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
			continue
		}
		out = append(out, build(strings.TrimSuffix(name, ".md"), filepath.Join(dir, name)))
	}
	return out
}

func scanScripts(dir string) []ScriptAsset {
	var out []ScriptAsset
	filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".py") {
			return nil
		}
		meta := readScriptHeader(p)
		script := ScriptAsset{Path: p, Runtime: "python"}
		if meta != nil {
			script.Runner = "uv"
			script.Pep723 = meta
		}
		out = append(out, script)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// readScriptHeader reads at most the leading lines of a script and parses
// any PEP 723 block. Parse failures are treated as "no metadata".
func readScriptHeader(path string) *pep723.Metadata {
	const maxLines = 200

	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	for i := 0; i < maxLines && scanner.Scan(); i++ {
		line := scanner.Text()
		sb.WriteString(line)
		sb.WriteString("\n")
		if strings.TrimSpace(line) == "# ///" {
			break
		}
	}

	meta, err := pep723.Parse(sb.String())
	if err != nil {
		return nil
	}
	return meta
}

// readFrontmatter extracts the YAML frontmatter between the first pair of
// "---" fences and flattens scalar values to strings.
func readFrontmatter(text string) map[string]string {
	out := map[string]string{}
	parts := strings.SplitN(text, "---", 3)
	if len(parts) < 3 {
		return out
	}
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(parts[1]), &raw); err != nil {
		return out
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
