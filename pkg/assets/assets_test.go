package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const helloSkill = `---
id: hello
name: Hello
description: Says hello.
---

# Hello

Use this skill to say hello.
`

const helloScript = `# /// script
# requires-python = ">=3.11"
# dependencies = ["requests==2.32.5", "markdown==3.10"]
# ///

import requests
`

func TestScanSkillsWithScripts(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "skills", "hello", "SKILL.md"), helloSkill)
	write(t, filepath.Join(root, "skills", "hello", "scripts", "hello.py"), helloScript)
	write(t, filepath.Join(root, "skills", "hello", "scripts", "plain.py"), "print('no metadata')\n")

	idx := Scan(root)
	require.Len(t, idx.Skills, 1)

	s := idx.Skills[0]
	assert.Equal(t, "hello", s.ID)
	assert.Equal(t, "Hello", s.Title)
	assert.Equal(t, "Says hello.", s.Description)
	assert.Equal(t, "uv", s.Runner)

	require.Len(t, s.Scripts, 2)
	withMeta := s.Scripts[0]
	assert.Equal(t, "uv", withMeta.Runner)
	require.NotNil(t, withMeta.Pep723)
	assert.Equal(t, ">=3.11", withMeta.Pep723.RequiresPython)
	assert.Equal(t, []string{"requests==2.32.5", "markdown==3.10"}, withMeta.Pep723.Dependencies)

	plain := s.Scripts[1]
	assert.Empty(t, plain.Runner)
	assert.Nil(t, plain.Pep723)
}

func TestScanFrontmatterFallbacks(t *testing.T) {
	root := t.TempDir()
	// No frontmatter id: directory name wins; title falls back to id.
	write(t, filepath.Join(root, "skills", "webfetch", "SKILL.md"), "# no frontmatter\n")

	idx := Scan(root)
	require.Len(t, idx.Skills, 1)
	assert.Equal(t, "webfetch", idx.Skills[0].ID)
	assert.Equal(t, "webfetch", idx.Skills[0].Title)
	assert.Empty(t, idx.Skills[0].Description)
}

func TestScanCommandsAndAgentsSorted(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "commands", "zeta.md"), "z")
	write(t, filepath.Join(root, "commands", "alpha.md"), "a")
	write(t, filepath.Join(root, "commands", ".hidden.md"), "h")
	write(t, filepath.Join(root, "commands", "notes.txt"), "n")
	write(t, filepath.Join(root, "agents", "default.md"), "agent")

	idx := Scan(root)
	require.Len(t, idx.Commands, 2)
	assert.Equal(t, "alpha", idx.Commands[0].ID)
	assert.Equal(t, "zeta", idx.Commands[1].ID)
	require.Len(t, idx.Agents, 1)
	assert.Equal(t, "default", idx.Agents[0].ID)
}

func TestScanSkipsIncompleteSkills(t *testing.T) {
	root := t.TempDir()
	// Directory without SKILL.md and hidden directory are both ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "skills", "empty"), 0o755))
	write(t, filepath.Join(root, "skills", ".archive", "SKILL.md"), helloSkill)

	idx := Scan(root)
	assert.Empty(t, idx.Skills)
}

func TestScanMissingRoot(t *testing.T) {
	idx := Scan(filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, idx.Skills)
	assert.Empty(t, idx.Commands)
	assert.Empty(t, idx.Agents)
}
