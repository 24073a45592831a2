package letta

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
)

// Settings is the managed configuration written to .letta/settings.json.
// User-local overrides live in settings.local.json, which this package
// never writes.
type Settings struct {
	APIURL       string
	DefaultAgent string
	MemoryBlocks []string
	McpServers   []string
	Model        string
}

// Result reports what materialization changed.
type Result struct {
	Created   []string
	Updated   []string
	Preserved []string
	Conflicts []string
}

const localSettingsName = "settings.local.json"

// Materialize writes .letta/settings.json under root with the managed
// sentinel, preserving settings.local.json untouched.
//
// An existing settings.json lacking the managed sentinel was written by
// something else; it is reported as a conflict unless force is set.
func Materialize(root string, cfg Settings, dryRun, force bool) (Result, error) {
	var res Result

	lettaDir := filepath.Join(root, ".letta")
	settingsPath := filepath.Join(lettaDir, "settings.json")
	localPath := filepath.Join(lettaDir, localSettingsName)

	if _, err := os.Stat(localPath); err == nil {
		res.Preserved = append(res.Preserved, localPath)
	}

	desired, err := renderSettings(cfg)
	if err != nil {
		return res, err
	}

	existing, readErr := os.ReadFile(settingsPath)
	if readErr == nil {
		if bytes.Equal(existing, desired) {
			return res, nil
		}
		if !managedByBotpack(existing) && !force {
			res.Conflicts = append(res.Conflicts,
				settingsPath+": modified outside botpack; use --force to overwrite")
			return res, nil
		}
		if err := writeAtomic(settingsPath, desired, dryRun); err != nil {
			return res, err
		}
		res.Updated = append(res.Updated, settingsPath)
		return res, nil
	}

	if err := writeAtomic(settingsPath, desired, dryRun); err != nil {
		return res, err
	}
	res.Created = append(res.Created, settingsPath)
	return res, nil
}

// renderSettings produces the canonical managed settings document with
// the _botpack sentinel.
func renderSettings(cfg Settings) ([]byte, error) {
	doc := map[string]any{
		"_botpack": map[string]any{
			"managed": true,
			"version": 1,
		},
	}
	if cfg.APIURL != "" {
		doc["api_url"] = cfg.APIURL
	}
	if cfg.DefaultAgent != "" {
		doc["default_agent"] = cfg.DefaultAgent
	}
	if len(cfg.MemoryBlocks) > 0 {
		doc["memory_blocks"] = cfg.MemoryBlocks
	}
	if len(cfg.McpServers) > 0 {
		doc["mcp_servers"] = cfg.McpServers
	}
	if cfg.Model != "" {
		doc["model"] = cfg.Model
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

func managedByBotpack(data []byte) bool {
	var doc struct {
		Botpack struct {
			Managed bool `json:"managed"`
		} `json:"_botpack"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	return doc.Botpack.Managed
}

func writeAtomic(path string, data []byte, dryRun bool) error {
	if dryRun {
		return nil
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
