package sync

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
)

// stateVersion is the sync-state schema version. Version 2 added source
// types and asset addresses per path.
const stateVersion = 2

// pathState is the per-path provenance entry. Sha256 is the hash of the
// last tool-written content: the last-known-good anchor for drift
// detection.
type pathState struct {
	Src          string   `json:"src,omitempty"`
	Srcs         []string `json:"srcs,omitempty"`
	Sha256       string   `json:"sha256"`
	SourceType   string   `json:"sourceType"`
	SourceName   string   `json:"sourceName,omitempty"`
	AssetAddress string   `json:"assetAddress"`
}

type syncState struct {
	Version   int                  `json:"version"`
	Target    string               `json:"target"`
	AssetsDir string               `json:"assetsDir"`
	Paths     map[string]pathState `json:"paths"`
}

// ConflictRecord describes one path that could not be moved forward.
type ConflictRecord struct {
	Path                string `json:"path"`
	AssetAddress        string `json:"assetAddress,omitempty"`
	Reason              string `json:"reason"`
	LastKnownGoodSha256 string `json:"lastKnownGoodSha256,omitempty"`
}

type conflictsFile struct {
	Version   int              `json:"version"`
	Conflicts []ConflictRecord `json:"conflicts"`
}

func statePath(stateDir, target string) string {
	return filepath.Join(stateDir, "sync-"+target+".json")
}

func conflictsPath(stateDir, target string) string {
	return filepath.Join(stateDir, "conflicts-"+target+".json")
}

func loadState(path string) syncState {
	empty := syncState{Version: stateVersion, Paths: map[string]pathState{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return empty
	}
	var st syncState
	if err := json.Unmarshal(data, &st); err != nil || st.Paths == nil {
		return empty
	}
	return st
}

func writeState(path string, st syncState, dryRun bool) error {
	if dryRun {
		return nil
	}
	data, err := canonicalJSON(st)
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

func writeConflicts(path string, records []ConflictRecord, dryRun bool) error {
	if dryRun {
		return nil
	}
	if len(records) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	data, err := canonicalJSON(conflictsFile{Version: 1, Conflicts: records})
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// LoadConflicts reads the persisted conflict records for a target, used
// by the issue surface. A missing file is an empty list.
func LoadConflicts(stateDir, target string) []ConflictRecord {
	data, err := os.ReadFile(conflictsPath(stateDir, target))
	if err != nil {
		return nil
	}
	var cf conflictsFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil
	}
	return cf.Conflicts
}

func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sha256Bytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
