package paths

import (
	"os"
	"path/filepath"
)

// WorkRoot returns the project root directory.
//
// Resolution order: BOTPACK_ROOT, then the legacy BOTYARD_ROOT and
// SMARTY_ROOT aliases, then the current working directory.
func WorkRoot() string {
	for _, key := range []string{"BOTPACK_ROOT", "BOTYARD_ROOT", "SMARTY_ROOT"} {
		if v := os.Getenv(key); v != "" {
			if abs, err := filepath.Abs(v); err == nil {
				return abs
			}
			return v
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// BotpackDir returns the project-local state directory (<root>/.botpack).
// The legacy .botyard directory is used only when it exists and .botpack
// does not.
func BotpackDir(root string) string {
	newDir := filepath.Join(root, ".botpack")
	oldDir := filepath.Join(root, ".botyard")
	if dirExists(newDir) || !dirExists(oldDir) {
		return newDir
	}
	return oldDir
}

// StateDir returns the per-target sync state directory.
func StateDir(root string) string {
	return filepath.Join(BotpackDir(root), "state")
}

// CacheDir returns the fetch cache directory.
func CacheDir(root string) string {
	return filepath.Join(BotpackDir(root), "cache")
}

// PkgsDir returns the project-local materialized package roots (.botpack/pkgs).
func PkgsDir(root string) string {
	return filepath.Join(BotpackDir(root), "pkgs")
}

// StoreDir returns the content-addressed store root.
//
// BOTPACK_STORE (legacy alias BOTYARD_STORE) overrides the default
// location under the user's home directory.
func StoreDir() (string, error) {
	for _, key := range []string{"BOTPACK_STORE", "BOTYARD_STORE"} {
		if v := os.Getenv(key); v != "" {
			return filepath.Abs(v)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	newDir := filepath.Join(home, ".botpack", "store", "v1")
	oldDir := filepath.Join(home, ".botyard", "store", "v1")
	if dirExists(newDir) || !dirExists(oldDir) {
		return newDir, nil
	}
	return oldDir, nil
}

// ManifestPath returns the project manifest path, preferring botpack.toml
// over the legacy botyard.toml.
func ManifestPath(root string) string {
	newPath := filepath.Join(root, "botpack.toml")
	oldPath := filepath.Join(root, "botyard.toml")
	if fileExists(newPath) || !fileExists(oldPath) {
		return newPath
	}
	return oldPath
}

// LockPath returns the lockfile path, preferring botpack.lock over the
// legacy botyard.lock.
func LockPath(root string) string {
	newPath := filepath.Join(root, "botpack.lock")
	oldPath := filepath.Join(root, "botyard.lock")
	if fileExists(newPath) || !fileExists(oldPath) {
		return newPath
	}
	return oldPath
}

// TrustPath returns the repo-local trust file path (.botpack/trust.toml).
func TrustPath(root string) string {
	return filepath.Join(BotpackDir(root), "trust.toml")
}

// CatalogPath returns the asset catalog path (.botpack/catalog.json).
func CatalogPath(root string) string {
	return filepath.Join(BotpackDir(root), "catalog.json")
}

func dirExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
