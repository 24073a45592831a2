package fetch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/smarty-pants-inc/botpack/pkg/log"
	"github.com/smarty-pants-inc/botpack/pkg/metrics"
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

// ErrOfflineCacheMiss marks a fetch that failed only because offline mode
// forbids hitting the network and the cache is empty.
var ErrOfflineCacheMiss = errors.New("offline cache miss")

// Error is a fetch failure with the source that caused it.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Tree is a fetched dependency tree ready for store publication, plus the
// free-form resolution record that flows into the lockfile.
type Tree struct {
	Path     string
	Resolved map[string]any
}

// Path fetches a local path dependency. Relative paths are resolved
// against baseDir (the manifest directory). Path dependencies are always
// allowed offline but must be existing directories.
func Path(dep types.PathDependency, baseDir string) (Tree, error) {
	p := dep.Path
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("path", "error").Inc()
		return Tree{}, &Error{Source: dep.Path, Err: err}
	}
	fi, err := os.Stat(abs)
	if err != nil || !fi.IsDir() {
		metrics.FetchesTotal.WithLabelValues("path", "error").Inc()
		return Tree{}, &Error{Source: dep.Path, Err: fmt.Errorf("path dependency not found: %s", abs)}
	}
	metrics.FetchesTotal.WithLabelValues("path", "ok").Inc()
	return Tree{
		Path:     abs,
		Resolved: map[string]any{"type": "path", "path": abs},
	}, nil
}

// safeDirName flattens a git URL into a filesystem-safe cache directory
// component.
func safeDirName(url string) string {
	r := strings.NewReplacer("://", "_", "/", "_", "@", "_")
	return r.Replace(url)
}

// Git fetches a git dependency into the per-source cache.
//
// The checkout lives at <cacheDir>/git/<safe(url)>-<rev>. Clones are
// staged in a .tmp directory and renamed into place. The resolved HEAD
// commit is captured even on cache hit so the lockfile stays
// deterministic. Offline mode succeeds only on a cache hit; a miss is an
// ErrOfflineCacheMiss.
func Git(dep types.GitDependency, cacheDir string, offline bool) (Tree, error) {
	if _, err := exec.LookPath("git"); err != nil {
		metrics.FetchesTotal.WithLabelValues("git", "error").Inc()
		return Tree{}, &Error{Source: dep.Git, Err: errors.New("git not available")}
	}

	gitCache := filepath.Join(cacheDir, "git")
	if err := os.MkdirAll(gitCache, 0o755); err != nil {
		metrics.FetchesTotal.WithLabelValues("git", "error").Inc()
		return Tree{}, &Error{Source: dep.Git, Err: err}
	}

	rev := dep.Rev
	if rev == "" {
		rev = "HEAD"
	}
	checkout := filepath.Join(gitCache, safeDirName(dep.Git)+"-"+rev)

	if dirExists(checkout) {
		commit, err := headCommit(checkout)
		if err != nil {
			metrics.FetchesTotal.WithLabelValues("git", "error").Inc()
			return Tree{}, &Error{Source: dep.Git, Err: err}
		}
		metrics.FetchesTotal.WithLabelValues("git", "cached").Inc()
		return Tree{
			Path:     checkout,
			Resolved: map[string]any{"type": "git", "url": dep.Git, "rev": rev, "commit": commit},
		}, nil
	}

	if offline {
		metrics.FetchesTotal.WithLabelValues("git", "offline_miss").Inc()
		return Tree{}, &Error{
			Source: dep.Git,
			Err:    fmt.Errorf("%w: git dependency not cached: %s@%s", ErrOfflineCacheMiss, dep.Git, rev),
		}
	}

	tmp := checkout + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		metrics.FetchesTotal.WithLabelValues("git", "error").Inc()
		return Tree{}, &Error{Source: dep.Git, Err: err}
	}

	logger := log.For("fetch")
	logger.Debug().Str("url", dep.Git).Str("rev", rev).Msg("cloning git dependency")

	if err := runGit("", "clone", "--quiet", dep.Git, tmp); err != nil {
		metrics.FetchesTotal.WithLabelValues("git", "error").Inc()
		return Tree{}, &Error{Source: dep.Git, Err: err}
	}
	if dep.Rev != "" {
		if err := runGit(tmp, "checkout", "--quiet", dep.Rev); err != nil {
			os.RemoveAll(tmp)
			metrics.FetchesTotal.WithLabelValues("git", "error").Inc()
			return Tree{}, &Error{Source: dep.Git, Err: err}
		}
	}
	if err := os.Rename(tmp, checkout); err != nil {
		metrics.FetchesTotal.WithLabelValues("git", "error").Inc()
		return Tree{}, &Error{Source: dep.Git, Err: err}
	}

	commit, err := headCommit(checkout)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("git", "error").Inc()
		return Tree{}, &Error{Source: dep.Git, Err: err}
	}
	metrics.FetchesTotal.WithLabelValues("git", "ok").Inc()
	return Tree{
		Path:     checkout,
		Resolved: map[string]any{"type": "git", "url": dep.Git, "rev": rev, "commit": commit},
	}, nil
}

func headCommit(checkout string) (string, error) {
	out, err := exec.Command("git", "-C", checkout, "rev-parse", "HEAD").Output()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD in %s: %w", checkout, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func runGit(dir string, args ...string) error {
	var cmd *exec.Cmd
	if dir == "" {
		cmd = exec.Command("git", args...)
	} else {
		cmd = exec.Command("git", append([]string{"-C", dir}, args...)...)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func dirExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
