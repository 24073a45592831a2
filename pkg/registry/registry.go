package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/smarty-pants-inc/botpack/pkg/fetch"
	"github.com/smarty-pants-inc/botpack/pkg/log"
	"github.com/smarty-pants-inc/botpack/pkg/metrics"
	"github.com/smarty-pants-inc/botpack/pkg/resolver"
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

// DefaultBaseURL is the default static registry index.
const DefaultBaseURL = "https://raw.githubusercontent.com/Smarty-Pants-Inc/botpack-registry/main"

var indexBucket = []byte("indexes")

// BaseURL returns the registry base URL, honoring BOTPACK_REGISTRY_URL.
func BaseURL() string {
	if v := os.Getenv("BOTPACK_REGISTRY_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return strings.TrimRight(DefaultBaseURL, "/")
}

// Resolution is a semver dependency resolved against the registry index,
// pinned to an immutable commit.
type Resolution struct {
	Name    string
	Spec    string
	Version string
	Git     string
	Commit  string
}

// AsGitDependency converts the resolution into a commit-pinned git
// dependency for deterministic installs.
func (r Resolution) AsGitDependency() types.GitDependency {
	return types.GitDependency{Git: r.Git, Rev: r.Commit}
}

// Client resolves semver dependencies against a static registry index.
//
// Fetched version indexes are cached in a bbolt database so that
// previously seen packages resolve offline.
type Client struct {
	Base      string
	CachePath string // bbolt db; empty disables caching
	HTTP      *http.Client
}

// NewClient returns a client for the configured registry with an index
// cache under cacheDir.
func NewClient(cacheDir string) *Client {
	return &Client{
		Base:      BaseURL(),
		CachePath: filepath.Join(cacheDir, "registry.db"),
		HTTP:      &http.Client{Timeout: 10 * time.Second},
	}
}

// VersionsIndexURL returns "<base>/<name>/versions.json" with each path
// segment escaped ("@" stays readable for scoped packages).
func (c *Client) VersionsIndexURL(pkgName string) string {
	segs := []string{}
	for _, seg := range strings.Split(pkgName, "/") {
		if seg == "" || seg == "." {
			continue
		}
		escaped := url.PathEscape(seg)
		escaped = strings.ReplaceAll(escaped, "%40", "@")
		segs = append(segs, escaped)
	}
	segs = append(segs, "versions.json")
	return c.Base + "/" + strings.Join(segs, "/")
}

type versionEntry struct {
	Git    string `json:"git"`
	Commit string `json:"commit"`
	Rev    string `json:"rev"`
}

type versionsIndex struct {
	Versions map[string]versionEntry `json:"versions"`
}

// Resolve picks the highest version of name satisfying spec from the
// registry index. In offline mode only the local index cache is
// consulted; a cache miss is a fetch error.
func (c *Client) Resolve(name, spec string, offline bool) (Resolution, error) {
	raw, err := c.fetchIndex(name, offline)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("registry", "error").Inc()
		return Resolution{}, err
	}

	var idx versionsIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		metrics.FetchesTotal.WithLabelValues("registry", "error").Inc()
		return Resolution{}, fmt.Errorf("registry: invalid index JSON for %s: %w", name, err)
	}
	if idx.Versions == nil {
		metrics.FetchesTotal.WithLabelValues("registry", "error").Inc()
		return Resolution{}, fmt.Errorf("registry: invalid index JSON for %s (expected versions object)", name)
	}

	available := make([]string, 0, len(idx.Versions))
	for v := range idx.Versions {
		available = append(available, v)
	}
	chosen, err := resolver.PickHighest(available, spec)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("registry", "error").Inc()
		return Resolution{}, fmt.Errorf("registry: %w", err)
	}
	if chosen == "" {
		metrics.FetchesTotal.WithLabelValues("registry", "error").Inc()
		return Resolution{}, fmt.Errorf("registry: no version for %q satisfies %q", name, spec)
	}

	entry := idx.Versions[chosen]
	if entry.Git == "" {
		metrics.FetchesTotal.WithLabelValues("registry", "error").Inc()
		return Resolution{}, fmt.Errorf("registry: versions[%s].git must be a non-empty string", chosen)
	}
	commit := entry.Commit
	if commit == "" {
		commit = entry.Rev
	}
	if commit == "" {
		metrics.FetchesTotal.WithLabelValues("registry", "error").Inc()
		return Resolution{}, fmt.Errorf("registry: versions[%s].commit must be a non-empty string", chosen)
	}

	metrics.FetchesTotal.WithLabelValues("registry", "ok").Inc()
	return Resolution{Name: name, Spec: spec, Version: chosen, Git: entry.Git, Commit: commit}, nil
}

func (c *Client) fetchIndex(name string, offline bool) ([]byte, error) {
	if offline {
		cached, err := c.readCache(name)
		if err != nil {
			return nil, err
		}
		if cached == nil {
			return nil, &fetch.Error{
				Source: name,
				Err:    fmt.Errorf("%w: registry index not cached: %s", fetch.ErrOfflineCacheMiss, name),
			}
		}
		return cached, nil
	}

	indexURL := c.VersionsIndexURL(name)
	logger := log.For("registry")
	logger.Debug().Str("url", indexURL).Msg("fetching versions index")

	resp, err := c.httpClient().Get(indexURL)
	if err != nil {
		return nil, &fetch.Error{Source: name, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &fetch.Error{
			Source: name,
			Err:    fmt.Errorf("registry: GET %s: %s", indexURL, resp.Status),
		}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &fetch.Error{Source: name, Err: err}
	}

	if err := c.writeCache(name, raw); err != nil {
		// Cache failures degrade offline support but not this resolve.
		logger.Warn().Err(err).Str("pkg", name).Msg("caching registry index failed")
	}
	return raw, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) readCache(name string) ([]byte, error) {
	if c.CachePath == "" {
		return nil, nil
	}
	if _, err := os.Stat(c.CachePath); os.IsNotExist(err) {
		return nil, nil
	}
	db, err := bolt.Open(c.CachePath, 0o600, &bolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var out []byte
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(indexBucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(name)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (c *Client) writeCache(name string, raw []byte) error {
	if c.CachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.CachePath), 0o755); err != nil {
		return err
	}
	db, err := bolt.Open(c.CachePath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(indexBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), raw)
	})
}
