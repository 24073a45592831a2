package install

import (
	"fmt"
	"sort"

	"github.com/smarty-pants-inc/botpack/pkg/fetch"
	"github.com/smarty-pants-inc/botpack/pkg/lock"
	"github.com/smarty-pants-inc/botpack/pkg/log"
	"github.com/smarty-pants-inc/botpack/pkg/manifest"
	"github.com/smarty-pants-inc/botpack/pkg/paths"
	"github.com/smarty-pants-inc/botpack/pkg/registry"
	"github.com/smarty-pants-inc/botpack/pkg/store"
	"github.com/smarty-pants-inc/botpack/pkg/trust"
	"github.com/smarty-pants-inc/botpack/pkg/types"
	"github.com/smarty-pants-inc/botpack/pkg/version"
)

// DenialError is a trust denial at install time. It maps to the
// permission exit code in the CLI.
type DenialError struct {
	Reason string
}

func (e *DenialError) Error() string {
	return e.Reason
}

// Options configures an install run.
type Options struct {
	Root         string // project root; manifest-relative paths resolve here
	ManifestPath string // default: paths.ManifestPath(Root)
	LockPath     string // default: paths.LockPath(Root)
	Store        *store.Store
	Offline      bool
}

// Install resolves every declared dependency, publishes the fetched trees
// into the store, gates capabilities through trust, and writes the
// lockfile. Returns the lockfile path.
func Install(opts Options) (string, error) {
	manifestPath := opts.ManifestPath
	if manifestPath == "" {
		manifestPath = paths.ManifestPath(opts.Root)
	}
	cfg, err := manifest.Parse(manifestPath)
	if err != nil {
		return "", err
	}

	st := opts.Store
	if st == nil {
		if st, err = store.Default(); err != nil {
			return "", err
		}
	}

	trustCfg, err := trust.Load(paths.TrustPath(opts.Root))
	if err != nil {
		return "", err
	}

	cacheDir := paths.CacheDir(opts.Root)
	logger := log.For("install")

	directDeps := map[string]string{}
	packages := map[string]lock.Package{}

	depNames := make([]string, 0, len(cfg.Dependencies))
	for name := range cfg.Dependencies {
		depNames = append(depNames, name)
	}
	sort.Strings(depNames)

	for _, depName := range depNames {
		dep := cfg.Dependencies[depName]

		var fetched fetch.Tree
		var source map[string]any

		switch d := dep.(type) {
		case types.PathDependency:
			directDeps[depName] = "*"
			if fetched, err = fetch.Path(d, opts.Root); err != nil {
				return "", err
			}
			source = map[string]any{"type": "path", "path": d.Path}

		case types.GitDependency:
			directDeps[depName] = "*"
			if fetched, err = fetch.Git(d, cacheDir, opts.Offline); err != nil {
				return "", err
			}
			source = map[string]any{"type": "git", "url": d.Git, "rev": revOrNil(d.Rev)}

		case types.SemverDependency:
			directDeps[depName] = d.Spec
			client := registry.NewClient(cacheDir)
			res, err := client.Resolve(depName, d.Spec, opts.Offline)
			if err != nil {
				return "", err
			}
			pinned := res.AsGitDependency()
			if fetched, err = fetch.Git(pinned, cacheDir, opts.Offline); err != nil {
				return "", err
			}
			fetched.Resolved["version"] = res.Version
			source = map[string]any{"type": "git", "url": pinned.Git, "rev": pinned.Rev}

		case types.URLDependency:
			return "", fmt.Errorf("url dependencies are not implemented: %s", depName)

		default:
			return "", fmt.Errorf("unknown dependency type for %s", depName)
		}

		stored, err := st.PutTree(fetched.Path)
		if err != nil {
			return "", err
		}

		pkgCfg, err := manifest.ParsePackage(fetched.Path)
		if err != nil {
			return "", err
		}
		key, err := lock.PackageKey(pkgCfg.Name, pkgCfg.Version)
		if err != nil {
			return "", err
		}

		decision := trust.CheckPackage(trustCfg, key, stored.Digest,
			pkgCfg.Capabilities.Exec, pkgCfg.Capabilities.Mcp)
		if !decision.OK {
			return "", &DenialError{Reason: decision.Reason}
		}

		logger.Debug().Str("pkg_key", key).Str("integrity", stored.Digest).Msg("installed package")

		packages[key] = lock.Package{
			Source:       source,
			Resolved:     fetched.Resolved,
			Integrity:    stored.Digest,
			Dependencies: map[string]string{},
			Capabilities: map[string]bool{
				"exec":    pkgCfg.Capabilities.Exec,
				"network": pkgCfg.Capabilities.Network,
				"mcp":     pkgCfg.Capabilities.Mcp,
			},
		}
	}

	lf := &lock.Lockfile{
		LockfileVersion: lock.LockfileVersion,
		BotpackVersion:  version.Version,
		SpecVersion:     lock.SpecVersion,
		Dependencies:    directDeps,
		Packages:        packages,
	}

	lockPath := opts.LockPath
	if lockPath == "" {
		lockPath = paths.LockPath(opts.Root)
	}
	if err := lock.Save(lockPath, lf); err != nil {
		return "", err
	}
	return lockPath, nil
}

func revOrNil(rev string) any {
	if rev == "" {
		return nil
	}
	return rev
}
