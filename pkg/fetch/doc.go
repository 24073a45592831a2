// Package fetch acquires dependency trees from their declared sources:
// local paths (always allowed, even offline) and git checkouts cached
// under .botpack/cache/git. Registry (semver) dependencies are resolved to
// pinned git dependencies by pkg/registry before reaching this package;
// url dependencies are not fetched (install rejects them).
package fetch
