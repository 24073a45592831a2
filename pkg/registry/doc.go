/*
Package registry resolves semver dependencies against a static registry
index: GET <base>/<name>/versions.json returning

	{"versions": {"1.2.3": {"git": "...", "commit": "..."}}}

The highest version satisfying the spec is selected and folded into a
git dependency pinned at the resolved commit. Fetched indexes are cached
in a bbolt database under the project cache dir so packages seen before
resolve in offline mode; an uncached package offline is a fetch error.
*/
package registry
