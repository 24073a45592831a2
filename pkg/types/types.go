package types

// LinkMode controls how store entries are materialized into project paths.
type LinkMode string

const (
	LinkModeAuto     LinkMode = "auto"
	LinkModeSymlink  LinkMode = "symlink"
	LinkModeHardlink LinkMode = "hardlink"
	LinkModeCopy     LinkMode = "copy"
)

// ValidLinkMode reports whether m is one of the supported link modes.
func ValidLinkMode(m LinkMode) bool {
	switch m {
	case LinkModeAuto, LinkModeSymlink, LinkModeHardlink, LinkModeCopy:
		return true
	}
	return false
}

// Dependency is a declared dependency in the project manifest.
//
// It is a closed union: SemverDependency (string spec), PathDependency,
// GitDependency, and URLDependency. Parsing dispatches on key presence
// and rejects unknown keys.
type Dependency interface {
	isDependency()
}

// SemverDependency is a registry dependency declared as a version spec
// string like "^1.2" or "=2.0.0".
type SemverDependency struct {
	Spec string
}

// PathDependency is a local directory dependency.
type PathDependency struct {
	Path string
}

// GitDependency is a git repository dependency with an optional rev.
type GitDependency struct {
	Git string
	Rev string
}

// URLDependency is an archive URL dependency with an optional integrity pin.
type URLDependency struct {
	URL       string
	Integrity string
}

func (SemverDependency) isDependency() {}
func (PathDependency) isDependency()   {}
func (GitDependency) isDependency()    {}
func (URLDependency) isDependency()    {}

// AssetsConfig is the [assets] section of the project manifest
// (legacy alias: [workspace]). It names the first-party assets root.
type AssetsConfig struct {
	Dir     string
	Name    string
	Private bool
}

// DefaultAssetsConfig returns the defaults applied when [assets] is absent.
func DefaultAssetsConfig() AssetsConfig {
	return AssetsConfig{Dir: "botpack", Private: true}
}

// SyncConfig is the [sync] section of the project manifest.
type SyncConfig struct {
	OnAdd     bool
	OnInstall bool
	Catalog   bool
	LinkMode  LinkMode
}

// DefaultSyncConfig returns the defaults applied when [sync] is absent.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{OnAdd: true, OnInstall: true, Catalog: true, LinkMode: LinkModeAuto}
}

// TargetConfig is a per-target override table ([targets.<name>]).
type TargetConfig struct {
	Root               string
	SkillsDir          string
	CommandsDir        string
	AgentsDir          string
	McpOut             string
	PolicyMode         string
	SkillsFallbackRoot string
	SkillsFallbackDir  string
}

// AliasesConfig maps short asset names to canonical ids.
type AliasesConfig struct {
	Skills   map[string]string
	Commands map[string]string
}

// EntryConfig is the [entry] table: the default launch selection consumed
// by the external launcher.
type EntryConfig struct {
	Agent  string
	Target string
}

// Manifest is the parsed project manifest (botpack.toml).
type Manifest struct {
	Version      int
	Assets       AssetsConfig
	Dependencies map[string]Dependency
	Sync         SyncConfig
	Targets      map[string]TargetConfig
	Aliases      AliasesConfig
	Entry        EntryConfig
}

// PackageCapabilities declares what a package is allowed to do once trusted.
type PackageCapabilities struct {
	Exec    bool
	Network bool
	Mcp     bool
}

// PackageCompat lists compatibility requirements declared by a package.
type PackageCompat struct {
	Requires []string
}

// PackageExports restricts which assets a package exports. Nil slices mean
// "export everything discovered".
type PackageExports struct {
	Skills   []string
	Commands []string
	Agents   []string
}

// PackageManifest is the parsed package manifest (agentpkg.toml).
type PackageManifest struct {
	Agentpkg     string
	Name         string
	Version      string
	Description  string
	License      string
	Repository   string
	Compat       PackageCompat
	Exports      PackageExports
	Capabilities PackageCapabilities
}

// McpTrust is a per-server trust override inside a trust entry.
type McpTrust struct {
	AllowExec bool
	AllowMcp  bool
}

// TrustDigest pins a trust entry to an exact stored tree digest.
type TrustDigest struct {
	Integrity string
}

// TrustEntry is a user-granted allowance for one package (or the
// workspace pseudo-package) keyed by "name@version".
type TrustEntry struct {
	AllowExec bool
	AllowMcp  bool
	Digest    *TrustDigest
	Mcp       map[string]McpTrust
}

// TrustConfig is the parsed .botpack/trust.toml.
type TrustConfig struct {
	Version  int
	Packages map[string]TrustEntry
}
