package lock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// LockfileVersion is the only supported lockfile schema version.
	LockfileVersion = 1
	// SpecVersion is the botpack spec revision recorded in lockfiles.
	SpecVersion = "0.1"
)

// Error reports a lockfile that cannot be parsed or does not match the
// expected schema.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func lockErr(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Package is a resolved package entry in the lockfile.
type Package struct {
	Source       map[string]any
	Resolved     map[string]any
	Integrity    string
	Dependencies map[string]string
	Capabilities map[string]bool
}

// Lockfile is the top-level botpack.lock model.
type Lockfile struct {
	LockfileVersion int
	BotpackVersion  string
	SpecVersion     string
	Dependencies    map[string]string
	Packages        map[string]Package
}

// PackageKey returns the stable package key string like "@scope/name@1.2.3".
func PackageKey(name, version string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("package key: name must be non-empty")
	}
	if strings.TrimSpace(version) == "" {
		return "", fmt.Errorf("package key: version must be non-empty")
	}
	return name + "@" + version, nil
}

// SplitPackageKey splits "name@version" from the right, since scoped names
// contain "@" themselves.
func SplitPackageKey(pkgKey string) (name, version string, err error) {
	at := strings.LastIndex(pkgKey, "@")
	if at <= 0 || at == len(pkgKey)-1 {
		return "", "", fmt.Errorf("invalid package key %q", pkgKey)
	}
	return pkgKey[:at], pkgKey[at+1:], nil
}

// Load reads and validates a lockfile.
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lockErr("invalid lockfile: unable to read: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, lockErr("invalid lockfile: invalid JSON: %v", err)
	}
	return fromRaw(raw)
}

func fromRaw(raw map[string]any) (*Lockfile, error) {
	versionKey := ""
	if _, ok := raw["botpackVersion"]; ok {
		versionKey = "botpackVersion"
	} else if _, ok := raw["botyardVersion"]; ok { // legacy
		versionKey = "botyardVersion"
	}

	var missing []string
	for _, k := range []string{"lockfileVersion", "specVersion", "dependencies", "packages"} {
		if _, ok := raw[k]; !ok {
			missing = append(missing, k)
		}
	}
	if versionKey == "" {
		missing = append(missing, "botpackVersion")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, lockErr("invalid lockfile: missing required keys: %s", strings.Join(missing, ", "))
	}

	allowed := map[string]bool{
		"lockfileVersion": true, "botpackVersion": true, "botyardVersion": true,
		"specVersion": true, "dependencies": true, "packages": true,
	}
	var unknown []string
	for k := range raw {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, lockErr("invalid lockfile: unknown top-level keys: %s", strings.Join(unknown, ", "))
	}

	lfVer, err := expectInt(raw["lockfileVersion"], "lockfileVersion")
	if err != nil {
		return nil, err
	}
	if lfVer != LockfileVersion {
		return nil, lockErr("unsupported lockfileVersion: %d (expected %d)", lfVer, LockfileVersion)
	}

	if _, hasNew := raw["botpackVersion"]; hasNew {
		if _, hasOld := raw["botyardVersion"]; hasOld {
			bp, err := expectString(raw["botpackVersion"], "botpackVersion")
			if err != nil {
				return nil, err
			}
			by, err := expectString(raw["botyardVersion"], "botyardVersion")
			if err != nil {
				return nil, err
			}
			if bp != by {
				return nil, lockErr("invalid lockfile: botpackVersion and botyardVersion disagree")
			}
		}
	}

	bpVer, err := expectString(raw[versionKey], versionKey)
	if err != nil {
		return nil, err
	}
	specVer, err := expectString(raw["specVersion"], "specVersion")
	if err != nil {
		return nil, err
	}
	if specVer != SpecVersion {
		return nil, lockErr("unsupported specVersion: %s (expected %s)", specVer, SpecVersion)
	}

	deps, err := expectStringMap(raw["dependencies"], "dependencies")
	if err != nil {
		return nil, err
	}

	pkgsRaw, err := expectMap(raw["packages"], "packages")
	if err != nil {
		return nil, err
	}
	pkgs := make(map[string]Package, len(pkgsRaw))
	for key, v := range pkgsRaw {
		pkgMap, err := expectMap(v, fmt.Sprintf("packages[%s]", key))
		if err != nil {
			return nil, err
		}
		pkg, err := packageFromRaw(pkgMap)
		if err != nil {
			return nil, err
		}
		pkgs[key] = pkg
	}

	return &Lockfile{
		LockfileVersion: lfVer,
		BotpackVersion:  bpVer,
		SpecVersion:     specVer,
		Dependencies:    deps,
		Packages:        pkgs,
	}, nil
}

func packageFromRaw(raw map[string]any) (Package, error) {
	var pkg Package

	allowed := map[string]bool{
		"source": true, "resolved": true, "integrity": true,
		"dependencies": true, "capabilities": true,
	}
	var unknown []string
	for k := range raw {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return pkg, lockErr("invalid lockfile: unknown package keys: %s", strings.Join(unknown, ", "))
	}

	srcRaw, ok := raw["source"]
	if !ok || srcRaw == nil {
		return pkg, lockErr("invalid lockfile: package.source is required")
	}
	src, err := expectMap(srcRaw, "package.source")
	if err != nil {
		return pkg, err
	}
	if _, ok := src["type"].(string); !ok {
		return pkg, lockErr("invalid lockfile: package.source.type is required and must be a string")
	}
	pkg.Source = src

	pkg.Resolved = map[string]any{}
	if v, ok := raw["resolved"]; ok && v != nil {
		if pkg.Resolved, err = expectMap(v, "package.resolved"); err != nil {
			return pkg, err
		}
	}

	if v, ok := raw["integrity"]; ok && v != nil {
		if pkg.Integrity, err = expectString(v, "package.integrity"); err != nil {
			return pkg, err
		}
	}

	pkg.Dependencies = map[string]string{}
	if v, ok := raw["dependencies"]; ok && v != nil {
		if pkg.Dependencies, err = expectStringMap(v, "package.dependencies"); err != nil {
			return pkg, err
		}
	}

	pkg.Capabilities = map[string]bool{}
	if v, ok := raw["capabilities"]; ok && v != nil {
		capsRaw, err := expectMap(v, "package.capabilities")
		if err != nil {
			return pkg, err
		}
		for k, cv := range capsRaw {
			b, ok := cv.(bool)
			if !ok {
				return pkg, lockErr("invalid lockfile: package.capabilities must be a map of strings to booleans")
			}
			pkg.Capabilities[k] = b
		}
	}

	return pkg, nil
}

// Save writes a lockfile with canonical JSON formatting: recursively
// sorted keys, 2-space indent, unescaped UTF-8, trailing newline.
// The write is atomic via a sibling .tmp file.
func Save(path string, lf *Lockfile) error {
	data, err := Marshal(lf)
	if err != nil {
		return err
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

// Marshal renders the canonical lockfile bytes.
func Marshal(lf *Lockfile) ([]byte, error) {
	pkgs := make(map[string]any, len(lf.Packages))
	for key, pkg := range lf.Packages {
		pkgs[key] = packageToRaw(pkg)
	}
	top := map[string]any{
		"lockfileVersion": lf.LockfileVersion,
		"botpackVersion":  lf.BotpackVersion,
		"specVersion":     lf.SpecVersion,
		"dependencies":    stringMapToAny(lf.Dependencies),
		"packages":        pkgs,
	}
	return canonicalJSON(top)
}

func packageToRaw(pkg Package) map[string]any {
	var integrity any
	if pkg.Integrity != "" {
		integrity = pkg.Integrity
	}
	source := pkg.Source
	if source == nil {
		source = map[string]any{}
	}
	resolved := pkg.Resolved
	if resolved == nil {
		resolved = map[string]any{}
	}
	caps := make(map[string]any, len(pkg.Capabilities))
	for k, v := range pkg.Capabilities {
		caps[k] = v
	}
	return map[string]any{
		"source":       source,
		"resolved":     resolved,
		"integrity":    integrity,
		"dependencies": stringMapToAny(pkg.Dependencies),
		"capabilities": caps,
	}
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// canonicalJSON encodes with sorted keys (encoding/json sorts map keys),
// 2-space indent, no HTML escaping, and a trailing newline.
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

func expectMap(v any, ctx string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, lockErr("invalid lockfile: %s must be an object", ctx)
	}
	return m, nil
}

func expectString(v any, ctx string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", lockErr("invalid lockfile: %s must be a string", ctx)
	}
	return s, nil
}

func expectInt(v any, ctx string) (int, error) {
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, lockErr("invalid lockfile: %s must be an integer", ctx)
	}
	return int(f), nil
}

func expectStringMap(v any, ctx string) (map[string]string, error) {
	m, err := expectMap(v, ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, raw := range m {
		s, ok := raw.(string)
		if !ok {
			return nil, lockErr("invalid lockfile: %s must be a map of strings to strings", ctx)
		}
		out[k] = s
	}
	return out, nil
}
