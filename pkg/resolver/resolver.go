package resolver

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a strict MAJOR.MINOR.PATCH version.
func ParseVersion(v string) (*semver.Version, error) {
	parsed, err := semver.StrictNewVersion(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("invalid semver %q: %w", v, err)
	}
	return parsed, nil
}

// normalizeSpecVersion expands a shorthand spec version like "1" or "1.2"
// to MAJOR.MINOR.PATCH, treating omitted parts as 0.
func normalizeSpecVersion(v string) (string, error) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	switch len(parts) {
	case 1:
		return parts[0] + ".0.0", nil
	case 2:
		return parts[0] + "." + parts[1] + ".0", nil
	case 3:
		return strings.TrimSpace(v), nil
	}
	return "", fmt.Errorf("invalid semver %q", v)
}

// caretUpper returns the exclusive upper bound for a caret range:
// bump the left-most non-zero component (Cargo/npm semantics).
func caretUpper(v *semver.Version) *semver.Version {
	if v.Major() != 0 {
		return semver.New(v.Major()+1, 0, 0, "", "")
	}
	if v.Minor() != 0 {
		return semver.New(0, v.Minor()+1, 0, "", "")
	}
	return semver.New(0, 0, v.Patch()+1, "", "")
}

// Satisfies reports whether version matches the spec.
//
// Spec grammar: "^X[.Y[.Z]]" (caret range), "=X.Y.Z" (exact), or a bare
// "X.Y.Z" (exact).
func Satisfies(version *semver.Version, spec string) (bool, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return false, fmt.Errorf("empty version spec")
	}

	if strings.HasPrefix(s, "^") {
		normalized, err := normalizeSpecVersion(s[1:])
		if err != nil {
			return false, err
		}
		base, err := ParseVersion(normalized)
		if err != nil {
			return false, err
		}
		upper := caretUpper(base)
		return version.Compare(base) >= 0 && version.Compare(upper) < 0, nil
	}

	if strings.HasPrefix(s, "=") {
		normalized, err := normalizeSpecVersion(s[1:])
		if err != nil {
			return false, err
		}
		exact, err := ParseVersion(normalized)
		if err != nil {
			return false, err
		}
		return version.Equal(exact), nil
	}

	if s[0] >= '0' && s[0] <= '9' {
		normalized, err := normalizeSpecVersion(s)
		if err != nil {
			return false, err
		}
		exact, err := ParseVersion(normalized)
		if err != nil {
			return false, err
		}
		return version.Equal(exact), nil
	}

	return false, fmt.Errorf("unsupported version spec %q", spec)
}

// PickHighest returns the highest version in versions that satisfies the
// spec, or "" when none does. Versions must all be valid semver.
func PickHighest(versions []string, spec string) (string, error) {
	var best *semver.Version
	var bestRaw string
	for _, raw := range versions {
		v, err := ParseVersion(raw)
		if err != nil {
			return "", err
		}
		ok, err := Satisfies(v, spec)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestRaw = raw
		}
	}
	return bestRaw, nil
}
