package manifest

import (
	"fmt"
	"sort"
	"strings"
)

// ParseError reports a TOML file that could not be parsed at all.
type ParseError struct {
	Path    string
	Message string
	Line    int
	Col     int
}

func (e *ParseError) Error() string {
	loc := ""
	if e.Line > 0 {
		loc = fmt.Sprintf(" (line %d, column %d)", e.Line, e.Col)
	}
	return fmt.Sprintf("invalid TOML in %s: %s%s", e.Path, e.Message, loc)
}

// ValidationError reports a parsed TOML file that does not match the
// expected schema. Message carries the dotted path to the offending key.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config in %s: %s", e.Path, e.Message)
}

func validationErr(path, format string, args ...any) error {
	return &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
}

func unknownKeysMessage(unknown []string) string {
	sorted := append([]string(nil), unknown...)
	sort.Strings(sorted)
	return "unknown keys: " + strings.Join(sorted, ", ")
}

func unknownKeys(tbl map[string]any, allowed ...string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = true
	}
	var unknown []string
	for k := range tbl {
		if !allowedSet[k] {
			unknown = append(unknown, k)
		}
	}
	return unknown
}
