package manifest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// tomlBasicString quotes a string as a TOML basic string. JSON encoding
// gives predictable escaping with double quotes.
func tomlBasicString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func tomlValue(v any) (string, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case int:
		return fmt.Sprintf("%d", t), nil
	case int64:
		return fmt.Sprintf("%d", t), nil
	case string:
		return tomlBasicString(t), nil
	}
	return "", fmt.Errorf("unsupported TOML value type: %T", v)
}

// tomlInlineTable formats `{ a = 1, b = "x" }` with a fixed key order;
// keys not in the order list are appended sorted.
func tomlInlineTable(tbl map[string]any, keyOrder []string) (string, error) {
	keys := make([]string, 0, len(tbl))
	seen := make(map[string]bool, len(tbl))
	for _, k := range keyOrder {
		if _, ok := tbl[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range tbl {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := tomlValue(tbl[k])
		if err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("%s = %s", k, v))
	}
	return "{ " + strings.Join(parts, ", ") + " }", nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
