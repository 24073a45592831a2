package manifest

import (
	"errors"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// LoadFile reads a TOML file into a loosely typed tree so that schema
// validation can report dotted paths for unknown keys.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ValidationError{Path: path, Message: "file not found"}
		}
		return nil, &ValidationError{Path: path, Message: "unable to read file: " + err.Error()}
	}
	return ParseBytes(path, data)
}

// ParseBytes parses TOML bytes into a loose tree, attributing parse
// errors (with line/column when available) to path.
func ParseBytes(path string, data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		perr := &ParseError{Path: path, Message: err.Error()}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			perr.Message = derr.Error()
			perr.Line = row
			perr.Col = col
		}
		return nil, perr
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func asTable(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func requireTable(path string, v any, where string) (map[string]any, error) {
	m, ok := asTable(v)
	if !ok {
		return nil, validationErr(path, "%s: expected table", where)
	}
	return m, nil
}

func requireString(path string, v any, where string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", validationErr(path, "%s: expected string", where)
	}
	return s, nil
}

func requireBool(path string, v any, where string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, validationErr(path, "%s: expected bool", where)
	}
	return b, nil
}

func requireInt(path string, v any, where string) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, validationErr(path, "%s: expected integer", where)
}

func requireStringList(path string, v any, where string) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, validationErr(path, "%s: expected list of strings", where)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, validationErr(path, "%s: expected list of strings", where)
		}
		out = append(out, s)
	}
	return out, nil
}

func requireStringMap(path string, v any, where string) (map[string]string, error) {
	tbl, err := requireTable(path, v, where)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(tbl))
	for k, raw := range tbl {
		s, err := requireString(path, raw, where+"."+k)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}
