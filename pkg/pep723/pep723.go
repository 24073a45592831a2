package pep723

import (
	"errors"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	startMarker = "# /// script"
	endMarker   = "# ///"
)

// Metadata is the parsed content of a PEP 723 `# /// script` block.
type Metadata struct {
	RequiresPython string
	Dependencies   []string
	RawTOML        string
}

// ErrNoBlock is returned when the source contains no script block.
var ErrNoBlock = errors.New("no PEP 723 script block")

// ExtractScriptTOML returns the TOML payload of the first `# /// script`
// block with the leading comment markers removed.
//
// Returns ErrNoBlock when no start marker exists. A start marker without
// a matching end marker, or a non-comment line inside the block, is a
// malformed-block error.
func ExtractScriptTOML(source string) (string, error) {
	lines := strings.Split(source, "\n")

	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == startMarker {
			start = i
			break
		}
	}
	if start < 0 {
		return "", ErrNoBlock
	}

	var payload []string
	for _, line := range lines[start+1:] {
		if strings.TrimSpace(line) == endMarker {
			return strings.Join(payload, "\n"), nil
		}
		raw := strings.TrimLeft(line, " \t")
		if !strings.HasPrefix(raw, "#") {
			return "", errors.New("PEP 723 block lines must be comments starting with '#'")
		}
		content := raw[1:]
		content = strings.TrimPrefix(content, " ")
		payload = append(payload, content)
	}
	return "", errors.New("PEP 723 block start found but end marker '# ///' missing")
}

// Parse parses the first script block of a Python source file.
//
// Returns (nil, nil) when the source has no block, so callers can treat
// the metadata as strictly optional.
func Parse(source string) (*Metadata, error) {
	payload, err := ExtractScriptTOML(source)
	if err != nil {
		if errors.Is(err, ErrNoBlock) {
			return nil, nil
		}
		return nil, err
	}

	var doc struct {
		RequiresPython string   `toml:"requires-python"`
		Dependencies   []string `toml:"dependencies"`
	}
	if err := toml.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, err
	}

	return &Metadata{
		RequiresPython: doc.RequiresPython,
		Dependencies:   doc.Dependencies,
		RawTOML:        payload,
	}, nil
}
