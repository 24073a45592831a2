package pep723

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScript = `#!/usr/bin/env python3
# /// script
# requires-python = ">=3.11"
# dependencies = ["requests==2.32.5", "markdown==3.10"]
# ///

print("hello")
`

func TestParseScriptBlock(t *testing.T) {
	meta, err := Parse(sampleScript)
	require.NoError(t, err)
	require.NotNil(t, meta)

	assert.Equal(t, ">=3.11", meta.RequiresPython)
	assert.Equal(t, []string{"requests==2.32.5", "markdown==3.10"}, meta.Dependencies)
	assert.Contains(t, meta.RawTOML, "requires-python")
}

func TestParseNoBlock(t *testing.T) {
	meta, err := Parse("print('no metadata here')\n")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestParseMultilineDependencies(t *testing.T) {
	src := `# /// script
# dependencies = [
#     "httpx",
#     "rich>=13",
# ]
# ///
`
	meta, err := Parse(src)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Empty(t, meta.RequiresPython)
	assert.Equal(t, []string{"httpx", "rich>=13"}, meta.Dependencies)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "missing end marker",
			src:  "# /// script\n# dependencies = []\n",
		},
		{
			name: "non-comment line inside block",
			src:  "# /// script\nimport os\n# ///\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			assert.Error(t, err)
		})
	}
}
