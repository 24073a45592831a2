package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSatisfies(t *testing.T) {
	tests := []struct {
		version string
		spec    string
		want    bool
	}{
		{"1.2.0", "^1", true},
		{"1.0.0", "^1", true},
		{"2.0.0", "^1", false},
		{"0.9.9", "^1", false},
		{"1.5.3", "^1.2", true},
		{"1.1.9", "^1.2", false},
		{"0.2.5", "^0.2", true},
		{"0.3.0", "^0.2", false},
		{"0.0.3", "^0.0.3", true},
		{"0.0.4", "^0.0.3", false},
		{"1.2.3", "=1.2.3", true},
		{"1.2.4", "=1.2.3", false},
		{"1.2.3", "1.2.3", true},
		{"1.2.3", "1.2.4", false},
	}

	for _, tt := range tests {
		t.Run(tt.spec+"/"+tt.version, func(t *testing.T) {
			v, err := ParseVersion(tt.version)
			require.NoError(t, err)
			got, err := Satisfies(v, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSatisfiesRejectsBadSpecs(t *testing.T) {
	v, err := ParseVersion("1.0.0")
	require.NoError(t, err)

	for _, spec := range []string{"", "~1.2", ">=1", "banana"} {
		_, err := Satisfies(v, spec)
		assert.Error(t, err, "spec %q", spec)
	}
}

func TestPickHighest(t *testing.T) {
	versions := []string{"1.0.0", "1.2.0", "2.0.0"}

	got, err := PickHighest(versions, "^1")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", got)

	got, err = PickHighest(versions, "^2")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", got)

	got, err = PickHighest(versions, "^3")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseVersionStrict(t *testing.T) {
	for _, bad := range []string{"1.2", "1", "v1.2.3", "1.2.x"} {
		_, err := ParseVersion(bad)
		assert.Error(t, err, "version %q", bad)
	}
}
