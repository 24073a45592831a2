package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerSilentBeforeSetup(t *testing.T) {
	// The default logger must be a no-op so library embedders see nothing.
	Logger.Error().Msg("should go nowhere")
}

func TestSetupJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Setup("debug", true, &buf)
	defer Setup("info", true, &bytes.Buffer{})

	logger := For("store")
	logger.Debug().Str("digest", "sha256:abc").Msg("published")

	out := buf.String()
	if !strings.Contains(out, `"component":"store"`) {
		t.Errorf("output missing component field: %s", out)
	}
	if !strings.Contains(out, `"digest":"sha256:abc"`) {
		t.Errorf("output missing event field: %s", out)
	}
}

func TestSetupLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Setup("warn", true, &buf)
	defer Setup("info", true, &bytes.Buffer{})

	Logger.Info().Msg("filtered")
	Logger.Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "filtered") {
		t.Errorf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Setup("shouting", true, &buf)
	defer Setup("info", true, &bytes.Buffer{})

	Logger.Debug().Msg("below info")
	Logger.Info().Msg("at info")

	out := buf.String()
	if strings.Contains(out, "below info") {
		t.Errorf("debug line should be filtered at fallback info level: %s", out)
	}
	if !strings.Contains(out, "at info") {
		t.Errorf("info line missing: %s", out)
	}
}
