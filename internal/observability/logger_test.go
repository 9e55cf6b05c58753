package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/valter-silva-au/blockplan/pkg/models"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(models.LogConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info().Msg("hidden")
	logger.Warn().Str("pass_id", "p1").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if entry["message"] != "shown" || entry["pass_id"] != "p1" || entry["app"] != "blockplan" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(models.LogConfig{Level: "debug", Format: "console"}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Errorf("level = %v", logger.GetLevel())
	}
	logger.Debug().Msg("placing")
	if !strings.Contains(buf.String(), "placing") || strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}

func TestNewLogger_DefaultsAndErrors(t *testing.T) {
	logger, err := NewLogger(models.LogConfig{}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("default level = %v", logger.GetLevel())
	}
	if _, err := NewLogger(models.LogConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
}
