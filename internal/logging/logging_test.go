package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetup_WriterAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := Setup(Options{Level: zerolog.WarnLevel, Writer: &buf})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer closeFn()

	logger.Info().Msg("hidden")
	logger.Warn().Str("metric", "cpu").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line above warn level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if entry["message"] != "shown" || entry["metric"] != "cpu" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected a timestamp field")
	}
}

func TestSetup_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sirius.log")
	logger, closeFn, err := Setup(Options{Level: zerolog.DebugLevel, ToFile: true, Path: path})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	logger.Debug().Msg("to disk")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"to disk"`) {
		t.Errorf("log file missing entry: %s", data)
	}
}
