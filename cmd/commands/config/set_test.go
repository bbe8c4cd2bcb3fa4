package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/sirius/internal/config"
)

// setupTestConfig points the config package at a temp file and returns its path.
func setupTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	config.SetPath(path)
	t.Cleanup(config.ResetPath)
	return path
}

// execConfig creates the config command, wires up output buffers, runs with the
// given args, and returns what was written to stdout and stderr.
func execConfig(t *testing.T, args ...string) (stdout, stderr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	cmd.Execute()
	return outBuf.String(), errBuf.String()
}

func TestSet_BackendURL(t *testing.T) {
	setupTestConfig(t)

	stdout, stderr := execConfig(t, "set", "backend-url", "https://analytics.example.com/")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, `"https://analytics.example.com"`) {
		t.Errorf("expected confirmation with the trimmed URL, got: %s", stdout)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.BackendURL != "https://analytics.example.com" {
		t.Errorf("expected BackendURL %q, got %q", "https://analytics.example.com", cfg.BackendURL)
	}
}

func TestSet_InvalidValue(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "retry-base-delay", "soon")

	if !strings.Contains(stderr, "invalid value for retry-base-delay") {
		t.Errorf("expected validation error, got: %s", stderr)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.RetryBaseDelay != "" {
		t.Errorf("invalid value was persisted: %q", cfg.RetryBaseDelay)
	}
}

func TestSet_UnknownKey(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "bogus-key", "value")

	if !strings.Contains(stderr, "unknown configuration key") {
		t.Errorf("expected 'unknown configuration key' error, got: %s", stderr)
	}
}

func TestSet_LogLevelCaseInsensitive(t *testing.T) {
	setupTestConfig(t)

	stdout, stderr := execConfig(t, "set", "LOG-LEVEL", "DEBUG")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, `log-level set to "debug"`) {
		t.Errorf("expected normalized level, got: %s", stdout)
	}
}

func TestSet_EmptyValueClears(t *testing.T) {
	path := setupTestConfig(t)
	if err := (&config.Config{DefaultWindow: "15m"}).SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	stdout, _ := execConfig(t, "set", "default-window", "")

	if !strings.Contains(stdout, "default-window cleared") {
		t.Errorf("expected clear confirmation, got: %s", stdout)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.DefaultWindow != "" {
		t.Errorf("expected DefaultWindow cleared, got %q", cfg.DefaultWindow)
	}
}

func TestSet_WarnsWhenEnvOverrides(t *testing.T) {
	setupTestConfig(t)
	t.Setenv("SIRIUS_LOG_CAP", "100")

	stdout, stderr := execConfig(t, "set", "log-cap", "2000")

	if !strings.Contains(stdout, `log-cap set to "2000"`) {
		t.Errorf("expected confirmation, got: %s", stdout)
	}
	if !strings.Contains(stderr, "SIRIUS_LOG_CAP is set and overrides this value") {
		t.Errorf("expected override warning, got: %s", stderr)
	}
}
