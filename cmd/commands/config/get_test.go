package config

import (
	"strings"
	"testing"

	"nathanbeddoewebdev/sirius/internal/config"
)

func TestGet_NotSetShowsDefault(t *testing.T) {
	setupTestConfig(t)

	stdout, stderr := execConfig(t, "get", "log-cap")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, "not set (default 5000)") {
		t.Errorf("expected default note, got: %s", stdout)
	}
}

func TestGet_Set(t *testing.T) {
	path := setupTestConfig(t)

	cfg := &config.Config{BackendURL: "https://analytics.example.com"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	stdout, stderr := execConfig(t, "get", "Backend-URL")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, "https://analytics.example.com") {
		t.Errorf("expected the stored URL, got: %s", stdout)
	}
}

func TestGet_NotSetWithoutDefault(t *testing.T) {
	setupTestConfig(t)

	stdout, _ := execConfig(t, "get", "otlp-endpoint")

	if strings.TrimSpace(stdout) != "not set" {
		t.Errorf("expected 'not set', got: %s", stdout)
	}
}

func TestGet_UnknownKey(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "get", "bogus-key")

	if !strings.Contains(stderr, "unknown configuration key") {
		t.Errorf("expected 'unknown configuration key' error, got: %s", stderr)
	}
}

func TestGet_EnvOverride(t *testing.T) {
	setupTestConfig(t)
	t.Setenv("SIRIUS_DEFAULT_WINDOW", "5m")

	stdout, _ := execConfig(t, "get", "default-window")

	if strings.TrimSpace(stdout) != "5m (from SIRIUS_DEFAULT_WINDOW)" {
		t.Errorf("expected env value, got: %s", stdout)
	}
}

func TestGet_ListAllNonInteractive(t *testing.T) {
	path := setupTestConfig(t)
	if err := (&config.Config{LogCap: "2000"}).SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	t.Setenv("SIRIUS_LOG_LEVEL", "debug")

	stdout, _ := execConfig(t, "get")

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != len(config.Keys)+1 {
		t.Fatalf("expected header plus %d keys, got %d lines:\n%s", len(config.Keys), len(lines), stdout)
	}
	rows := map[string][]string{}
	for _, l := range lines[1:] {
		f := strings.Fields(l)
		rows[f[0]] = f[1:]
	}
	for key, want := range map[string][]string{
		"log-cap":       {"2000", "config", "file"},
		"log-level":     {"debug", "SIRIUS_LOG_LEVEL"},
		"sample-budget": {"200000", "default"},
		"otlp-endpoint": {"-", "unset"},
	} {
		if got := rows[key]; strings.Join(got, " ") != strings.Join(want, " ") {
			t.Errorf("%s row = %v, want %v", key, got, want)
		}
	}
}
