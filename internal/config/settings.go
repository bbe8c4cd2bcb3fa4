package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nathanbeddoewebdev/sirius/internal/retry"
)

// Settings is the parsed, effective configuration for one run.
type Settings struct {
	BackendURL     string
	LogCap         int
	SampleBudget   int
	PrefetchMargin float64
	Retry          retry.Config
	DefaultWindow  time.Duration
	LogLevel       zerolog.Level
	OTLPEndpoint   string
}

// Settings resolves c against the process environment.
func (c *Config) Settings() (Settings, error) {
	return c.SettingsFrom(os.Getenv)
}

// SettingsFrom resolves every key: a non-empty environment override wins,
// then the stored value, then the key's default. Invalid values are errors
// naming the key and where the value came from.
func (c *Config) SettingsFrom(getenv func(string) string) (Settings, error) {
	values := make(map[string]string, len(Keys))
	for _, k := range Keys {
		value, source := k.resolve(c, getenv)
		if value != "" && k.Validate != nil {
			if err := k.Validate(value); err != nil {
				from := source.String()
				if source == SourceEnv {
					from = k.EnvVar()
				}
				return Settings{}, fmt.Errorf("config: %s (from %s): %w", k.Name, from, err)
			}
		}
		values[k.Name] = value
	}

	// Validation above guarantees the conversions below succeed.
	atoi := func(name string) int { n, _ := strconv.Atoi(values[name]); return n }
	dur := func(name string) time.Duration { d, _ := time.ParseDuration(values[name]); return d }
	margin, _ := strconv.ParseFloat(values["prefetch-margin"], 64)
	level, _ := zerolog.ParseLevel(strings.ToLower(values["log-level"]))

	s := Settings{
		BackendURL:     strings.TrimRight(values["backend-url"], "/"),
		LogCap:         atoi("log-cap"),
		SampleBudget:   atoi("sample-budget"),
		PrefetchMargin: margin,
		Retry: retry.Config{
			MaxAttempts: atoi("retry-max-attempts"),
			BaseDelay:   dur("retry-base-delay"),
			MaxDelay:    dur("retry-max-delay"),
		},
		DefaultWindow: dur("default-window"),
		LogLevel:      level,
		OTLPEndpoint:  values["otlp-endpoint"],
	}
	if s.Retry.MaxDelay < s.Retry.BaseDelay {
		return Settings{}, fmt.Errorf("config: retry-max-delay %s is below retry-base-delay %s", s.Retry.MaxDelay, s.Retry.BaseDelay)
	}
	return s, nil
}
