package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// envPrefix is prepended to the upper-cased key name to form the override
// variable, e.g. SIRIUS_BACKEND_URL.
const envPrefix = "SIRIUS_"

// KeySpec describes a single configuration key.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "backend-url").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Default is the value used when the key is not set.
	Default string

	// Normalize rewrites a trimmed value before validation. It may be nil.
	Normalize func(value string) string

	// Validate rejects values that Settings could not parse. It may be nil.
	Validate func(value string) error

	// Get returns the current value for this key from a loaded Config.
	Get func(cfg *Config) string

	// Set applies a value for this key to the given Config (in memory only;
	// the caller is responsible for calling Save).
	Set func(cfg *Config, value string)
}

// EnvVar returns the environment variable that overrides this key.
func (k KeySpec) EnvVar() string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(k.Name, "-", "_"))
}

// Prepare trims, normalizes and validates a value typed by the user. An empty
// result means the key should be cleared.
func (k KeySpec) Prepare(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if k.Normalize != nil {
		value = k.Normalize(value)
	}
	if k.Validate != nil {
		if err := k.Validate(value); err != nil {
			return "", fmt.Errorf("invalid value for %s: %w", k.Name, err)
		}
	}
	return value, nil
}

// Source says where the effective value of a key comes from.
type Source int

const (
	SourceUnset Source = iota
	SourceDefault
	SourceFile
	SourceEnv
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceFile:
		return "config file"
	case SourceEnv:
		return "environment"
	default:
		return "unset"
	}
}

// Effective returns the value Settings would use for the key and where it
// comes from. Environment overrides win over the file, which wins over the
// default.
func (k KeySpec) Effective(cfg *Config) (string, Source) {
	return k.resolve(cfg, os.Getenv)
}

func (k KeySpec) resolve(cfg *Config, getenv func(string) string) (string, Source) {
	if v := strings.TrimSpace(getenv(k.EnvVar())); v != "" {
		return v, SourceEnv
	}
	if v := k.Get(cfg); v != "" {
		return v, SourceFile
	}
	if k.Default != "" {
		return k.Default, SourceDefault
	}
	return "", SourceUnset
}

// Keys is the authoritative list of all supported configuration keys.
// To add a new option: add a field to Config, append a KeySpec here, and
// resolve it in Settings.
var Keys = []KeySpec{
	{
		Name:        "backend-url",
		Description: "Base URL of the query service",
		Default:     "http://localhost:8082",
		Normalize:   func(v string) string { return strings.TrimRight(v, "/") },
		Validate:    validateURL,
		Get:         func(cfg *Config) string { return cfg.BackendURL },
		Set:         func(cfg *Config, v string) { cfg.BackendURL = v },
	},
	{
		Name:        "log-cap",
		Description: "Maximum number of log entries kept in memory",
		Default:     "5000",
		Validate:    validatePositiveInt,
		Get:         func(cfg *Config) string { return cfg.LogCap },
		Set:         func(cfg *Config, v string) { cfg.LogCap = v },
	},
	{
		Name:        "sample-budget",
		Description: "Maximum number of chart points kept in memory",
		Default:     "200000",
		Validate:    validatePositiveInt,
		Get:         func(cfg *Config) string { return cfg.SampleBudget },
		Set:         func(cfg *Config, v string) { cfg.SampleBudget = v },
	},
	{
		Name:        "prefetch-margin",
		Description: "Fraction of the visible span fetched ahead on each side",
		Default:     "0.25",
		Validate:    validateMargin,
		Get:         func(cfg *Config) string { return cfg.PrefetchMargin },
		Set:         func(cfg *Config, v string) { cfg.PrefetchMargin = v },
	},
	{
		Name:        "retry-max-attempts",
		Description: "Attempts per fetch before it is marked failed",
		Default:     "5",
		Validate:    validatePositiveInt,
		Get:         func(cfg *Config) string { return cfg.RetryMaxAttempts },
		Set:         func(cfg *Config, v string) { cfg.RetryMaxAttempts = v },
	},
	{
		Name:        "retry-base-delay",
		Description: "First backoff delay after a network error",
		Default:     "250ms",
		Validate:    validateDuration,
		Get:         func(cfg *Config) string { return cfg.RetryBaseDelay },
		Set:         func(cfg *Config, v string) { cfg.RetryBaseDelay = v },
	},
	{
		Name:        "retry-max-delay",
		Description: "Upper bound for the backoff delay",
		Default:     "10s",
		Validate:    validateDuration,
		Get:         func(cfg *Config) string { return cfg.RetryMaxDelay },
		Set:         func(cfg *Config, v string) { cfg.RetryMaxDelay = v },
	},
	{
		Name:        "default-window",
		Description: "Span shown when a chart opens",
		Default:     "1h",
		Validate:    validateDuration,
		Get:         func(cfg *Config) string { return cfg.DefaultWindow },
		Set:         func(cfg *Config, v string) { cfg.DefaultWindow = v },
	},
	{
		Name:        "log-level",
		Description: "Diagnostic log level (trace, debug, info, warn, error)",
		Default:     "info",
		Normalize:   strings.ToLower,
		Validate:    validateLevel,
		Get:         func(cfg *Config) string { return cfg.LogLevel },
		Set:         func(cfg *Config, v string) { cfg.LogLevel = v },
	},
	{
		Name:        "otlp-endpoint",
		Description: "OTLP gRPC collector for traces (empty disables tracing)",
		Get:         func(cfg *Config) string { return cfg.OTLPEndpoint },
		Set:         func(cfg *Config, v string) { cfg.OTLPEndpoint = v },
	},
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}

func validateURL(v string) error {
	u, err := url.Parse(v)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", v, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", v)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", v)
	}
	return nil
}

func validatePositiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%q is not an integer", v)
	}
	if n <= 0 {
		return fmt.Errorf("%d must be positive", n)
	}
	return nil
}

func validateMargin(v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", v)
	}
	if f < 0 || f > 4 {
		return fmt.Errorf("%v must be between 0 and 4", f)
	}
	return nil
}

func validateDuration(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%q is not a duration (e.g. 250ms, 10s, 1h)", v)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", d)
	}
	return nil
}

func validateLevel(v string) error {
	if _, err := zerolog.ParseLevel(strings.ToLower(v)); err != nil {
		return fmt.Errorf("unknown log level %q", v)
	}
	return nil
}
