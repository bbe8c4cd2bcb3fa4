// Package sessiontest points a services.Session at a throwaway environment
// and an in-process demo query service.
package sessiontest

import (
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"nathanbeddoewebdev/sirius/internal/backend/demo"
	"nathanbeddoewebdev/sirius/internal/config"
	"nathanbeddoewebdev/sirius/internal/database"

	"github.com/zalando/go-keyring"
)

// Epoch is the start of the synthetic data served by Setup.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Option adjusts the environment built by Setup.
type Option func(*options)

type options struct {
	serverOpts []demo.ServerOption
}

// WithServerToken makes the demo service reject requests without token.
func WithServerToken(token string) Option {
	return func(o *options) { o.serverOpts = append(o.serverOpts, demo.WithServerToken(token)) }
}

// Setup isolates config, database, cache and keychain for the test and serves
// a demo dataset whose clock reads Epoch+2h. It returns the dataset so the
// test can look up process ids.
func Setup(t *testing.T, processes int, opts ...Option) *demo.Dataset {
	t.Helper()
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	dir := t.TempDir()

	config.SetPath(filepath.Join(dir, "config.json"))
	t.Cleanup(config.ResetPath)
	database.SetPath(filepath.Join(dir, "sirius.db"))
	t.Cleanup(database.ResetPath)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("HOME", dir)
	keyring.MockInit()

	now := Epoch.Add(2 * time.Hour)
	d := demo.NewDataset("sessiontest", Epoch,
		demo.WithProcessCount(processes),
		demo.WithClock(func() time.Time { return now }),
	)
	srv := httptest.NewServer(demo.NewServer(d, o.serverOpts...).Router())
	t.Cleanup(srv.Close)

	t.Setenv("SIRIUS_BACKEND_URL", srv.URL)
	t.Setenv("SIRIUS_LOG_LEVEL", "error")
	return d
}
