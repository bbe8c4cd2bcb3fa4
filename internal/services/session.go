// Package services assembles the runtime every sirius command shares.
package services

import (
	"context"
	"errors"
	"fmt"

	"nathanbeddoewebdev/sirius/internal/backend"
	"nathanbeddoewebdev/sirius/internal/config"
	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/logging"
	"nathanbeddoewebdev/sirius/internal/scheduler"
	"nathanbeddoewebdev/sirius/internal/services/auth"
	"nathanbeddoewebdev/sirius/internal/services/viewprefs"
	"nathanbeddoewebdev/sirius/internal/swrcache"
	"nathanbeddoewebdev/sirius/internal/telemetry"
	prefsrepo "nathanbeddoewebdev/sirius/internal/viewprefs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	serviceName     = "sirius"
	traceSampleRate = 1.0
)

// Version is reported as the service version of exported traces.
var Version = "dev"

// Options controls how a Session is opened.
type Options struct {
	// Interactive sends diagnostics to the log file because a TUI owns the
	// terminal.
	Interactive bool

	// Store overrides the keychain token store.
	Store auth.Store
}

// Session bundles the resolved settings, the logger, the query service
// client and the persisted view preferences of one command run.
type Session struct {
	Settings config.Settings
	Logger   zerolog.Logger
	Backend  *backend.Client
	Registry *prometheus.Registry
	Metrics  *telemetry.Metrics
	Prefs    *viewprefs.Service
	Cache    *swrcache.Cache

	closers []func(context.Context) error
}

// Open loads the configuration and builds everything a command needs. Only
// configuration, logging and token lookup errors are fatal; tracing and the
// preferences database degrade to no-ops.
func Open(ctx context.Context, opts Options) (*Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.Setup(logging.Options{
		Level:  settings.LogLevel,
		ToFile: opts.Interactive,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		Settings: settings,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	s.closers = append(s.closers, func(context.Context) error { return closeLog() })
	s.Metrics = telemetry.NewMetrics(s.Registry)

	shutdown, err := telemetry.InitTracing(ctx, serviceName, Version, settings.OTLPEndpoint, traceSampleRate)
	if err != nil {
		logger.Warn().Err(err).Str("endpoint", settings.OTLPEndpoint).Msg("tracing disabled")
	} else {
		s.closers = append(s.closers, shutdown)
	}

	store := opts.Store
	if store == nil {
		store = auth.DefaultStore()
	}
	s.Backend, err = backend.NewFromStore(settings.BackendURL, store,
		backend.WithRetry(settings.Retry),
		backend.WithLogger(logger.With().Str("component", "backend").Logger()),
	)
	if err != nil {
		s.Close()
		return nil, err
	}

	repo, err := prefsrepo.Open()
	if err != nil {
		logger.Debug().Err(err).Msg("view preferences unavailable")
		s.Prefs = viewprefs.NewService(nil)
	} else {
		s.Prefs = viewprefs.NewService(repo)
		s.closers = append(s.closers, func(context.Context) error { return s.Prefs.Close() })
	}

	s.Cache = swrcache.NewDefault(swrcache.WithLogger(logger.With().Str("component", "cache").Logger()))
	return s, nil
}

// SchedulerConfig returns the fetch scheduler settings derived from the
// configuration.
func (s *Session) SchedulerConfig() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	cfg.Retry = s.Settings.Retry
	cfg.PrefetchMargin = s.Settings.PrefetchMargin
	cfg.SampleBudget = s.Settings.SampleBudget
	return cfg
}

// Processes returns the process list, served from the on-disk cache while it
// is fresh. A stale entry comes back with an error wrapping swrcache.ErrStale.
func (s *Session) Processes(ctx context.Context) (swrcache.Entry[[]domain.ProcessSummary], error) {
	return swrcache.GetOrFetch(s.Cache, ctx, swrcache.Key(s.Settings.BackendURL, "processes"), s.Backend.ListProcesses)
}

// Close flushes traces, releases the preferences database and the log file.
func (s *Session) Close() error {
	s.logFetchTotals()

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// logFetchTotals writes the per-outcome fetch counters to the debug log.
func (s *Session) logFetchTotals() {
	families, err := s.Registry.Gather()
	if err != nil {
		return
	}
	for _, mf := range families {
		if mf.GetName() != "sirius_fetch_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			ev := s.Logger.Debug()
			for _, lp := range m.GetLabel() {
				ev = ev.Str(lp.GetName(), lp.GetValue())
			}
			ev.Float64("count", m.GetCounter().GetValue()).Msg("fetch total")
		}
	}
}
