package services_test

import (
	"context"
	"testing"
	"time"

	"nathanbeddoewebdev/sirius/internal/services"
	"nathanbeddoewebdev/sirius/internal/services/auth"
	"nathanbeddoewebdev/sirius/internal/services/sessiontest"

	"github.com/google/go-cmp/cmp"
)

func TestOpen_AppliesSettings(t *testing.T) {
	sessiontest.Setup(t, 1)
	t.Setenv("SIRIUS_PREFETCH_MARGIN", "0.5")
	t.Setenv("SIRIUS_RETRY_MAX_ATTEMPTS", "2")

	s, err := services.Open(context.Background(), services.Options{Store: auth.NewMockStore()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := s.SchedulerConfig()
	if cfg.PrefetchMargin != 0.5 {
		t.Errorf("PrefetchMargin = %v, want 0.5", cfg.PrefetchMargin)
	}
	if cfg.Retry.MaxAttempts != 2 {
		t.Errorf("Retry.MaxAttempts = %d, want 2", cfg.Retry.MaxAttempts)
	}
	if cfg.SampleBudget != 200_000 {
		t.Errorf("SampleBudget = %d, want the default 200000", cfg.SampleBudget)
	}
}

func TestOpen_InvalidSetting(t *testing.T) {
	sessiontest.Setup(t, 1)
	t.Setenv("SIRIUS_DEFAULT_WINDOW", "forever")

	if _, err := services.Open(context.Background(), services.Options{Store: auth.NewMockStore()}); err == nil {
		t.Fatal("expected an error for an invalid default-window")
	}
}

func TestSession_ProcessesAreCached(t *testing.T) {
	d := sessiontest.Setup(t, 3)

	s, err := services.Open(context.Background(), services.Options{Store: auth.NewMockStore()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	first, err := s.Processes(context.Background())
	if err != nil {
		t.Fatalf("Processes: %v", err)
	}
	want, err := d.ListProcesses(context.Background())
	if err != nil {
		t.Fatalf("ListProcesses: %v", err)
	}
	if diff := cmp.Diff(want, first.Data); diff != "" {
		t.Errorf("process list mismatch (-want +got):\n%s", diff)
	}

	second, err := s.Processes(context.Background())
	if err != nil {
		t.Fatalf("second Processes: %v", err)
	}
	if !second.FetchedAt.Equal(first.FetchedAt) {
		t.Errorf("second call refetched: %s != %s", second.FetchedAt.Format(time.RFC3339Nano), first.FetchedAt.Format(time.RFC3339Nano))
	}
}

func TestSession_PrefsPersist(t *testing.T) {
	sessiontest.Setup(t, 1)

	s, err := services.Open(context.Background(), services.Options{Store: auth.NewMockStore()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Prefs.SaveChart("p1", 15*time.Minute, []string{"cpu_usage"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = services.Open(context.Background(), services.Options{Store: auth.NewMockStore()})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if got := s.Prefs.Span("p1", time.Hour); got != 15*time.Minute {
		t.Errorf("Span = %s, want 15m", got)
	}
	if diff := cmp.Diff([]string{"cpu_usage"}, s.Prefs.Metrics("p1")); diff != "" {
		t.Errorf("Metrics mismatch (-want +got):\n%s", diff)
	}
}
