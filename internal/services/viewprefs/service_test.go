package viewprefs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/sirius/internal/viewprefs"
)

const pid = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

func newService(t *testing.T) *Service {
	t.Helper()
	repo, err := viewprefs.OpenAt(filepath.Join(t.TempDir(), "sirius.db"))
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	s := NewService(repo)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestService_Fallbacks(t *testing.T) {
	s := newService(t)
	if got := s.Span(pid, time.Hour); got != time.Hour {
		t.Errorf("Span = %s, want fallback 1h", got)
	}
	if got := s.Metrics(pid); got != nil {
		t.Errorf("Metrics = %v, want nil", got)
	}
	if got := s.LogFilter(pid); got != "" {
		t.Errorf("LogFilter = %q, want empty", got)
	}
}

func TestService_SavesAreIndependent(t *testing.T) {
	s := newService(t)

	s.SaveChart(pid, 10*time.Minute, []string{"cpu_usage"})
	s.SaveLogFilter(pid, "render")

	if got := s.Span(pid, time.Hour); got != 10*time.Minute {
		t.Errorf("Span = %s, want 10m", got)
	}
	if diff := cmp.Diff([]string{"cpu_usage"}, s.Metrics(pid)); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
	if got := s.LogFilter(pid); got != "render" {
		t.Errorf("LogFilter = %q, want %q", got, "render")
	}

	s.SaveChart(pid, time.Minute, nil)
	if got := s.LogFilter(pid); got != "render" {
		t.Errorf("LogFilter after SaveChart = %q, want it kept", got)
	}
}

func TestService_NilRepository(t *testing.T) {
	s := NewService(nil)
	s.SaveChart(pid, time.Minute, []string{"x"})
	if got := s.Span(pid, time.Hour); got != time.Hour {
		t.Errorf("Span = %s, want fallback", got)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
