// Package viewprefs provides a service layer for per-process view preferences.
package viewprefs

import (
	"time"

	"nathanbeddoewebdev/sirius/internal/viewprefs"
)

// Service wraps the viewprefs repository with best-effort helpers. A nil
// repository turns every call into a no-op, so views work without a database.
type Service struct {
	repo viewprefs.Repository
}

// NewService creates a new preferences service.
func NewService(repo viewprefs.Repository) *Service {
	return &Service{repo: repo}
}

// Close releases repository resources.
func (s *Service) Close() error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Close()
}

// Span returns the remembered chart span for a process, or fallback.
func (s *Service) Span(processID string, fallback time.Duration) time.Duration {
	prefs := s.get(processID)
	if prefs == nil || prefs.Span <= 0 {
		return fallback
	}
	return prefs.Span
}

// Metrics returns the remembered metric selection for a process.
func (s *Service) Metrics(processID string) []string {
	if prefs := s.get(processID); prefs != nil {
		return prefs.Metrics
	}
	return nil
}

// LogFilter returns the remembered log filter for a process.
func (s *Service) LogFilter(processID string) string {
	if prefs := s.get(processID); prefs != nil {
		return prefs.LogFilter
	}
	return ""
}

// SaveChart persists the span and metric selection, keeping the log filter.
func (s *Service) SaveChart(processID string, span time.Duration, metrics []string) {
	s.update(processID, func(p *viewprefs.ViewPrefs) {
		p.Span = span
		p.Metrics = metrics
	})
}

// SaveLogFilter persists the log filter, keeping the chart settings.
func (s *Service) SaveLogFilter(processID, filter string) {
	s.update(processID, func(p *viewprefs.ViewPrefs) { p.LogFilter = filter })
}

func (s *Service) get(processID string) *viewprefs.ViewPrefs {
	if s.repo == nil {
		return nil
	}
	prefs, err := s.repo.Get(processID)
	if err != nil {
		return nil
	}
	return prefs
}

func (s *Service) update(processID string, fn func(*viewprefs.ViewPrefs)) {
	if s.repo == nil {
		return
	}
	prefs := s.get(processID)
	if prefs == nil {
		prefs = &viewprefs.ViewPrefs{ProcessID: processID}
	}
	fn(prefs)
	_ = s.repo.Save(prefs)
}
