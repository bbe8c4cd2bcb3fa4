package viewprefs

import "time"

// ViewPrefs holds what a user last looked at for one process.
type ViewPrefs struct {
	ID        int64
	ProcessID string
	Span      time.Duration
	Metrics   []string
	LogFilter string
	UpdatedAt time.Time
}
