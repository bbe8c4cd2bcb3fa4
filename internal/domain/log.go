package domain

import (
	"fmt"
	"strings"
	"time"
)

// Cursor is the backend-issued pagination token of a log entry. Cursors are
// opaque but strictly increasing in the order entries were recorded.
type Cursor uint64

// Level is the severity of a log entry.
type Level uint8

const (
	LevelFatal Level = iota + 1
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var levelNames = map[Level]string{
	LevelFatal: "FATAL",
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", uint8(l))
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == upper {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// LogEntry is one line of a process log.
type LogEntry struct {
	Time      time.Time         `json:"time"`
	Cursor    Cursor            `json:"cursor"`
	Level     Level             `json:"level"`
	ProcessID string            `json:"process_id"`
	Target    string            `json:"target"`
	Message   string            `json:"msg"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogPage is one page of forward pagination. A nil NextCursor means the
// backend has no entries after this page.
type LogPage struct {
	Entries    []LogEntry `json:"entries"`
	NextCursor *Cursor    `json:"next_cursor,omitempty"`
}
