package domain

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// Sentinel errors for classifying backend failures. Backends wrap these so the
// CLI and views can react to a category without knowing the transport.
//
//	return fmt.Errorf("failed to list processes: %w", domain.ErrUnauthorized)
var (
	// ErrNotFound indicates the requested process or metric does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the query service rejected the credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrCursorExhausted is reported once the backend has signalled that no
	// log entries remain after the last cursor. It is not a failure; views
	// show it as "no more entries".
	ErrCursorExhausted = errors.New("no more entries")
)

// NetworkError is a transient failure reaching the backend. The scheduler
// retries it with backoff.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BackendError is a failure the backend reported deliberately, such as an
// invalid range or a body that could not be decoded. It is never retried.
type BackendError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: backend error (%d): %s", e.Op, e.Status, msg)
	}
	return fmt.Sprintf("%s: backend error: %s", e.Op, msg)
}

func (e *BackendError) Unwrap() error { return e.Err }

// DiscontinuousRangeError reports that merging a fetched range into a series
// would leave a hole in its coverage.
type DiscontinuousRangeError struct {
	Metric  MetricID
	Tier    timewindow.Tier
	Covered timewindow.Window
	Got     timewindow.Window
}

func (e *DiscontinuousRangeError) Error() string {
	return fmt.Sprintf("discontinuous range for %s tier %d: covered %s, got %s",
		e.Metric, e.Tier, e.Covered, e.Got)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
