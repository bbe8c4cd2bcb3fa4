package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
)

type testNetError struct {
	timeout bool
}

func (e testNetError) Error() string   { return "net error" }
func (e testNetError) Timeout() bool   { return e.timeout }
func (e testNetError) Temporary() bool { return false }

func TestDo_RetriesOnRetryableError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, IsRetryable, func() error {
		attempts++
		return testNetError{timeout: true}
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_NoRetryOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, IsRetryable, func() error {
		attempts++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, IsRetryable, func() error {
		attempts++
		if attempts == 1 {
			return &domain.NetworkError{Op: "samples", Err: errors.New("connection reset")}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, Config{MaxAttempts: 3}, IsRetryable, func() error {
		attempts++
		return testNetError{timeout: true}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", attempts)
	}
}

func TestIsRetryable_ContextDeadline(t *testing.T) {
	if !IsRetryable(context.DeadlineExceeded) {
		t.Fatal("expected context deadline to be retryable")
	}
}

func TestIsRetryable_BackendErrorIsTerminal(t *testing.T) {
	if IsRetryable(&domain.BackendError{Op: "samples", Status: 400}) {
		t.Fatal("expected backend error not to be retryable")
	}
}

func TestBackoff_NoBaseDelay(t *testing.T) {
	if delay := Backoff(0, time.Second, 1); delay != 0 {
		t.Fatalf("expected zero delay, got %v", delay)
	}
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	base := 100 * time.Millisecond
	max := 350 * time.Millisecond
	ceilings := []time.Duration{base, 2 * base, max, max, max}
	for i, ceiling := range ceilings {
		attempt := i + 1
		for range 50 {
			if d := Backoff(base, max, attempt); d < 0 || d > ceiling {
				t.Fatalf("attempt %d: delay %v outside [0, %v]", attempt, d, ceiling)
			}
		}
	}
}

func TestBackoff_LargeAttemptDoesNotOverflow(t *testing.T) {
	if d := Backoff(time.Second, time.Minute, 200); d < 0 || d > time.Minute {
		t.Fatalf("delay %v outside [0, 1m]", d)
	}
}
