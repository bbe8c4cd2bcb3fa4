package scheduler

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/retry"
	"nathanbeddoewebdev/sirius/internal/telemetry"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// RequestLogs fetches the next page of entries needed to fill window.
// Concurrent requests share a single backend call; the cursor is read when
// that call starts, so a page is never fetched twice. Once the backend has
// reported the end of the log the ticket carries domain.ErrCursorExhausted.
func (s *Scheduler) RequestLogs(window timewindow.Window) *Ticket {
	if s.logs == nil {
		return &Ticket{err: errNoLogStore}
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return &Ticket{err: ErrClosed}
	}

	gap, err := s.logs.CursorForGap(window)
	if err != nil {
		return &Ticket{err: err}
	}

	s.logMu.Lock()
	s.logIncomplete = gap.PossiblyIncomplete
	if s.logStatus.State == Failed {
		st := s.logStatus
		s.logMu.Unlock()
		return &Ticket{err: st.Err, incomplete: gap.PossiblyIncomplete}
	}
	s.logStatus.State = Inflight
	s.logMu.Unlock()
	if gap.PossiblyIncomplete {
		s.logger.Debug().Str("process", s.processID).Msg("log window reaches into evicted entries")
	}

	f := &fetch{window: window, done: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(f.done)

		ran := false
		_, err, _ := s.logGroup.Do(s.processID, func() (any, error) {
			ran = true
			next, err := s.logs.CursorForGap(window)
			if err != nil {
				s.setLogStatus(KeyStatus{State: Fulfilled})
				return nil, err
			}
			return nil, s.runLogPage(next.After)
		})
		if !ran {
			s.metrics.Coalesced(1)
		}
		f.err = err
	}()
	return &Ticket{fetches: []*fetch{f}, issued: 1, incomplete: gap.PossiblyIncomplete}
}

// FollowLogs re-opens an exhausted log so the next request polls for
// entries written since.
func (s *Scheduler) FollowLogs() {
	if s.logs != nil {
		s.logs.ResumeTail()
	}
}

// RetryLogs clears a terminal log failure.
func (s *Scheduler) RetryLogs() {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if s.logStatus.State == Failed {
		s.logStatus = KeyStatus{}
	}
}

// LogStatus returns the state of the log pagination key.
func (s *Scheduler) LogStatus() KeyStatus {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	st := s.logStatus
	st.PossiblyIncomplete = s.logIncomplete
	return st
}

func (s *Scheduler) runLogPage(after *domain.Cursor) error {
	for attempt := 1; ; attempt++ {
		page, err := s.fetchLogPage(s.ctx, after)
		if err == nil {
			res := s.logs.AppendPage(page)
			s.metrics.SetLogEntries(s.logs.Len())
			s.setLogStatus(KeyStatus{State: Fulfilled})
			s.logger.Debug().
				Str("process", s.processID).
				Int("added", res.Added).
				Int("duplicates", res.Duplicates).
				Int("evicted", res.Evicted).
				Msg("log page merged")
			s.notify()
			return nil
		}
		if s.ctx.Err() != nil {
			s.setLogStatus(KeyStatus{})
			return s.ctx.Err()
		}
		if !domain.IsTransient(err) || attempt >= s.cfg.Retry.MaxAttempts {
			s.setLogStatus(KeyStatus{State: Failed, Attempts: attempt, Err: err})
			s.logger.Error().Err(err).Str("process", s.processID).Int("attempts", attempt).Msg("log fetch failed")
			s.notify()
			return err
		}

		delay := retry.Backoff(s.cfg.Retry.BaseDelay, s.cfg.Retry.MaxDelay, attempt)
		s.setLogStatus(KeyStatus{State: Inflight, Attempts: attempt, RetryAt: s.now().Add(delay), Err: err})
		s.notify()
		if !retry.Sleep(s.ctx, delay) {
			s.setLogStatus(KeyStatus{})
			return s.ctx.Err()
		}
	}
}

func (s *Scheduler) fetchLogPage(ctx context.Context, after *domain.Cursor) (domain.LogPage, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.FetchLogPage", trace.WithAttributes(
		attribute.String("sirius.process", s.processID),
		attribute.String("sirius.cursor", cursorString(after)),
	))
	defer span.End()

	start := time.Now()
	page, err := s.backend.FetchLogPage(ctx, s.processID, after, s.cfg.LogPageSize)
	s.metrics.ObserveFetch(telemetry.KindLogPage, outcomeOf(ctx, err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.LogPage{}, err
	}
	span.SetAttributes(attribute.Int("sirius.entries", len(page.Entries)))
	return page, nil
}

func (s *Scheduler) setLogStatus(st KeyStatus) {
	s.logMu.Lock()
	s.logStatus = st
	s.logMu.Unlock()
}

func cursorString(c *domain.Cursor) string {
	if c == nil {
		return "start"
	}
	return strconv.FormatUint(uint64(*c), 10)
}
