package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/retry"
	"nathanbeddoewebdev/sirius/internal/samplestore"
	"nathanbeddoewebdev/sirius/internal/telemetry"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// runSamples fetches f.window, retrying transient failures with backoff, and
// merges the result.
func (s *Scheduler) runSamples(ctx context.Context, key samplestore.Key, f *fetch) {
	defer s.wg.Done()
	defer close(f.done)
	defer f.cancel()

	for attempt := 1; ; attempt++ {
		batch, err := s.fetchSamples(ctx, key, f.window)
		if err == nil {
			f.err = s.mergeSamples(key, f, batch)
			return
		}
		if ctx.Err() != nil {
			f.err = s.settleCancelled(key, f)
			return
		}
		if !domain.IsTransient(err) || attempt >= s.cfg.Retry.MaxAttempts {
			f.err = s.settleFailed(key, f, attempt, err)
			return
		}

		delay := retry.Backoff(s.cfg.Retry.BaseDelay, s.cfg.Retry.MaxDelay, attempt)
		s.markRetry(key, attempt, delay, err)
		if !retry.Sleep(ctx, delay) {
			f.err = s.settleCancelled(key, f)
			return
		}
	}
}

func (s *Scheduler) fetchSamples(ctx context.Context, key samplestore.Key, w timewindow.Window) (domain.SampleBatch, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.FetchSamples", trace.WithAttributes(
		attribute.String("sirius.metric", key.Metric.String()),
		attribute.Int("sirius.tier", int(key.Tier)),
		attribute.String("sirius.window", w.String()),
	))
	defer span.End()

	start := time.Now()
	batch, err := s.backend.FetchSamples(ctx, key.Metric, w)
	s.metrics.ObserveFetch(telemetry.KindSamples, outcomeOf(ctx, err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.SampleBatch{}, err
	}
	span.SetAttributes(attribute.Int("sirius.points", len(batch.Points)))
	return batch, nil
}

func (s *Scheduler) mergeSamples(key samplestore.Key, f *fetch, batch domain.SampleBatch) error {
	s.mu.Lock()
	ks := s.keyStateLocked(key)
	delete(ks.inflight, f.id)

	if f.cancelled || f.gen != ks.gen {
		ks.settleLocked(false)
		s.mu.Unlock()
		s.metrics.CountFetch(telemetry.KindSamples, telemetry.OutcomeDiscarded)
		s.notify()
		return ErrDiscarded
	}

	covered := batch.Covered
	if !covered.Valid() && len(batch.Points) > 0 {
		covered = f.window
	}
	if covered.Valid() && key.Tier != timewindow.Raw {
		// A bucket cut short by the live edge is still filling. Leave it
		// uncovered so the next request fetches it whole.
		covered.End = timewindow.AlignDown(covered.End, s.samples.Ladder().Duration(key.Tier))
	}
	if !covered.Valid() {
		// Nothing complete recorded yet; the window stays a gap.
		ks.settleLocked(true)
		s.mu.Unlock()
		s.notify()
		return nil
	}
	err := s.ingestLocked(ks, batch.Points, covered)
	if err != nil {
		err = &domain.BackendError{Op: "samples", Err: err}
		ks.status = KeyStatus{State: Failed, Attempts: ks.status.Attempts + 1, Err: err}
		s.logger.Error().Err(err).Str("metric", key.Metric.String()).Int("tier", int(key.Tier)).Msg("merge failed")
	} else {
		ks.settleLocked(true)
	}

	evicted := s.samples.Evict(s.cfg.SampleBudget)
	s.metrics.Evicted(len(evicted))
	s.metrics.SetPoints(s.samples.TotalPoints())
	s.mu.Unlock()

	s.notify()
	return err
}

// ingestLocked merges one batch. A batch that cannot join the series
// contiguously is parked while another fetch for the key might bridge the
// gap; otherwise the series is reset around it.
func (s *Scheduler) ingestLocked(ks *keyState, points []domain.DataPoint, covered timewindow.Window) error {
	key := ks.key
	err := s.samples.Ingest(key.Metric, key.Tier, points, covered)

	var discontinuous *domain.DiscontinuousRangeError
	switch {
	case err == nil:
	case errors.As(err, &discontinuous):
		if len(ks.liveFetches()) > 0 {
			ks.parked = append(ks.parked, parkedBatch{batch: domain.SampleBatch{Points: points, Covered: covered}})
			s.logger.Debug().Str("metric", key.Metric.String()).Str("covered", covered.String()).Msg("parked batch")
			return nil
		}
		if !s.relevantLocked(covered) {
			s.logger.Debug().Str("metric", key.Metric.String()).Str("covered", covered.String()).Msg("dropped off-screen batch")
			return nil
		}
		s.logger.Warn().Err(err).Msg("resetting series")
		s.samples.Reset(key.Metric, key.Tier)
		if err := s.samples.Ingest(key.Metric, key.Tier, points, covered); err != nil {
			return fmt.Errorf("ingest after reset: %w", err)
		}
	default:
		return err
	}

	s.drainParkedLocked(ks)
	return nil
}

// drainParkedLocked retries parked batches until none can be merged. Once
// no fetch for the key is running, leftovers can never bridge and are
// dropped; their windows show up as gaps again.
func (s *Scheduler) drainParkedLocked(ks *keyState) {
	for progress := true; progress && len(ks.parked) > 0; {
		progress = false
		var remaining []parkedBatch
		for _, p := range ks.parked {
			err := s.samples.Ingest(ks.key.Metric, ks.key.Tier, p.batch.Points, p.batch.Covered)
			var discontinuous *domain.DiscontinuousRangeError
			switch {
			case err == nil:
				progress = true
			case errors.As(err, &discontinuous):
				remaining = append(remaining, p)
			default:
				s.logger.Warn().Err(err).Str("metric", ks.key.Metric.String()).Msg("dropped parked batch")
			}
		}
		ks.parked = remaining
	}
	if len(ks.parked) > 0 && len(ks.liveFetches()) == 0 {
		s.logger.Debug().Int("batches", len(ks.parked)).Str("metric", ks.key.Metric.String()).Msg("dropped unbridged batches")
		ks.parked = nil
	}
}

func (s *Scheduler) settleCancelled(key samplestore.Key, f *fetch) error {
	s.mu.Lock()
	ks := s.keyStateLocked(key)
	delete(ks.inflight, f.id)
	ks.settleLocked(false)
	if len(ks.liveFetches()) == 0 {
		s.drainParkedLocked(ks)
	}
	s.mu.Unlock()

	s.notify()
	return context.Canceled
}

func (s *Scheduler) settleFailed(key samplestore.Key, f *fetch, attempts int, err error) error {
	s.mu.Lock()
	ks := s.keyStateLocked(key)
	delete(ks.inflight, f.id)
	if f.cancelled || f.gen != ks.gen {
		ks.settleLocked(false)
		s.mu.Unlock()
		s.notify()
		return ErrDiscarded
	}
	ks.status = KeyStatus{State: Failed, Attempts: attempts, Err: err}
	if len(ks.liveFetches()) == 0 {
		s.drainParkedLocked(ks)
	}
	s.mu.Unlock()

	s.logger.Error().
		Err(err).
		Str("metric", key.Metric.String()).
		Int("tier", int(key.Tier)).
		Int("attempts", attempts).
		Msg("fetch failed")
	s.notify()
	return err
}

func (s *Scheduler) markRetry(key samplestore.Key, attempt int, delay time.Duration, err error) {
	s.mu.Lock()
	ks := s.keyStateLocked(key)
	if ks.status.State != Failed {
		ks.status.State = Inflight
		ks.status.Attempts = max(ks.status.Attempts, attempt)
		ks.status.RetryAt = s.now().Add(delay)
		ks.status.Err = err
	}
	s.mu.Unlock()

	s.logger.Warn().
		Err(err).
		Str("metric", key.Metric.String()).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("fetch failed, backing off")
	s.notify()
}

func outcomeOf(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeOK
	case ctx.Err() != nil:
		return telemetry.OutcomeCancelled
	case domain.IsTransient(err):
		return telemetry.OutcomeRetry
	default:
		return telemetry.OutcomeFailed
	}
}
