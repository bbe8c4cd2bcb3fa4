package scheduler

import (
	"context"
	"time"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/samplestore"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

// State is the lifecycle of one fetch key.
type State int

const (
	// Idle means nothing has been requested yet, or the last fetch was
	// cancelled.
	Idle State = iota
	// Inflight means at least one fetch for the key is running or waiting
	// out a backoff delay.
	Inflight
	// Fulfilled means the last fetch merged successfully. A fulfilled key
	// accepts new requests like an idle one.
	Fulfilled
	// Failed is terminal: the key will not fetch again until Retry.
	Failed
)

func (s State) String() string {
	switch s {
	case Inflight:
		return "inflight"
	case Fulfilled:
		return "fulfilled"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// KeyStatus is what a view needs to draw a loading or error badge.
type KeyStatus struct {
	State    State
	Attempts int
	RetryAt  time.Time
	Err      error
	// PossiblyIncomplete is only set on the log key: the last requested
	// window reaches back into entries that were already evicted.
	PossiblyIncomplete bool
}

// fetch is one backend call covering one window, retried in place.
type fetch struct {
	id        uint64
	window    timewindow.Window
	gen       uint64
	cancel    context.CancelFunc
	cancelled bool
	done      chan struct{}
	err       error
}

type parkedBatch struct {
	batch domain.SampleBatch
}

// keyState tracks one (metric, tier) key.
type keyState struct {
	key      samplestore.Key
	status   KeyStatus
	gen      uint64
	inflight map[uint64]*fetch
	parked   []parkedBatch
}

func newKeyState(key samplestore.Key) *keyState {
	return &keyState{key: key, inflight: map[uint64]*fetch{}}
}

// Ticket is the handle returned for a request. It covers the fetches the
// request started and the in-flight fetches it was coalesced onto.
type Ticket struct {
	fetches    []*fetch
	err        error
	issued     int
	coalesced  int
	incomplete bool
}

// Issued returns how many backend fetches the request started.
func (t *Ticket) Issued() int { return t.issued }

// Coalesced returns how many already running fetches the request joined.
func (t *Ticket) Coalesced() int { return t.coalesced }

// PossiblyIncomplete reports whether a log request reaches back into entries
// that were evicted before they could be shown.
func (t *Ticket) PossiblyIncomplete() bool { return t.incomplete }

// Empty reports whether the request needed no fetch at all.
func (t *Ticket) Empty() bool { return len(t.fetches) == 0 && t.err == nil }

// Wait blocks until every fetch behind the ticket has settled or ctx is done.
// It returns the first fetch error, or the reason the request was refused.
func (t *Ticket) Wait(ctx context.Context) error {
	if t.err != nil {
		return t.err
	}
	var first error
	for _, f := range t.fetches {
		select {
		case <-f.done:
			if f.err != nil && first == nil {
				first = f.err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return first
}
