package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/looplab/fsm"
)

// Timer states.
const (
	StateIdle     = "idle"
	StateWaiting  = "waiting"
	StateFetching = "fetching"
	StateStopped  = "stopped"
)

const (
	eventStart = "start"
	eventFire  = "fire"
	eventWait  = "wait"
	eventStop  = "stop"
)

// CallbackMode controls whether the timer waits for the chunk callback.
type CallbackMode string

const (
	// CallbackAsync hands each chunk to the callback on its own goroutine and
	// arms the next wait immediately.
	CallbackAsync CallbackMode = "async"
	// CallbackSync runs the callback before arming the next wait.
	CallbackSync CallbackMode = "sync"
)

// FailurePolicy controls what a failed chunk fetch does to the run.
type FailurePolicy string

const (
	// FailureContinue logs the failure and moves on to the next chunk.
	FailureContinue FailurePolicy = "continue"
	// FailureStop ends the run with the fetch error.
	FailureStop FailurePolicy = "stop"
)

// Reschedule controls how the wait before the next fetch is computed.
type Reschedule string

const (
	// RescheduleFixedDelay waits chunk + grace from the end of each fetch.
	RescheduleFixedDelay Reschedule = "fixed-delay"
	// RescheduleAligned waits until the next chunk end plus grace.
	RescheduleAligned Reschedule = "aligned"
)

// TimerOptions tunes a FinalisationTimer. Zero values select the defaults.
type TimerOptions struct {
	CallbackMode  CallbackMode
	FailurePolicy FailurePolicy
	Reschedule    Reschedule
	// OnError is called with the chunk bounds of every failed fetch.
	OnError func(iv domain.Interval, err error)
}

func (o TimerOptions) withDefaults() TimerOptions {
	if o.CallbackMode == "" {
		o.CallbackMode = CallbackAsync
	}
	if o.FailurePolicy == "" {
		o.FailurePolicy = FailureContinue
	}
	if o.Reschedule == "" {
		o.Reschedule = RescheduleFixedDelay
	}
	return o
}

// ChunkCallback receives each finalised chunk.
type ChunkCallback func(ctx context.Context, r ChunkResult)

// FinalisationTimer fetches each chunk of an open-ended query once it has
// crossed the finalised horizon. A single wait is armed at a time.
type FinalisationTimer struct {
	fetcher AllFetcher
	format  domain.Format
	chunk   time.Duration
	grace   time.Duration
	opts    TimerOptions
	machine *fsm.FSM
	ready   atomic.Bool
	inbox   sync.WaitGroup
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFinalisationTimer creates an idle timer for format and chunk length.
func NewFinalisationTimer(fetcher AllFetcher, format domain.Format, chunk time.Duration, opts TimerOptions, logger *slog.Logger, metrics *observability.Metrics) *FinalisationTimer {
	return &FinalisationTimer{
		fetcher: fetcher,
		format:  format,
		chunk:   chunk,
		grace:   domain.FinalisedGracePeriod,
		opts:    opts.withDefaults(),
		machine: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: eventStart, Src: []string{StateIdle, StateStopped}, Dst: StateWaiting},
				{Name: eventFire, Src: []string{StateWaiting}, Dst: StateFetching},
				{Name: eventWait, Src: []string{StateFetching}, Dst: StateWaiting},
				{Name: eventStop, Src: []string{StateIdle, StateWaiting, StateFetching}, Dst: StateStopped},
			},
			fsm.Callbacks{},
		),
		logger:  logger,
		metrics: metrics,
	}
}

// State returns the current timer state.
func (t *FinalisationTimer) State() string {
	return t.machine.Current()
}

// CheckReadiness returns nil once a chunk has been fetched.
func (t *FinalisationTimer) CheckReadiness(_ context.Context) error {
	if !t.ready.Load() {
		return errors.New("no finalised chunk fetched yet")
	}
	return nil
}

// Run waits for each chunk from q.Time.Start onwards to finalise, fetches it,
// and passes it to cb. It blocks until ctx is cancelled, returning nil, or
// until a fetch fails under FailureStop. Async callbacks still in flight are
// awaited before Run returns.
func (t *FinalisationTimer) Run(ctx context.Context, q domain.Query, cb ChunkCallback) error {
	if t.chunk <= 0 {
		return fmt.Errorf("chunk duration %s must be positive", t.chunk)
	}
	if err := q.ValidateOpen(); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	if err := t.machine.Event(context.Background(), eventStart); err != nil {
		return fmt.Errorf("finalisation timer already running: %w", err)
	}
	defer t.inbox.Wait()
	defer t.transition(eventStop)

	t.metrics.TimerRunning.Set(1)
	defer t.metrics.TimerRunning.Set(0)

	logger := t.logger.With("run_id", uuid.NewString())
	clock := domain.Clock()

	now := clock.Now()
	cursor := t.firstPending(q.Time.Start.UTC(), now)
	wait := cursor.Add(t.chunk + t.grace).Sub(now)
	logger.Info("finalisation timer started",
		"format", t.format.Shape().String(),
		"chunk_start", domain.FormatInstant(cursor),
		"delay", wait,
		"reschedule", string(t.opts.Reschedule),
	)

	for {
		if !sleepWithContext(ctx, clock, wait) {
			logger.Info("finalisation timer stopping", "reason", ctx.Err())
			return nil
		}
		t.transition(eventFire)

		iv := domain.NewInterval(cursor, cursor.Add(t.chunk))
		if err := t.fetch(ctx, logger, q, iv, cb); err != nil {
			if ctx.Err() != nil {
				logger.Info("finalisation timer stopping", "reason", ctx.Err())
				return nil
			}
			if t.opts.FailurePolicy == FailureStop {
				return err
			}
		}

		cursor = iv.End
		wait = t.nextWait(cursor, clock.Now())
		t.transition(eventWait)
		logger.Debug("next chunk scheduled",
			"chunk_start", domain.FormatInstant(cursor),
			"delay", wait,
		)
	}
}

// firstPending advances from start in whole chunks to the first chunk that
// has not finalised at now.
func (t *FinalisationTimer) firstPending(start, now time.Time) time.Time {
	horizon := now.Add(-t.grace)
	cursor := start
	for cursor.Add(t.chunk).Before(horizon) {
		cursor = cursor.Add(t.chunk)
	}
	return cursor
}

func (t *FinalisationTimer) nextWait(cursor, now time.Time) time.Duration {
	if t.opts.Reschedule == RescheduleAligned {
		return max(cursor.Add(t.chunk+t.grace).Sub(now), 0)
	}
	return t.chunk + t.grace
}

func (t *FinalisationTimer) fetch(ctx context.Context, logger *slog.Logger, q domain.Query, iv domain.Interval, cb ChunkCallback) error {
	start := time.Now()
	coll, err := t.fetcher.FetchAll(ctx, t.format, q.WithTime(iv))
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		t.metrics.ChunkFetchErrors.Inc()
		logger.Error("finalised chunk fetch failed",
			"error", err,
			"chunk_start", domain.FormatInstant(iv.Start),
			"chunk_end", domain.FormatInstant(iv.End),
		)
		if t.opts.OnError != nil {
			t.opts.OnError(iv, err)
		}
		return fmt.Errorf("fetch chunk %s: %w", iv, err)
	}

	t.metrics.ChunksFetched.Inc()
	t.metrics.ChunkStrikes.Observe(float64(coll.Len()))
	t.metrics.ChunkFetchDuration.Observe(time.Since(start).Seconds())
	t.ready.Store(true)
	logger.Info("finalised chunk fetched",
		"chunk_start", domain.FormatInstant(iv.Start),
		"chunk_end", domain.FormatInstant(iv.End),
		"strikes", coll.Len(),
	)

	r := ChunkResult{Collection: coll, Start: iv.Start, End: iv.End}
	if t.opts.CallbackMode == CallbackSync {
		cb(ctx, r)
		return nil
	}
	t.inbox.Add(1)
	go func() {
		defer t.inbox.Done()
		cb(ctx, r)
	}()
	return nil
}

func (t *FinalisationTimer) transition(event string) {
	if err := t.machine.Event(context.Background(), event); err != nil {
		t.logger.Debug("timer transition skipped", "event", event, "state", t.machine.Current(), "error", err)
	}
}

// sleepWithContext waits d on clock. It returns false if ctx ends first.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
