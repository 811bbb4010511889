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
)

// ChunkSink receives every finalised chunk.
type ChunkSink interface {
	Name() string
	Deliver(ctx context.Context, r ChunkResult) error
}

// CheckpointStore persists the end of the last delivered chunk.
type CheckpointStore interface {
	Load(ctx context.Context) (time.Time, bool, error)
	Save(ctx context.Context, end time.Time) error
}

// ResumeSource reports where previously persisted output ends.
type ResumeSource interface {
	LatestEnd() (time.Time, bool, error)
}

const defaultDeliveryTimeout = 30 * time.Second

// Options tunes a Pipeline. Zero values select the defaults.
type Options struct {
	// MaxParallel bounds concurrent chunk fetches while catching up.
	MaxParallel int
	// DeliveryTimeout bounds each chunk delivery. Deliveries are detached
	// from the Run context so a chunk fetched before shutdown still lands.
	DeliveryTimeout time.Duration
}

// Pipeline streams finalised chunks from a FinalisationTimer into sinks.
type Pipeline struct {
	timer      *FinalisationTimer
	scheduler  *Scheduler
	sinks      []ChunkSink
	checkpoint CheckpointStore
	resume     ResumeSource
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool

	mu        sync.Mutex
	delivered time.Time
}

// New creates a Pipeline. checkpoint and resume may be nil.
func New(timer *FinalisationTimer, sinks []ChunkSink, checkpoint CheckpointStore, resume ResumeSource, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = defaultDeliveryTimeout
	}
	return &Pipeline{
		timer:      timer,
		scheduler:  NewScheduler(timer.fetcher, logger, metrics),
		sinks:      sinks,
		checkpoint: checkpoint,
		resume:     resume,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil if the pipeline has delivered at least one chunk,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not delivered any chunks yet")
	}
	return nil
}

// Run streams chunks until the context is cancelled. The stream starts at the
// saved checkpoint, else where persisted output ends, else q.Time.Start.
// Chunks that finalised between the start and now are delivered first, then
// the FinalisationTimer takes over.
func (p *Pipeline) Run(ctx context.Context, q domain.Query) error {
	start := p.resumePoint(ctx, q.Time.Start)
	p.logger.Info("pipeline started",
		"start", domain.FormatInstant(start),
		"sinks", len(p.sinks),
	)

	start, err := p.catchUp(ctx, q, start)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return p.timer.Run(ctx, q.WithTime(domain.NewInterval(start, time.Time{})), p.handle)
}

// catchUp delivers every whole chunk from start that has already finalised,
// repeating until none is left, and returns where the timer picks up.
func (p *Pipeline) catchUp(ctx context.Context, q domain.Query, start time.Time) (time.Time, error) {
	for {
		results, err := p.scheduler.FetchLatestFinalised(ctx, p.timer.format, p.timer.chunk,
			q.WithTime(domain.NewInterval(start, time.Time{})), p.opts.MaxParallel)
		if err != nil {
			return start, fmt.Errorf("catch up from %s: %w", domain.FormatInstant(start), err)
		}
		if len(results) == 0 {
			return start, nil
		}

		p.logger.Info("catching up on finalised chunks",
			"chunk_start", domain.FormatInstant(start),
			"chunks", len(results),
		)
		for _, r := range results {
			p.handle(ctx, r)
		}
		start = results[len(results)-1].End
	}
}

func (p *Pipeline) resumePoint(ctx context.Context, fallback time.Time) time.Time {
	if p.checkpoint != nil {
		end, ok, err := p.checkpoint.Load(ctx)
		switch {
		case err != nil:
			p.logger.Warn("load checkpoint failed", "error", err)
		case ok:
			p.logger.Info("resuming from checkpoint", "start", domain.FormatInstant(end))
			return end
		}
	}
	if p.resume != nil {
		end, ok, err := p.resume.LatestEnd()
		switch {
		case err != nil:
			p.logger.Warn("scan persisted output failed", "error", err)
		case ok:
			p.logger.Info("resuming from persisted output", "start", domain.FormatInstant(end))
			return end
		}
	}
	return fallback
}

// handle delivers one chunk to every sink and advances the checkpoint when
// all of them succeed. Deliveries are serialized.
func (p *Pipeline) handle(ctx context.Context, r ChunkResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.DeliveryTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	failed := false
	for _, s := range p.sinks {
		if err := s.Deliver(ctx, r); err != nil {
			p.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			p.logger.Error("chunk delivery failed",
				"sink", s.Name(),
				"error", err,
				"chunk_start", domain.FormatInstant(r.Start),
				"chunk_end", domain.FormatInstant(r.End),
			)
			failed = true
		}
	}
	if failed {
		return
	}

	p.ready.Store(true)
	if !r.End.After(p.delivered) {
		return
	}
	p.delivered = r.End
	p.metrics.FinalisedUntil.Set(float64(r.End.Unix()))

	if p.checkpoint == nil {
		return
	}
	if err := p.checkpoint.Save(ctx, r.End); err != nil {
		p.logger.Warn("save checkpoint failed", "error", err, "chunk_end", domain.FormatInstant(r.End))
	}
}

// Status is a point-in-time view of the stream.
type Status struct {
	TimerState     string    `json:"timer_state"`
	FinalisedUntil time.Time `json:"finalised_until,omitzero"`
}

// Status reports the timer state and the end of the last delivered chunk.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{TimerState: p.timer.State(), FinalisedUntil: p.delivered}
}
