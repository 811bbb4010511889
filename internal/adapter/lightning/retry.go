package lightning

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/lightning-strike-client/internal/collection"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultMaxAttempts is the number of tries per page, including the first.
const DefaultMaxAttempts = 3

// Fetcher is the single-attempt page fetch that Retrying wraps.
type Fetcher interface {
	FetchPage(ctx context.Context, format domain.Format, q domain.Query, offset int) (collection.Page, error)
}

// Retrying retries failed page fetches with a linearly growing delay:
// unit after the first failure, 2*unit after the second, and so on. The
// final failure is returned as-is. Parse and format errors are not retried.
type Retrying struct {
	next        Fetcher
	unit        time.Duration
	maxAttempts int
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewRetrying wraps next with DefaultMaxAttempts tries.
func NewRetrying(next Fetcher, unit time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Retrying {
	return &Retrying{
		next:        next,
		unit:        unit,
		maxAttempts: DefaultMaxAttempts,
		clock:       domain.Clock(),
		logger:      logger,
		metrics:     metrics,
	}
}

// FetchPage implements Fetcher.
func (r *Retrying) FetchPage(ctx context.Context, format domain.Format, q domain.Query, offset int) (collection.Page, error) {
	var (
		page    collection.Page
		attempt int
	)
	op := func() error {
		attempt++
		p, err := r.next.FetchPage(ctx, format, q, offset)
		if err != nil {
			if domain.IsPermanent(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		page = p
		return nil
	}
	notify := func(err error, delay time.Duration) {
		r.metrics.Retries.Inc()
		r.logger.Warn("strike page fetch failed, retrying",
			"error", err,
			"attempt", attempt,
			"delay", delay,
			"offset", offset,
		)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{unit: r.unit}, uint64(max(r.maxAttempts-1, 0))),
		ctx,
	)
	if err := backoff.RetryNotifyWithTimer(op, b, notify, &clockTimer{clock: r.clock}); err != nil {
		return collection.Page{}, err
	}
	return page, nil
}

// linearBackOff waits attempt*unit before each retry.
type linearBackOff struct {
	unit    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.unit
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// clockTimer drives backoff waits from a clockwork clock.
type clockTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.Chan()
}
