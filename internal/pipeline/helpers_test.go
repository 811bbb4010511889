package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/collection"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/observability"
	"github.com/jonboulle/clockwork"
)

// 2020-02-01T00:49:24.042Z
var testNow = time.Date(2020, 2, 1, 0, 49, 24, 42*int(time.Millisecond), time.UTC)

func at(hh, mm int) time.Time {
	return time.Date(2020, 2, 1, hh, mm, 0, 0, time.UTC)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func useFakeClock(t *testing.T) *clockwork.FakeClock {
	t.Helper()
	fc := clockwork.NewFakeClockAt(testNow)
	domain.SetClock(fc)
	t.Cleanup(func() {
		domain.SetClock(nil)
	})
	return fc
}

func testQuery(start, end time.Time) domain.Query {
	return domain.Query{
		Credentials: domain.Credentials{Type: domain.CredentialAPIKey, Token: "key"},
		BBox:        domain.WorldBBox,
		Time:        domain.NewInterval(start, end),
		Limit:       10,
	}
}

// fakeFetcher returns a one-record Blitzen collection per chunk and records
// every interval requested.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []domain.Interval
	fail  map[time.Time]error
	delay time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeFetcher) FetchAll(ctx context.Context, _ domain.Format, q domain.Query) (*collection.Collection, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, q.Time)
	err := f.fail[q.Time.Start]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	body := `[{"start":"` + domain.FormatInstant(q.Time.Start) + `"}]`
	return collection.Parse(domain.FormatBlitzenV3, []byte(body)), nil
}

func (f *fakeFetcher) Calls() []domain.Interval {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Interval(nil), f.calls...)
}

// fakePages serves pages whose HasMore flags follow a script.
type fakePages struct {
	more    []bool
	err     error
	errAt   int
	offsets []int
}

func (f *fakePages) FetchPage(_ context.Context, format domain.Format, _ domain.Query, offset int) (collection.Page, error) {
	f.offsets = append(f.offsets, offset)
	i := len(f.offsets) - 1
	if f.err != nil && i == f.errAt {
		return collection.Page{}, f.err
	}
	hasMore := true
	if i < len(f.more) {
		hasMore = f.more[i]
	}
	return collection.Page{
		Collection: collection.Parse(format, []byte(`[{"page":`+string(rune('0'+i))+`}]`)),
		HasMore:    hasMore,
	}, nil
}
