package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/collection"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/observability"
	"golang.org/x/sync/errgroup"
)

// ChunkResult pairs one chunk's merged strikes with its concrete bounds.
type ChunkResult struct {
	Collection *collection.Collection
	Start      time.Time
	End        time.Time
}

// Interval returns the chunk bounds.
func (r ChunkResult) Interval() domain.Interval {
	return domain.NewInterval(r.Start, r.End)
}

// Scheduler splits finalised windows into chunks and fetches them in
// bounded parallel batches.
type Scheduler struct {
	fetcher AllFetcher
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewScheduler creates a Scheduler backed by an exhaustive fetcher.
func NewScheduler(fetcher AllFetcher, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{fetcher: fetcher, logger: logger, metrics: metrics}
}

// FetchChunked fetches q.Time in chunks of length chunk, at most maxParallel
// at a time. Results are in chunk order. The window must end before the
// finalised horizon; maxParallel <= 0 selects DefaultParallelQueries.
func (s *Scheduler) FetchChunked(ctx context.Context, format domain.Format, chunk time.Duration, q domain.Query, maxParallel int) ([]ChunkResult, error) {
	if maxParallel <= 0 {
		maxParallel = domain.DefaultParallelQueries
	}
	if horizon := domain.Horizon(domain.Now()); !q.Time.End.Before(horizon) {
		return nil, &domain.NotYetFinalisedError{End: q.Time.End, Horizon: horizon}
	}
	if maxParallel > domain.MaxParallelQueries {
		return nil, &domain.TooManyParallelQueriesError{Requested: maxParallel, Max: domain.MaxParallelQueries}
	}
	if chunk <= 0 {
		return nil, fmt.Errorf("chunk duration %s must be positive", chunk)
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	chunks := q.Time.Split(chunk)
	results := make([]ChunkResult, len(chunks))
	for lo := 0; lo < len(chunks); lo += maxParallel {
		hi := min(lo+maxParallel, len(chunks))
		if err := s.fetchBatch(ctx, format, q, chunks[lo:hi], results[lo:hi]); err != nil {
			return nil, err
		}
	}

	s.logger.Info("fetched chunked window",
		"window", q.Time.String(),
		"chunks", len(chunks),
		"max_parallel", maxParallel,
	)
	return results, nil
}

// fetchBatch fetches every chunk of one batch concurrently, writing each
// result at its chunk's index. The first failure cancels the rest.
func (s *Scheduler) fetchBatch(ctx context.Context, format domain.Format, q domain.Query, chunks []domain.Interval, out []ChunkResult) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, iv := range chunks {
		g.Go(func() error {
			r, err := s.fetchChunk(gctx, format, q, iv)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) fetchChunk(ctx context.Context, format domain.Format, q domain.Query, iv domain.Interval) (ChunkResult, error) {
	start := time.Now()
	coll, err := s.fetcher.FetchAll(ctx, format, q.WithTime(iv))
	if err != nil {
		s.metrics.ChunkFetchErrors.Inc()
		return ChunkResult{}, fmt.Errorf("fetch chunk %s: %w", iv, err)
	}
	s.metrics.ChunksFetched.Inc()
	s.metrics.ChunkStrikes.Observe(float64(coll.Len()))
	s.metrics.ChunkFetchDuration.Observe(time.Since(start).Seconds())

	s.logger.Debug("fetched chunk",
		"chunk_start", domain.FormatInstant(iv.Start),
		"chunk_end", domain.FormatInstant(iv.End),
		"strikes", coll.Len(),
	)
	return ChunkResult{Collection: coll, Start: iv.Start, End: iv.End}, nil
}

// FetchLatestFinalised fetches every whole chunk from q.Time.Start up to the
// last one that has finalised. q.Time.End is ignored. When no whole chunk
// has finalised yet the result is empty.
func (s *Scheduler) FetchLatestFinalised(ctx context.Context, format domain.Format, chunk time.Duration, q domain.Query, maxParallel int) ([]ChunkResult, error) {
	if chunk <= 0 {
		return nil, fmt.Errorf("chunk duration %s must be positive", chunk)
	}
	if q.Time.Start.IsZero() {
		return nil, fmt.Errorf("latest finalised fetch requires a start time")
	}

	horizon := domain.Horizon(domain.Now())
	cursor := q.Time.Start.UTC()
	for cursor.Before(horizon) {
		cursor = cursor.Add(chunk)
	}
	end := cursor.Add(-chunk)
	if !end.After(q.Time.Start) {
		s.logger.Info("no finalised chunk yet",
			"start", domain.FormatInstant(q.Time.Start),
			"horizon", domain.FormatInstant(horizon),
		)
		return nil, nil
	}
	return s.FetchChunked(ctx, format, chunk, q.WithTime(domain.NewInterval(q.Time.Start, end)), maxParallel)
}
