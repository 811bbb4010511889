package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/lightning-strike-client/internal/collection"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/observability"
)

// PageFetcher fetches a single page of strikes.
type PageFetcher interface {
	FetchPage(ctx context.Context, format domain.Format, q domain.Query, offset int) (collection.Page, error)
}

// AllFetcher fetches every page of a query as one collection.
type AllFetcher interface {
	FetchAll(ctx context.Context, format domain.Format, q domain.Query) (*collection.Collection, error)
}

// Exhaustive follows pagination until the API stops advertising a next page,
// merging pages in arrival order.
type Exhaustive struct {
	pages    PageFetcher
	maxPages int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewExhaustive wraps a page fetcher. maxPages caps the pages per query;
// zero means unbounded.
func NewExhaustive(pages PageFetcher, maxPages int, logger *slog.Logger, metrics *observability.Metrics) *Exhaustive {
	return &Exhaustive{
		pages:    pages,
		maxPages: maxPages,
		logger:   logger,
		metrics:  metrics,
	}
}

// FetchAll implements AllFetcher.
func (e *Exhaustive) FetchAll(ctx context.Context, format domain.Format, q domain.Query) (*collection.Collection, error) {
	page, err := e.pages.FetchPage(ctx, format, q, 0)
	if err != nil {
		return nil, err
	}
	e.metrics.PagesFetched.Inc()

	acc := page.Collection
	fetched, offset := 1, 0
	for page.HasMore {
		if e.maxPages > 0 && fetched >= e.maxPages {
			return nil, fmt.Errorf("%w: %d pages for %s", domain.ErrPageLimitExceeded, fetched, q.Time)
		}
		offset += q.Limit

		page, err = e.pages.FetchPage(ctx, format, q, offset)
		if err != nil {
			return nil, err
		}
		e.metrics.PagesFetched.Inc()
		fetched++

		if _, err := acc.Merge(page.Collection); err != nil {
			return nil, fmt.Errorf("merge page at offset %d: %w", offset, err)
		}
	}

	if fetched > 1 {
		e.logger.Debug("merged strike pages", "pages", fetched, "strikes", acc.Len(), "format", format.Shape().String())
	}
	return acc, nil
}
