package lightning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/collection"
	"github.com/couchcryptid/lightning-strike-client/internal/config"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/observability"
	"github.com/tomnomnom/linkheader"
)

// Authorizer produces the Authorization header value for a set of credentials.
type Authorizer interface {
	Authorization(ctx context.Context, creds domain.Credentials) (string, error)
}

// Client fetches single pages from the strike API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	version    string
	auth       Authorizer
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a strike API client for the configured host and version.
func NewClient(cfg *config.Config, auth Authorizer, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		version:    cfg.APIVersion,
		auth:       auth,
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchPage requests one page of strikes starting at offset.
func (c *Client) FetchPage(ctx context.Context, format domain.Format, q domain.Query, offset int) (collection.Page, error) {
	if err := format.Validate(); err != nil {
		return collection.Page{}, err
	}

	authz, err := c.auth.Authorization(ctx, q.Credentials)
	if err != nil {
		return collection.Page{}, fmt.Errorf("authorize: %w", err)
	}

	u := fmt.Sprintf("%s/%s/strikes?%s", c.baseURL, c.version, encodeParams(q, offset))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return collection.Page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", string(format))
	req.Header.Set("Authorization", authz)

	start := time.Now()
	page, outcome, err := c.do(req, format)
	c.metrics.RequestDuration.WithLabelValues(format.Shape().String()).Observe(time.Since(start).Seconds())
	c.metrics.Requests.WithLabelValues(format.Shape().String(), outcome).Inc()
	if err != nil {
		return collection.Page{}, err
	}

	c.logger.Debug("fetched strike page",
		"format", format.Shape().String(),
		"offset", offset,
		"strikes", page.Collection.Len(),
		"has_more", page.HasMore,
	)
	return page, nil
}

func (c *Client) do(req *http.Request, format domain.Format) (collection.Page, string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return collection.Page{}, "network_error", &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return collection.Page{}, "http_error", &domain.HTTPError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       string(body),
		}
	}

	coll := collection.Read(format, resp.Body)
	if err := coll.Err(); err != nil {
		var ne *domain.NetworkError
		if errors.As(err, &ne) {
			return collection.Page{}, "network_error", err
		}
		return collection.Page{}, "parse_error", err
	}

	return collection.Page{
		Collection: coll,
		HasMore:    hasNext(resp.Header.Values("Link")),
	}, "success", nil
}

// hasNext reports whether any link header carries rel="next".
func hasNext(values []string) bool {
	for _, v := range values {
		if len(linkheader.Parse(v).FilterByRel("next")) > 0 {
			return true
		}
	}
	return false
}
