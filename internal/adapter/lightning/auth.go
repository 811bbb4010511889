package lightning

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const tokenCacheSize = 64

// TokenSource resolves credentials into an Authorization header value.
// Client credentials are exchanged for a JWT once and reused until it
// expires.
type TokenSource struct {
	tokenURL   string
	httpClient *http.Client
	sources    *lru.Cache[string, oauth2.TokenSource]
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewTokenSource creates a resolver. tokenURL may be empty when client
// credentials are not used.
func NewTokenSource(tokenURL string, httpClient *http.Client, logger *slog.Logger, metrics *observability.Metrics) (*TokenSource, error) {
	cache, err := lru.New[string, oauth2.TokenSource](tokenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenSource{
		tokenURL:   tokenURL,
		httpClient: httpClient,
		sources:    cache,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Authorization implements Authorizer.
func (s *TokenSource) Authorization(ctx context.Context, creds domain.Credentials) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}
	switch creds.Type {
	case domain.CredentialAPIKey:
		return "ApiKey " + creds.Token, nil
	case domain.CredentialJWT:
		return "Bearer " + creds.Token, nil
	default:
		tok, err := s.exchange(creds)
		if err != nil {
			return "", err
		}
		return "Bearer " + tok, nil
	}
}

func (s *TokenSource) exchange(creds domain.Credentials) (string, error) {
	if s.tokenURL == "" {
		return "", fmt.Errorf("client credentials for %s: no token URL configured", creds.ClientID)
	}
	key := creds.ClientID + "\x00" + creds.ClientSecret
	src, ok := s.sources.Get(key)
	if !ok {
		src = oauth2.ReuseTokenSource(nil, &exchangeSource{
			cfg: &clientcredentials.Config{
				ClientID:     creds.ClientID,
				ClientSecret: creds.ClientSecret,
				TokenURL:     s.tokenURL,
			},
			ctx:      context.WithValue(context.Background(), oauth2.HTTPClient, s.httpClient),
			clientID: creds.ClientID,
			logger:   s.logger,
			metrics:  s.metrics,
		})
		s.sources.Add(key, src)
	}

	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("exchange client credentials: %w", err)
	}
	return tok.AccessToken, nil
}

// exchangeSource performs one client-credentials grant per call.
type exchangeSource struct {
	cfg      *clientcredentials.Config
	ctx      context.Context
	clientID string
	logger   *slog.Logger
	metrics  *observability.Metrics
}

func (e *exchangeSource) Token() (*oauth2.Token, error) {
	tok, err := e.cfg.Token(e.ctx)
	if err != nil {
		e.metrics.TokenExchanges.WithLabelValues("error").Inc()
		return nil, err
	}
	e.metrics.TokenExchanges.WithLabelValues("success").Inc()
	e.logger.Info("exchanged client credentials", "client_id", e.clientID, "expiry", tok.Expiry)
	return tok, nil
}
