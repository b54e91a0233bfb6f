package carddata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public card-detail API endpoint.
const DefaultBaseURL = "https://api.scryfall.com"

// HTTPConfig configures an HTTPProvider.
type HTTPConfig struct {
	// BaseURL of the card API. Defaults to DefaultBaseURL.
	BaseURL string
	// Timeout per HTTP request. Defaults to 15s.
	Timeout time.Duration
	// RequestsPerSecond paces outgoing requests. The public API asks for
	// no more than 10 rps; defaults to 8 to stay under it.
	RequestsPerSecond float64
	// MaxRetries bounds retries on transient failures. Defaults to 2.
	MaxRetries int
	// Logger for request diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// HTTPProvider looks cards up over HTTP.
type HTTPProvider struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	log        *slog.Logger
}

// NewHTTPProvider returns a Provider backed by the named-card endpoint.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPProvider{
		baseURL:    cfg.BaseURL,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxRetries: cfg.MaxRetries,
		log:        log,
	}
}

// Lookup implements Provider. Transient failures (network errors, 429, 5xx)
// are retried with exponential backoff up to MaxRetries; 404 maps to
// ErrNotFound and is never retried.
func (p *HTTPProvider) Lookup(ctx context.Context, hint string) (*Card, error) {
	u := fmt.Sprintf("%s/cards/named?fuzzy=%s", p.baseURL, url.QueryEscape(hint))

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * 500 * time.Millisecond
			p.log.Debug("retrying card lookup", "hint", hint, "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		card, retryable, err := p.fetch(ctx, u)
		if err == nil {
			return card, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("card lookup for %q: %w", hint, lastErr)
}

// fetch performs one request. retryable marks errors worth another attempt.
func (p *HTTPProvider) fetch(ctx context.Context, u string) (card *Card, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var c Card
		if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
			return nil, false, fmt.Errorf("decoding card response: %w", err)
		}
		return &c, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, true, fmt.Errorf("card API returned %s", resp.Status)
	default:
		return nil, false, fmt.Errorf("card API returned %s", resp.Status)
	}
}
