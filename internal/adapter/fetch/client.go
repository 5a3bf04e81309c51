// Package fetch is the retrying HTTP client every feed adapter goes through.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 64 << 20

// Settings tunes the retry and rate-limit behaviour of a Client.
type Settings struct {
	MaxAttempts int           // total calls per request, >= 1
	BaseDelay   time.Duration // delay before retry i is BaseDelay * 2^i
	Timeout     time.Duration // per attempt; 0 disables
	RateLimit   float64       // requests per second across the client; 0 = unlimited
	UserAgent   string
}

// DefaultSettings mirrors the service defaults.
func DefaultSettings() Settings {
	return Settings{MaxAttempts: 3, BaseDelay: time.Second, Timeout: 30 * time.Second}
}

// Client issues HTTP requests, retrying transport errors and every non-2xx
// status (429 included) with exponential backoff and no jitter. It never
// makes more than MaxAttempts calls for one request.
type Client struct {
	httpClient *http.Client
	settings   Settings
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a retrying client. A nil metrics uses an unregistered set.
func NewClient(settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if settings.MaxAttempts < 1 {
		settings.MaxAttempts = 1
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if settings.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(settings.RateLimit), 1)
	}
	return &Client{
		httpClient: &http.Client{Timeout: settings.Timeout},
		settings:   settings,
		limiter:    limiter,
		logger:     logger,
		metrics:    metrics,
	}
}

// Get fetches rawURL and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.do(ctx, rawURL, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
}

// GetJSON fetches rawURL and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// PostForm posts form to rawURL and returns the response body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	encoded := form.Encode()
	return c.do(ctx, rawURL, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (c *Client) do(ctx context.Context, rawURL string, newRequest func(context.Context) (*http.Request, error)) ([]byte, error) {
	attempts := 0
	lastStatus := 0

	op := func() ([]byte, error) {
		attempts++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		req, err := newRequest(ctx)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		if c.settings.UserAgent != "" {
			req.Header.Set("User-Agent", c.settings.UserAgent)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			lastStatus = 0
			return nil, &domain.NetworkError{URL: rawURL, Err: err}
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastStatus = resp.StatusCode
			return nil, &domain.NetworkError{
				URL:        rawURL,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("status %d", resp.StatusCode),
			}
		}
		if readErr != nil {
			lastStatus = 0
			return nil, &domain.NetworkError{URL: rawURL, Err: readErr}
		}
		return body, nil
	}

	notify := func(err error, delay time.Duration) {
		c.metrics.FetchRequests.WithLabelValues("retry").Inc()
		c.logger.Warn("fetch failed, retrying",
			"url", rawURL,
			"attempt", attempts,
			"max_attempts", c.settings.MaxAttempts,
			"delay", delay,
			"error", err,
		)
	}

	body, err := backoff.RetryNotifyWithData(op, c.policy(ctx), notify)
	if err == nil {
		c.metrics.FetchRequests.WithLabelValues("success").Inc()
		return body, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, ctxErr)
	}
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		return nil, err
	}
	c.metrics.FetchRequests.WithLabelValues("exhausted").Inc()
	return nil, &domain.FetchExhaustedError{
		URL:        rawURL,
		Attempts:   attempts,
		StatusCode: lastStatus,
		Err:        err,
	}
}

// policy yields BaseDelay, 2*BaseDelay, 4*BaseDelay, ... for at most
// MaxAttempts-1 retries.
func (c *Client) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.settings.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(1<<62 - 1)
	b.MaxElapsedTime = 0
	b.Reset()
	retries := uint64(c.settings.MaxAttempts - 1)
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}
