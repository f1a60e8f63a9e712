package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/handiism/manhua-downloader/internal/config"
	"github.com/handiism/manhua-downloader/internal/metrics"
)

// StatusError is returned for any response whose status is not 2xx.
//
// RetryAfter is set when the server sent a parseable Retry-After header.
type StatusError struct {
	URL        string
	Code       int
	Status     string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (%s)", e.Code, e.Status, e.URL)
}

// HasRetryAfter reports whether the server suggested a delay.
func (e *StatusError) HasRetryAfter() bool {
	return e.RetryAfter > 0
}

// CookieFunc supplies the Cookie header value for a request.
type CookieFunc func(ctx context.Context) (string, error)

// Client wraps HTTP operations with the configuration the image host expects.
//
// Client provides:
//   - Configured User-Agent and Referer headers
//   - Session cookie from a CookieFunc
//   - Per-request timeout
//   - Transparent retry of transient failures with exponential cooldown
//   - Optional request pacing
//
// Transient failures are network errors and 500/502/504 responses, plus 503
// without Retry-After. Every other non-2xx status is returned immediately as
// a *StatusError so the caller can classify it.
//
// Example usage:
//
//	client := NewClient(WithReferer("https://www.manhuagui.com/"), WithRetry(3, cooldown))
//	data, err := client.Get(ctx, imageURL)
//	var se *StatusError
//	if errors.As(err, &se) && se.Code == 429 {
//	    // rate limited
//	}
type Client struct {
	httpClient *http.Client
	userAgent  string
	referer    string
	cookie     CookieFunc
	maxRetries int
	cooldown   func(tries int) time.Duration
	limiter    *rate.Limiter
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithReferer sets the Referer header.
func WithReferer(ref string) Option {
	return func(c *Client) { c.referer = ref }
}

// WithCookie sets the source of the Cookie header.
func WithCookie(fn CookieFunc) Option {
	return func(c *Client) { c.cookie = fn }
}

// WithRetry sets how many times a transient failure is retried and the
// wait before each retry.
func WithRetry(maxRetries int, cooldown func(tries int) time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.cooldown = cooldown
	}
}

// WithRateLimit paces requests to at most rps per second. Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger sets the logger used for retry messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new HTTP client.
//
// Without options the client has a 30 second timeout and does not retry.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "manhua-dl",
		cooldown:   func(int) time.Duration { return 0 },
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromSettings creates a client configured from settings.
func FromSettings(s *config.Settings, opts ...Option) *Client {
	base := []Option{
		WithTimeout(s.Timeout()),
		WithUserAgent(s.UserAgent),
		WithReferer(s.Referer),
		WithRetry(s.DownloadMaxRetries, s.RetryCooldown),
		WithRateLimit(s.RequestsPerSecond),
	}
	return NewClient(append(base, opts...)...)
}

// Get performs a GET request and returns the response body as bytes.
//
// Transient failures are retried up to the configured count. Returns a
// *StatusError for non-2xx responses, or the last transport error once
// retries are exhausted.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	for tries := 0; ; tries++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isTransient(err) || tries >= c.maxRetries {
			return nil, err
		}

		c.log.Warn("transient request failure, retrying",
			"url", url, "attempt", tries+1, "max_retries", c.maxRetries, "error", err)
		if err := c.waitForRetry(ctx, tries); err != nil {
			return nil, err
		}
	}
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
	if c.cookie != nil {
		cookie, err := c.cookie(ctx)
		if err != nil {
			return nil, fmt.Errorf("session cookie: %w", err)
		}
		if cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.HTTPRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	metrics.HTTPRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	metrics.HTTPLatency.Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{
			URL:        url,
			Code:       resp.StatusCode,
			Status:     resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) waitForRetry(ctx context.Context, tries int) error {
	t := time.NewTimer(c.cooldown(tries))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
			return true
		case http.StatusServiceUnavailable:
			return !se.HasRetryAfter()
		}
		return false
	}
	return true
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
