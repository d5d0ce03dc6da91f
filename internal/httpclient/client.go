package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/bighogz/secform/internal/config"
	"github.com/bighogz/secform/internal/telemetry"
)

// Shared HTTP client with timeout and connection reuse.
var Default = &http.Client{
	Timeout: config.RequestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// ErrFetch matches every *FetchError via errors.Is.
var ErrFetch = errors.New("httpclient: fetch failed")

// FetchError is a network or HTTP failure retrieving a URL.
// StatusCode is zero when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

func (e *FetchError) retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Fetcher retrieves the raw bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Client fetches documents with an identifying User-Agent, an optional
// request rate limit and bounded retries.
type Client struct {
	httpClient   *http.Client
	userAgent    string
	limiter      *rate.Limiter
	maxRetries   int
	retryBackoff time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = max(n, 0) }
}

// WithRetryBackoff sets the first wait between retries; later waits grow exponentially.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) { c.retryBackoff = d }
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient:   Default,
		userAgent:    config.UserAgent,
		maxRetries:   max(config.MaxRetries, 0),
		retryBackoff: 500 * time.Millisecond,
	}
	WithRateLimit(config.RequestsPerSecond)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch GETs url and returns the body. Network errors, 429 and 5xx
// responses are retried; every failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "httpclient.fetch",
		trace.WithAttributes(attribute.String("http.url", url)))
	defer span.End()

	var body []byte
	attempts := 0
	op := func() error {
		attempts++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(&FetchError{URL: url, Err: err})
			}
		}
		b, err := c.get(ctx, url)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) && fe.retryable() && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Int("http.attempts", attempts))
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response_size", len(body)), attribute.Int("http.attempts", attempts))
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(&FetchError{URL: url, Err: err})
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
