// Package fetch is the single chokepoint for outbound calls to the external
// music APIs. It composes a per-domain rate limiter, a TTL response cache,
// and a bounded-concurrency queue under a retry/backoff request loop.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muse/internal/shared"
	"github.com/go-resty/resty/v2"
)

const (
	defaultRetries    = 3
	defaultRetryDelay = time.Second
	defaultTimeout    = 15 * time.Second
)

// Options configures a single request.
type Options struct {
	Retries    int           // retry attempts after the first call (default 3)
	RetryDelay time.Duration // backoff base (default 1s)
	CacheTime  time.Duration // GET response TTL; zero disables caching
	Domain     string        // rate-limit bucket; empty disables limiting
	RateLimit  int           // max requests per window
	Window     time.Duration // rate-limit window size
	Headers    map[string]string
	Query      url.Values
	Body       any // JSON-encoded for non-GET requests
}

// Client executes requests through the limiter, cache, and queue. The zero
// value is not usable; construct with [NewClient].
type Client struct {
	http    *resty.Client
	limiter *Limiter
	cache   *Cache
	queue   *Queue
	logger  *log.Logger
	jitter  func() float64
	sleep   func(context.Context, time.Duration) error
}

// ClientOptions configures a [Client]. Zero-value fields get defaults so
// tests can swap in isolated limiter/cache/queue instances or a mock
// transport.
type ClientOptions struct {
	Transport   http.RoundTripper
	Timeout     time.Duration
	Limiter     *Limiter
	Cache       *Cache
	Queue       *Queue
	Logger      *log.Logger
	CacheBounds int
	Concurrency int
}

// NewClient creates a [Client]. The underlying resty client has its own
// retries disabled; classification and backoff belong to this layer.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Limiter == nil {
		opts.Limiter = NewLimiter()
	}
	if opts.Cache == nil {
		opts.Cache = NewCache(opts.CacheBounds)
	}
	if opts.Queue == nil {
		opts.Queue = NewQueue(opts.Concurrency, 0)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	httpClient := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(0)
	if opts.Transport != nil {
		httpClient.SetTransport(opts.Transport)
	}

	return &Client{
		http:    httpClient,
		limiter: opts.Limiter,
		cache:   opts.Cache,
		queue:   opts.Queue,
		logger:  opts.Logger,
		jitter:  rand.Float64,
		sleep:   sleepWithContext,
	}
}

// Get performs a GET request through the full substrate.
func (c *Client) Get(ctx context.Context, rawURL string, opts Options) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, rawURL, opts)
}

// Request performs a request through the full substrate:
//
//  1. The rate limiter is consulted; a denial rejects immediately with a
//     rate-limited error carrying the time until the bucket resets. No retry
//     happens for denials — the caller decides whether to wait and resubmit.
//  2. Cacheable GETs are served from the response cache without touching the
//     network or the queue.
//  3. The network call runs on the queue, retried with exponential backoff
//     plus jitter for transient failures. 401, 403, and 404 never retry:
//     they signal auth failure or permanent absence, and retrying them only
//     burns the shared rate-limit budget.
//
// A 204 or empty 2xx body resolves to nil. Cancellation via ctx threads
// through to the network call; a rate-limit slot already consumed stays
// consumed, since the remote server likely still received the request.
func (c *Client) Request(ctx context.Context, method, rawURL string, opts Options) (json.RawMessage, error) {
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = defaultRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}

	if opts.Domain != "" && !c.limiter.Allow(opts.Domain, opts.RateLimit, opts.Window) {
		retryAfter := c.limiter.RetryAfter(opts.Domain, opts.Window)
		c.logger.Warn("rate limit reached", "domain", opts.Domain, "retry_after", retryAfter)
		return nil, &Error{
			Kind:       KindRateLimited,
			RetryAfter: retryAfter,
			Message:    fmt.Sprintf("request budget for %s exhausted", opts.Domain),
		}
	}

	cacheable := method == http.MethodGet && opts.CacheTime > 0
	key := CacheKey(method, rawURL, opts.Query)
	if cacheable {
		if value, ok := c.cache.Get(key); ok {
			return value, nil
		}
	}

	value, err := c.queue.Submit(ctx, func(ctx context.Context) (json.RawMessage, error) {
		return c.execute(ctx, method, rawURL, opts)
	})
	if err != nil {
		return nil, err
	}

	if cacheable {
		c.cache.Set(key, value, opts.CacheTime)
	}
	return value, nil
}

// execute runs the retry loop for a single request.
func (c *Client) execute(ctx context.Context, method, rawURL string, opts Options) (json.RawMessage, error) {
	var lastErr *Error

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			delay := backoff(opts.RetryDelay, attempt-1, c.jitter())
			if lastErr != nil && lastErr.RetryAfter > delay {
				delay = lastErr.RetryAfter
			}
			c.logger.Debug("retrying request", "url", rawURL, "attempt", attempt, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		value, reqErr := c.attempt(ctx, method, rawURL, opts)
		if reqErr == nil {
			return value, nil
		}
		if !retryable(reqErr) {
			return nil, reqErr
		}
		lastErr = reqErr
	}

	return nil, lastErr
}

// attempt performs one network call and classifies the outcome.
func (c *Client) attempt(ctx context.Context, method, rawURL string, opts Options) (json.RawMessage, *Error) {
	req := c.http.R().SetContext(ctx)
	if len(opts.Headers) > 0 {
		req.SetHeaders(opts.Headers)
	}
	if len(opts.Query) > 0 {
		req.SetQueryParamsFromValues(opts.Query)
	}
	if opts.Body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(opts.Body)
	}

	resp, err := req.Execute(method, rawURL)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: "request failed", Err: err}
	}

	status := resp.StatusCode()
	body := resp.Body()

	switch {
	case status == http.StatusNoContent, status >= 200 && status < 300 && len(body) == 0:
		return nil, nil
	case status >= 200 && status < 300:
		if !json.Valid(body) {
			return nil, &Error{Kind: KindMalformed, Status: status, Message: "response body is not valid JSON"}
		}
		return json.RawMessage(body), nil
	case status == http.StatusUnauthorized:
		return nil, &Error{Kind: KindAuthRequired, Status: status, Message: "authorization required"}
	case status == http.StatusForbidden:
		return nil, &Error{Kind: KindForbidden, Status: status, Message: "access forbidden"}
	case status == http.StatusNotFound:
		return nil, &Error{Kind: KindNotFound, Status: status, Message: "resource not found"}
	case status == http.StatusTooManyRequests:
		return nil, &Error{
			Kind:       KindRateLimited,
			Status:     status,
			RetryAfter: parseRetryAfter(resp.Header()),
			Message:    "remote rate limit",
		}
	default:
		return nil, &Error{
			Kind:       KindTransient,
			Status:     status,
			RetryAfter: parseRetryAfter(resp.Header()),
			Message:    fmt.Sprintf("unexpected status %d", status),
		}
	}
}

// retryable reports whether an attempt outcome may be retried. Remote 429s
// retry (honoring Retry-After); local denials never reach this path.
func retryable(e *Error) bool {
	return e.Kind == KindTransient || (e.Kind == KindRateLimited && e.Status == http.StatusTooManyRequests)
}

// backoff computes retryDelay * 2^attempt scaled by a jitter factor in [0.8, 1.2).
func backoff(base time.Duration, attempt int, random float64) time.Duration {
	factor := 0.8 + random*0.4
	return time.Duration(float64(base) * float64(int64(1)<<attempt) * factor)
}

func parseRetryAfter(h http.Header) time.Duration {
	raw := h.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
