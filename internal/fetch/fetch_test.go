package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	mock "github.com/desertthunder/muse/internal/testing"
)

func newTestClient(transport http.RoundTripper) *Client {
	c := NewClient(ClientOptions{Transport: transport})
	c.sleep = func(context.Context, time.Duration) error { return nil }
	c.jitter = func() float64 { return 0.5 }
	return c
}

func TestClientRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("transient failures retry then succeed", func(t *testing.T) {
		st := mock.NewScriptedTransport(
			mock.Step{Status: http.StatusInternalServerError, Body: `{"error":"oops"}`},
			mock.Step{Status: http.StatusBadGateway, Body: ``},
			mock.Step{Status: http.StatusOK, Body: `{"ok":true}`},
		)
		c := newTestClient(st)

		value, err := c.Get(ctx, "https://api.example.com/v1/thing", Options{Retries: 2})
		if err != nil {
			t.Fatalf("expected success on third attempt, got %v", err)
		}
		if string(value) != `{"ok":true}` {
			t.Errorf("unexpected payload %s", value)
		}
		if st.Calls() != 3 {
			t.Errorf("expected exactly 3 underlying calls, got %d", st.Calls())
		}
	})

	t.Run("404 makes exactly one call", func(t *testing.T) {
		st := mock.NewScriptedTransport(mock.Step{Status: http.StatusNotFound, Body: `{"error":"nope"}`})
		c := newTestClient(st)

		_, err := c.Get(ctx, "https://api.example.com/v1/missing", Options{Retries: 3})
		if !IsNotFound(err) {
			t.Fatalf("expected not-found error, got %v", err)
		}
		if st.Calls() != 1 {
			t.Errorf("expected 1 underlying call, got %d", st.Calls())
		}

		var fe *Error
		if !errors.As(err, &fe) || fe.Status != http.StatusNotFound {
			t.Errorf("error should carry the status, got %+v", fe)
		}
	})

	t.Run("403 and 401 never retry", func(t *testing.T) {
		for status, check := range map[int]func(error) bool{
			http.StatusForbidden:    IsForbidden,
			http.StatusUnauthorized: IsAuthRequired,
		} {
			st := mock.NewScriptedTransport(mock.Step{Status: status, Body: `{}`})
			c := newTestClient(st)

			_, err := c.Get(ctx, "https://api.example.com/v1/thing", Options{Retries: 3})
			if !check(err) {
				t.Fatalf("status %d: wrong classification: %v", status, err)
			}
			if st.Calls() != 1 {
				t.Errorf("status %d: expected 1 call, got %d", status, st.Calls())
			}
		}
	})

	t.Run("exhausted retries surface the last error", func(t *testing.T) {
		st := mock.NewScriptedTransport(mock.Step{Status: http.StatusServiceUnavailable, Body: ``})
		c := newTestClient(st)

		_, err := c.Get(ctx, "https://api.example.com/v1/thing", Options{Retries: 2})
		if !IsTransient(err) {
			t.Fatalf("expected transient error, got %v", err)
		}
		if st.Calls() != 3 {
			t.Errorf("expected initial call plus 2 retries, got %d", st.Calls())
		}
	})

	t.Run("local rate-limit denial rejects without network", func(t *testing.T) {
		st := mock.NewScriptedTransport(mock.Step{Status: http.StatusOK, Body: `{}`})
		c := newTestClient(st)
		now := time.Unix(1000, 0)
		c.limiter.now = func() time.Time { return now }

		opts := Options{Domain: "api.example.com", RateLimit: 1, Window: 10 * time.Second}
		if _, err := c.Get(ctx, "https://api.example.com/v1/thing", opts); err != nil {
			t.Fatalf("first call should pass: %v", err)
		}

		now = now.Add(3 * time.Second)
		_, err := c.Get(ctx, "https://api.example.com/v1/thing", opts)
		if !IsRateLimited(err) {
			t.Fatalf("expected rate-limited error, got %v", err)
		}

		var fe *Error
		errors.As(err, &fe)
		if fe.RetryAfterSeconds() != 7 {
			t.Errorf("expected 7s until reset, got %d", fe.RetryAfterSeconds())
		}
		if st.Calls() != 1 {
			t.Errorf("denied call must not reach the network, got %d calls", st.Calls())
		}
	})

	t.Run("cache hit skips the network", func(t *testing.T) {
		st := mock.NewScriptedTransport(mock.Step{Status: http.StatusOK, Body: `{"n":1}`})
		c := newTestClient(st)

		opts := Options{CacheTime: time.Minute}
		for i := 0; i < 3; i++ {
			value, err := c.Get(ctx, "https://api.example.com/v1/chart", opts)
			if err != nil {
				t.Fatalf("call %d failed: %v", i+1, err)
			}
			if string(value) != `{"n":1}` {
				t.Errorf("unexpected payload %s", value)
			}
		}

		if st.Calls() != 1 {
			t.Errorf("expected a single network call, got %d", st.Calls())
		}
	})

	t.Run("expired cache entry goes back to network", func(t *testing.T) {
		st := mock.NewScriptedTransport(
			mock.Step{Status: http.StatusOK, Body: `{"n":1}`},
			mock.Step{Status: http.StatusOK, Body: `{"n":2}`},
		)
		c := newTestClient(st)
		now := time.Unix(1000, 0)
		c.cache.now = func() time.Time { return now }

		opts := Options{CacheTime: time.Minute}
		c.Get(ctx, "https://api.example.com/v1/chart", opts)

		now = now.Add(time.Minute)
		value, err := c.Get(ctx, "https://api.example.com/v1/chart", opts)
		if err != nil {
			t.Fatalf("refetch failed: %v", err)
		}
		if string(value) != `{"n":2}` {
			t.Errorf("expected fresh payload, got %s", value)
		}
		if st.Calls() != 2 {
			t.Errorf("expected 2 network calls, got %d", st.Calls())
		}
	})

	t.Run("mutating methods bypass the cache", func(t *testing.T) {
		st := mock.NewScriptedTransport(
			mock.Step{Status: http.StatusNoContent},
			mock.Step{Status: http.StatusNoContent},
		)
		c := newTestClient(st)

		opts := Options{CacheTime: time.Minute}
		c.Request(ctx, http.MethodPut, "https://api.example.com/v1/player/play", opts)
		c.Request(ctx, http.MethodPut, "https://api.example.com/v1/player/play", opts)

		if st.Calls() != 2 {
			t.Errorf("PUT must not be cached, got %d calls", st.Calls())
		}
	})

	t.Run("204 resolves to nil", func(t *testing.T) {
		st := mock.NewScriptedTransport(mock.Step{Status: http.StatusNoContent})
		c := newTestClient(st)

		value, err := c.Get(ctx, "https://api.example.com/v1/me/player", Options{})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if value != nil {
			t.Errorf("expected nil payload, got %s", value)
		}
	})

	t.Run("invalid JSON on 2xx is malformed", func(t *testing.T) {
		st := mock.NewScriptedTransport(mock.Step{Status: http.StatusOK, Body: `<html>nope</html>`})
		c := newTestClient(st)

		_, err := c.Get(ctx, "https://api.example.com/v1/thing", Options{})
		if !IsMalformed(err) {
			t.Fatalf("expected malformed error, got %v", err)
		}
		if st.Calls() != 1 {
			t.Errorf("malformed responses must not retry, got %d calls", st.Calls())
		}
	})

	t.Run("remote 429 honors retry-after then succeeds", func(t *testing.T) {
		var slept []time.Duration
		st := mock.NewScriptedTransport(
			mock.Step{
				Status: http.StatusTooManyRequests,
				Header: http.Header{"Retry-After": []string{"2"}, "Content-Type": []string{"application/json"}},
				Body:   `{}`,
			},
			mock.Step{Status: http.StatusOK, Body: `{"ok":true}`},
		)
		c := newTestClient(st)
		c.sleep = func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}

		value, err := c.Get(ctx, "https://api.example.com/v1/thing", Options{Retries: 2, RetryDelay: 10 * time.Millisecond})
		if err != nil {
			t.Fatalf("expected recovery after 429, got %v", err)
		}
		if string(value) != `{"ok":true}` {
			t.Errorf("unexpected payload %s", value)
		}
		if len(slept) != 1 || slept[0] != 2*time.Second {
			t.Errorf("expected a single 2s wait from Retry-After, got %v", slept)
		}
	})
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond

	// random = 0.5 lands exactly on the 2^attempt midpoint
	if got := backoff(base, 0, 0.5); got != 100*time.Millisecond {
		t.Errorf("first retry at midpoint jitter = %v, want 100ms", got)
	}
	if got := backoff(base, 1, 0.5); got != 200*time.Millisecond {
		t.Errorf("second retry at midpoint jitter = %v, want 200ms", got)
	}

	// jitter extremes stay within [0.8, 1.2] of the doubled base
	for attempt := 0; attempt < 4; attempt++ {
		pure := base * time.Duration(1<<attempt)
		low := backoff(base, attempt, 0.0)
		high := backoff(base, attempt, 1.0)
		if low < time.Duration(float64(pure)*0.79) || low > pure {
			t.Errorf("attempt %d: low jitter %v out of range (base %v)", attempt, low, pure)
		}
		if high < pure || high > time.Duration(float64(pure)*1.21) {
			t.Errorf("attempt %d: high jitter %v out of range (base %v)", attempt, high, pure)
		}
	}
}
