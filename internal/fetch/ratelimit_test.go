package fetch

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	window := 10 * time.Second

	t.Run("denies exactly the call past the budget", func(t *testing.T) {
		l := NewLimiter()
		now := time.Unix(1000, 0)
		l.now = func() time.Time { return now }

		for i := 0; i < 3; i++ {
			if !l.Allow("api.example.com", 3, window) {
				t.Fatalf("call %d should be allowed", i+1)
			}
		}

		if l.Allow("api.example.com", 3, window) {
			t.Error("fourth call within the window should be denied")
		}
	})

	t.Run("window elapse resets the bucket", func(t *testing.T) {
		l := NewLimiter()
		now := time.Unix(1000, 0)
		l.now = func() time.Time { return now }

		for i := 0; i < 3; i++ {
			l.Allow("api.example.com", 3, window)
		}
		if l.Allow("api.example.com", 3, window) {
			t.Fatal("bucket should be full")
		}

		now = now.Add(window)
		for i := 0; i < 3; i++ {
			if !l.Allow("api.example.com", 3, window) {
				t.Fatalf("call %d after reset should be allowed", i+1)
			}
		}
		if l.Allow("api.example.com", 3, window) {
			t.Error("budget should be exhausted again")
		}
	})

	t.Run("domains are isolated", func(t *testing.T) {
		l := NewLimiter()
		now := time.Unix(1000, 0)
		l.now = func() time.Time { return now }

		for i := 0; i < 2; i++ {
			l.Allow("a.example.com", 2, window)
		}
		if l.Allow("a.example.com", 2, window) {
			t.Fatal("first domain should be saturated")
		}

		if !l.Allow("b.example.com", 2, window) {
			t.Error("second domain should have its own bucket")
		}
	})

	t.Run("retry after reports time until reset", func(t *testing.T) {
		l := NewLimiter()
		now := time.Unix(1000, 0)
		l.now = func() time.Time { return now }

		l.Allow("api.example.com", 1, window)
		now = now.Add(4 * time.Second)

		if got := l.RetryAfter("api.example.com", window); got != 6*time.Second {
			t.Errorf("expected 6s until reset, got %v", got)
		}

		if got := l.RetryAfter("unknown.example.com", window); got != 0 {
			t.Errorf("expected zero for untracked domain, got %v", got)
		}
	})

	t.Run("zero budget disables limiting", func(t *testing.T) {
		l := NewLimiter()
		for i := 0; i < 100; i++ {
			if !l.Allow("api.example.com", 0, window) {
				t.Fatal("unlimited domain should always allow")
			}
		}
	})
}
