package fetch

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed request so callers can branch on semantics
// instead of matching error strings.
type Kind int

const (
	// KindTransient covers network failures, timeouts, and 5xx responses.
	// These are retried with backoff before being surfaced.
	KindTransient Kind = iota
	// KindRateLimited means the local per-domain budget denied the call.
	// Never retried at this layer; the caller decides whether to wait.
	KindRateLimited
	// KindAuthRequired is a 401. Handled one layer up by token refresh.
	KindAuthRequired
	// KindForbidden is a 403: the endpoint or scope is unavailable.
	KindForbidden
	// KindNotFound is a 404: the entity genuinely does not exist.
	KindNotFound
	// KindMalformed means a 2xx body that could not be parsed as JSON.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate limited"
	case KindAuthRequired:
		return "auth required"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindMalformed:
		return "malformed response"
	default:
		return "unknown"
	}
}

// Error is the failure type produced by the fetch layer. Status is zero when
// no HTTP response was received (network error, timeout, local denial).
type Error struct {
	Kind       Kind
	Status     int
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RetryAfterSeconds returns the rate-limit reset delay rounded up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int((e.RetryAfter + time.Second - 1) / time.Second)
}

func kindOf(err error, k Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == k
}

// IsRateLimited reports whether err is a local rate-limit denial or an
// exhausted 429.
func IsRateLimited(err error) bool { return kindOf(err, KindRateLimited) }

// IsAuthRequired reports whether err is a 401.
func IsAuthRequired(err error) bool { return kindOf(err, KindAuthRequired) }

// IsForbidden reports whether err is a 403.
func IsForbidden(err error) bool { return kindOf(err, KindForbidden) }

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool { return kindOf(err, KindNotFound) }

// IsBlocked reports whether err is a 403 or 404 — the two conditions the
// recommendation pipeline treats as soft, continuable failures.
func IsBlocked(err error) bool { return IsForbidden(err) || IsNotFound(err) }

// IsTransient reports whether err is a retryable failure that exhausted its retries.
func IsTransient(err error) bool { return kindOf(err, KindTransient) }

// IsMalformed reports whether err is an unparseable success response.
func IsMalformed(err error) bool { return kindOf(err, KindMalformed) }
