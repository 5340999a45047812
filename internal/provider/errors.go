package provider

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a provider failure for the retry layer.
type Kind int

const (
	// KindTransient failures (timeouts, 5xx, upstream throttling) are
	// eligible for retry.
	KindTransient Kind = iota + 1
	// KindPermanent failures (bad request, auth) are never retried.
	KindPermanent
)

// Error is a classified provider failure.
type Error struct {
	Kind Kind
	Op   string // e.g. "alphavantage: quote"
	// RetryAfter is an explicit upstream retry-after hint; zero when the
	// upstream gave none.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Kind == KindTransient {
		kind = "transient"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failure", e.Op, kind)
	}
	return fmt.Sprintf("%s: %s failure: %v", e.Op, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Permanent wraps err as non-retryable.
func Permanent(op string, err error) *Error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// Throttled marks an upstream rate-limit rejection, retryable after the
// given hint (zero when the upstream supplied none).
func Throttled(op string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindTransient, Op: op, RetryAfter: retryAfter, Err: errors.New("upstream rate limited")}
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindTransient
}

// RetryAfterHint extracts an explicit upstream retry-after from err.
func RetryAfterHint(err error) (time.Duration, bool) {
	var pe *Error
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		return pe.RetryAfter, true
	}
	return 0, false
}

// StatusError records an unexpected upstream HTTP status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, string(e.Body))
}

// ClassifyStatus maps an upstream HTTP status to a classified error.
// 429 is retryable (honoring retryAfter when the upstream sent one),
// 5xx is retryable, everything else 4xx-class is permanent.
func ClassifyStatus(op string, status int, body []byte, retryAfter time.Duration) *Error {
	cause := &StatusError{StatusCode: status, Body: body}
	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindTransient, Op: op, RetryAfter: retryAfter, Err: cause}
	case status >= 500:
		return Transient(op, cause)
	default:
		return Permanent(op, cause)
	}
}
