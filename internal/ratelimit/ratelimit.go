// Package ratelimit implements per-identifier fixed-window request limiting.
//
// A limiter instance carries one (window, cap) pair; the system runs several
// instances for different call classes. Denied calls are never queued or
// retried here; reacting to a denial is the caller's job.
package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Limiter tracks request counts per identifier inside a fixed time window.
//
// At most maxIdentifiers identifiers are tracked; beyond that the least
// recently used identifier is dropped, so accounting is approximate across
// eviction boundaries. All operations are in-memory and non-blocking.
type Limiter struct {
	cap    int
	window time.Duration
	maxIDs int

	mu      sync.Mutex
	windows map[string]*list.Element
	lru     *list.List

	now func() time.Time
}

type window struct {
	id      string
	count   int
	resetAt time.Time
}

// New constructs a limiter allowing cap requests per identifier per window.
// maxIdentifiers <= 0 disables the identifier bound.
func New(cap int, windowLen time.Duration, maxIdentifiers int) *Limiter {
	if cap <= 0 {
		cap = 1
	}
	if windowLen <= 0 {
		windowLen = time.Minute
	}
	return &Limiter{
		cap:     cap,
		window:  windowLen,
		maxIDs:  maxIdentifiers,
		windows: make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// Allow records one request for identifier and reports whether it fits the
// current window. Identifier must be non-empty; unknown identifiers start
// with zero prior usage.
func (l *Limiter) Allow(identifier string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	el, ok := l.windows[identifier]
	if ok {
		w := el.Value.(*window)
		if now.Before(w.resetAt) {
			l.lru.MoveToFront(el)
			if w.count < l.cap {
				w.count++
				return Decision{Allowed: true, Limit: l.cap, Remaining: l.cap - w.count, ResetAt: w.resetAt}
			}
			return Decision{Allowed: false, Limit: l.cap, Remaining: 0, ResetAt: w.resetAt}
		}
		// Window elapsed; start a fresh one in place.
		w.count = 1
		w.resetAt = now.Add(l.window)
		l.lru.MoveToFront(el)
		return Decision{Allowed: true, Limit: l.cap, Remaining: l.cap - 1, ResetAt: w.resetAt}
	}

	w := &window{id: identifier, count: 1, resetAt: now.Add(l.window)}
	l.windows[identifier] = l.lru.PushFront(w)
	for l.maxIDs > 0 && len(l.windows) > l.maxIDs {
		back := l.lru.Back()
		if back == nil {
			break
		}
		delete(l.windows, back.Value.(*window).id)
		l.lru.Remove(back)
	}
	return Decision{Allowed: true, Limit: l.cap, Remaining: l.cap - 1, ResetAt: w.resetAt}
}

// Tracked returns how many identifiers currently have a window.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
