package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func testLimiter(cap int, window time.Duration, maxIDs int) (*Limiter, *time.Time) {
	l := New(cap, window, maxIDs)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCapWithinWindow(t *testing.T) {
	l, now := testLimiter(3, time.Minute, 0)

	for i := 0; i < 3; i++ {
		d := l.Allow("1.2.3.4")
		if !d.Allowed {
			t.Fatalf("call %d denied", i+1)
		}
		if d.Remaining != 3-(i+1) {
			t.Fatalf("call %d remaining=%d", i+1, d.Remaining)
		}
	}

	d := l.Allow("1.2.3.4")
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("4th call must be denied: %+v", d)
	}
	if !d.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("denial must keep the original resetAt: %v", d.ResetAt)
	}

	*now = now.Add(time.Minute + time.Second)
	d = l.Allow("1.2.3.4")
	if !d.Allowed || d.Remaining != 2 {
		t.Fatalf("fresh window expected: %+v", d)
	}
}

func TestIdentifiersAreIndependent(t *testing.T) {
	l, _ := testLimiter(1, time.Minute, 0)
	if d := l.Allow("a"); !d.Allowed {
		t.Fatal("a denied")
	}
	if d := l.Allow("b"); !d.Allowed {
		t.Fatal("b throttled by a's usage")
	}
	if d := l.Allow("a"); d.Allowed {
		t.Fatal("a over cap must be denied")
	}
}

func TestIdentifierEviction(t *testing.T) {
	l, _ := testLimiter(1, time.Minute, 2)
	l.Allow("a")
	l.Allow("b")
	l.Allow("c") // evicts a, the least recently used

	if l.Tracked() != 2 {
		t.Fatalf("tracked=%d", l.Tracked())
	}
	// A resurrected identifier starts a fresh window: approximate by design.
	if d := l.Allow("a"); !d.Allowed {
		t.Fatal("evicted identifier must restart at zero usage")
	}
}

func TestDecisionMetadata(t *testing.T) {
	l, now := testLimiter(5, 30*time.Second, 0)
	d := l.Allow("x")
	if d.Limit != 5 || d.Remaining != 4 {
		t.Fatalf("unexpected metadata: %+v", d)
	}
	if !d.ResetAt.Equal(now.Add(30 * time.Second)) {
		t.Fatalf("resetAt: %v", d.ResetAt)
	}
}

func TestConcurrentAllow(t *testing.T) {
	l := New(1000, time.Minute, 0)
	var wg sync.WaitGroup
	allowed := make([]int, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if l.Allow(fmt.Sprintf("id%d", i%4)).Allowed {
					allowed[g]++
				}
			}
		}(g)
	}
	wg.Wait()
	total := 0
	for _, n := range allowed {
		total += n
	}
	// 4 identifiers, cap 1000 each, 1600 total calls: all fit.
	if total != 1600 {
		t.Fatalf("lost updates: allowed=%d", total)
	}
}
