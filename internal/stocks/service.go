package stocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"marketdata/internal/cache"
	"marketdata/internal/provider"
	"marketdata/internal/ratelimit"
)

// Source tags where a result came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceProvider Source = "provider"
)

// RateLimitError is returned when this layer's own limiter denies a call,
// distinct from an upstream rate-limit (which is a transient provider error).
type RateLimitError struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.ResetAt.UTC().Format(time.RFC3339))
}

// AsRateLimited extracts a limiter denial from err.
func AsRateLimited(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// Config carries the façade's tunables.
type Config struct {
	// SearchSufficiencyThreshold is the local-match count at which provider
	// search is skipped entirely. <= 0 means always consult the provider.
	SearchSufficiencyThreshold int
	// SearchPageSize truncates merged search results. <= 0 means no limit.
	SearchPageSize int
	// RefreshConcurrency bounds RefreshQuotes fan-out. Defaults to 4.
	RefreshConcurrency int
}

// Caches are the owned cache instances, constructed once and threaded in;
// nothing here is reachable through globals.
type Caches struct {
	Quotes    *cache.Cache[string, provider.Quote]
	Overviews *cache.Cache[string, provider.Overview]
	History   *cache.Cache[string, []provider.PricePoint]
}

// Limiters are the caller-facing limiter instances per call class.
type Limiters struct {
	// Read throttles quote/overview/history/search misses.
	Read *ratelimit.Limiter
	// Admin throttles sensitive operations (invalidate).
	Admin *ratelimit.Limiter
}

// Service is the façade external code calls: read-through caches in front of
// the router, with caller-facing rate limiting on every cache miss.
type Service struct {
	router   *Router
	caches   Caches
	limiters Limiters
	cfg      Config

	// sf coalesces concurrent misses for the same key into one provider
	// call; duplicates are tolerable, this just avoids the double work.
	sf singleflight.Group
}

func NewService(router *Router, caches Caches, limiters Limiters, cfg Config) *Service {
	if cfg.RefreshConcurrency <= 0 {
		cfg.RefreshConcurrency = 4
	}
	return &Service{router: router, caches: caches, limiters: limiters, cfg: cfg}
}

func (s *Service) ProviderName() string { return s.router.ProviderName() }

// NormalizeSymbol case-folds and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// QuoteResult is a quote plus its source tag.
type QuoteResult struct {
	Quote  provider.Quote `json:"quote"`
	Source Source         `json:"source"`
}

// GetQuote returns the live quote for symbol, read-through the quote cache.
// A nil result with nil error means the provider has no data. Cache misses
// count against the caller's read quota before any provider call.
func (s *Service) GetQuote(ctx context.Context, callerID, symbol string) (*QuoteResult, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return nil, errors.New("stocks: empty symbol")
	}
	if q, ok := s.caches.Quotes.Get(sym); ok {
		return &QuoteResult{Quote: q, Source: SourceCache}, nil
	}
	if d := s.limiters.Read.Allow(callerID); !d.Allowed {
		return nil, &RateLimitError{Limit: d.Limit, Remaining: d.Remaining, ResetAt: d.ResetAt}
	}
	v, err, _ := s.sf.Do("quote:"+sym, func() (any, error) {
		q, err := s.router.GetQuote(ctx, sym)
		if err != nil {
			return nil, err
		}
		if q != nil {
			s.caches.Quotes.Set(sym, *q)
		}
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	q := v.(*provider.Quote)
	if q == nil {
		return nil, nil
	}
	return &QuoteResult{Quote: *q, Source: SourceProvider}, nil
}

// OverviewResult is a company profile plus its source tag.
type OverviewResult struct {
	Overview provider.Overview `json:"overview"`
	Source   Source            `json:"source"`
}

// GetOverview returns the company profile for symbol, read-through the
// longer-lived profile cache.
func (s *Service) GetOverview(ctx context.Context, callerID, symbol string) (*OverviewResult, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return nil, errors.New("stocks: empty symbol")
	}
	if o, ok := s.caches.Overviews.Get(sym); ok {
		return &OverviewResult{Overview: o, Source: SourceCache}, nil
	}
	if d := s.limiters.Read.Allow(callerID); !d.Allowed {
		return nil, &RateLimitError{Limit: d.Limit, Remaining: d.Remaining, ResetAt: d.ResetAt}
	}
	v, err, _ := s.sf.Do("overview:"+sym, func() (any, error) {
		o, err := s.router.GetOverview(ctx, sym)
		if err != nil {
			return nil, err
		}
		if o != nil {
			s.caches.Overviews.Set(sym, *o)
		}
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	o := v.(*provider.Overview)
	if o == nil {
		return nil, nil
	}
	return &OverviewResult{Overview: *o, Source: SourceProvider}, nil
}

// HistoryResult is a price series plus its source tag. Points are always
// ascending by date regardless of the backend's native order.
type HistoryResult struct {
	Points []provider.PricePoint `json:"points"`
	Source Source                `json:"source"`
}

func historyKey(sym string, from, to time.Time) string {
	return fmt.Sprintf("%s|%s|%s", sym, from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
}

// GetHistory returns daily price points for [from, to] inclusive, cached per
// symbol and range. Empty series are cached too; "no data in range" is a
// valid answer, not an error.
func (s *Service) GetHistory(ctx context.Context, callerID, symbol string, from, to time.Time) (*HistoryResult, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return nil, errors.New("stocks: empty symbol")
	}
	key := historyKey(sym, from, to)
	if pts, ok := s.caches.History.Get(key); ok {
		return &HistoryResult{Points: pts, Source: SourceCache}, nil
	}
	if d := s.limiters.Read.Allow(callerID); !d.Allowed {
		return nil, &RateLimitError{Limit: d.Limit, Remaining: d.Remaining, ResetAt: d.ResetAt}
	}
	v, err, _ := s.sf.Do("history:"+key, func() (any, error) {
		pts, err := s.router.GetHistoricalPrices(ctx, sym, from, to)
		if err != nil {
			return nil, err
		}
		// Backends document their order; sort defensively anyway.
		sort.Slice(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
		s.caches.History.Set(key, pts)
		return pts, nil
	})
	if err != nil {
		return nil, err
	}
	return &HistoryResult{Points: v.([]provider.PricePoint), Source: SourceProvider}, nil
}

// Invalidate removes every cached entry for symbol across all caches the
// façade owns. The next get for that symbol is guaranteed to reach the
// provider. Invalidation is a sensitive operation and draws on the admin
// quota.
func (s *Service) Invalidate(callerID, symbol string) error {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return errors.New("stocks: empty symbol")
	}
	if d := s.limiters.Admin.Allow(callerID); !d.Allowed {
		return &RateLimitError{Limit: d.Limit, Remaining: d.Remaining, ResetAt: d.ResetAt}
	}
	s.caches.Quotes.Invalidate(sym)
	s.caches.Overviews.Invalidate(sym)
	for _, k := range s.caches.History.Keys() {
		if strings.HasPrefix(k, sym+"|") {
			s.caches.History.Invalidate(k)
		}
	}
	return nil
}

// RefreshQuotes fetches quotes for symbols concurrently and writes them
// through into the quote cache. It serves the scheduled-refresh path and is
// not subject to caller-facing rate limits.
func (s *Service) RefreshQuotes(ctx context.Context, symbols []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.RefreshConcurrency)
	for _, symbol := range symbols {
		sym := NormalizeSymbol(symbol)
		if sym == "" {
			continue
		}
		g.Go(func() error {
			q, err := s.router.GetQuote(ctx, sym)
			if err != nil {
				return fmt.Errorf("refreshing %s: %w", sym, err)
			}
			if q != nil {
				s.caches.Quotes.Set(sym, *q)
			}
			return nil
		})
	}
	return g.Wait()
}

// CacheStats snapshots every owned cache, keyed by instance name.
func (s *Service) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"quotes":    s.caches.Quotes.Stats(),
		"overviews": s.caches.Overviews.Stats(),
		"history":   s.caches.History.Stats(),
	}
}
