// Package stocks is the access layer callers talk to: a router that pins one
// backend for the process lifetime and a cached, rate-limited façade over it.
package stocks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketdata/internal/provider"
	"marketdata/internal/provider/retry"
)

// Backend pairs a provider implementation with its capability flags from
// configuration.
type Backend struct {
	Provider       provider.Provider
	SupportsSearch bool
}

// Router exposes the unified provider contract, wrapping every call in the
// retry executor. The active backend is chosen once at construction and
// never reselected; switching backends takes a process restart.
type Router struct {
	backend Backend
	retry   *retry.Executor
}

// NewRouter selects the active backend by name from the configured set.
func NewRouter(active string, backends map[string]Backend, ex *retry.Executor) (*Router, error) {
	key := strings.ToLower(strings.TrimSpace(active))
	b, ok := backends[key]
	if !ok || b.Provider == nil {
		return nil, fmt.Errorf("stocks: unknown active provider %q", active)
	}
	return &Router{backend: b, retry: ex}, nil
}

func (r *Router) ProviderName() string { return r.backend.Provider.Name() }

// SupportsSearch reports whether the active backend has native symbol search.
func (r *Router) SupportsSearch() bool { return r.backend.SupportsSearch }

func (r *Router) GetQuote(ctx context.Context, symbol string) (*provider.Quote, error) {
	return retry.Do(ctx, r.retry, func(ctx context.Context) (*provider.Quote, error) {
		return r.backend.Provider.GetQuote(ctx, symbol)
	})
}

func (r *Router) GetOverview(ctx context.Context, symbol string) (*provider.Overview, error) {
	return retry.Do(ctx, r.retry, func(ctx context.Context) (*provider.Overview, error) {
		return r.backend.Provider.GetOverview(ctx, symbol)
	})
}

func (r *Router) GetHistoricalPrices(ctx context.Context, symbol string, from, to time.Time) ([]provider.PricePoint, error) {
	return retry.Do(ctx, r.retry, func(ctx context.Context) ([]provider.PricePoint, error) {
		return r.backend.Provider.GetHistoricalPrices(ctx, symbol, from, to)
	})
}

// SearchStocks returns an empty result without a wire call when the active
// backend lacks native search.
func (r *Router) SearchStocks(ctx context.Context, query string) ([]provider.SearchHit, error) {
	if !r.backend.SupportsSearch {
		return []provider.SearchHit{}, nil
	}
	return retry.Do(ctx, r.retry, func(ctx context.Context) ([]provider.SearchHit, error) {
		return r.backend.Provider.SearchStocks(ctx, query)
	})
}
