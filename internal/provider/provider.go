package provider

import (
	"context"
	"time"
)

// Quote is the normalized live quote shape returned by all providers.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Volume int64     `json:"volume"`
	AsOf   time.Time `json:"as_of"`
}

// Overview is a normalized company profile.
type Overview struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Sector    string `json:"sector"`
	Industry  string `json:"industry"`
	MarketCap int64  `json:"market_cap"`
}

// PricePoint is one day of historical price data.
type PricePoint struct {
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Volume int64     `json:"volume"`
}

// SearchHit is one symbol lookup result.
type SearchHit struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Provider is the contract every backend implements. Implementations only
// translate between normalized requests and backend wire calls; caching and
// rate limiting live elsewhere.
//
// "No data" is a nil pointer (or empty slice) with a nil error, never an
// error. Failures are classified with this package's Error type so the retry
// layer can tell transient from permanent.
//
// GetHistoricalPrices returns points inside [from, to] inclusive. Each
// backend documents its native order; callers should sort defensively.
type Provider interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetOverview(ctx context.Context, symbol string) (*Overview, error)
	GetHistoricalPrices(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)
	SearchStocks(ctx context.Context, query string) ([]SearchHit, error)
}
