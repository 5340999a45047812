// Package yahoo implements the Yahoo Finance backend on top of
// piquette/finance-go.
//
// Yahoo serves historical bars for a natively bounded range, returned
// ascending by date. It has no symbol search endpoint; SearchStocks always
// returns an empty result and the capability gap is declared in
// configuration so the router can fall back to local results.
package yahoo

import (
	"context"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/piquette/finance-go/quote"

	"marketdata/internal/provider"
)

type Config struct {
	Name string
}

// Provider fetches normalized records from Yahoo Finance.
//
// finance-go calls carry no context; per the access layer's contract a
// caller abandoning a request does not abort the in-flight upstream call.
type Provider struct {
	cfg Config

	// fetch seams, swappable in tests
	quoteFn  func(symbol string) (*finance.Quote, error)
	equityFn func(symbol string) (*finance.Equity, error)
}

func New(cfg Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Yahoo"
	}
	return &Provider{
		cfg:      cfg,
		quoteFn:  quote.Get,
		equityFn: equity.Get,
	}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) GetQuote(_ context.Context, symbol string) (*provider.Quote, error) {
	const op = "yahoo: quote"

	q, err := p.quoteFn(symbol)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, provider.Transient(op, err)
	}
	return quoteFromFinance(q), nil
}

func (p *Provider) GetOverview(_ context.Context, symbol string) (*provider.Overview, error) {
	const op = "yahoo: overview"

	e, err := p.equityFn(symbol)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, provider.Transient(op, err)
	}
	return overviewFromEquity(e), nil
}

// GetHistoricalPrices requests the bounded range natively and returns daily
// points ascending by date, both bounds inclusive.
func (p *Provider) GetHistoricalPrices(_ context.Context, symbol string, from, to time.Time) ([]provider.PricePoint, error) {
	const op = "yahoo: history"

	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&from),
		End:      datetime.New(&to),
		Interval: datetime.OneDay,
	})

	points := make([]provider.PricePoint, 0, 64)
	for iter.Next() {
		points = append(points, pointFromBar(iter.Bar()))
	}
	if err := iter.Err(); err != nil {
		if isNotFound(err) {
			return []provider.PricePoint{}, nil
		}
		return nil, provider.Transient(op, err)
	}
	return points, nil
}

// SearchStocks is not supported by Yahoo; an empty result is the documented
// behavior for a missing capability, never an error.
func (p *Provider) SearchStocks(_ context.Context, _ string) ([]provider.SearchHit, error) {
	return []provider.SearchHit{}, nil
}

func quoteFromFinance(q *finance.Quote) *provider.Quote {
	if q == nil || q.Symbol == "" {
		return nil
	}
	asOf := time.Now().UTC()
	if q.RegularMarketTime > 0 {
		asOf = time.Unix(int64(q.RegularMarketTime), 0).UTC()
	}
	return &provider.Quote{
		Symbol: strings.ToUpper(q.Symbol),
		Price:  q.RegularMarketPrice,
		Volume: int64(q.RegularMarketVolume),
		AsOf:   asOf,
	}
}

func overviewFromEquity(e *finance.Equity) *provider.Overview {
	if e == nil || e.Symbol == "" {
		return nil
	}
	name := e.LongName
	if name == "" {
		name = e.ShortName
	}
	// Yahoo's quote payload has no sector/industry; those stay empty.
	return &provider.Overview{
		Symbol:    strings.ToUpper(e.Symbol),
		Name:      name,
		MarketCap: e.MarketCap,
	}
}

func pointFromBar(b *finance.ChartBar) provider.PricePoint {
	price, _ := b.Close.Float64()
	return provider.PricePoint{
		Date:   time.Unix(int64(b.Timestamp), 0).UTC(),
		Price:  price,
		Volume: int64(b.Volume),
	}
}

// isNotFound sniffs Yahoo's missing-symbol shapes, which surface as remote
// errors rather than an empty payload.
func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no data")
}
