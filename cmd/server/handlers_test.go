package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"marketdata/internal/cache"
	"marketdata/internal/provider"
	"marketdata/internal/provider/retry"
	"marketdata/internal/ratelimit"
	"marketdata/internal/stocks"
)

type fakeProvider struct {
	quotes map[string]provider.Quote
	hits   []provider.SearchHit
	err    error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GetQuote(_ context.Context, symbol string) (*provider.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (f *fakeProvider) GetOverview(_ context.Context, symbol string) (*provider.Overview, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.quotes[symbol]; !ok {
		return nil, nil
	}
	return &provider.Overview{Symbol: symbol, Name: symbol + " Inc"}, nil
}

func (f *fakeProvider) GetHistoricalPrices(_ context.Context, symbol string, from, to time.Time) ([]provider.PricePoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []provider.PricePoint{{Date: from, Price: 1}, {Date: to, Price: 2}}, nil
}

func (f *fakeProvider) SearchStocks(_ context.Context, query string) ([]provider.SearchHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func testService(t *testing.T, fp *fakeProvider, readMax int) *stocks.Service {
	t.Helper()
	ex := retry.New(time.Millisecond, 1)
	ex.Sleep = func(time.Duration) {}
	router, err := stocks.NewRouter("fake", map[string]stocks.Backend{
		"fake": {Provider: fp, SupportsSearch: true},
	}, ex)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	caches := stocks.Caches{
		Quotes:    cache.New[string, provider.Quote](cache.Config{Capacity: 100, DefaultTTL: time.Minute}),
		Overviews: cache.New[string, provider.Overview](cache.Config{Capacity: 100, DefaultTTL: time.Minute}),
		History:   cache.New[string, []provider.PricePoint](cache.Config{Capacity: 100, DefaultTTL: time.Minute}),
	}
	limiters := stocks.Limiters{
		Read:  ratelimit.New(readMax, time.Minute, 100),
		Admin: ratelimit.New(5, time.Minute, 100),
	}
	return stocks.NewService(router, caches, limiters, stocks.Config{SearchPageSize: 20})
}

func TestHandleQuote_HitThenCache(t *testing.T) {
	asOf := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	fp := &fakeProvider{quotes: map[string]provider.Quote{
		"AAPL": {Symbol: "AAPL", Price: 187.5, Volume: 1000, AsOf: asOf},
	}}
	svc := testService(t, fp, 10)
	h := handleQuote(svc)

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest("GET", "/api/quote?symbol=aapl", nil))
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got stocks.QuoteResult
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Quote.Symbol != "AAPL" || got.Quote.Price != 187.5 || got.Source != stocks.SourceProvider {
		t.Fatalf("unexpected: %+v", got)
	}

	rr2 := httptest.NewRecorder()
	h(rr2, httptest.NewRequest("GET", "/api/quote?symbol=AAPL", nil))
	var got2 stocks.QuoteResult
	if err := json.Unmarshal(rr2.Body.Bytes(), &got2); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got2.Source != stocks.SourceCache {
		t.Fatalf("want cache source on second call, got %q", got2.Source)
	}
}

func TestHandleQuote_UnknownSymbolIs404(t *testing.T) {
	svc := testService(t, &fakeProvider{quotes: map[string]provider.Quote{}}, 10)
	rr := httptest.NewRecorder()
	handleQuote(svc)(rr, httptest.NewRequest("GET", "/api/quote?symbol=NOPE", nil))
	if rr.Code != 404 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHandleQuote_MissingSymbolIs400(t *testing.T) {
	svc := testService(t, &fakeProvider{}, 10)
	rr := httptest.NewRecorder()
	handleQuote(svc)(rr, httptest.NewRequest("GET", "/api/quote", nil))
	if rr.Code != 400 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHandleQuote_RateLimitedIs429WithHeaders(t *testing.T) {
	svc := testService(t, &fakeProvider{quotes: map[string]provider.Quote{}}, 1)
	h := handleQuote(svc)

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest("GET", "/api/quote?symbol=A", nil))
	if rr.Code != 404 {
		t.Fatalf("first call status=%d", rr.Code)
	}

	rr2 := httptest.NewRecorder()
	h(rr2, httptest.NewRequest("GET", "/api/quote?symbol=B", nil))
	if rr2.Code != 429 {
		t.Fatalf("status=%d body=%s", rr2.Code, rr2.Body.String())
	}
	if rr2.Header().Get("Retry-After") == "" || rr2.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("missing rate limit headers: %+v", rr2.Header())
	}
}

func TestHandleQuote_ProviderErrorIs502(t *testing.T) {
	fp := &fakeProvider{err: provider.Permanent("fake: quote", errors.New("bad request"))}
	svc := testService(t, fp, 10)
	rr := httptest.NewRecorder()
	handleQuote(svc)(rr, httptest.NewRequest("GET", "/api/quote?symbol=AAPL", nil))
	if rr.Code != 502 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHandleHistory_ValidatesDates(t *testing.T) {
	svc := testService(t, &fakeProvider{}, 10)
	h := handleHistory(svc)

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest("GET", "/api/history?symbol=AAPL&from=bad&to=2025-01-31", nil))
	if rr.Code != 400 {
		t.Fatalf("bad from: status=%d", rr.Code)
	}

	rr2 := httptest.NewRecorder()
	h(rr2, httptest.NewRequest("GET", "/api/history?symbol=AAPL&from=2025-02-01&to=2025-01-01", nil))
	if rr2.Code != 400 {
		t.Fatalf("inverted range: status=%d", rr2.Code)
	}

	rr3 := httptest.NewRecorder()
	h(rr3, httptest.NewRequest("GET", "/api/history?symbol=AAPL&from=2025-01-01&to=2025-01-31", nil))
	if rr3.Code != 200 {
		t.Fatalf("status=%d body=%s", rr3.Code, rr3.Body.String())
	}
	var got stocks.HistoryResult
	if err := json.Unmarshal(rr3.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Points) != 2 {
		t.Fatalf("want 2 points, got %d", len(got.Points))
	}
}

func TestHandleSearch(t *testing.T) {
	fp := &fakeProvider{hits: []provider.SearchHit{
		{Symbol: "AAPL", Name: "Apple Inc"},
		{Symbol: "AAPU", Name: "Direxion AAPL Bull"},
	}}
	svc := testService(t, fp, 10)
	rr := httptest.NewRecorder()
	handleSearch(svc)(rr, httptest.NewRequest("GET", "/api/search?q=apple", nil))
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp searchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Query != "apple" || len(resp.Hits) != 2 {
		t.Fatalf("unexpected: %+v", resp)
	}
}

func TestHandleInvalidate_ForcesRefetch(t *testing.T) {
	fp := &fakeProvider{quotes: map[string]provider.Quote{
		"AAPL": {Symbol: "AAPL", Price: 100},
	}}
	svc := testService(t, fp, 10)

	rr := httptest.NewRecorder()
	handleQuote(svc)(rr, httptest.NewRequest("GET", "/api/quote?symbol=AAPL", nil))
	if rr.Code != 200 {
		t.Fatalf("seed: status=%d", rr.Code)
	}

	rr2 := httptest.NewRecorder()
	handleInvalidate(svc)(rr2, httptest.NewRequest("POST", "/api/invalidate?symbol=AAPL", nil))
	if rr2.Code != 200 {
		t.Fatalf("invalidate: status=%d body=%s", rr2.Code, rr2.Body.String())
	}

	rr3 := httptest.NewRecorder()
	handleQuote(svc)(rr3, httptest.NewRequest("GET", "/api/quote?symbol=AAPL", nil))
	var got stocks.QuoteResult
	if err := json.Unmarshal(rr3.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Source != stocks.SourceProvider {
		t.Fatalf("want provider source after invalidate, got %q", got.Source)
	}
}

func TestHandleStats(t *testing.T) {
	svc := testService(t, &fakeProvider{}, 10)
	rr := httptest.NewRecorder()
	handleStats(svc)(rr, httptest.NewRequest("GET", "/api/stats", nil))
	if rr.Code != 200 {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp struct {
		Provider string                 `json:"provider"`
		Caches   map[string]cache.Stats `json:"caches"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Provider != "fake" || len(resp.Caches) != 3 {
		t.Fatalf("unexpected: %+v", resp)
	}
}
