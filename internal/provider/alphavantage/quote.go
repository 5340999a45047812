package alphavantage

import (
	"context"
	"net/url"
	"strings"
	"time"

	"marketdata/internal/provider"
)

type globalQuoteResponse struct {
	GlobalQuote globalQuote `json:"Global Quote"`
}

type globalQuote struct {
	Symbol           string `json:"01. symbol"`
	Price            string `json:"05. price"`
	Volume           string `json:"06. volume"`
	LatestTradingDay string `json:"07. latest trading day"`
}

// GetQuote retrieves the latest quote for symbol. An empty GLOBAL_QUOTE
// object is Alpha Vantage's "not found" shape and maps to a nil quote.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*provider.Quote, error) {
	const op = "alphavantage: quote"

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	var resp globalQuoteResponse
	if err := c.getJSON(ctx, op, params, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.GlobalQuote.Symbol) == "" {
		return nil, nil
	}

	asOf := time.Now().UTC()
	if d, ok := parseDay(resp.GlobalQuote.LatestTradingDay); ok {
		asOf = d
	}
	return &provider.Quote{
		Symbol: strings.ToUpper(strings.TrimSpace(resp.GlobalQuote.Symbol)),
		Price:  parseFloat(resp.GlobalQuote.Price),
		Volume: parseInt(resp.GlobalQuote.Volume),
		AsOf:   asOf,
	}, nil
}
