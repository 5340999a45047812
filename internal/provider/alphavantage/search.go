package alphavantage

import (
	"context"
	"net/url"
	"strings"

	"marketdata/internal/provider"
)

type searchResponse struct {
	BestMatches []searchMatch `json:"bestMatches"`
}

type searchMatch struct {
	Symbol string `json:"1. symbol"`
	Name   string `json:"2. name"`
}

// SearchStocks looks up symbols matching query. An empty result is a valid
// answer, not an error.
func (c *Client) SearchStocks(ctx context.Context, query string) ([]provider.SearchHit, error) {
	const op = "alphavantage: search"

	params := url.Values{}
	params.Set("function", "SYMBOL_SEARCH")
	params.Set("keywords", query)

	var resp searchResponse
	if err := c.getJSON(ctx, op, params, &resp); err != nil {
		return nil, err
	}

	hits := make([]provider.SearchHit, 0, len(resp.BestMatches))
	for _, m := range resp.BestMatches {
		sym := strings.ToUpper(strings.TrimSpace(m.Symbol))
		if sym == "" {
			continue
		}
		hits = append(hits, provider.SearchHit{Symbol: sym, Name: strings.TrimSpace(m.Name)})
	}
	return hits, nil
}
