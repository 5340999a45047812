package alphavantage

import (
	"context"
	"net/url"
	"strings"

	"marketdata/internal/provider"
)

type overviewResponse struct {
	Symbol               string `json:"Symbol"`
	Name                 string `json:"Name"`
	Sector               string `json:"Sector"`
	Industry             string `json:"Industry"`
	MarketCapitalization string `json:"MarketCapitalization"`
}

// GetOverview retrieves the company profile for symbol. Unknown symbols come
// back as an empty object and map to a nil overview.
func (c *Client) GetOverview(ctx context.Context, symbol string) (*provider.Overview, error) {
	const op = "alphavantage: overview"

	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", symbol)

	var resp overviewResponse
	if err := c.getJSON(ctx, op, params, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Symbol) == "" {
		return nil, nil
	}
	return &provider.Overview{
		Symbol:    strings.ToUpper(strings.TrimSpace(resp.Symbol)),
		Name:      strings.TrimSpace(resp.Name),
		Sector:    cleanField(resp.Sector),
		Industry:  cleanField(resp.Industry),
		MarketCap: parseInt(resp.MarketCapitalization),
	}, nil
}

// cleanField drops the "None"/"-" placeholders Alpha Vantage uses for
// missing profile fields.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "none") || s == "-" {
		return ""
	}
	return s
}
