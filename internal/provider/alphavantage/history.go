package alphavantage

import (
	"context"
	"net/url"
	"sort"
	"time"

	"marketdata/internal/provider"
)

type dailySeriesResponse struct {
	Series map[string]dailyBar `json:"Time Series (Daily)"`
}

type dailyBar struct {
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// GetHistoricalPrices retrieves daily closing prices inside [from, to]
// inclusive. Alpha Vantage has no native range parameter, so the full series
// is fetched and trimmed here. Points are returned ascending by date.
func (c *Client) GetHistoricalPrices(ctx context.Context, symbol string, from, to time.Time) ([]provider.PricePoint, error) {
	const op = "alphavantage: history"

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", "full")

	var resp dailySeriesResponse
	if err := c.getJSON(ctx, op, params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Series) == 0 {
		return []provider.PricePoint{}, nil
	}

	fromDay := day(from)
	toDay := day(to)

	points := make([]provider.PricePoint, 0, len(resp.Series))
	for dateStr, bar := range resp.Series {
		d, ok := parseDay(dateStr)
		if !ok {
			continue
		}
		if d.Before(fromDay) || d.After(toDay) {
			continue
		}
		points = append(points, provider.PricePoint{
			Date:   d,
			Price:  parseFloat(bar.Close),
			Volume: parseInt(bar.Volume),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

// day truncates t to UTC midnight so range bounds compare by calendar date.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
