// Package alphavantage implements the Alpha Vantage backend.
//
// Alpha Vantage supports every capability natively, including symbol search.
// Historical prices are served as a full daily series; the range is trimmed
// client-side and returned ascending by date (see history.go).
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"marketdata/internal/provider"
)

const defaultBaseURL = "https://www.alphavantage.co"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=alphavantage_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Alpha Vantage API.
type Client struct {
	// name is the provider display name.
	name string
	// baseURL is the base URL for the API.
	baseURL string
	// apiKey is sent as a query parameter with every request.
	apiKey string
	// httpClient performs the wire calls.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// Option is a configuration option for the Alpha Vantage client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new Alpha Vantage client.
func NewClient(apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("alphavantage: missing api key")
	}
	var client = &Client{
		name:       "AlphaVantage",
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}

func (c *Client) Name() string { return c.name }

// envelope matches the throttle and error shapes Alpha Vantage mixes into
// otherwise-valid 200 responses.
type envelope struct {
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// getJSON performs one GET against /query and decodes the response into out,
// classifying failures for the retry layer.
func (c *Client) getJSON(ctx context.Context, op string, params url.Values, out any) error {
	params.Set("apikey", c.apiKey)
	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return provider.Permanent(op, fmt.Errorf("creating request: %w", err))
	}
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures (timeouts, refused connections) are retryable.
		return provider.Transient(op, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return provider.ClassifyStatus(op, res.StatusCode, snippet, retryAfter(res.Header))
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
	if err != nil {
		return provider.Transient(op, fmt.Errorf("reading response: %w", err))
	}

	// Alpha Vantage reports throttling and request errors inside a 200 body.
	var env envelope
	_ = json.Unmarshal(body, &env)
	if env.Note != "" || env.Information != "" {
		return provider.Throttled(op, 0)
	}
	if env.ErrorMessage != "" {
		return provider.Permanent(op, errors.New(env.ErrorMessage))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return provider.Transient(op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
