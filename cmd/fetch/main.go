package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"marketdata/internal/config"
	"marketdata/internal/httpx"
	"marketdata/internal/provider"
	"marketdata/internal/provider/alphavantage"
	"marketdata/internal/provider/retry"
	"marketdata/internal/provider/yahoo"
	"marketdata/internal/stocks"
)

func main() {
	var symbolsCSV string
	var backend string
	var withOverview bool
	var historyDays int
	var timeout int
	var configPath string

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "AAPL"), "comma-separated ticker symbols")
	flag.StringVar(&backend, "provider", getenv("ACTIVE_PROVIDER", ""), "backend to use (alphavantage or yahoo; defaults to config)")
	flag.BoolVar(&withOverview, "overview", getenvBool("WITH_OVERVIEW", false), "also fetch company profiles")
	flag.IntVar(&historyDays, "history-days", getenvInt("HISTORY_DAYS", 0), "also fetch daily history for the last N days")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 15), "request timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if backend != "" {
		cfg.ActiveProvider = backend
	}
	if timeout != 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	backends := map[string]stocks.Backend{
		"yahoo": {Provider: yahoo.New(yahoo.Config{}), SupportsSearch: cfg.Yahoo.SupportsSearch},
	}
	if cfg.AlphaVantage.APIKey != "" {
		av, err := alphavantage.NewClient(
			cfg.AlphaVantage.APIKey,
			alphavantage.WithBaseURL(cfg.AlphaVantage.Endpoint),
			alphavantage.WithHTTPClient(httpClient),
			alphavantage.WithHeader(http.Header{"Accept": []string{"application/json"}}),
		)
		if err != nil {
			log.Fatalf("alphavantage client: %v", err)
		}
		backends["alphavantage"] = stocks.Backend{Provider: av, SupportsSearch: cfg.AlphaVantage.SupportsSearch}
	}

	ex := retry.New(time.Duration(cfg.Retry.BaseDelayMS)*time.Millisecond, cfg.Retry.MaxAttempts)
	router, err := stocks.NewRouter(cfg.ActiveProvider, backends, ex)
	if err != nil {
		log.Fatalf("router: %v", err)
	}
	log.Printf("using provider %s", router.ProviderName())

	symbols := splitCSV(symbolsCSV)
	if len(symbols) == 0 {
		log.Fatal("no symbols provided")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.RequestTimeoutSec)*time.Second)
	defer cancel()

	type row struct {
		Quote    *provider.Quote       `json:"quote,omitempty"`
		Overview *provider.Overview    `json:"overview,omitempty"`
		History  []provider.PricePoint `json:"history,omitempty"`
	}
	out := make(map[string]row, len(symbols))
	for _, symbol := range symbols {
		sym := stocks.NormalizeSymbol(symbol)
		var r row
		r.Quote, err = router.GetQuote(ctx, sym)
		if err != nil {
			log.Printf("%s quote: %v", sym, err)
			continue
		}
		if r.Quote == nil {
			log.Printf("%s: no quote data", sym)
		}
		if withOverview {
			if r.Overview, err = router.GetOverview(ctx, sym); err != nil {
				log.Printf("%s overview: %v", sym, err)
			}
		}
		if historyDays > 0 {
			to := time.Now().UTC()
			from := to.AddDate(0, 0, -historyDays)
			if r.History, err = router.GetHistoricalPrices(ctx, sym, from, to); err != nil {
				log.Printf("%s history: %v", sym, err)
			}
		}
		out[sym] = r
	}
	if len(out) == 0 {
		log.Fatal("no data received")
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x != 0 {
			return x
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		}
	}
	return def
}
