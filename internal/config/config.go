package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type AlphaVantage struct {
	APIKey         string `json:"api_key"`
	Endpoint       string `json:"endpoint"`
	SupportsSearch bool   `json:"supports_search"`
}

type Yahoo struct {
	SupportsSearch bool `json:"supports_search"`
}

// CacheInstance sizes one cache. TTLSeconds <= 0 disables expiry.
type CacheInstance struct {
	TTLSeconds int `json:"ttl_sec"`
	MaxItems   int `json:"max_items"`
}

type Caches struct {
	Quotes    CacheInstance `json:"quotes"`
	Overviews CacheInstance `json:"overviews"`
	History   CacheInstance `json:"history"`
}

// RateClass is one limiter instance: Max requests per identifier per window.
type RateClass struct {
	Max            int `json:"max"`
	WindowSec      int `json:"window_sec"`
	MaxIdentifiers int `json:"max_identifiers"`
}

type RateLimits struct {
	Read  RateClass `json:"read"`
	Admin RateClass `json:"admin"`
}

type Retry struct {
	BaseDelayMS int `json:"base_delay_ms"`
	MaxAttempts int `json:"max_attempts"`
}

type Search struct {
	SufficiencyThreshold int `json:"sufficiency_threshold"`
	PageSize             int `json:"page_size"`
}

type Config struct {
	Server         Server       `json:"server"`
	ActiveProvider string       `json:"active_provider"`
	AlphaVantage   AlphaVantage `json:"alphavantage"`
	Yahoo          Yahoo        `json:"yahoo"`
	Caches         Caches       `json:"caches"`
	RateLimits     RateLimits   `json:"rate_limits"`
	Retry          Retry        `json:"retry"`
	Search         Search       `json:"search"`
}

func Default() Config {
	return Config{
		Server:         Server{Port: "8080", RequestTimeoutSec: 10},
		ActiveProvider: "alphavantage",
		AlphaVantage: AlphaVantage{
			Endpoint:       "https://www.alphavantage.co",
			SupportsSearch: true,
		},
		Yahoo: Yahoo{SupportsSearch: false},
		Caches: Caches{
			Quotes:    CacheInstance{TTLSeconds: 60, MaxItems: 1000},
			Overviews: CacheInstance{TTLSeconds: 86400, MaxItems: 500},
			History:   CacheInstance{TTLSeconds: 3600, MaxItems: 200},
		},
		RateLimits: RateLimits{
			Read:  RateClass{Max: 30, WindowSec: 60, MaxIdentifiers: 10000},
			Admin: RateClass{Max: 5, WindowSec: 60, MaxIdentifiers: 1000},
		},
		Retry:  Retry{BaseDelayMS: 1000, MaxAttempts: 3},
		Search: Search{SufficiencyThreshold: 5, PageSize: 20},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("ACTIVE_PROVIDER"); v != "" {
		cfg.ActiveProvider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_ENDPOINT"); v != "" {
		cfg.AlphaVantage.Endpoint = v
	}
	if v := os.Getenv("QUOTE_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Caches.Quotes.TTLSeconds = x
		}
	}
	if v := os.Getenv("QUOTE_CACHE_MAX_ITEMS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Caches.Quotes.MaxItems = x
		}
	}
	if v := os.Getenv("OVERVIEW_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Caches.Overviews.TTLSeconds = x
		}
	}
	if v := os.Getenv("OVERVIEW_CACHE_MAX_ITEMS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Caches.Overviews.MaxItems = x
		}
	}
	if v := os.Getenv("HISTORY_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Caches.History.TTLSeconds = x
		}
	}
	if v := os.Getenv("READ_RATE_MAX"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.RateLimits.Read.Max = x
		}
	}
	if v := os.Getenv("READ_RATE_WINDOW_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.RateLimits.Read.WindowSec = x
		}
	}
	if v := os.Getenv("ADMIN_RATE_MAX"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.RateLimits.Admin.Max = x
		}
	}
	if v := os.Getenv("ADMIN_RATE_WINDOW_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.RateLimits.Admin.WindowSec = x
		}
	}
	if v := os.Getenv("RETRY_BASE_DELAY_MS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Retry.BaseDelayMS = x
		}
	}
	if v := os.Getenv("RETRY_MAX_ATTEMPTS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Retry.MaxAttempts = x
		}
	}
	if v := os.Getenv("SEARCH_SUFFICIENCY_THRESHOLD"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Search.SufficiencyThreshold = x
		}
	}
	if v := os.Getenv("SEARCH_PAGE_SIZE"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Search.PageSize = x
		}
	}
}
