package main

import (
	"compress/gzip"
	"context"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"marketdata/internal/cache"
	"marketdata/internal/config"
	"marketdata/internal/httpx"
	"marketdata/internal/provider"
	"marketdata/internal/provider/alphavantage"
	"marketdata/internal/provider/retry"
	"marketdata/internal/provider/yahoo"
	"marketdata/internal/ratelimit"
	"marketdata/internal/stocks"
)

func main() {
	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if cfg.ActiveProvider == "alphavantage" && cfg.AlphaVantage.APIKey == "" {
		logger.Warn("alphavantage selected but ALPHAVANTAGE_API_KEY not set; set the key or choose ACTIVE_PROVIDER=yahoo")
	}

	svc, err := buildService(cfg)
	if err != nil {
		log.Fatalf("service: %v", err)
	}
	logger.Info("provider selected", "name", svc.ProviderName())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/quote", requireMethod(http.MethodGet, handleQuote(svc)))
	mux.HandleFunc("/api/overview", requireMethod(http.MethodGet, handleOverview(svc)))
	mux.HandleFunc("/api/history", requireMethod(http.MethodGet, handleHistory(svc)))
	mux.HandleFunc("/api/search", requireMethod(http.MethodGet, handleSearch(svc)))
	mux.HandleFunc("/api/invalidate", requireMethod(http.MethodPost, handleInvalidate(svc)))
	mux.HandleFunc("/api/stats", requireMethod(http.MethodGet, handleStats(svc)))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withRequestID(withJSONHeaders(withGzip(recoverPanic(limitBody(mux))))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildService wires the caches, limiters, retry executor and the active
// backend into the façade. Everything is owned here and threaded through
// constructors; no ambient globals.
func buildService(cfg config.Config) (*stocks.Service, error) {
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
			return nil, err
		}
		backends["alphavantage"] = stocks.Backend{Provider: av, SupportsSearch: cfg.AlphaVantage.SupportsSearch}
	}

	ex := retry.New(time.Duration(cfg.Retry.BaseDelayMS)*time.Millisecond, cfg.Retry.MaxAttempts)
	router, err := stocks.NewRouter(cfg.ActiveProvider, backends, ex)
	if err != nil {
		return nil, err
	}

	caches := stocks.Caches{
		Quotes: cache.New[string, provider.Quote](cache.Config{
			Capacity:   cfg.Caches.Quotes.MaxItems,
			DefaultTTL: time.Duration(cfg.Caches.Quotes.TTLSeconds) * time.Second,
		}),
		Overviews: cache.New[string, provider.Overview](cache.Config{
			Capacity:   cfg.Caches.Overviews.MaxItems,
			DefaultTTL: time.Duration(cfg.Caches.Overviews.TTLSeconds) * time.Second,
		}),
		History: cache.New[string, []provider.PricePoint](cache.Config{
			Capacity:   cfg.Caches.History.MaxItems,
			DefaultTTL: time.Duration(cfg.Caches.History.TTLSeconds) * time.Second,
		}),
	}
	limiters := stocks.Limiters{
		Read: ratelimit.New(cfg.RateLimits.Read.Max,
			time.Duration(cfg.RateLimits.Read.WindowSec)*time.Second,
			cfg.RateLimits.Read.MaxIdentifiers),
		Admin: ratelimit.New(cfg.RateLimits.Admin.Max,
			time.Duration(cfg.RateLimits.Admin.WindowSec)*time.Second,
			cfg.RateLimits.Admin.MaxIdentifiers),
	}
	return stocks.NewService(router, caches, limiters, stocks.Config{
		SearchSufficiencyThreshold: cfg.Search.SufficiencyThreshold,
		SearchPageSize:             cfg.Search.PageSize,
	}), nil
}

// callerID identifies the caller for rate limiting: forwarded address when
// present, else the peer address without port.
func callerID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// withRequestID tags every request with an id for log correlation.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
