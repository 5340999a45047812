package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"marketdata/internal/config"
)

// avdump pulls raw Alpha Vantage responses for a list of symbols and streams
// them to a single JSON file, one entry per symbol. Useful for building test
// fixtures and inspecting what the API actually returns.

type httpStatusErr struct {
	code int
	body string
}

func (e *httpStatusErr) Error() string { return fmt.Sprintf("http %d: %s", e.code, e.body) }

func main() {
	var (
		symbolsFile string
		outPath     string
		cfgPath     string
		function    string
		concurrency int
		timeoutSec  int
		maxRetries  int
		rpm         int
	)
	flag.StringVar(&symbolsFile, "symbols-file", "symbols.txt", "file with one ticker symbol per line")
	flag.StringVar(&outPath, "out", "avdump.json", "output JSON file path")
	flag.StringVar(&cfgPath, "config", "", "path to config.json (optional)")
	flag.StringVar(&function, "function", "GLOBAL_QUOTE", "Alpha Vantage function (GLOBAL_QUOTE, OVERVIEW, TIME_SERIES_DAILY)")
	flag.IntVar(&concurrency, "concurrency", 2, "number of parallel requests")
	flag.IntVar(&timeoutSec, "timeout", 20, "HTTP timeout seconds")
	flag.IntVar(&maxRetries, "retries", 3, "max retries on 429/5xx")
	flag.IntVar(&rpm, "rpm", 5, "max requests per minute (0 = unlimited; free tier allows 5)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.AlphaVantage.APIKey == "" {
		log.Fatal("ALPHAVANTAGE_API_KEY missing (set in config.json or env)")
	}
	endpoint := cfg.AlphaVantage.Endpoint
	if endpoint == "" {
		endpoint = "https://www.alphavantage.co"
	}

	symbols, err := readSymbols(symbolsFile)
	if err != nil {
		log.Fatalf("read symbols: %v", err)
	}
	if len(symbols) == 0 {
		log.Fatal("no symbols found in symbols-file")
	}
	log.Printf("symbols: %d", len(symbols))

	hc := &http.Client{Timeout: time.Duration(timeoutSec) * time.Second}

	outFile, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("create out: %v", err)
	}
	defer outFile.Close()
	bw := bufio.NewWriterSize(outFile, 1<<20)
	defer bw.Flush()

	_, _ = bw.WriteString("{")
	first := true
	var writeMu sync.Mutex

	// Gate requests by RPM; Alpha Vantage free keys throttle hard.
	var tokenCh <-chan time.Time
	if rpm > 0 {
		t := time.NewTicker(time.Minute / time.Duration(rpm))
		defer t.Stop()
		tokenCh = t.C
	}

	doReq := func(ctx context.Context, symbol string) (json.RawMessage, error) {
		params := url.Values{}
		params.Set("function", function)
		params.Set("symbol", symbol)
		params.Set("apikey", cfg.AlphaVantage.APIKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/query?%s", endpoint, params.Encode()), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if tokenCh != nil {
			<-tokenCh
		}
		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &httpStatusErr{code: resp.StatusCode, body: string(b[:min(len(b), 2<<10)])}
		}
		return json.RawMessage(b), nil
	}

	fetch := func(ctx context.Context, symbol string) (json.RawMessage, error) {
		attempt := 0
		for {
			raw, err := doReq(ctx, symbol)
			if err == nil {
				return raw, nil
			}
			var hs *httpStatusErr
			if asStatus(err, &hs) && (hs.code == 429 || (hs.code >= 500 && hs.code < 600)) && attempt < maxRetries {
				time.Sleep(time.Duration(500*(1<<attempt)) * time.Millisecond)
				attempt++
				continue
			}
			return nil, err
		}
	}

	jobs := make(chan string, concurrency*2)
	wg := sync.WaitGroup{}
	worker := func() {
		defer wg.Done()
		for sym := range jobs {
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
			raw, err := fetch(ctx, sym)
			cancel()
			if err != nil {
				log.Printf("%s error: %v", sym, err)
				continue
			}
			key, _ := json.Marshal(sym)
			writeMu.Lock()
			if !first {
				_, _ = bw.WriteString(",")
			} else {
				first = false
			}
			_, _ = bw.Write(key)
			_, _ = bw.WriteString(":")
			_, _ = bw.Write(raw)
			writeMu.Unlock()
		}
	}

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go worker()
	}
	for _, sym := range symbols {
		jobs <- sym
	}
	close(jobs)
	wg.Wait()

	_, _ = bw.WriteString("}")
	if err := bw.Flush(); err != nil {
		log.Fatalf("flush: %v", err)
	}
	log.Printf("done: wrote %s", outPath)
}

func readSymbols(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		sym := strings.ToUpper(strings.TrimSpace(line))
		if sym == "" || strings.HasPrefix(sym, "#") {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out, nil
}

func asStatus(err error, target **httpStatusErr) bool {
	if err == nil {
		return false
	}
	if v, ok := err.(*httpStatusErr); ok {
		*target = v
		return true
	}
	return false
}
