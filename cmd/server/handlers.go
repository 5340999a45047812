package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"marketdata/internal/provider"
	"marketdata/internal/stocks"
)

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP: limiter denials become 429 with
// the standard rate-limit headers, provider failures become 502, everything
// else 400.
func writeError(w http.ResponseWriter, err error) {
	if rle, ok := stocks.AsRateLimited(err); ok {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rle.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rle.Remaining))
		secs := int(time.Until(rle.ResetAt).Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeJSON(w, http.StatusTooManyRequests, apiError{Error: err.Error()})
		return
	}
	var perr *provider.Error
	if errors.As(err, &perr) {
		writeJSON(w, http.StatusBadGateway, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
}

func symbolParam(r *http.Request) (string, error) {
	sym := stocks.NormalizeSymbol(r.URL.Query().Get("symbol"))
	if sym == "" {
		return "", errors.New("missing symbol parameter")
	}
	return sym, nil
}

func handleQuote(svc *stocks.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sym, err := symbolParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
			return
		}
		res, err := svc.GetQuote(r.Context(), callerID(r), sym)
		if err != nil {
			writeError(w, err)
			return
		}
		if res == nil {
			writeJSON(w, http.StatusNotFound, apiError{Error: fmt.Sprintf("no quote for %s", sym)})
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleOverview(svc *stocks.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sym, err := symbolParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
			return
		}
		res, err := svc.GetOverview(r.Context(), callerID(r), sym)
		if err != nil {
			writeError(w, err)
			return
		}
		if res == nil {
			writeJSON(w, http.StatusNotFound, apiError{Error: fmt.Sprintf("no overview for %s", sym)})
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

const dayLayout = "2006-01-02"

func handleHistory(svc *stocks.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sym, err := symbolParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
			return
		}
		from, err := time.Parse(dayLayout, r.URL.Query().Get("from"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid from date, want YYYY-MM-DD"})
			return
		}
		to, err := time.Parse(dayLayout, r.URL.Query().Get("to"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid to date, want YYYY-MM-DD"})
			return
		}
		if to.Before(from) {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "to must not precede from"})
			return
		}
		res, err := svc.GetHistory(r.Context(), callerID(r), sym, from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type searchResponse struct {
	Query string               `json:"query"`
	Hits  []provider.SearchHit `json:"hits"`
}

func handleSearch(svc *stocks.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "missing q parameter"})
			return
		}
		// No local record store is attached to the server; every search
		// consults the provider when the backend supports it.
		hits, err := svc.Search(r.Context(), callerID(r), query, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		if hits == nil {
			hits = []provider.SearchHit{}
		}
		writeJSON(w, http.StatusOK, searchResponse{Query: query, Hits: hits})
	}
}

func handleInvalidate(svc *stocks.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sym, err := symbolParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
			return
		}
		if err := svc.Invalidate(callerID(r), sym); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"invalidated": sym})
	}
}

func handleStats(svc *stocks.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"provider": svc.ProviderName(),
			"caches":   svc.CacheStats(),
		})
	}
}
