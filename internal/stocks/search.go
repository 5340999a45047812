package stocks

import (
	"context"
	"strings"

	"marketdata/internal/provider"
)

// Search resolves a stock search with a two-tier fallback: results already
// held locally (supplied by the external record store) short-circuit the
// provider when they meet the sufficiency threshold; otherwise provider hits
// are merged in behind them. Search has no dedicated cache.
//
// Merge rules: de-duplicate by symbol, local results win on conflict, local
// order is preserved ahead of provider order, and the combined list is
// truncated to the configured page size.
func (s *Service) Search(ctx context.Context, callerID, query string, local []provider.SearchHit) ([]provider.SearchHit, error) {
	if s.cfg.SearchSufficiencyThreshold > 0 && len(local) >= s.cfg.SearchSufficiencyThreshold {
		return truncateHits(mergeHits(local, nil), s.cfg.SearchPageSize), nil
	}
	if !s.router.SupportsSearch() {
		return truncateHits(mergeHits(local, nil), s.cfg.SearchPageSize), nil
	}
	if d := s.limiters.Read.Allow(callerID); !d.Allowed {
		return nil, &RateLimitError{Limit: d.Limit, Remaining: d.Remaining, ResetAt: d.ResetAt}
	}
	hits, err := s.router.SearchStocks(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	return truncateHits(mergeHits(local, hits), s.cfg.SearchPageSize), nil
}

func mergeHits(local, remote []provider.SearchHit) []provider.SearchHit {
	out := make([]provider.SearchHit, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local)+len(remote))
	for _, h := range local {
		key := NormalizeSymbol(h.Symbol)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	for _, h := range remote {
		key := NormalizeSymbol(h.Symbol)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}

func truncateHits(hits []provider.SearchHit, pageSize int) []provider.SearchHit {
	if pageSize > 0 && len(hits) > pageSize {
		return hits[:pageSize]
	}
	return hits
}
