package registry

import (
	"cmp"
	"slices"
	"strings"

	"github.com/samber/lo"

	"solana-meme-radar/internal/domain"
)

// Sort fields accepted by Query.
const (
	SortCreatedAt      = "createdAt"
	SortMarketCap      = "marketCap"
	SortLiquidity      = "liquidity"
	SortVolume24h      = "volume24h"
	SortBuyRatio       = "buyRatio"
	SortPrice          = "priceUsd"
	SortPriceChange24h = "priceChange24h"
	SortLastUpdated    = "lastUpdated"
	SortName           = "name"
	SortSymbol         = "symbol"
)

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

var numericFields = map[string]func(t *domain.Token) float64{
	SortCreatedAt:      func(t *domain.Token) float64 { return float64(t.CreatedAt) },
	SortMarketCap:      func(t *domain.Token) float64 { return t.MarketCap },
	SortLiquidity:      func(t *domain.Token) float64 { return t.Liquidity },
	SortVolume24h:      func(t *domain.Token) float64 { return t.Volume24h },
	SortBuyRatio:       func(t *domain.Token) float64 { return t.BuyRatio },
	SortPrice:          func(t *domain.Token) float64 { return t.PriceUSD },
	SortPriceChange24h: func(t *domain.Token) float64 { return t.PriceChange24h },
	SortLastUpdated:    func(t *domain.Token) float64 { return float64(t.LastUpdated) },
}

var stringFields = map[string]func(t *domain.Token) string{
	SortName:   func(t *domain.Token) string { return t.Name },
	SortSymbol: func(t *domain.Token) string { return t.Symbol },
}

// IsSortField reports whether field is accepted as is by Query.
func IsSortField(field string) bool {
	_, num := numericFields[field]
	_, str := stringFields[field]
	return num || str
}

// Query selects a page of tokens. Limit <= 0 means no limit.
type Query struct {
	SortField string
	SortOrder string
	Search    string
	Limit     int
	Offset    int
}

// Page is a query result. Total counts matches before pagination.
type Page struct {
	Tokens []domain.Token
	Total  int
}

// Query filters, sorts and paginates tokens. An unknown sort field sorts by
// creation time descending regardless of the requested order.
func (r *Registry) Query(q Query) Page {
	r.mu.RLock()
	entries := r.orderedLocked()
	r.mu.RUnlock()

	if s := needle(q.Search); s != "" {
		entries = lo.Filter(entries, func(e *entry, _ int) bool { return e.token.Matches(s) })
	}

	field, order := q.SortField, q.SortOrder
	if !IsSortField(field) {
		field, order = SortCreatedAt, OrderDesc
	}
	compare := comparator(field)
	desc := order != OrderAsc
	slices.SortStableFunc(entries, func(a, b *entry) int {
		c := compare(&a.token, &b.token)
		if desc {
			return -c
		}
		return c
	})

	total := len(entries)
	offset := max(q.Offset, 0)
	if offset >= total {
		return Page{Tokens: []domain.Token{}, Total: total}
	}
	end := total
	if q.Limit > 0 && offset+q.Limit < total {
		end = offset + q.Limit
	}
	return Page{Tokens: tokensOf(entries[offset:end]), Total: total}
}

func comparator(field string) func(a, b *domain.Token) int {
	if get, ok := stringFields[field]; ok {
		return func(a, b *domain.Token) int {
			return strings.Compare(strings.ToLower(get(a)), strings.ToLower(get(b)))
		}
	}
	get := numericFields[field]
	return func(a, b *domain.Token) int {
		return cmp.Compare(get(a), get(b))
	}
}
