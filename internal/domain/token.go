package domain

import "strings"

// DefaultBuyRatio is reported when a token has no recorded trades.
const DefaultBuyRatio = 0.5

// Token is a tracked token keyed by its mint address.
// Timestamps are Unix milliseconds, matching the wire format.
type Token struct {
	MintAddress string `json:"mintAddress"` // immutable key
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`

	CreatedAt   int64 `json:"createdAt"`   // best-effort, corrected by pair data
	LastUpdated int64 `json:"lastUpdated"` // ms

	MarketCap      float64 `json:"marketCap"`
	Liquidity      float64 `json:"liquidity"` // USD
	Volume24h      float64 `json:"volume24h"` // USD
	PriceUSD       float64 `json:"priceUsd"`
	PriceChange5m  float64 `json:"priceChange5m"`
	PriceChange1h  float64 `json:"priceChange1h"`
	PriceChange24h float64 `json:"priceChange24h"`

	BuyCount  int64   `json:"buyCount"`  // 24h
	SellCount int64   `json:"sellCount"` // 24h
	BuyRatio  float64 `json:"buyRatio"`  // buys/(buys+sells)

	Metadata Metadata `json:"metadata"`

	PairAddress string `json:"pairAddress,omitempty"`
	DexID       string `json:"dexId,omitempty"`
}

// Metadata holds optional presentation fields. Nil means unknown.
type Metadata struct {
	Image       *string `json:"image"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
}

// BuyRatio returns buys/(buys+sells), or DefaultBuyRatio with no trades.
func BuyRatio(buys, sells int64) float64 {
	if buys < 0 {
		buys = 0
	}
	if sells < 0 {
		sells = 0
	}
	total := buys + sells
	if total == 0 {
		return DefaultBuyRatio
	}
	return float64(buys) / float64(total)
}

// Matches reports whether the lowercase needle occurs in name, symbol or mint.
func (t *Token) Matches(needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Name), needle) ||
		strings.Contains(strings.ToLower(t.Symbol), needle) ||
		strings.Contains(strings.ToLower(t.MintAddress), needle)
}

// TokenPatch is a partial token update. Nil fields are absent and leave the
// stored value untouched.
type TokenPatch struct {
	MintAddress string

	Name      *string
	Symbol    *string
	CreatedAt *int64

	// Placeholders used only when the token is first inserted and the
	// matching field above is absent.
	PlaceholderName      *string
	PlaceholderSymbol    *string
	PlaceholderCreatedAt *int64

	MarketCap      *float64
	Liquidity      *float64
	Volume24h      *float64
	PriceUSD       *float64
	PriceChange5m  *float64
	PriceChange1h  *float64
	PriceChange24h *float64

	BuyCount  *int64
	SellCount *int64

	Image       *string
	Description *string
	URL         *string

	PairAddress *string
	DexID       *string
}

// MarketSnapshot is the authoritative market state of a token taken from its
// highest-liquidity trading pair.
type MarketSnapshot struct {
	PairAddress string
	DexID       string

	// Optional backfills; empty or zero means not provided.
	Name          string
	Symbol        string
	ImageURL      string
	PairCreatedAt int64

	MarketCap      float64
	Liquidity      float64
	Volume24h      float64
	PriceUSD       float64
	PriceChange5m  float64
	PriceChange1h  float64
	PriceChange24h float64
	BuyCount       int64
	SellCount      int64
}
