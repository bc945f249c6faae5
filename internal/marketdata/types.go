package marketdata

import (
	"strconv"

	"solana-meme-radar/internal/domain"
)

// ChainSolana is the aggregator chain id for Solana.
const ChainSolana = "solana"

// Profile is an entry of the latest token profiles feed.
type Profile struct {
	URL          string        `json:"url"`
	ChainID      string        `json:"chainId"`
	TokenAddress string        `json:"tokenAddress"`
	Icon         string        `json:"icon"`
	Header       string        `json:"header"`
	Description  string        `json:"description"`
	Links        []ProfileLink `json:"links"`
}

type ProfileLink struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Boost is an entry of the latest/top boosted tokens feeds.
type Boost struct {
	URL          string  `json:"url"`
	ChainID      string  `json:"chainId"`
	TokenAddress string  `json:"tokenAddress"`
	Amount       float64 `json:"amount"`
	TotalAmount  float64 `json:"totalAmount"`
}

// Pair is a trading pair as returned by the token lookup endpoints.
type Pair struct {
	ChainID       string      `json:"chainId"`
	DexID         string      `json:"dexId"`
	URL           string      `json:"url"`
	PairAddress   string      `json:"pairAddress"`
	BaseToken     PairToken   `json:"baseToken"`
	QuoteToken    PairToken   `json:"quoteToken"`
	PriceNative   string      `json:"priceNative"`
	PriceUsd      string      `json:"priceUsd"`
	Txns          PairTxns    `json:"txns"`
	Volume        PairWindows `json:"volume"`
	PriceChange   PairWindows `json:"priceChange"`
	Liquidity     *Liquidity  `json:"liquidity"`
	Fdv           float64     `json:"fdv"`
	MarketCap     float64     `json:"marketCap"`
	PairCreatedAt int64       `json:"pairCreatedAt"` // ms
	Info          *PairInfo   `json:"info"`
}

type PairToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Liquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

type PairTxns struct {
	M5  TxnSummary `json:"m5"`
	H1  TxnSummary `json:"h1"`
	H6  TxnSummary `json:"h6"`
	H24 TxnSummary `json:"h24"`
}

type TxnSummary struct {
	Buys  int64 `json:"buys"`
	Sells int64 `json:"sells"`
}

// PairWindows holds per-window figures (volume or price change percent).
type PairWindows struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

type PairInfo struct {
	ImageURL string `json:"imageUrl"`
}

// LiquidityUSD returns the pair liquidity, zero when unknown.
func (p *Pair) LiquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.Usd
}

// Price parses PriceUsd, zero when absent or malformed.
func (p *Pair) Price() float64 {
	v, err := strconv.ParseFloat(p.PriceUsd, 64)
	if err != nil {
		return 0
	}
	return v
}

// Cap returns marketCap, falling back to FDV.
func (p *Pair) Cap() float64 {
	if p.MarketCap != 0 {
		return p.MarketCap
	}
	return p.Fdv
}

func (p *Pair) Image() string {
	if p.Info == nil {
		return ""
	}
	return p.Info.ImageURL
}

// Snapshot converts the pair into an authoritative market snapshot.
func (p *Pair) Snapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		PairAddress:    p.PairAddress,
		DexID:          p.DexID,
		Name:           p.BaseToken.Name,
		Symbol:         p.BaseToken.Symbol,
		ImageURL:       p.Image(),
		PairCreatedAt:  p.PairCreatedAt,
		MarketCap:      p.Cap(),
		Liquidity:      p.LiquidityUSD(),
		Volume24h:      p.Volume.H24,
		PriceUSD:       p.Price(),
		PriceChange5m:  p.PriceChange.M5,
		PriceChange1h:  p.PriceChange.H1,
		PriceChange24h: p.PriceChange.H24,
		BuyCount:       p.Txns.H24.Buys,
		SellCount:      p.Txns.H24.Sells,
	}
}

// BestPairs groups pairs by base token address and keeps the one with the
// highest liquidity, ties keeping the first seen. Groups are returned in
// order of first appearance.
func BestPairs(pairs []Pair) []Pair {
	index := make(map[string]int, len(pairs))
	var best []Pair
	for _, p := range pairs {
		addr := p.BaseToken.Address
		if addr == "" {
			continue
		}
		i, ok := index[addr]
		if !ok {
			index[addr] = len(best)
			best = append(best, p)
			continue
		}
		if p.LiquidityUSD() > best[i].LiquidityUSD() {
			best[i] = p
		}
	}
	return best
}
