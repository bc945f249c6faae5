package domain

// TokenSnapshot is one archived market reading of a token.
// Corresponds to token_snapshots table in ClickHouse.
type TokenSnapshot struct {
	MintAddress string
	TimestampMs int64
	PriceUSD    float64
	MarketCap   float64
	Liquidity   float64
	Volume24h   float64
	BuyCount    int64
	SellCount   int64
	BuyRatio    float64
}

// SnapshotOf captures the market fields of t at its last update.
func SnapshotOf(t Token) TokenSnapshot {
	return TokenSnapshot{
		MintAddress: t.MintAddress,
		TimestampMs: t.LastUpdated,
		PriceUSD:    t.PriceUSD,
		MarketCap:   t.MarketCap,
		Liquidity:   t.Liquidity,
		Volume24h:   t.Volume24h,
		BuyCount:    t.BuyCount,
		SellCount:   t.SellCount,
		BuyRatio:    t.BuyRatio,
	}
}
