package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClient_LatestProfiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token-profiles/latest/v1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"chainId": "solana", "tokenAddress": "MintA", "description": "first\nsecond", "icon": "https://img/a.png",
				"links": []map[string]string{{"url": "https://a.fun"}}},
			{"chainId": "base", "tokenAddress": "0xabc"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	profiles, err := client.LatestProfiles(context.Background())
	if err != nil {
		t.Fatalf("LatestProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].TokenAddress != "MintA" || profiles[0].Links[0].URL != "https://a.fun" {
		t.Errorf("unexpected profile %+v", profiles[0])
	}
}

func TestHTTPClient_PairsByTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tokens/v1/solana/MintA,MintB" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"chainId":       "solana",
				"dexId":         "raydium",
				"pairAddress":   "PairA",
				"baseToken":     map[string]string{"address": "MintA", "name": "Alpha", "symbol": "ALP"},
				"priceUsd":      "0.00123",
				"txns":          map[string]interface{}{"h24": map[string]int{"buys": 30, "sells": 10}},
				"volume":        map[string]float64{"h24": 50000},
				"priceChange":   map[string]float64{"m5": 1.5, "h1": -2, "h24": 40},
				"liquidity":     map[string]float64{"usd": 12000},
				"fdv":           90000,
				"pairCreatedAt": int64(1700000000000),
				"info":          map[string]string{"imageUrl": "https://img/alpha.png"},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	pairs, err := client.PairsByTokens(context.Background(), []string{"MintA", "MintB"})
	if err != nil {
		t.Fatalf("PairsByTokens: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}

	snap := pairs[0].Snapshot()
	if snap.PriceUSD != 0.00123 {
		t.Errorf("expected price 0.00123, got %v", snap.PriceUSD)
	}
	if snap.MarketCap != 90000 {
		t.Errorf("market cap should fall back to fdv, got %v", snap.MarketCap)
	}
	if snap.BuyCount != 30 || snap.SellCount != 10 {
		t.Errorf("unexpected counts %d/%d", snap.BuyCount, snap.SellCount)
	}
	if snap.ImageURL != "https://img/alpha.png" || snap.PairCreatedAt != 1700000000000 {
		t.Errorf("unexpected backfills %+v", snap)
	}
}

func TestHTTPClient_PairsByTokens_TooMany(t *testing.T) {
	client := NewHTTPClient("http://unused")
	addrs := make([]string, MaxBatchAddresses+1)
	for i := range addrs {
		addrs[i] = "x"
	}
	if _, err := client.PairsByTokens(context.Background(), addrs); err == nil {
		t.Fatal("expected error for oversize batch")
	}
}

func TestHTTPClient_TokenPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/dex/tokens/MintA" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"schemaVersion": "1.0.0",
			"pairs": []map[string]interface{}{
				{"pairAddress": "P1", "baseToken": map[string]string{"address": "MintA"}},
				{"pairAddress": "P2", "baseToken": map[string]string{"address": "MintA"}},
			},
		})
	}))
	defer server.Close()

	pairs, err := NewHTTPClient(server.URL).TokenPairs(context.Background(), "MintA")
	if err != nil {
		t.Fatalf("TokenPairs: %v", err)
	}
	if len(pairs) != 2 {
		t.Errorf("expected 2 pairs, got %d", len(pairs))
	}
}

func TestHTTPClient_StatusError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL).LatestBoosts(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", statusErr.Code)
	}
	if calls != 1 {
		t.Errorf("aggregator calls must not be retried, got %d", calls)
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithTimeouts(50*time.Millisecond, 0, 0))
	start := time.Now()
	if _, err := client.TopBoosts(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("timeout not applied, took %v", time.Since(start))
	}
}

func TestBestPairs(t *testing.T) {
	pairs := []Pair{
		{PairAddress: "low", BaseToken: PairToken{Address: "M"}, Liquidity: &Liquidity{Usd: 100}},
		{PairAddress: "high", BaseToken: PairToken{Address: "M"}, Liquidity: &Liquidity{Usd: 900}},
		{PairAddress: "nil", BaseToken: PairToken{Address: "M"}},
		{PairAddress: "other", BaseToken: PairToken{Address: "N"}},
		{PairAddress: "orphan"},
	}

	best := BestPairs(pairs)
	if len(best) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(best))
	}
	if best[0].PairAddress != "high" {
		t.Errorf("expected highest liquidity pair, got %s", best[0].PairAddress)
	}
	if best[1].PairAddress != "other" {
		t.Errorf("expected groups in first-seen order, got %s", best[1].PairAddress)
	}
}
