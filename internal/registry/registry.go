// Package registry holds the canonical in-memory set of tracked tokens.
package registry

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"solana-meme-radar/internal/domain"
)

// Default configuration values.
const (
	DefaultMaxTokens   = 500
	DefaultMomentumTTL = 10 * time.Second
)

// Options configures a Registry.
type Options struct {
	MaxTokens   int
	MomentumTTL time.Duration
	Now         func() time.Time
}

type entry struct {
	token domain.Token
	seq   uint64 // insertion order, breaks ties
}

// Registry is safe for concurrent use. Every read returns copies.
type Registry struct {
	mu        sync.RWMutex
	tokens    map[string]*entry
	nextSeq   uint64
	maxTokens int
	now       func() time.Time

	momentumMu  sync.Mutex
	momentum    []domain.Token
	momentumAt  time.Time
	momentumTTL time.Duration
}

// New creates an empty registry.
func New(opts Options) *Registry {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.MomentumTTL == 0 {
		opts.MomentumTTL = DefaultMomentumTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		tokens:      make(map[string]*entry),
		maxTokens:   opts.MaxTokens,
		now:         opts.Now,
		momentumTTL: opts.MomentumTTL,
	}
}

// Merge inserts an unknown token or overlays the fields present on p onto a
// known one. It reports whether the token was newly inserted.
func (r *Registry) Merge(p domain.TokenPatch) (domain.Token, bool) {
	if p.MintAddress == "" {
		return domain.Token{}, false
	}
	now := r.now().UnixMilli()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tokens[p.MintAddress]
	if !ok {
		e = &entry{
			token: domain.Token{MintAddress: p.MintAddress, CreatedAt: now},
			seq:   r.nextSeq,
		}
		r.nextSeq++
		applyPlaceholders(&e.token, p)
		r.tokens[p.MintAddress] = e
	}
	applyIdentity(&e.token, p)

	applyMarket(&e.token, p)
	e.token.BuyRatio = domain.BuyRatio(e.token.BuyCount, e.token.SellCount)
	e.token.LastUpdated = now
	return e.token, !ok
}

func applyPlaceholders(t *domain.Token, p domain.TokenPatch) {
	if p.PlaceholderName != nil {
		t.Name = *p.PlaceholderName
	}
	if p.PlaceholderSymbol != nil {
		t.Symbol = *p.PlaceholderSymbol
	}
	if p.PlaceholderCreatedAt != nil {
		t.CreatedAt = *p.PlaceholderCreatedAt
	}
}

func applyIdentity(t *domain.Token, p domain.TokenPatch) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Symbol != nil {
		t.Symbol = *p.Symbol
	}
	if p.CreatedAt != nil {
		t.CreatedAt = *p.CreatedAt
	}
}

func applyMarket(t *domain.Token, p domain.TokenPatch) {
	setFloat(&t.MarketCap, p.MarketCap)
	setFloat(&t.Liquidity, p.Liquidity)
	setFloat(&t.Volume24h, p.Volume24h)
	setFloat(&t.PriceUSD, p.PriceUSD)
	setFloat(&t.PriceChange5m, p.PriceChange5m)
	setFloat(&t.PriceChange1h, p.PriceChange1h)
	setFloat(&t.PriceChange24h, p.PriceChange24h)
	if p.BuyCount != nil {
		t.BuyCount = max(*p.BuyCount, 0)
	}
	if p.SellCount != nil {
		t.SellCount = max(*p.SellCount, 0)
	}
	if p.Image != nil {
		t.Metadata.Image = lo.ToPtr(*p.Image)
	}
	if p.Description != nil {
		t.Metadata.Description = lo.ToPtr(*p.Description)
	}
	if p.URL != nil {
		t.Metadata.URL = lo.ToPtr(*p.URL)
	}
	if p.PairAddress != nil {
		t.PairAddress = *p.PairAddress
	}
	if p.DexID != nil {
		t.DexID = *p.DexID
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// ApplyMarketSnapshot overwrites the market and trading fields of a known
// token. Name, symbol and image are backfilled when the snapshot has them,
// and a pair creation time replaces the creation estimate.
func (r *Registry) ApplyMarketSnapshot(mint string, s domain.MarketSnapshot) (domain.Token, bool) {
	now := r.now().UnixMilli()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tokens[mint]
	if !ok {
		return domain.Token{}, false
	}
	t := &e.token

	t.MarketCap = s.MarketCap
	t.Liquidity = s.Liquidity
	t.Volume24h = s.Volume24h
	t.PriceUSD = s.PriceUSD
	t.PriceChange5m = s.PriceChange5m
	t.PriceChange1h = s.PriceChange1h
	t.PriceChange24h = s.PriceChange24h
	t.BuyCount = max(s.BuyCount, 0)
	t.SellCount = max(s.SellCount, 0)
	t.BuyRatio = domain.BuyRatio(t.BuyCount, t.SellCount)

	if s.Name != "" {
		t.Name = s.Name
	}
	if s.Symbol != "" {
		t.Symbol = s.Symbol
	}
	if s.ImageURL != "" {
		t.Metadata.Image = lo.ToPtr(s.ImageURL)
	}
	if s.PairCreatedAt > 0 {
		t.CreatedAt = s.PairCreatedAt
	}
	if s.PairAddress != "" {
		t.PairAddress = s.PairAddress
	}
	if s.DexID != "" {
		t.DexID = s.DexID
	}
	t.LastUpdated = now
	return *t, true
}

// Get returns the token for mint.
func (r *Registry) Get(mint string) (domain.Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tokens[mint]
	if !ok {
		return domain.Token{}, false
	}
	return e.token, true
}

// Len returns the number of tracked tokens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

// Contains reports whether mint is tracked.
func (r *Registry) Contains(mint string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tokens[mint]
	return ok
}

// EvictOverCapacity keeps the MaxTokens most recently created tokens and
// returns the mints it dropped.
func (r *Registry) EvictOverCapacity() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tokens) <= r.maxTokens {
		return nil
	}

	entries := lo.Values(r.tokens)
	slices.SortFunc(entries, func(a, b *entry) int {
		if c := cmp.Compare(b.token.CreatedAt, a.token.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})

	evicted := make([]string, 0, len(entries)-r.maxTokens)
	for _, e := range entries[r.maxTokens:] {
		delete(r.tokens, e.token.MintAddress)
		evicted = append(evicted, e.token.MintAddress)
	}
	return evicted
}

// Stalest returns up to n tokens, least recently updated first.
func (r *Registry) Stalest(n int) []domain.Token {
	r.mu.RLock()
	entries := r.orderedLocked()
	r.mu.RUnlock()

	slices.SortStableFunc(entries, func(a, b *entry) int {
		return cmp.Compare(a.token.LastUpdated, b.token.LastUpdated)
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return tokensOf(entries)
}

// orderedLocked returns copies of all entries in insertion order.
func (r *Registry) orderedLocked() []*entry {
	out := make([]*entry, 0, len(r.tokens))
	for _, e := range r.tokens {
		cp := *e
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *entry) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

func tokensOf(entries []*entry) []domain.Token {
	return lo.Map(entries, func(e *entry, _ int) domain.Token { return e.token })
}

// Stats is an aggregate view of the registry.
type Stats struct {
	TotalTokens       int     `json:"totalTokens"`
	NewLast1h         int     `json:"newLast1h"`
	TotalLiquidity    float64 `json:"totalLiquidity"`
	TotalVolume24h    float64 `json:"totalVolume24h"`
	HighMomentumCount int     `json:"highMomentumCount"`
	LastUpdated       int64   `json:"lastUpdated"` // newest token update, ms
}

// Stats aggregates the current registry contents.
func (r *Registry) Stats() Stats {
	momentum := r.RankByMomentum()
	cutoff := r.now().Add(-time.Hour).UnixMilli()

	r.mu.RLock()
	tokens := tokensOf(lo.Values(r.tokens))
	r.mu.RUnlock()

	var lastUpdated int64
	for _, t := range tokens {
		lastUpdated = max(lastUpdated, t.LastUpdated)
	}
	return Stats{
		TotalTokens:       len(tokens),
		NewLast1h:         lo.CountBy(tokens, func(t domain.Token) bool { return t.CreatedAt > cutoff }),
		TotalLiquidity:    lo.SumBy(tokens, func(t domain.Token) float64 { return t.Liquidity }),
		TotalVolume24h:    lo.SumBy(tokens, func(t domain.Token) float64 { return t.Volume24h }),
		HighMomentumCount: len(momentum),
		LastUpdated:       lastUpdated,
	}
}

// needle lowercases and trims search text.
func needle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
