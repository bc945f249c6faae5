package registry

import (
	"cmp"
	"slices"
	"time"

	"github.com/samber/lo"

	"solana-meme-radar/internal/domain"
)

// Momentum thresholds.
const (
	MomentumMaxAge       = 24 * time.Hour
	MomentumMinBuyRatio  = 0.55
	MomentumMinVolume    = 10_000.0
	MomentumMinLiquidity = 5_000.0
	MomentumTopN         = 10
)

// MomentumScore is volume24h * buyRatio divided by age in minutes, with age
// floored at one minute.
func MomentumScore(t domain.Token, now time.Time) float64 {
	ageMinutes := float64(now.UnixMilli()-t.CreatedAt) / float64(time.Minute/time.Millisecond)
	return t.Volume24h * t.BuyRatio / max(1, ageMinutes)
}

// Qualifies reports whether t passes every momentum threshold at now.
func Qualifies(t domain.Token, now time.Time) bool {
	age := time.Duration(now.UnixMilli()-t.CreatedAt) * time.Millisecond
	return age <= MomentumMaxAge &&
		t.BuyRatio >= MomentumMinBuyRatio &&
		t.Volume24h >= MomentumMinVolume &&
		t.Liquidity >= MomentumMinLiquidity
}

// RankByMomentum returns up to MomentumTopN qualifying tokens by descending
// score. The result is cached for the momentum TTL.
func (r *Registry) RankByMomentum() []domain.Token {
	now := r.now()

	r.momentumMu.Lock()
	defer r.momentumMu.Unlock()

	if r.momentum != nil && now.Sub(r.momentumAt) < r.momentumTTL {
		return slices.Clone(r.momentum)
	}

	r.mu.RLock()
	entries := r.orderedLocked()
	r.mu.RUnlock()

	type scored struct {
		token domain.Token
		score float64
	}
	ranked := lo.FilterMap(entries, func(e *entry, _ int) (scored, bool) {
		if !Qualifies(e.token, now) {
			return scored{}, false
		}
		return scored{token: e.token, score: MomentumScore(e.token, now)}, true
	})
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(ranked) > MomentumTopN {
		ranked = ranked[:MomentumTopN]
	}

	r.momentum = lo.Map(ranked, func(s scored, _ int) domain.Token { return s.token })
	r.momentumAt = now
	return slices.Clone(r.momentum)
}
