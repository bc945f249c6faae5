package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-meme-radar/internal/domain"
)

func momentumPatch(mint string, age time.Duration, now time.Time, volume, liquidity float64, buys, sells int64) domain.TokenPatch {
	return domain.TokenPatch{
		MintAddress: mint,
		CreatedAt:   lo.ToPtr(now.Add(-age).UnixMilli()),
		Volume24h:   lo.ToPtr(volume),
		Liquidity:   lo.ToPtr(liquidity),
		BuyCount:    lo.ToPtr(buys),
		SellCount:   lo.ToPtr(sells),
	}
}

func TestRankByMomentum_Filters(t *testing.T) {
	r, clock := newTestRegistry(100)
	now := clock.Now()

	r.Merge(momentumPatch("ok", time.Hour, now, 20000, 6000, 6, 4))
	r.Merge(momentumPatch("old", 25*time.Hour, now, 1e6, 1e6, 9, 1))
	r.Merge(momentumPatch("sellers", time.Hour, now, 1e6, 1e6, 5, 5))
	r.Merge(momentumPatch("thin", time.Hour, now, 1e6, 4999, 9, 1))
	r.Merge(momentumPatch("quiet", time.Hour, now, 9999, 1e6, 9, 1))
	r.Merge(momentumPatch("noTrades", time.Hour, now, 1e6, 1e6, 0, 0))

	ranked := r.RankByMomentum()
	assert.Equal(t, []string{"ok"}, mints(ranked))
}

func TestRankByMomentum_OrderAndLimit(t *testing.T) {
	r, clock := newTestRegistry(100)
	now := clock.Now()

	for i := 0; i < 15; i++ {
		r.Merge(momentumPatch(fmt.Sprintf("M%02d", i), time.Duration(i+1)*time.Minute, now, 50000, 10000, 8, 2))
	}

	ranked := r.RankByMomentum()
	require.Len(t, ranked, MomentumTopN)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, MomentumScore(ranked[i-1], now), MomentumScore(ranked[i], now))
	}
	for _, tok := range ranked {
		assert.True(t, Qualifies(tok, now))
	}
	assert.Equal(t, "M00", ranked[0].MintAddress)
}

func TestMomentumScore_AgeFloor(t *testing.T) {
	now := time.Now()
	tok := domain.Token{CreatedAt: now.Add(10 * time.Second).UnixMilli(), Volume24h: 1000, BuyRatio: 0.6}
	assert.Equal(t, 600.0, MomentumScore(tok, now))

	tok.CreatedAt = now.Add(-30 * time.Minute).UnixMilli()
	assert.InDelta(t, 20.0, MomentumScore(tok, now), 1e-9)
}

func TestRankByMomentum_Cached(t *testing.T) {
	r, clock := newTestRegistry(100)
	now := clock.Now()
	r.Merge(momentumPatch("first", time.Minute, now, 50000, 10000, 8, 2))
	require.Len(t, r.RankByMomentum(), 1)

	r.Merge(momentumPatch("second", time.Minute, now, 50000, 10000, 8, 2))
	assert.Len(t, r.RankByMomentum(), 1, "served from cache within TTL")

	clock.Advance(DefaultMomentumTTL)
	assert.Len(t, r.RankByMomentum(), 2)
}

func TestRankByMomentum_ReturnsCopy(t *testing.T) {
	r, clock := newTestRegistry(100)
	r.Merge(momentumPatch("first", time.Minute, clock.Now(), 50000, 10000, 8, 2))

	ranked := r.RankByMomentum()
	ranked[0].Name = "mutated"
	assert.NotEqual(t, "mutated", r.RankByMomentum()[0].Name)
}
