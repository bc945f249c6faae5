package ingestion

import (
	"context"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/events"
	"solana-meme-radar/internal/marketdata"
	"solana-meme-radar/internal/observability"
)

// RefreshResult summarizes one market refresh tick.
type RefreshResult struct {
	Requested int
	Updated   []domain.Token
	Fallback  bool
}

// RefreshOnce updates the stalest tokens from one batched lookup, falling
// back to a capped run of spaced single lookups when the batch call fails.
func (s *Scheduler) RefreshOnce(ctx context.Context) RefreshResult {
	stale := s.registry.Stalest(s.refreshBatchSize)
	if len(stale) == 0 {
		return RefreshResult{}
	}
	mints := lo.Map(stale, func(t domain.Token, _ int) string { return t.MintAddress })
	res := RefreshResult{Requested: len(mints)}

	pairs, err := s.client.PairsByTokens(ctx, mints)
	if err != nil {
		s.logger.WithError(err).Warn("batch refresh failed, falling back to single lookups")
		res.Fallback = true
		pairs = s.serialLookup(ctx, mints[:min(len(mints), s.fallbackLimit)])
	}

	wanted := lo.Associate(mints, func(m string) (string, struct{}) { return m, struct{}{} })
	for _, p := range marketdata.BestPairs(pairs) {
		if _, ok := wanted[p.BaseToken.Address]; !ok {
			continue
		}
		if tok, ok := s.registry.ApplyMarketSnapshot(p.BaseToken.Address, p.Snapshot()); ok {
			res.Updated = append(res.Updated, tok)
		}
	}

	observability.RecordRefresh(len(res.Updated), res.Fallback)
	if len(res.Updated) > 0 {
		s.publish(ctx, events.TokenUpdate{Tokens: res.Updated})
	}
	return res
}

func (s *Scheduler) serialLookup(ctx context.Context, mints []string) []marketdata.Pair {
	limit := rate.Inf
	if s.fallbackSpacing > 0 {
		limit = rate.Every(s.fallbackSpacing)
	}
	limiter := rate.NewLimiter(limit, 1)

	var pairs []marketdata.Pair
	for _, mint := range mints {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		found, err := s.client.TokenPairs(ctx, mint)
		if err != nil {
			s.logger.WithField("mint", mint).WithError(err).Debug("single lookup failed")
			continue
		}
		pairs = append(pairs, found...)
	}
	return pairs
}

// MomentumBroadcaster publishes the momentum ranking on a fixed interval.
type MomentumBroadcaster struct {
	Registry  interface{ RankByMomentum() []domain.Token }
	Publisher Publisher
	Interval  time.Duration
}

// Run blocks until ctx is cancelled.
func (b *MomentumBroadcaster) Run(ctx context.Context) error {
	interval := b.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.BroadcastOnce(ctx)
		}
	}
}

// BroadcastOnce publishes HighMomentum when the ranking is non-empty.
func (b *MomentumBroadcaster) BroadcastOnce(ctx context.Context) {
	ranked := b.Registry.RankByMomentum()
	observability.SetHighMomentum(len(ranked))
	if len(ranked) > 0 {
		b.Publisher.Publish(ctx, events.HighMomentum{Tokens: ranked})
	}
}
