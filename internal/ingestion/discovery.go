package ingestion

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/events"
	"solana-meme-radar/internal/marketdata"
	"solana-meme-radar/internal/observability"
)

// Strategy names used in logs and metrics.
const (
	StrategyProfiles = "profiles"
	StrategyPairs    = "pairs"
)

const maxDescriptionName = 40

// DiscoveryResult summarizes one discovery tick.
type DiscoveryResult struct {
	NewTokens   []domain.Token
	Evicted     []string
	ProfilesErr error
	PairsErr    error
}

// DiscoverOnce runs both discovery strategies concurrently, merges profile
// candidates and then pair candidates, evicts over capacity and publishes
// the newly discovered tokens.
func (s *Scheduler) DiscoverOnce(ctx context.Context) DiscoveryResult {
	var (
		res      DiscoveryResult
		profiles []domain.TokenPatch
		pairs    []domain.TokenPatch
	)

	var g errgroup.Group
	g.Go(func() error {
		profiles, res.ProfilesErr = s.profileCandidates(ctx)
		return nil
	})
	g.Go(func() error {
		pairs, res.PairsErr = s.pairCandidates(ctx)
		return nil
	})
	_ = g.Wait()

	s.strategyFailed(StrategyProfiles, res.ProfilesErr)
	s.strategyFailed(StrategyPairs, res.PairsErr)

	var newMints []string
	for _, p := range append(profiles, pairs...) {
		if _, isNew := s.registry.Merge(p); isNew {
			newMints = append(newMints, p.MintAddress)
		}
	}
	res.Evicted = s.registry.EvictOverCapacity()

	for _, mint := range newMints {
		if tok, ok := s.registry.Get(mint); ok {
			res.NewTokens = append(res.NewTokens, tok)
		}
	}

	s.recordTick(res)
	if len(res.NewTokens) > 0 {
		s.logger.WithField("count", len(res.NewTokens)).Info("new tokens discovered")
		s.publish(ctx, events.NewTokens{Tokens: res.NewTokens})
	}
	return res
}

func (s *Scheduler) strategyFailed(name string, err error) {
	if err == nil {
		return
	}
	observability.RecordStrategyFailure(name)
	s.logger.WithField("strategy", name).WithError(err).Warn("discovery strategy failed")
}

func (s *Scheduler) recordTick(res DiscoveryResult) {
	outcome := "ok"
	switch {
	case res.ProfilesErr != nil && res.PairsErr != nil:
		outcome = "failed"
	case res.ProfilesErr != nil || res.PairsErr != nil:
		outcome = "partial"
	}
	if outcome == "ok" {
		s.consecutiveErrors.Store(0)
	} else {
		n := s.consecutiveErrors.Add(1)
		s.logger.WithFields(logrus.Fields{"outcome": outcome, "consecutive_errors": n}).Debug("discovery tick degraded")
	}

	observability.RecordDiscoveryTick(outcome)
	observability.RecordNewTokens(len(res.NewTokens))
	observability.SetConsecutiveErrors(s.consecutiveErrors.Load())
	observability.UpdateRegistrySize(s.registry.Len(), len(res.Evicted))
}

// profileCandidates reads the latest token profiles feed. The feed carries
// no market data or timing, so name, symbol and creation time are
// placeholders until pair data corrects them.
func (s *Scheduler) profileCandidates(ctx context.Context) ([]domain.TokenPatch, error) {
	profiles, err := s.client.LatestProfiles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "latest profiles")
	}

	profiles = lo.Filter(profiles, func(p marketdata.Profile, _ int) bool {
		return p.ChainID == marketdata.ChainSolana && p.TokenAddress != ""
	})
	if len(profiles) > s.profileLimit {
		profiles = profiles[:s.profileLimit]
	}

	now := s.now()
	return lo.Map(profiles, func(p marketdata.Profile, _ int) domain.TokenPatch {
		mint := p.TokenAddress
		name := firstLine(p.Description, maxDescriptionName)
		if name == "" {
			name = fallbackName(mint)
		}
		createdAt := now.Add(-time.Duration(s.rand() * float64(time.Hour))).UnixMilli()

		patch := domain.TokenPatch{
			MintAddress:          mint,
			PlaceholderName:      lo.ToPtr(name),
			PlaceholderSymbol:    lo.ToPtr(fallbackSymbol(mint)),
			PlaceholderCreatedAt: lo.ToPtr(createdAt),
			Image:                nonEmpty(p.Icon),
			Description:          nonEmpty(p.Description),
		}
		if len(p.Links) > 0 {
			patch.URL = nonEmpty(p.Links[0].URL)
		}
		return patch
	}), nil
}

// pairCandidates reads both boost feeds and resolves each feed's tokens to
// their highest-liquidity pair. A failing feed is skipped; the strategy
// fails only when every feed failed.
func (s *Scheduler) pairCandidates(ctx context.Context) ([]domain.TokenPatch, error) {
	feeds := []struct {
		name  string
		fetch func(context.Context) ([]marketdata.Boost, error)
	}{
		{"latest", s.client.LatestBoosts},
		{"top", s.client.TopBoosts},
	}

	var (
		all      []marketdata.Pair
		combined error
		failed   int
	)
	for _, feed := range feeds {
		pairs, err := s.feedPairs(ctx, feed.fetch)
		if err != nil {
			s.logger.WithField("feed", feed.name).WithError(err).Debug("boost feed failed")
			combined = errors.CombineErrors(combined, errors.Wrapf(err, "%s boosts", feed.name))
			failed++
			continue
		}
		all = append(all, pairs...)
	}
	if failed == len(feeds) {
		return nil, combined
	}

	now := s.now().UnixMilli()
	return lo.Map(marketdata.BestPairs(all), func(p marketdata.Pair, _ int) domain.TokenPatch {
		return pairPatch(p, now)
	}), nil
}

func (s *Scheduler) feedPairs(ctx context.Context, fetch func(context.Context) ([]marketdata.Boost, error)) ([]marketdata.Pair, error) {
	boosts, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	addrs := lo.Uniq(lo.FilterMap(boosts, func(b marketdata.Boost, _ int) (string, bool) {
		return b.TokenAddress, b.ChainID == marketdata.ChainSolana && b.TokenAddress != ""
	}))
	if len(addrs) > s.boostLimit {
		addrs = addrs[:s.boostLimit]
	}
	if len(addrs) == 0 {
		return nil, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	return s.client.PairsByTokens(lookupCtx, addrs)
}

// pairPatch carries every field the pair knows. Name, symbol and creation
// time fall back to placeholders when the pair lacks them.
func pairPatch(p marketdata.Pair, nowMs int64) domain.TokenPatch {
	mint := p.BaseToken.Address
	snap := p.Snapshot()

	patch := domain.TokenPatch{
		MintAddress:          mint,
		Name:                 nonEmpty(p.BaseToken.Name),
		Symbol:               nonEmpty(p.BaseToken.Symbol),
		PlaceholderName:      lo.ToPtr(fallbackName(mint)),
		PlaceholderSymbol:    lo.ToPtr(fallbackSymbol(mint)),
		PlaceholderCreatedAt: lo.ToPtr(nowMs),
		MarketCap:            lo.ToPtr(snap.MarketCap),
		Liquidity:            lo.ToPtr(snap.Liquidity),
		Volume24h:            lo.ToPtr(snap.Volume24h),
		PriceUSD:             lo.ToPtr(snap.PriceUSD),
		PriceChange5m:        lo.ToPtr(snap.PriceChange5m),
		PriceChange1h:        lo.ToPtr(snap.PriceChange1h),
		PriceChange24h:       lo.ToPtr(snap.PriceChange24h),
		BuyCount:             lo.ToPtr(snap.BuyCount),
		SellCount:            lo.ToPtr(snap.SellCount),
		Image:                nonEmpty(snap.ImageURL),
		URL:                  nonEmpty(p.URL),
		PairAddress:          nonEmpty(p.PairAddress),
		DexID:                nonEmpty(p.DexID),
	}
	if p.PairCreatedAt > 0 {
		patch.CreatedAt = lo.ToPtr(p.PairCreatedAt)
	}
	return patch
}

func firstLine(s string, maxLen int) string {
	line, _, _ := strings.Cut(s, "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > maxLen {
		line = string(r[:maxLen])
	}
	return line
}

func fallbackName(mint string) string {
	return "Token " + prefix(mint, 8)
}

func fallbackSymbol(mint string) string {
	return strings.ToUpper(prefix(mint, 6))
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
