package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/events"
	"solana-meme-radar/internal/storage"
	"solana-meme-radar/internal/storage/memory"
)

func TestRecorder_ArchivesUpdates(t *testing.T) {
	store := memory.NewSnapshotStore()
	r := NewRecorder(store, 0)
	ctx := context.Background()

	tok := domain.Token{MintAddress: "m1", LastUpdated: 1000, PriceUSD: 0.5, Volume24h: 42, BuyCount: 3, SellCount: 1, BuyRatio: 0.75}
	require.NoError(t, r.HandleEvent(ctx, events.NewTokens{Tokens: []domain.Token{tok}}))
	tok.LastUpdated = 2000
	tok.PriceUSD = 0.6
	require.NoError(t, r.HandleEvent(ctx, events.TokenUpdate{Tokens: []domain.Token{tok}}))
	require.NoError(t, r.HandleEvent(ctx, events.HighMomentum{Tokens: []domain.Token{tok}}))

	got, err := store.GetByTimeRange(ctx, "m1", 0, 5000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.5, got[0].PriceUSD)
	assert.Equal(t, int64(2000), got[1].TimestampMs)
	assert.Equal(t, 0.75, got[1].BuyRatio)
}

type failingStore struct{ storage.SnapshotStore }

func (failingStore) InsertBulk(context.Context, []*domain.TokenSnapshot) error {
	return errors.New("clickhouse unavailable")
}

func TestRecorder_ReturnsStoreError(t *testing.T) {
	r := NewRecorder(failingStore{}, 0)
	err := r.HandleEvent(context.Background(), events.TokenUpdate{Tokens: []domain.Token{{MintAddress: "m"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive 1 snapshots")
}
