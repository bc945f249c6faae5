package clickhouse

import (
	"context"

	"github.com/cockroachdb/errors"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBulk appends snapshots in one batch.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snaps []*domain.TokenSnapshot) (err error) {
	if len(snaps) == 0 {
		return nil
	}
	for _, snap := range snaps {
		if snap == nil || snap.MintAddress == "" {
			return storage.ErrInvalidInput
		}
	}
	defer observe("snapshot_insert", &err)()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO token_snapshots (
			mint_address, timestamp_ms, price_usd, market_cap, liquidity,
			volume_24h, buy_count, sell_count, buy_ratio
		)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare batch")
	}

	for _, snap := range snaps {
		err = batch.Append(
			snap.MintAddress, uint64(snap.TimestampMs), snap.PriceUSD, snap.MarketCap, snap.Liquidity,
			snap.Volume24h, uint64(snap.BuyCount), uint64(snap.SellCount), snap.BuyRatio,
		)
		if err != nil {
			return errors.Wrap(err, "append to batch")
		}
	}

	if err = batch.Send(); err != nil {
		return errors.Wrap(err, "send batch")
	}
	return nil
}

// GetByTimeRange retrieves snapshots of a mint within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) (_ []*domain.TokenSnapshot, err error) {
	defer observe("snapshot_range", &err)()

	query := `
		SELECT mint_address, timestamp_ms, price_usd, market_cap, liquidity,
			volume_24h, buy_count, sell_count, buy_ratio
		FROM token_snapshots
		WHERE mint_address = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(max(start, 0)), uint64(max(end, 0)))
	if err != nil {
		return nil, errors.Wrap(err, "query by time range")
	}
	defer rows.Close()

	var result []*domain.TokenSnapshot
	for rows.Next() {
		var (
			snap       domain.TokenSnapshot
			ts         uint64
			buys, sell uint64
		)
		if err := rows.Scan(
			&snap.MintAddress, &ts, &snap.PriceUSD, &snap.MarketCap, &snap.Liquidity,
			&snap.Volume24h, &buys, &sell, &snap.BuyRatio,
		); err != nil {
			return nil, errors.Wrap(err, "scan token snapshot row")
		}
		snap.TimestampMs = int64(ts)
		snap.BuyCount = int64(buys)
		snap.SellCount = int64(sell)
		result = append(result, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate token snapshot rows")
	}
	return result, nil
}
