package memory

import (
	"context"
	"sort"
	"sync"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu     sync.RWMutex
	byMint map[string][]*domain.TokenSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		byMint: make(map[string][]*domain.TokenSnapshot),
	}
}

// InsertBulk appends snapshots. The whole batch is rejected if any entry
// lacks a mint.
func (s *SnapshotStore) InsertBulk(_ context.Context, snaps []*domain.TokenSnapshot) error {
	for _, snap := range snaps {
		if snap == nil || snap.MintAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snaps {
		c := *snap
		s.byMint[snap.MintAddress] = append(s.byMint[snap.MintAddress], &c)
	}
	return nil
}

// GetByTimeRange retrieves snapshots of a mint within [start, end].
func (s *SnapshotStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.TokenSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenSnapshot
	for _, snap := range s.byMint[mint] {
		if snap.TimestampMs >= start && snap.TimestampMs <= end {
			c := *snap
			result = append(result, &c)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
