// Package archive persists market readings from registry events.
package archive

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/events"
	"solana-meme-radar/internal/storage"
)

// DefaultWriteTimeout bounds one snapshot batch write.
const DefaultWriteTimeout = 5 * time.Second

// Recorder writes a snapshot of every new or refreshed token.
type Recorder struct {
	store   storage.SnapshotStore
	timeout time.Duration
}

var _ events.Subscriber = (*Recorder)(nil)

// NewRecorder creates a recorder. A non-positive timeout uses
// DefaultWriteTimeout.
func NewRecorder(store storage.SnapshotStore, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Recorder{store: store, timeout: timeout}
}

// HandleEvent archives NewTokens and TokenUpdate payloads.
func (r *Recorder) HandleEvent(ctx context.Context, ev events.Event) error {
	var tokens []domain.Token
	switch e := ev.(type) {
	case events.NewTokens:
		tokens = e.Tokens
	case events.TokenUpdate:
		tokens = e.Tokens
	default:
		return nil
	}
	if len(tokens) == 0 {
		return nil
	}

	snaps := lo.Map(tokens, func(t domain.Token, _ int) *domain.TokenSnapshot {
		return lo.ToPtr(domain.SnapshotOf(t))
	})

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.store.InsertBulk(ctx, snaps); err != nil {
		return errors.Wrapf(err, "archive %d snapshots", len(snaps))
	}
	return nil
}
