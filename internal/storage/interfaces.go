package storage

import (
	"context"
	"time"

	"solana-meme-radar/internal/domain"
)

// PaymentStore provides access to payment_attempts storage. Records are
// append-only.
type PaymentStore interface {
	// Insert adds an attempt. Returns ErrDuplicateKey if the attempt consumes
	// its signature and a consuming record for that signature exists.
	Insert(ctx context.Context, a *domain.PaymentAttempt) error

	// HasConsuming reports whether a consuming record exists for signature.
	HasConsuming(ctx context.Context, signature string) (bool, error)

	// ListByUser returns up to limit attempts of a user, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.PaymentAttempt, error)
}

// ProfileStore provides access to profiles storage.
type ProfileStore interface {
	// Get retrieves a profile by user ID. Returns ErrNotFound if not exists.
	Get(ctx context.Context, userID string) (*domain.Profile, error)

	// GrantPremium sets the premium tier, creating the profile if needed.
	// A nil expiresAt means the grant never expires.
	GrantPremium(ctx context.Context, userID string, expiresAt *time.Time, lifetime bool) error

	// Downgrade resets a lapsed non-lifetime premium grant to free. It is a
	// conditional update and reports whether this call changed the row.
	Downgrade(ctx context.Context, userID string, now time.Time) (bool, error)
}

// SnapshotStore provides access to token_snapshots storage.
type SnapshotStore interface {
	// InsertBulk appends snapshots.
	InsertBulk(ctx context.Context, snaps []*domain.TokenSnapshot) error

	// GetByTimeRange retrieves snapshots of a mint within [start, end]
	// (inclusive, ms), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.TokenSnapshot, error)
}
