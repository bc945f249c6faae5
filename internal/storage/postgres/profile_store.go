package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// ProfileStore implements storage.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *Pool
}

// NewProfileStore creates a new ProfileStore.
func NewProfileStore(pool *Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProfileStore = (*ProfileStore)(nil)

// Get retrieves a profile by user ID. Returns ErrNotFound if not exists.
func (s *ProfileStore) Get(ctx context.Context, userID string) (_ *domain.Profile, err error) {
	defer observe("profile_get", &err)()

	query := `
		SELECT id, email, display_name, tier, subscription_expires_at, is_lifetime, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	var (
		p    domain.Profile
		tier string
	)
	err = s.pool.QueryRow(ctx, query, userID).Scan(
		&p.ID,
		&p.Email,
		&p.DisplayName,
		&tier,
		&p.Entitlement.ExpiresAt,
		&p.Entitlement.Lifetime,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "get profile")
	}
	p.Entitlement.Tier = domain.Tier(tier)
	return &p, nil
}

// GrantPremium sets the premium tier, creating the profile if needed.
func (s *ProfileStore) GrantPremium(ctx context.Context, userID string, expiresAt *time.Time, lifetime bool) (err error) {
	if userID == "" {
		return storage.ErrInvalidInput
	}
	defer observe("profile_grant", &err)()

	query := `
		INSERT INTO profiles (id, tier, subscription_expires_at, is_lifetime)
		VALUES ($1, 'premium', $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			tier = 'premium',
			subscription_expires_at = EXCLUDED.subscription_expires_at,
			is_lifetime = EXCLUDED.is_lifetime,
			updated_at = now()
	`

	if _, err = s.pool.Exec(ctx, query, userID, expiresAt, lifetime); err != nil {
		return errors.Wrap(err, "grant premium")
	}
	return nil
}

// Downgrade resets a lapsed non-lifetime premium grant to free. Concurrent
// callers race on the WHERE clause, so exactly one observes the change.
func (s *ProfileStore) Downgrade(ctx context.Context, userID string, now time.Time) (_ bool, err error) {
	defer observe("profile_downgrade", &err)()

	query := `
		UPDATE profiles
		SET tier = 'free', subscription_expires_at = NULL, updated_at = $2
		WHERE id = $1
			AND tier = 'premium'
			AND NOT is_lifetime
			AND subscription_expires_at IS NOT NULL
			AND subscription_expires_at < $2
	`

	tag, err := s.pool.Exec(ctx, query, userID, now)
	if err != nil {
		return false, errors.Wrap(err, "downgrade profile")
	}
	return tag.RowsAffected() == 1, nil
}
