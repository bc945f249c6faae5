// Package subscription resolves a user's current tier with lazy expiry.
package subscription

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/logging"
	"solana-meme-radar/internal/storage"
)

// Free is the entitlement of anonymous users and users without a profile.
var Free = domain.Entitlement{Tier: domain.TierFree}

// Service reads entitlements. Every read re-checks expiry and persists a
// downgrade before returning a lapsed grant as free.
type Service struct {
	profiles storage.ProfileStore
	now      func() time.Time
	logger   *logrus.Entry
}

// Options contains configuration for creating a Service.
type Options struct {
	Now    func() time.Time
	Logger *logrus.Entry
}

// NewService creates a subscription service over profiles.
func NewService(profiles storage.ProfileStore, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.For("subscription")
	}
	return &Service{profiles: profiles, now: opts.Now, logger: opts.Logger}
}

// Profile returns the user's profile with expiry applied. Returns
// storage.ErrNotFound when the user has no profile.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "load profile")
	}

	now := s.now()
	if !p.Entitlement.Expired(now) {
		return p, nil
	}

	changed, err := s.profiles.Downgrade(ctx, userID, now)
	if err != nil {
		return nil, errors.Wrap(err, "persist expiry downgrade")
	}
	if changed {
		s.logger.WithField("user_id", userID).Info("premium tier expired")
	}
	p.Entitlement = Free
	p.UpdatedAt = now
	return p, nil
}

// Resolve returns the user's effective entitlement, free when the user has
// no profile.
func (s *Service) Resolve(ctx context.Context, userID string) (domain.Entitlement, error) {
	if userID == "" {
		return Free, nil
	}
	p, err := s.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Free, nil
		}
		return domain.Entitlement{}, err
	}
	return p.Entitlement, nil
}
