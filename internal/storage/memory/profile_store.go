package memory

import (
	"context"
	"sync"
	"time"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// ProfileStore is an in-memory implementation of storage.ProfileStore.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
	now      func() time.Time
}

// NewProfileStore creates a new in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*domain.Profile),
		now:      time.Now,
	}
}

// Put stores p, replacing any profile with the same ID.
func (s *ProfileStore) Put(p *domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *p
	s.profiles[p.ID] = &c
}

// Get retrieves a profile by user ID. Returns ErrNotFound if not exists.
func (s *ProfileStore) Get(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.profiles[userID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	c := *p
	return &c, nil
}

// GrantPremium sets the premium tier, creating the profile if needed.
func (s *ProfileStore) GrantPremium(_ context.Context, userID string, expiresAt *time.Time, lifetime bool) error {
	if userID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p, exists := s.profiles[userID]
	if !exists {
		p = &domain.Profile{ID: userID, CreatedAt: now}
		s.profiles[userID] = p
	}
	p.Entitlement = domain.Entitlement{Tier: domain.TierPremium, ExpiresAt: expiresAt, Lifetime: lifetime}
	p.UpdatedAt = now
	return nil
}

// Downgrade resets a lapsed non-lifetime premium grant to free.
func (s *ProfileStore) Downgrade(_ context.Context, userID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.profiles[userID]
	if !exists || !p.Entitlement.Expired(now) {
		return false, nil
	}
	p.Entitlement = domain.Entitlement{Tier: domain.TierFree}
	p.UpdatedAt = now
	return true, nil
}

var _ storage.ProfileStore = (*ProfileStore)(nil)
