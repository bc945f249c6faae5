package memory

import (
	"context"
	"slices"
	"sync"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// PaymentStore is an in-memory implementation of storage.PaymentStore.
type PaymentStore struct {
	mu        sync.RWMutex
	attempts  []*domain.PaymentAttempt // insertion order
	consuming map[string]string        // tx_signature -> attempt id
	ids       map[string]struct{}
}

// NewPaymentStore creates a new in-memory payment store.
func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		consuming: make(map[string]string),
		ids:       make(map[string]struct{}),
	}
}

// Insert adds an attempt. Returns ErrDuplicateKey if the id exists or the
// attempt consumes an already consumed signature.
func (s *PaymentStore) Insert(_ context.Context, a *domain.PaymentAttempt) error {
	if a == nil || a.ID == "" || a.TxSignature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[a.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if a.Consumes {
		if _, exists := s.consuming[a.TxSignature]; exists {
			return storage.ErrDuplicateKey
		}
		s.consuming[a.TxSignature] = a.ID
	}

	s.ids[a.ID] = struct{}{}
	s.attempts = append(s.attempts, cloneAttempt(a))
	return nil
}

// HasConsuming reports whether a consuming record exists for signature.
func (s *PaymentStore) HasConsuming(_ context.Context, signature string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.consuming[signature]
	return exists, nil
}

// ListByUser returns up to limit attempts of a user, newest first.
func (s *PaymentStore) ListByUser(_ context.Context, userID string, limit int) ([]*domain.PaymentAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PaymentAttempt
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		if a := s.attempts[i]; a.UserID == userID {
			result = append(result, cloneAttempt(a))
		}
	}
	return result, nil
}

// All returns every stored attempt in insertion order.
func (s *PaymentStore) All() []*domain.PaymentAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PaymentAttempt, len(s.attempts))
	for i, a := range s.attempts {
		result[i] = cloneAttempt(a)
	}
	return result
}

func cloneAttempt(a *domain.PaymentAttempt) *domain.PaymentAttempt {
	c := *a
	c.Audit.Steps = slices.Clone(a.Audit.Steps)
	return &c
}

var _ storage.PaymentStore = (*PaymentStore)(nil)
