package api

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"solana-meme-radar/internal/auth"
	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
	"solana-meme-radar/internal/subscription"
)

// user returns the caller identified by the bearer token, or nil.
func (s *Server) user(r *http.Request) (*auth.User, error) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return nil, auth.ErrUnauthorized
	}
	return s.auth.Authenticate(r.Context(), token)
}

// requireUser writes 401 and returns nil when the caller is anonymous.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) *auth.User {
	u, err := s.user(r)
	if err == nil {
		return u
	}
	if !errors.Is(err, auth.ErrUnauthorized) {
		s.logger.WithError(err).Warn("identity provider lookup failed")
	}
	if r.Header.Get("Authorization") == "" {
		errorResponse(w, http.StatusUnauthorized, "Missing authorization header")
	} else {
		errorResponse(w, http.StatusUnauthorized, "Invalid or expired token")
	}
	return nil
}

// entitlement resolves the tier of an optionally authenticated caller.
// Any failure degrades to free.
func (s *Server) entitlement(r *http.Request) domain.Entitlement {
	if s.entitlements == nil {
		return subscription.Free
	}
	u, err := s.user(r)
	if err != nil {
		return subscription.Free
	}
	ent, err := s.entitlements.Resolve(r.Context(), u.ID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Warn("resolve tier failed, serving free tier")
		return subscription.Free
	}
	return ent
}

type profileView struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	DisplayName   string      `json:"display_name"`
	Tier          domain.Tier `json:"tier"`
	TierExpiresAt *time.Time  `json:"tier_expires_at"`
	Lifetime      bool        `json:"lifetime"`
	CreatedAt     time.Time   `json:"created_at"`
}

type subscriptionView struct {
	Tier          domain.Tier `json:"tier"`
	TierExpiresAt *time.Time  `json:"tier_expires_at"`
	Lifetime      bool        `json:"lifetime"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	p, err := s.entitlements.Profile(r.Context(), u.ID)
	if errors.Is(err, storage.ErrNotFound) {
		errorResponse(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Error("fetch profile")
		errorResponse(w, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}
	email := p.Email
	if email == "" {
		email = u.Email
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"data": profileView{
			ID:            p.ID,
			Email:         email,
			DisplayName:   p.DisplayName,
			Tier:          p.Entitlement.Tier,
			TierExpiresAt: p.Entitlement.ExpiresAt,
			Lifetime:      p.Entitlement.Lifetime,
			CreatedAt:     p.CreatedAt,
		},
	})
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	ent, err := s.entitlements.Resolve(r.Context(), u.ID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Error("fetch subscription")
		errorResponse(w, http.StatusInternalServerError, "Failed to fetch subscription")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    subscriptionView{Tier: ent.Tier, TierExpiresAt: ent.ExpiresAt, Lifetime: ent.Lifetime},
	})
}
