package domain

import "time"

// Tier is the access level of a caller.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Entitlement is the tier state of a user.
type Entitlement struct {
	Tier      Tier
	ExpiresAt *time.Time // nil means permanent
	Lifetime  bool
}

// Expired reports whether a non-lifetime premium grant has lapsed at now.
func (e Entitlement) Expired(now time.Time) bool {
	if e.Tier != TierPremium || e.Lifetime || e.ExpiresAt == nil {
		return false
	}
	return e.ExpiresAt.Before(now)
}

// Profile is a user record owned by the identity provider.
// Corresponds to profiles table in PostgreSQL.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
	Entitlement Entitlement
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
