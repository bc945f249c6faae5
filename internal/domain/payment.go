package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanType is the purchased plan.
type PlanType string

const (
	PlanMonthly  PlanType = "monthly"
	PlanLifetime PlanType = "lifetime"
)

// IsValid reports whether p is a known plan.
func (p PlanType) IsValid() bool {
	return p == PlanMonthly || p == PlanLifetime
}

// PaymentStatus is the outcome of a verification attempt.
type PaymentStatus string

const (
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
	PaymentFailed   PaymentStatus = "failed"
	PaymentPending  PaymentStatus = "pending"
)

// PaymentAttempt is one append-only audit record of a verification attempt.
// Corresponds to payment_attempts table in PostgreSQL.
type PaymentAttempt struct {
	ID          string // uuid
	UserID      string
	TxSignature string
	PlanType    PlanType
	AmountSOL   *decimal.Decimal // as found on the ledger, nil if never inspected
	Status      PaymentStatus
	Reason      string
	TierGranted *Tier
	BlockTime   *time.Time
	Audit       AuditTrail

	// Consumes marks records that use up the signature. At most one
	// consuming record exists per signature.
	Consumes bool

	VerifiedAt *time.Time
	CreatedAt  time.Time
}

// AuditStep is one check performed during verification.
type AuditStep struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// AuditTrail is the structured record of a verification attempt.
type AuditTrail struct {
	Steps              []AuditStep      `json:"steps"`
	ConfirmationStatus string           `json:"confirmation_status,omitempty"`
	TxAgeSeconds       *int64           `json:"tx_age_seconds,omitempty"`
	TransferredSOL     *decimal.Decimal `json:"transferred_sol,omitempty"`
	RequiredSOL        *decimal.Decimal `json:"required_sol,omitempty"`
	ShortfallSOL       *decimal.Decimal `json:"shortfall_sol,omitempty"`
	TxError            string           `json:"tx_error,omitempty"`
	Error              string           `json:"error,omitempty"`
}

// Record appends a step.
func (a *AuditTrail) Record(check string, passed bool, detail string) {
	a.Steps = append(a.Steps, AuditStep{Check: check, Passed: passed, Detail: detail})
}

// Step returns the named step, if recorded.
func (a *AuditTrail) Step(check string) (AuditStep, bool) {
	for _, s := range a.Steps {
		if s.Check == check {
			return s, true
		}
	}
	return AuditStep{}, false
}
