package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/payment"
	"solana-meme-radar/internal/solana"
)

const (
	premiumTestHeader = "X-Premium-Test"
	historyLimit      = 50
	maxBodyBytes      = 1 << 20

	paymentsDisabled = "Payments coming soon! Premium features are not yet available."
	invalidPlanType  = `Invalid plan_type. Must be "monthly" or "lifetime"`
)

type verifyRequest struct {
	TxSignature string `json:"tx_signature"`
	PlanType    string `json:"plan_type"`
}

type verifyFailure struct {
	Success   bool                 `json:"success"`
	Error     string               `json:"error"`
	Status    domain.PaymentStatus `json:"status"`
	Retryable bool                 `json:"retryable"`
}

// purchasesOpen reports whether the soft-launch gate lets r through.
func (s *Server) purchasesOpen(r *http.Request) bool {
	if s.premium.Enabled {
		return true
	}
	secret := s.premium.TestSecret
	return secret != "" && r.Header.Get(premiumTestHeader) == secret
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	if !s.purchasesOpen(r) {
		errorResponse(w, http.StatusServiceUnavailable, paymentsDisabled)
		return
	}

	var body verifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if body.TxSignature == "" {
		errorResponse(w, http.StatusBadRequest, "Missing tx_signature")
		return
	}
	plan := domain.PlanType(body.PlanType)
	if !plan.IsValid() {
		errorResponse(w, http.StatusBadRequest, invalidPlanType)
		return
	}
	if !solana.IsSignatureShape(body.TxSignature) {
		errorResponse(w, http.StatusBadRequest, "Invalid transaction signature format")
		return
	}

	s.logger.WithField("user_id", u.ID).WithField("tx_signature", body.TxSignature).
		WithField("plan_type", plan).Info("payment verification requested")

	res := s.verifier.Verify(r.Context(), payment.Request{
		UserID:      u.ID,
		TxSignature: body.TxSignature,
		PlanType:    plan,
	})
	if res.Success {
		jsonResponse(w, http.StatusOK, map[string]any{"success": true, "data": res})
		return
	}

	status := http.StatusBadRequest
	if res.Reason == payment.ReasonInternal {
		status = http.StatusInternalServerError
	}
	jsonResponse(w, status, verifyFailure{
		Error:     res.Reason,
		Status:    res.Status,
		Retryable: res.Retryable(),
	})
}

type paymentView struct {
	ID          string               `json:"id"`
	TxSignature string               `json:"tx_signature"`
	PlanType    domain.PlanType      `json:"plan_type"`
	AmountSOL   *string              `json:"amount_sol"`
	Status      domain.PaymentStatus `json:"status"`
	Error       string               `json:"error,omitempty"`
	TierGranted *domain.Tier         `json:"tier_granted"`
	VerifiedAt  *time.Time           `json:"verified_at"`
	CreatedAt   time.Time            `json:"created_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	u := s.requireUser(w, r)
	if u == nil {
		return
	}
	attempts, err := s.history.ListByUser(r.Context(), u.ID, historyLimit)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Error("fetch payment history")
		errorResponse(w, http.StatusInternalServerError, "Failed to fetch payment history")
		return
	}

	views := make([]paymentView, len(attempts))
	for i, a := range attempts {
		var amount *string
		if a.AmountSOL != nil {
			str := a.AmountSOL.String()
			amount = &str
		}
		views[i] = paymentView{
			ID:          a.ID,
			TxSignature: a.TxSignature,
			PlanType:    a.PlanType,
			AmountSOL:   amount,
			Status:      a.Status,
			Error:       a.Reason,
			TierGranted: a.TierGranted,
			VerifiedAt:  a.VerifiedAt,
			CreatedAt:   a.CreatedAt,
		}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"success": true, "data": views})
}

func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"beta_mode":          s.premium.BetaMode,
			"premium_enabled":    s.premium.Enabled,
			"monthly_price_sol":  s.premium.MonthlyPrice().InexactFloat64(),
			"lifetime_price_sol": s.premium.LifetimePrice().InexactFloat64(),
			"payment_wallet":     s.premium.PaymentWallet,
		},
	})
}
