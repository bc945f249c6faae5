// Package payment verifies on-chain SOL payments and grants premium access.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/logging"
	"solana-meme-radar/internal/observability"
	"solana-meme-radar/internal/solana"
	"solana-meme-radar/internal/storage"
)

// Verification defaults.
const (
	DefaultMaxTxAge     = 2 * time.Hour
	DefaultGrantPeriod  = 30 * 24 * time.Hour
	DefaultRPCTimeout   = 15 * time.Second
	DefaultAuditTimeout = 5 * time.Second
)

// Audit step names, in check order.
const (
	CheckUniqueSignature    = "unique_signature"
	CheckTxExists           = "tx_exists"
	CheckNoError            = "no_error"
	CheckConfirmationStatus = "confirmation_status"
	CheckBlockTime          = "block_time"
	CheckRecipientMatch     = "recipient_match"
	CheckAmountSufficient   = "amount_sufficient"
	CheckGrant              = "grant"
)

// Caller-facing reasons.
const (
	ReasonAlreadyUsed  = "Transaction signature already used"
	ReasonNotFound     = "Transaction not found. It may still be processing, wait a minute and retry."
	ReasonOnChainError = "Transaction failed on-chain"
	ReasonNotFinalized = "Transaction not yet finalized. Please wait and retry."
	ReasonTooOld       = "Transaction is too old (must be within 2 hours)"
	ReasonNoRecipient  = "No SOL transfer to the correct recipient found in this transaction"
	ReasonInvalidPlan  = "Invalid plan type"
	ReasonInternal     = "Payment verification failed. Please try again."
	ReasonGrantFailed  = "Payment verified but premium could not be activated. Contact support with your transaction signature."
)

// Request is one verification submission.
type Request struct {
	UserID      string
	TxSignature string
	PlanType    domain.PlanType
}

// Result is the structured outcome returned to the caller.
type Result struct {
	Success   bool                 `json:"success"`
	Status    domain.PaymentStatus `json:"status"`
	Reason    string               `json:"error,omitempty"`
	Tier      domain.Tier          `json:"tier,omitempty"`
	PlanType  domain.PlanType      `json:"plan_type,omitempty"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
	Lifetime  bool                 `json:"lifetime"`
	AttemptID string               `json:"attempt_id,omitempty"`
	Audit     domain.AuditTrail    `json:"-"`
}

// Retryable reports whether the caller should resubmit the same signature
// later.
func (r Result) Retryable() bool {
	return r.Status == domain.PaymentPending
}

// Options contains configuration for creating a Verifier.
type Options struct {
	Ledger    solana.Ledger
	Payments  storage.PaymentStore
	Profiles  storage.ProfileStore
	Recipient string

	MonthlyPrice  decimal.Decimal
	LifetimePrice decimal.Decimal

	MaxTxAge     time.Duration
	GrantPeriod  time.Duration
	RPCTimeout   time.Duration
	AuditTimeout time.Duration

	Now    func() time.Time
	NewID  func() string
	Logger *logrus.Entry
}

// Verifier runs the ordered payment checks. Attempts on one signature are
// serialized in-process; the consuming-record unique index covers multiple
// processes.
type Verifier struct {
	ledger    solana.Ledger
	payments  storage.PaymentStore
	profiles  storage.ProfileStore
	recipient string
	prices    map[domain.PlanType]decimal.Decimal

	maxTxAge     time.Duration
	grantPeriod  time.Duration
	rpcTimeout   time.Duration
	auditTimeout time.Duration

	now    func() time.Time
	newID  func() string
	logger *logrus.Entry
	locks  *keyedMutex
}

// NewVerifier creates a payment verifier.
func NewVerifier(opts Options) *Verifier {
	v := &Verifier{
		ledger:    opts.Ledger,
		payments:  opts.Payments,
		profiles:  opts.Profiles,
		recipient: opts.Recipient,
		prices: map[domain.PlanType]decimal.Decimal{
			domain.PlanMonthly:  opts.MonthlyPrice,
			domain.PlanLifetime: opts.LifetimePrice,
		},
		maxTxAge:     opts.MaxTxAge,
		grantPeriod:  opts.GrantPeriod,
		rpcTimeout:   opts.RPCTimeout,
		auditTimeout: opts.AuditTimeout,
		now:          opts.Now,
		newID:        opts.NewID,
		logger:       opts.Logger,
		locks:        newKeyedMutex(),
	}
	if v.maxTxAge <= 0 {
		v.maxTxAge = DefaultMaxTxAge
	}
	if v.grantPeriod <= 0 {
		v.grantPeriod = DefaultGrantPeriod
	}
	if v.rpcTimeout <= 0 {
		v.rpcTimeout = DefaultRPCTimeout
	}
	if v.auditTimeout <= 0 {
		v.auditTimeout = DefaultAuditTimeout
	}
	if v.now == nil {
		v.now = time.Now
	}
	if v.newID == nil {
		v.newID = uuid.NewString
	}
	if v.logger == nil {
		v.logger = logging.For("payment")
	}
	return v
}

// Price returns the required amount for plan.
func (v *Verifier) Price(plan domain.PlanType) decimal.Decimal {
	return v.prices[plan]
}

// attempt accumulates the state of one verification.
type attempt struct {
	req       Request
	audit     domain.AuditTrail
	amount    *decimal.Decimal
	blockTime *time.Time
}

// Verify runs every check in order and stops at the first failure. Every
// outcome is audited before it is returned; an unexpected error or panic
// yields a generic failure.
func (v *Verifier) Verify(ctx context.Context, req Request) (res Result) {
	if !req.PlanType.IsValid() {
		return Result{Status: domain.PaymentRejected, Reason: ReasonInvalidPlan}
	}

	unlock := v.locks.Lock(req.TxSignature)
	defer unlock()

	a := &attempt{req: req}
	log := v.logger.WithFields(logrus.Fields{
		"user_id":      req.UserID,
		"tx_signature": req.TxSignature,
		"plan_type":    req.PlanType,
	})

	defer func() {
		if rec := recover(); rec != nil {
			err := errors.Newf("panic: %v", rec)
			log.WithError(err).Error("payment verification panicked")
			res = v.internalFailure(ctx, a, err)
		}
		observability.RecordPaymentVerification(string(res.Status))
	}()

	res, err := v.verify(ctx, a, log)
	if err != nil {
		log.WithError(err).Error("payment verification error")
		return v.internalFailure(ctx, a, err)
	}
	return res
}

func (v *Verifier) verify(ctx context.Context, a *attempt, log *logrus.Entry) (Result, error) {
	req := a.req
	required := v.prices[req.PlanType]
	a.audit.RequiredSOL = &required

	// 1. Replay check, before any network call.
	used, err := v.payments.HasConsuming(ctx, req.TxSignature)
	if err != nil {
		return Result{}, errors.Wrap(err, "check signature uniqueness")
	}
	if used {
		a.audit.Record(CheckUniqueSignature, false, "signature already consumed")
		return v.finish(ctx, a, domain.PaymentRejected, ReasonAlreadyUsed, false), nil
	}
	a.audit.Record(CheckUniqueSignature, true, "")

	// 2. Fetch.
	rpcCtx, cancel := context.WithTimeout(ctx, v.rpcTimeout)
	tx, err := v.ledger.GetParsedTransaction(rpcCtx, req.TxSignature)
	cancel()
	if err != nil {
		return Result{}, errors.Wrap(err, "fetch transaction")
	}
	if tx == nil {
		a.audit.Record(CheckTxExists, false, "transaction not found")
		return v.finish(ctx, a, domain.PaymentPending, ReasonNotFound, false), nil
	}
	a.audit.Record(CheckTxExists, true, fmt.Sprintf("slot %d", tx.Slot))
	if tx.BlockTime != nil {
		bt := time.Unix(*tx.BlockTime, 0).UTC()
		a.blockTime = &bt
	}

	// 3. On-chain execution error.
	if tx.Err != nil {
		detail, _ := json.Marshal(tx.Err)
		a.audit.TxError = string(detail)
		a.audit.Record(CheckNoError, false, string(detail))
		return v.finish(ctx, a, domain.PaymentFailed, ReasonOnChainError, true), nil
	}
	a.audit.Record(CheckNoError, true, "")

	// 4. Finality.
	status := tx.ConfirmationStatus
	if status == "" {
		status = "unknown"
	}
	a.audit.ConfirmationStatus = status
	if status != solana.CommitmentFinalized {
		a.audit.Record(CheckConfirmationStatus, false, status)
		return v.finish(ctx, a, domain.PaymentPending, ReasonNotFinalized, false), nil
	}
	a.audit.Record(CheckConfirmationStatus, true, status)

	// 5. Age window. A missing block time counts as infinitely old.
	now := v.now()
	var blockUnix int64
	if tx.BlockTime != nil {
		blockUnix = *tx.BlockTime
	}
	age := now.Unix() - blockUnix
	a.audit.TxAgeSeconds = &age
	if time.Duration(age)*time.Second > v.maxTxAge {
		a.audit.Record(CheckBlockTime, false, fmt.Sprintf("age %ds exceeds %ds", age, int64(v.maxTxAge/time.Second)))
		return v.finish(ctx, a, domain.PaymentRejected, ReasonTooOld, true), nil
	}
	a.audit.Record(CheckBlockTime, true, fmt.Sprintf("age %ds", age))

	// 6. Transfer to recipient.
	transfer, ok := findTransfer(tx, v.recipient)
	if !ok {
		a.audit.Record(CheckRecipientMatch, false, "no system transfer to "+v.recipient)
		return v.finish(ctx, a, domain.PaymentRejected, ReasonNoRecipient, true), nil
	}
	amount := solana.LamportsToSOL(transfer.Lamports)
	a.amount = &amount
	a.audit.TransferredSOL = &amount
	a.audit.Record(CheckRecipientMatch, true, "from "+transfer.Source)

	// 7. Amount.
	if amount.LessThan(required) {
		shortfall := required.Sub(amount)
		a.audit.ShortfallSOL = &shortfall
		a.audit.Record(CheckAmountSufficient, false, fmt.Sprintf("short by %s SOL", shortfall))
		reason := fmt.Sprintf("Insufficient payment. Sent %s SOL, required %s SOL", amount, required)
		return v.finish(ctx, a, domain.PaymentRejected, reason, true), nil
	}
	a.audit.Record(CheckAmountSufficient, true, "")

	// 8. Persist, then grant.
	return v.grant(ctx, a, log), nil
}

// findTransfer returns the first system transfer to recipient, scanning
// top-level instructions before inner ones.
func findTransfer(tx *solana.ParsedTransaction, recipient string) (solana.Instruction, bool) {
	for _, set := range [][]solana.Instruction{tx.Instructions, tx.InnerInstructions} {
		for _, ins := range set {
			if ins.IsTransferTo(recipient) {
				return ins, true
			}
		}
	}
	return solana.Instruction{}, false
}

func (v *Verifier) grant(ctx context.Context, a *attempt, log *logrus.Entry) Result {
	req := a.req
	now := v.now()
	lifetime := req.PlanType == domain.PlanLifetime
	var expiresAt *time.Time
	if !lifetime {
		exp := now.Add(v.grantPeriod).UTC()
		expiresAt = &exp
	}

	id := v.newID()
	premium := domain.TierPremium
	err := v.persist(ctx, &domain.PaymentAttempt{
		ID:          id,
		UserID:      req.UserID,
		TxSignature: req.TxSignature,
		PlanType:    req.PlanType,
		AmountSOL:   a.amount,
		Status:      domain.PaymentVerified,
		TierGranted: &premium,
		BlockTime:   a.blockTime,
		Audit:       a.audit,
		Consumes:    true,
		VerifiedAt:  &now,
		CreatedAt:   now,
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		// Another process consumed the signature after step 1.
		a.audit.Record(CheckUniqueSignature, false, "signature consumed concurrently")
		return v.finish(ctx, a, domain.PaymentRejected, ReasonAlreadyUsed, false)
	}

	grantCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.auditTimeout)
	defer cancel()
	if err := v.profiles.GrantPremium(grantCtx, req.UserID, expiresAt, lifetime); err != nil {
		log.WithError(err).Error("premium grant failed after verified payment")
		a.audit.Record(CheckGrant, false, err.Error())
		a.audit.Error = err.Error()
		return v.finish(ctx, a, domain.PaymentFailed, ReasonGrantFailed, false)
	}

	a.audit.Record(CheckGrant, true, "")
	log.WithField("amount_sol", a.amount.String()).Info("payment verified and premium granted")
	return Result{
		Success:   true,
		Status:    domain.PaymentVerified,
		Tier:      domain.TierPremium,
		PlanType:  req.PlanType,
		ExpiresAt: expiresAt,
		Lifetime:  lifetime,
		AttemptID: id,
		Audit:     a.audit,
	}
}

// finish audits a failed outcome and builds its result. When a consuming
// rejection loses the race for the signature it is recorded as
// non-consuming instead.
func (v *Verifier) finish(ctx context.Context, a *attempt, status domain.PaymentStatus, reason string, consumes bool) Result {
	rec := &domain.PaymentAttempt{
		ID:          v.newID(),
		UserID:      a.req.UserID,
		TxSignature: a.req.TxSignature,
		PlanType:    a.req.PlanType,
		AmountSOL:   a.amount,
		Status:      status,
		Reason:      reason,
		BlockTime:   a.blockTime,
		Audit:       a.audit,
		Consumes:    consumes,
		CreatedAt:   v.now(),
	}
	if err := v.persist(ctx, rec); errors.Is(err, storage.ErrDuplicateKey) && consumes {
		rec.ID = v.newID()
		rec.Consumes = false
		_ = v.persist(ctx, rec)
	}
	return Result{Status: status, Reason: reason, PlanType: a.req.PlanType, AttemptID: rec.ID, Audit: a.audit}
}

func (v *Verifier) internalFailure(ctx context.Context, a *attempt, err error) Result {
	a.audit.Error = err.Error()
	return v.finish(ctx, a, domain.PaymentFailed, ReasonInternal, false)
}

// persist writes the audit record. Errors are logged and returned for the
// caller to inspect; they never change a rejection into a different outcome.
func (v *Verifier) persist(ctx context.Context, rec *domain.PaymentAttempt) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.auditTimeout)
	defer cancel()

	err := v.payments.Insert(ctx, rec)
	if err != nil {
		v.logger.WithFields(logrus.Fields{
			"tx_signature": rec.TxSignature,
			"status":       rec.Status,
			"consumes":     rec.Consumes,
		}).WithError(err).Error("failed to save payment audit record")
	}
	return err
}
