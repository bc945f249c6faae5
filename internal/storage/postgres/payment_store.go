package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

// PaymentStore implements storage.PaymentStore using PostgreSQL.
type PaymentStore struct {
	pool *Pool
}

// NewPaymentStore creates a new PaymentStore.
func NewPaymentStore(pool *Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PaymentStore = (*PaymentStore)(nil)

// Insert adds an attempt. The partial unique index on consuming records
// turns a second consuming insert into ErrDuplicateKey.
func (s *PaymentStore) Insert(ctx context.Context, a *domain.PaymentAttempt) (err error) {
	if a == nil || a.ID == "" || a.TxSignature == "" {
		return storage.ErrInvalidInput
	}
	defer observe("payment_insert", &err)()

	audit, err := json.Marshal(a.Audit)
	if err != nil {
		return errors.Wrap(err, "marshal audit trail")
	}

	query := `
		INSERT INTO payment_attempts (
			id, user_id, tx_signature, plan_type, amount_sol, status, reason,
			tier_granted, block_time, audit, consumes, verified_at, created_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = s.pool.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.TxSignature,
		string(a.PlanType),
		decimalText(a.AmountSOL),
		string(a.Status),
		a.Reason,
		tierText(a.TierGranted),
		a.BlockTime,
		audit,
		a.Consumes,
		a.VerifiedAt,
		createdAt(a.CreatedAt),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return errors.Wrap(err, "insert payment attempt")
	}
	return nil
}

// HasConsuming reports whether a consuming record exists for signature.
func (s *PaymentStore) HasConsuming(ctx context.Context, signature string) (exists bool, err error) {
	defer observe("payment_has_consuming", &err)()

	query := `SELECT EXISTS (SELECT 1 FROM payment_attempts WHERE tx_signature = $1 AND consumes)`
	if err = s.pool.QueryRow(ctx, query, signature).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check consuming payment")
	}
	return exists, nil
}

// ListByUser returns up to limit attempts of a user, newest first.
func (s *PaymentStore) ListByUser(ctx context.Context, userID string, limit int) (_ []*domain.PaymentAttempt, err error) {
	defer observe("payment_list_by_user", &err)()

	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, user_id, tx_signature, plan_type, amount_sol::text, status, reason,
			tier_granted, block_time, audit, consumes, verified_at, created_at
		FROM payment_attempts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query payments by user")
	}
	defer rows.Close()

	var result []*domain.PaymentAttempt
	for rows.Next() {
		a, err := scanPaymentAttempt(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan payment attempt")
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate payment attempts")
	}
	return result, nil
}

// scanPaymentAttempt scans a single row into PaymentAttempt.
func scanPaymentAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	var (
		a         domain.PaymentAttempt
		planType  string
		status    string
		amount    *string
		tier      *string
		auditJSON []byte
	)

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.TxSignature,
		&planType,
		&amount,
		&status,
		&a.Reason,
		&tier,
		&a.BlockTime,
		&auditJSON,
		&a.Consumes,
		&a.VerifiedAt,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.PlanType = domain.PlanType(planType)
	a.Status = domain.PaymentStatus(status)
	if amount != nil {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, errors.Wrapf(err, "parse amount %q", *amount)
		}
		a.AmountSOL = &d
	}
	if tier != nil {
		t := domain.Tier(*tier)
		a.TierGranted = &t
	}
	if len(auditJSON) > 0 {
		if err := json.Unmarshal(auditJSON, &a.Audit); err != nil {
			return nil, errors.Wrap(err, "unmarshal audit trail")
		}
	}
	return &a, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func tierText(t *domain.Tier) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
