package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
)

type ReferralRepository interface {
	// Create fails with ErrDuplicateReferral when the idempotency key exists.
	Create(ctx context.Context, tx *models.ReferralTransaction) error
	MarkPaid(ctx context.Context, id int64, paidAt time.Time) error
	MarkFailed(ctx context.Context, id int64) error
}

type referralRepository struct {
	db *PostgresDB
}

func NewReferralRepository(db *PostgresDB) ReferralRepository {
	return &referralRepository{db: db}
}

func (r *referralRepository) Create(ctx context.Context, tx *models.ReferralTransaction) error {
	query := `
		INSERT INTO referral_transactions
			(referrer_id, referee_id, action, amount, percentage, status, payment_status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		tx.ReferrerID,
		tx.RefereeID,
		string(tx.Action),
		tx.Amount,
		tx.Percentage,
		string(tx.Status),
		string(tx.PaymentStatus),
		tx.IdempotencyKey,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReferral
		}
		return fmt.Errorf("failed to create referral transaction: %w", err)
	}

	return nil
}

func (r *referralRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time) error {
	query := `
		UPDATE referral_transactions
		SET status = 'completed', payment_status = 'paid', paid_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	return r.transition(ctx, query, id, paidAt)
}

func (r *referralRepository) MarkFailed(ctx context.Context, id int64) error {
	query := `
		UPDATE referral_transactions
		SET status = 'cancelled', payment_status = 'failed'
		WHERE id = $1 AND status = 'pending'
	`
	return r.transition(ctx, query, id)
}

func (r *referralRepository) transition(ctx context.Context, query string, args ...any) error {
	result, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update referral transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}
