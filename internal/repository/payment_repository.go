package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/jackc/pgx/v5"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	TransitionStatus(ctx context.Context, id int64, from, to models.PaymentStatus) error
}

type paymentRepository struct {
	db *PostgresDB
}

func NewPaymentRepository(db *PostgresDB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (owner_id, amount, category, audience, withdrawal_type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		p.OwnerID,
		p.Amount,
		string(p.Category),
		string(p.Audience),
		string(p.WithdrawalType),
		string(p.Status),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	query := `
		SELECT id, owner_id, amount, category, audience, withdrawal_type, status, created_at, updated_at
		FROM payments
		WHERE id = $1
	`

	p := &models.Payment{}
	var category, audience, wtype, status string
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.OwnerID, &p.Amount, &category, &audience, &wtype, &status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	p.Category = models.PaymentCategory(category)
	p.Audience = models.Audience(audience)
	p.WithdrawalType = models.WithdrawalType(wtype)
	p.Status = models.PaymentStatus(status)
	return p, nil
}

func (r *paymentRepository) TransitionStatus(ctx context.Context, id int64, from, to models.PaymentStatus) error {
	query := `
		UPDATE payments
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.Pool.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}

	return nil
}
