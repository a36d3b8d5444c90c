package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PricingRepository reads rates per 1000 events.
type PricingRepository interface {
	GetRate(ctx context.Context, audience models.Audience, country string) (decimal.Decimal, error)
	SetRate(ctx context.Context, audience models.Audience, country string, rate decimal.Decimal) error
}

type pricingRepository struct {
	db *PostgresDB
}

func NewPricingRepository(db *PostgresDB) PricingRepository {
	return &pricingRepository{db: db}
}

func (r *pricingRepository) GetRate(ctx context.Context, audience models.Audience, country string) (decimal.Decimal, error) {
	query := `SELECT rate FROM pricing WHERE audience = $1 AND country_code = $2`

	var rate decimal.Decimal
	err := r.db.Pool.QueryRow(ctx, query, string(audience), country).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrRateNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get rate: %w", err)
	}

	return rate, nil
}

func (r *pricingRepository) SetRate(ctx context.Context, audience models.Audience, country string, rate decimal.Decimal) error {
	query := `
		INSERT INTO pricing (audience, country_code, rate)
		VALUES ($1, $2, $3)
		ON CONFLICT (audience, country_code) DO UPDATE SET rate = EXCLUDED.rate
	`

	if _, err := r.db.Pool.Exec(ctx, query, string(audience), country, rate); err != nil {
		return fmt.Errorf("failed to set rate: %w", err)
	}

	return nil
}
