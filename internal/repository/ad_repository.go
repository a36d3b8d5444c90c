package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/jackc/pgx/v5"
)

type AdRepository interface {
	Create(ctx context.Context, ad *models.AdminAd) error
	GetByID(ctx context.Context, id int64) (*models.AdminAd, error)
	HasHit(ctx context.Context, adID int64, ipHash string) (bool, error)
	// FindCandidate returns the least served active ad with remaining > 0
	// that ipHash has not seen yet, or ErrAdNotFound.
	FindCandidate(ctx context.Context, ipHash string) (*models.AdminAd, error)
	// Consume decrements remaining and increments served while remaining > 0.
	// It returns the remaining count after the update, or ErrAdExhausted.
	Consume(ctx context.Context, adID int64, at time.Time) (int64, error)
	// RecordHit fails with ErrDuplicateHit on a repeated (adID, ipHash).
	RecordHit(ctx context.Context, hit *models.AdminAdHit) error
	// Restore gives back one unit of remaining after a failed RecordHit.
	Restore(ctx context.Context, adID int64) error
}

type adRepository struct {
	db *PostgresDB
}

func NewAdRepository(db *PostgresDB) AdRepository {
	return &adRepository{db: db}
}

const adColumns = `id, url, remaining, served, active, last_served_at, created_at`

func (r *adRepository) Create(ctx context.Context, ad *models.AdminAd) error {
	query := `
		INSERT INTO admin_ads (url, remaining, active)
		VALUES ($1, $2, $3)
		RETURNING id, served, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query, ad.URL, ad.Remaining, ad.Active).
		Scan(&ad.ID, &ad.Served, &ad.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ad: %w", err)
	}

	return nil
}

func (r *adRepository) GetByID(ctx context.Context, id int64) (*models.AdminAd, error) {
	query := `SELECT ` + adColumns + ` FROM admin_ads WHERE id = $1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *adRepository) HasHit(ctx context.Context, adID int64, ipHash string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM admin_ad_hits WHERE ad_id = $1 AND ip_hash = $2)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, adID, ipHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check ad hit: %w", err)
	}

	return exists, nil
}

func (r *adRepository) FindCandidate(ctx context.Context, ipHash string) (*models.AdminAd, error) {
	query := `
		SELECT ` + adColumns + `
		FROM admin_ads a
		WHERE a.active AND a.remaining > 0
			AND NOT EXISTS (
				SELECT 1 FROM admin_ad_hits h WHERE h.ad_id = a.id AND h.ip_hash = $1
			)
		ORDER BY a.served ASC, a.last_served_at ASC NULLS FIRST, a.id ASC
		LIMIT 1
	`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, ipHash))
}

func (r *adRepository) Consume(ctx context.Context, adID int64, at time.Time) (int64, error) {
	query := `
		UPDATE admin_ads
		SET remaining = remaining - 1, served = served + 1, last_served_at = $2
		WHERE id = $1 AND remaining > 0
		RETURNING remaining
	`

	var remaining int64
	err := r.db.Pool.QueryRow(ctx, query, adID, at).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAdExhausted
		}
		return 0, fmt.Errorf("failed to consume ad: %w", err)
	}

	return remaining, nil
}

func (r *adRepository) RecordHit(ctx context.Context, hit *models.AdminAdHit) error {
	query := `
		INSERT INTO admin_ad_hits (ad_id, ip_hash, ip, country)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query, hit.AdID, hit.IPHash, hit.IP, hit.Country).
		Scan(&hit.ID, &hit.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateHit
		}
		return fmt.Errorf("failed to record ad hit: %w", err)
	}

	return nil
}

func (r *adRepository) Restore(ctx context.Context, adID int64) error {
	query := `UPDATE admin_ads SET remaining = remaining + 1 WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, adID)
	if err != nil {
		return fmt.Errorf("failed to restore ad remaining: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAdNotFound
	}

	return nil
}

func (r *adRepository) scanOne(row pgx.Row) (*models.AdminAd, error) {
	ad := &models.AdminAd{}
	err := row.Scan(&ad.ID, &ad.URL, &ad.Remaining, &ad.Served, &ad.Active, &ad.LastServedAt, &ad.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdNotFound
		}
		return nil, fmt.Errorf("failed to get ad: %w", err)
	}
	return ad, nil
}
