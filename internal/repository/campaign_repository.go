package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type CampaignRepository interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id int64) (*models.Campaign, error)
	// AddSpent increments spent while the campaign is active.
	AddSpent(ctx context.Context, id int64, amount decimal.Decimal) error
	// TransitionStatus moves from -> to, failing with ErrStatusConflict if the
	// campaign is no longer in from. It returns the campaign after the change.
	TransitionStatus(ctx context.Context, id int64, from, to models.CampaignStatus) (*models.Campaign, error)
}

type campaignRepository struct {
	db *PostgresDB
}

func NewCampaignRepository(db *PostgresDB) CampaignRepository {
	return &campaignRepository{db: db}
}

const campaignColumns = `id, owner_id, budget, spent, status, created_at, updated_at`

func (r *campaignRepository) Create(ctx context.Context, c *models.Campaign) error {
	query := `
		INSERT INTO campaigns (owner_id, budget, spent, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query, c.OwnerID, c.Budget, c.Spent, string(c.Status)).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

func (r *campaignRepository) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *campaignRepository) AddSpent(ctx context.Context, id int64, amount decimal.Decimal) error {
	query := `
		UPDATE campaigns
		SET spent = spent + $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`

	result, err := r.db.Pool.Exec(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("failed to add campaign spend: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}

	return nil
}

func (r *campaignRepository) TransitionStatus(ctx context.Context, id int64, from, to models.CampaignStatus) (*models.Campaign, error) {
	query := `
		UPDATE campaigns
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + campaignColumns

	c, err := r.scanOne(r.db.Pool.QueryRow(ctx, query, id, string(from), string(to)))
	if errors.Is(err, ErrCampaignNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStatusConflict
	}
	return c, err
}

func (r *campaignRepository) scanOne(row pgx.Row) (*models.Campaign, error) {
	c := &models.Campaign{}
	var status string
	err := row.Scan(&c.ID, &c.OwnerID, &c.Budget, &c.Spent, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	c.Status = models.CampaignStatus(status)
	return c, nil
}
