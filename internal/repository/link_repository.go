package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetBySlug(ctx context.Context, slug string) (*models.Link, error)
	GetByID(ctx context.Context, id int64) (*models.Link, error)
	// Delete soft-deletes an enabled link owned by ownerID.
	Delete(ctx context.Context, slug string, ownerID int64) error
	// RecordClick increments clicks unconditionally and earnings by the given amount.
	RecordClick(ctx context.Context, linkID int64, earnings decimal.Decimal, at time.Time) error
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

const linkColumns = `id, slug, target_url, owner_id, disabled, clicks, earnings, last_clicked_at, expires_at, created_at`

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (slug, target_url, owner_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.Slug,
		link.TargetURL,
		link.OwnerID,
		link.ExpiresAt,
		link.CreatedAt,
	).Scan(&link.ID, &link.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

func (r *linkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE slug = $1`
	return r.getOne(ctx, query, slug)
}

func (r *linkRepository) GetByID(ctx context.Context, id int64) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *linkRepository) getOne(ctx context.Context, query string, arg any) (*models.Link, error) {
	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&link.ID,
		&link.Slug,
		&link.TargetURL,
		&link.OwnerID,
		&link.Disabled,
		&link.Clicks,
		&link.Earnings,
		&link.LastClickedAt,
		&link.ExpiresAt,
		&link.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

// Delete disables the link. The row and its clicks are kept for the
// fraud window and stats.
func (r *linkRepository) Delete(ctx context.Context, slug string, ownerID int64) error {
	query := `UPDATE links SET disabled = TRUE WHERE slug = $1 AND owner_id = $2 AND NOT disabled`

	result, err := r.db.Pool.Exec(ctx, query, slug, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) RecordClick(ctx context.Context, linkID int64, earnings decimal.Decimal, at time.Time) error {
	query := `
		UPDATE links
		SET clicks = clicks + 1,
			earnings = earnings + $2,
			last_clicked_at = $3
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, linkID, earnings, at)
	if err != nil {
		return fmt.Errorf("failed to record link click: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}
