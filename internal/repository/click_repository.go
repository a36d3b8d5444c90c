package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
)

type ClickRepository interface {
	RecordClick(ctx context.Context, click *models.Click) error
	// HasClickSince reports any click for the exact (link, ip) pair after since.
	HasClickSince(ctx context.Context, linkID int64, ip string, since time.Time) (bool, error)
	// HasPaidClickSince reports any click from ip, on any link, with positive earnings after since.
	HasPaidClickSince(ctx context.Context, ip string, since time.Time) (bool, error)
	GetStats(ctx context.Context, slug string) (*models.ClickStats, error)
	GetDailyStats(ctx context.Context, slug string, days int) ([]models.DailyClickStats, error)
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

func (r *clickRepository) RecordClick(ctx context.Context, click *models.Click) error {
	query := `
		INSERT INTO clicks (link_id, ip_address, country, user_agent, device, referer, clicked_at, earnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		click.LinkID,
		click.IPAddress,
		click.Country,
		click.UserAgent,
		click.Device,
		click.Referer,
		click.ClickedAt,
		click.Earnings,
	).Scan(&click.ID)

	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func (r *clickRepository) HasClickSince(ctx context.Context, linkID int64, ip string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM clicks
			WHERE link_id = $1 AND ip_address = $2 AND clicked_at >= $3
		)
	`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, linkID, ip, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check duplicate click: %w", err)
	}

	return exists, nil
}

func (r *clickRepository) HasPaidClickSince(ctx context.Context, ip string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM clicks
			WHERE ip_address = $1 AND clicked_at >= $2 AND earnings > 0
		)
	`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, ip, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check paid click: %w", err)
	}

	return exists, nil
}

func (r *clickRepository) GetStats(ctx context.Context, slug string) (*models.ClickStats, error) {
	query := `
		SELECT
			COUNT(c.id) as total_clicks,
			COUNT(DISTINCT c.ip_address) as unique_clicks
		FROM links l
		LEFT JOIN clicks c ON c.link_id = l.id
		WHERE l.slug = $1
	`

	stats := &models.ClickStats{
		Slug: slug,
	}

	err := r.db.Pool.QueryRow(ctx, query, slug).Scan(
		&stats.TotalClicks,
		&stats.UniqueClicks,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get click stats: %w", err)
	}

	return stats, nil
}

func (r *clickRepository) GetDailyStats(ctx context.Context, slug string, days int) ([]models.DailyClickStats, error) {
	query := `
		SELECT
			TO_CHAR(DATE(c.clicked_at), 'YYYY-MM-DD') as date,
			COUNT(*) as clicks
		FROM clicks c
		JOIN links l ON c.link_id = l.id
		WHERE l.slug = $1
			AND c.clicked_at >= NOW() - INTERVAL '1 day' * $2
		GROUP BY DATE(c.clicked_at)
		ORDER BY DATE(c.clicked_at) DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, slug, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	defer rows.Close()

	stats := []models.DailyClickStats{}
	for rows.Next() {
		var dailyStat models.DailyClickStats
		if err := rows.Scan(&dailyStat.Date, &dailyStat.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, dailyStat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	return stats, nil
}
