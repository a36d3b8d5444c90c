package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/jackc/pgx/v5"
)

const (
	SettingReferral = "referral"
	SettingAds      = "ads"
)

// SettingsRepository reads admin-managed settings stored as JSON documents.
type SettingsRepository interface {
	GetReferralSettings(ctx context.Context) (*models.ReferralSettings, error)
	GetAdSettings(ctx context.Context) (*models.AdSettings, error)
	Put(ctx context.Context, key string, value any) error
}

type settingsRepository struct {
	db *PostgresDB
}

func NewSettingsRepository(db *PostgresDB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetReferralSettings(ctx context.Context) (*models.ReferralSettings, error) {
	var s models.ReferralSettings
	if err := r.get(ctx, SettingReferral, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) GetAdSettings(ctx context.Context) (*models.AdSettings, error) {
	var s models.AdSettings
	if err := r.get(ctx, SettingAds, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepository) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}

	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.db.Pool.Exec(ctx, query, key, data); err != nil {
		return fmt.Errorf("failed to put setting %s: %w", key, err)
	}

	return nil
}

func (r *settingsRepository) get(ctx context.Context, key string, dst any) error {
	var data []byte
	err := r.db.Pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSettingNotFound
		}
		return fmt.Errorf("failed to get setting %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal setting %s: %w", key, err)
	}

	return nil
}
