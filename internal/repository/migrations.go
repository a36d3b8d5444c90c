package repository

import (
	"context"
	"fmt"
)

// schema is applied statement by statement; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		referrer_id BIGINT REFERENCES users(id),
		available_balance NUMERIC(18,6) NOT NULL DEFAULT 0,
		reserved_balance NUMERIC(18,6) NOT NULL DEFAULT 0,
		earned_balance NUMERIC(18,6) NOT NULL DEFAULT 0,
		reserved_earned_balance NUMERIC(18,6) NOT NULL DEFAULT 0,
		referral_earned NUMERIC(18,6) NOT NULL DEFAULT 0,
		reserved_referral_earned NUMERIC(18,6) NOT NULL DEFAULT 0,
		withdrawal_locked_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		id BIGSERIAL PRIMARY KEY,
		slug VARCHAR(32) NOT NULL UNIQUE,
		target_url TEXT NOT NULL,
		owner_id BIGINT NOT NULL REFERENCES users(id),
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		clicks BIGINT NOT NULL DEFAULT 0,
		earnings NUMERIC(18,6) NOT NULL DEFAULT 0,
		last_clicked_at TIMESTAMPTZ,
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS clicks (
		id BIGSERIAL PRIMARY KEY,
		link_id BIGINT NOT NULL REFERENCES links(id) ON DELETE RESTRICT,
		ip_address VARCHAR(64) NOT NULL,
		country VARCHAR(16) NOT NULL DEFAULT 'Unknown',
		user_agent TEXT NOT NULL DEFAULT '',
		device VARCHAR(16) NOT NULL DEFAULT 'Unknown',
		referer TEXT NOT NULL DEFAULT '',
		clicked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		earnings NUMERIC(18,6) NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clicks_link_ip_time ON clicks (link_id, ip_address, clicked_at)`,
	`CREATE INDEX IF NOT EXISTS idx_clicks_ip_time ON clicks (ip_address, clicked_at) WHERE earnings > 0`,
	`CREATE TABLE IF NOT EXISTS pricing (
		audience VARCHAR(16) NOT NULL,
		country_code VARCHAR(16) NOT NULL,
		rate NUMERIC(18,6) NOT NULL,
		PRIMARY KEY (audience, country_code)
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL REFERENCES users(id),
		budget NUMERIC(18,6) NOT NULL,
		spent NUMERIC(18,6) NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL REFERENCES users(id),
		amount NUMERIC(18,6) NOT NULL,
		category VARCHAR(16) NOT NULL,
		audience VARCHAR(16) NOT NULL,
		withdrawal_type VARCHAR(16) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS referral_transactions (
		id BIGSERIAL PRIMARY KEY,
		referrer_id BIGINT NOT NULL REFERENCES users(id),
		referee_id BIGINT NOT NULL REFERENCES users(id),
		action VARCHAR(16) NOT NULL,
		amount NUMERIC(18,6) NOT NULL,
		percentage NUMERIC(9,4) NOT NULL,
		status VARCHAR(16) NOT NULL,
		payment_status VARCHAR(16) NOT NULL,
		idempotency_key VARCHAR(64) NOT NULL UNIQUE,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS admin_ads (
		id BIGSERIAL PRIMARY KEY,
		url TEXT NOT NULL,
		remaining BIGINT NOT NULL DEFAULT 0 CHECK (remaining >= 0),
		served BIGINT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_served_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS admin_ad_hits (
		id BIGSERIAL PRIMARY KEY,
		ad_id BIGINT NOT NULL REFERENCES admin_ads(id) ON DELETE CASCADE,
		ip_hash VARCHAR(64) NOT NULL,
		ip VARCHAR(64) NOT NULL,
		country VARCHAR(16) NOT NULL DEFAULT 'Unknown',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (ad_id, ip_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key VARCHAR(64) PRIMARY KEY,
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate создаёт таблицы, если их ещё нет
func Migrate(ctx context.Context, db *PostgresDB) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
