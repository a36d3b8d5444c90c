package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// ErrMissingSecret is fatal at startup: tokens and IP hashes cannot be keyed.
var ErrMissingSecret = errors.New("TOKEN_SECRET and IP_HASH_SECRET must be set")

// Pricing rates are cached for at most this long.
const maxPricingCacheTTL = 60 * time.Second

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Security   SecurityConfig
	Engagement EngagementConfig
	Fraud      FraudConfig
	Ledger     LedgerConfig
	Referral   ReferralConfig
	Geo        GeoConfig
}

type AppConfig struct {
	Port          string
	PublicBaseURL string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> name/description
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

type SecurityConfig struct {
	TokenSecret  string
	IPHashSecret string
}

type EngagementConfig struct {
	TokenTTL   time.Duration
	SessionTTL time.Duration
	NonceTTL   time.Duration
}

type FraudConfig struct {
	Window          time.Duration
	PricingCacheTTL time.Duration
	FallbackCPM     decimal.Decimal
}

type LedgerConfig struct {
	MinimumWithdrawal  decimal.Decimal
	WithdrawalCooldown time.Duration
}

// ReferralConfig is the fallback used when no referral settings are stored.
type ReferralConfig struct {
	Enabled           bool
	Percentage        decimal.Decimal
	RegistrationBonus decimal.Decimal
	MinEarning        decimal.Decimal
	MaxEarning        decimal.Decimal
}

type GeoConfig struct {
	DatabasePath string
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	setDefaults()

	// .env не обязателен: в контейнере всё приходит через окружение
	if err := viper.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.App.PublicBaseURL = strings.TrimRight(viper.GetString("PUBLIC_BASE_URL"), "/")
	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")
	cfg.Redis.Password = viper.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = viper.GetInt("REDIS_DB")

	// Auth config - parse API keys from comma-separated string
	// Format: key1:name1,key2:name2
	cfg.Auth.APIKeys = parseAPIKeys(viper.GetString("API_KEYS"))

	// Rate limit config
	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")

	cfg.Security.TokenSecret = viper.GetString("TOKEN_SECRET")
	cfg.Security.IPHashSecret = viper.GetString("IP_HASH_SECRET")
	if cfg.Security.TokenSecret == "" || cfg.Security.IPHashSecret == "" {
		return nil, ErrMissingSecret
	}

	cfg.Engagement.TokenTTL = viper.GetDuration("TOKEN_TTL")
	cfg.Engagement.SessionTTL = viper.GetDuration("SESSION_TTL")
	cfg.Engagement.NonceTTL = viper.GetDuration("NONCE_TTL")

	cfg.Fraud.Window = viper.GetDuration("FRAUD_WINDOW")
	cfg.Fraud.PricingCacheTTL = viper.GetDuration("PRICING_CACHE_TTL")
	if cfg.Fraud.PricingCacheTTL <= 0 || cfg.Fraud.PricingCacheTTL > maxPricingCacheTTL {
		cfg.Fraud.PricingCacheTTL = maxPricingCacheTTL
	}

	var err error
	if cfg.Fraud.FallbackCPM, err = getDecimal("PRICING_FALLBACK_CPM"); err != nil {
		return nil, err
	}
	if cfg.Ledger.MinimumWithdrawal, err = getDecimal("MIN_WITHDRAWAL"); err != nil {
		return nil, err
	}
	cfg.Ledger.WithdrawalCooldown = viper.GetDuration("WITHDRAWAL_COOLDOWN")

	cfg.Referral.Enabled = viper.GetBool("REFERRAL_ENABLED")
	if cfg.Referral.Percentage, err = getDecimal("REFERRAL_PERCENTAGE"); err != nil {
		return nil, err
	}
	if cfg.Referral.RegistrationBonus, err = getDecimal("REFERRAL_REGISTRATION_BONUS"); err != nil {
		return nil, err
	}
	if cfg.Referral.MinEarning, err = getDecimal("REFERRAL_MIN_EARNING"); err != nil {
		return nil, err
	}
	if cfg.Referral.MaxEarning, err = getDecimal("REFERRAL_MAX_EARNING"); err != nil {
		return nil, err
	}

	cfg.Geo.DatabasePath = viper.GetString("GEOIP_DB_PATH")

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	viper.SetDefault("RATE_LIMIT_RPS", 10)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("TOKEN_TTL", "10m")
	viper.SetDefault("SESSION_TTL", "10m")
	viper.SetDefault("NONCE_TTL", "1h")
	viper.SetDefault("FRAUD_WINDOW", "1h")
	viper.SetDefault("PRICING_CACHE_TTL", "60s")
	viper.SetDefault("PRICING_FALLBACK_CPM", "1.00")
	viper.SetDefault("MIN_WITHDRAWAL", "5.00")
	viper.SetDefault("WITHDRAWAL_COOLDOWN", "1m")
	viper.SetDefault("REFERRAL_ENABLED", true)
	viper.SetDefault("REFERRAL_PERCENTAGE", "10")
	viper.SetDefault("REFERRAL_REGISTRATION_BONUS", "0.50")
	viper.SetDefault("REFERRAL_MIN_EARNING", "0.01")
	viper.SetDefault("REFERRAL_MAX_EARNING", "0")
}

func getDecimal(key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(viper.GetString(key))
	if err != nil {
		return decimal.Zero, errors.New("invalid decimal in " + key + ": " + err.Error())
	}
	return d, nil
}

// parseAPIKeys parses comma-separated API keys in format "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
