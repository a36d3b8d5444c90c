package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/paylink/internal/config"
	"github.com/SergeiKhy/paylink/internal/metrics"
	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrReferralPayment транзакция создана, но начислить реферу не удалось; повтор не поможет
var ErrReferralPayment = errors.New("failed to pay referral")

const (
	SourceClick        = "click"
	SourceRegistration = "registration"
)

var hundred = decimal.NewFromInt(100)

// ReferralCascade превращает первичное событие во вторичную выплату рефереру
type ReferralCascade interface {
	// Trigger возвращает nil, nil, если каскад ничего не создал
	Trigger(ctx context.Context, event *models.ReferralEvent) (*models.ReferralTransaction, error)
}

type referralCascade struct {
	userRepo     repository.UserRepository
	referralRepo repository.ReferralRepository
	settingsRepo repository.SettingsRepository
	fallback     config.ReferralConfig
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewReferralCascade создаёт каскад. Настройки читаются из БД при каждом вызове,
// fallback из конфига используется, пока настройки не сохранены.
func NewReferralCascade(
	userRepo repository.UserRepository,
	referralRepo repository.ReferralRepository,
	settingsRepo repository.SettingsRepository,
	fallback config.ReferralConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) ReferralCascade {
	return &referralCascade{
		userRepo:     userRepo,
		referralRepo: referralRepo,
		settingsRepo: settingsRepo,
		fallback:     fallback,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// NewClickReferralEvent событие для только что оплаченного клика
func NewClickReferralEvent(clickID, ownerID int64, earnings decimal.Decimal) *models.ReferralEvent {
	return &models.ReferralEvent{
		SourceType: SourceClick,
		SourceID:   clickID,
		RefereeID:  ownerID,
		Action:     models.ReferralClick,
		BaseAmount: earnings,
	}
}

// NewRegistrationReferralEvent событие регистрации; базовая сумма берётся из настроек
func NewRegistrationReferralEvent(refereeID int64) *models.ReferralEvent {
	return &models.ReferralEvent{
		SourceType: SourceRegistration,
		SourceID:   refereeID,
		RefereeID:  refereeID,
		Action:     models.ReferralRegistration,
	}
}

// ReferralAmount = clamp(base * pct / 100, min, max), округлено до центов.
// Нулевой max означает отсутствие верхней границы.
func ReferralAmount(base, percentage, min, max decimal.Decimal) decimal.Decimal {
	amount := base.Mul(percentage).Div(hundred)
	if amount.LessThan(min) {
		amount = min
	}
	if max.IsPositive() && amount.GreaterThan(max) {
		amount = max
	}
	return amount.Round(2)
}

// IdempotencyKey однозначно связывает транзакцию с исходным событием
func IdempotencyKey(event *models.ReferralEvent) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", event.SourceType, event.SourceID, event.Action)))
	return hex.EncodeToString(sum[:])
}

func (c *referralCascade) Trigger(ctx context.Context, event *models.ReferralEvent) (*models.ReferralTransaction, error) {
	settings, err := c.settings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, nil
	}

	referee, err := c.userRepo.GetByID(ctx, event.RefereeID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get referee: %w", err)
	}
	if referee.ReferrerID == nil {
		return nil, nil
	}

	referrer, err := c.userRepo.GetByID(ctx, *referee.ReferrerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.logger.Warn("Реферер не найден, каскад пропущен",
				zap.Int64("referee_id", referee.ID),
				zap.Int64("referrer_id", *referee.ReferrerID),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get referrer: %w", err)
	}

	base := event.BaseAmount
	if event.Action == models.ReferralRegistration && base.IsZero() {
		base = settings.RegistrationBonus
	}

	amount := ReferralAmount(base, settings.Percentage, settings.MinEarning, settings.MaxEarning)
	if !amount.IsPositive() {
		return nil, nil
	}

	tx := &models.ReferralTransaction{
		ReferrerID:     referrer.ID,
		RefereeID:      referee.ID,
		Action:         event.Action,
		Amount:         amount,
		Percentage:     settings.Percentage,
		Status:         models.ReferralPending,
		PaymentStatus:  models.ReferralPaymentPending,
		IdempotencyKey: IdempotencyKey(event),
		CreatedAt:      c.now(),
	}
	if err := c.referralRepo.Create(ctx, tx); err != nil {
		if errors.Is(err, repository.ErrDuplicateReferral) {
			c.metrics.ReferralPayout(string(event.Action), "duplicate")
			return nil, err
		}
		return nil, fmt.Errorf("failed to create referral transaction: %w", err)
	}

	// Начисление и перевод в completed/paid в рамках того же вызова
	if err := c.userRepo.CreditReferral(ctx, referrer.ID, amount); err != nil {
		if markErr := c.referralRepo.MarkFailed(ctx, tx.ID); markErr != nil {
			c.logger.Error("Не удалось пометить реферальную транзакцию как failed",
				zap.Int64("transaction_id", tx.ID),
				zap.Error(markErr),
			)
		}
		c.metrics.ReferralPayout(string(event.Action), "failed")
		return nil, fmt.Errorf("%w: %v", ErrReferralPayment, err)
	}

	paidAt := c.now()
	if err := c.referralRepo.MarkPaid(ctx, tx.ID, paidAt); err != nil {
		// Деньги уже начислены: транзакция остаётся pending до ручного разбора
		c.logger.Error("Не удалось пометить реферальную транзакцию как paid",
			zap.Int64("transaction_id", tx.ID),
			zap.Error(err),
		)
		return tx, nil
	}

	tx.Status = models.ReferralCompleted
	tx.PaymentStatus = models.ReferralPaymentPaid
	tx.PaidAt = &paidAt
	c.metrics.ReferralPayout(string(event.Action), "paid")

	c.logger.Info("Реферальное начисление",
		zap.Int64("referrer_id", referrer.ID),
		zap.Int64("referee_id", referee.ID),
		zap.String("action", string(event.Action)),
		zap.String("amount", amount.StringFixed(2)),
	)

	return tx, nil
}

func (c *referralCascade) settings(ctx context.Context) (*models.ReferralSettings, error) {
	settings, err := c.settingsRepo.GetReferralSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, repository.ErrSettingNotFound) {
		return nil, fmt.Errorf("failed to load referral settings: %w", err)
	}

	return &models.ReferralSettings{
		Enabled:           c.fallback.Enabled,
		Percentage:        c.fallback.Percentage,
		RegistrationBonus: c.fallback.RegistrationBonus,
		MinEarning:        c.fallback.MinEarning,
		MaxEarning:        c.fallback.MaxEarning,
	}, nil
}
