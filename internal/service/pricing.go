package service

import (
	"context"
	"errors"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ставки в таблице цен указаны за 1000 событий
var perMille = decimal.NewFromInt(1000)

// moneyScale число знаков денежных колонок NUMERIC(18,6)
const moneyScale = 6

// PricingService отдаёт ставку за один клик для страны
type PricingService interface {
	ClickRate(ctx context.Context, audience models.Audience, country string) decimal.Decimal
}

type pricingService struct {
	pricingRepo repository.PricingRepository
	rateCache   repository.RateCache
	cacheTTL    time.Duration
	fallbackCPM decimal.Decimal
	logger      *zap.Logger
}

// NewPricingService создаёт сервис цен. Ставка кэшируется в Redis на cacheTTL,
// при отсутствии строки в таблице используется fallbackCPM.
func NewPricingService(
	pricingRepo repository.PricingRepository,
	rateCache repository.RateCache,
	cacheTTL time.Duration,
	fallbackCPM decimal.Decimal,
	logger *zap.Logger,
) PricingService {
	return &pricingService{
		pricingRepo: pricingRepo,
		rateCache:   rateCache,
		cacheTTL:    cacheTTL,
		fallbackCPM: fallbackCPM,
		logger:      logger,
	}
}

// ClickRate никогда не возвращает ошибку: при сбоях хранилища платим по fallback ставке.
// Ставка обрезается до точности денежных колонок: строка клика хранит ровно начисленную сумму.
func (s *pricingService) ClickRate(ctx context.Context, audience models.Audience, country string) decimal.Decimal {
	return s.cpm(ctx, audience, country).Div(perMille).Truncate(moneyScale)
}

func (s *pricingService) cpm(ctx context.Context, audience models.Audience, country string) decimal.Decimal {
	// Проверка кэша
	rate, err := s.rateCache.GetRate(ctx, audience, country)
	if err == nil {
		return rate
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.logger.Warn("Ошибка чтения ставки из кэша",
			zap.String("country", country),
			zap.Error(err),
		)
	}

	// Запрос из БД
	rate, err = s.pricingRepo.GetRate(ctx, audience, country)
	if err != nil {
		if !errors.Is(err, repository.ErrRateNotFound) {
			s.logger.Warn("Не удалось получить ставку, используется fallback",
				zap.String("country", country),
				zap.Error(err),
			)
			return s.fallbackCPM
		}
		rate = s.fallbackCPM
	}

	// Кэшируем и fallback тоже, чтобы не ходить в БД на каждый клик
	if err := s.rateCache.SetRate(ctx, audience, country, rate, s.cacheTTL); err != nil {
		s.logger.Warn("Не удалось закэшировать ставку", zap.String("country", country), zap.Error(err))
	}

	return rate
}
