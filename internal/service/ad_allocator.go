package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/paylink/internal/geo"
	"github.com/SergeiKhy/paylink/internal/metrics"
	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/SergeiKhy/paylink/internal/token"
	"go.uber.org/zap"
)

// AdAllocator выдаёт каждому IP не более одного показа каждого объявления
type AdAllocator interface {
	Consume(ctx context.Context, ip string) (*models.AdConsumeResult, error)
}

type adAllocator struct {
	adRepo       repository.AdRepository
	settingsRepo repository.SettingsRepository
	hasher       *token.IPHasher
	countries    geo.CountryResolver
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

func NewAdAllocator(
	adRepo repository.AdRepository,
	settingsRepo repository.SettingsRepository,
	hasher *token.IPHasher,
	countries geo.CountryResolver,
	m *metrics.Metrics,
	logger *zap.Logger,
) AdAllocator {
	return &adAllocator{
		adRepo:       adRepo,
		settingsRepo: settingsRepo,
		hasher:       hasher,
		countries:    countries,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// Consume: выбрать кандидата, атомарно уменьшить remaining, записать показ.
// Если запись показа упёрлась в уникальность (adId, ipHash), remaining
// возвращается обратно компенсирующим UPDATE.
func (a *adAllocator) Consume(ctx context.Context, ip string) (*models.AdConsumeResult, error) {
	ipHash := a.hasher.Hash(ip)

	ad, err := a.candidate(ctx, ipHash)
	if err != nil {
		return nil, err
	}
	if ad == nil {
		a.metrics.AdConsumed("none")
		return &models.AdConsumeResult{OpenURL: false}, nil
	}

	remaining, err := a.adRepo.Consume(ctx, ad.ID, a.now())
	if err != nil {
		if errors.Is(err, repository.ErrAdExhausted) {
			a.metrics.AdConsumed("exhausted")
			return &models.AdConsumeResult{OpenURL: false, Remaining: 0}, nil
		}
		return nil, err
	}

	hit := &models.AdminAdHit{
		AdID:    ad.ID,
		IPHash:  ipHash,
		IP:      ip,
		Country: a.countries.ResolveCountry(ip),
	}
	if err := a.adRepo.RecordHit(ctx, hit); err != nil {
		a.restore(ctx, ad.ID)
		if errors.Is(err, repository.ErrDuplicateHit) {
			a.metrics.AdConsumed("duplicate")
			return &models.AdConsumeResult{OpenURL: false, Remaining: remaining}, nil
		}
		return nil, err
	}

	a.metrics.AdConsumed("served")
	return &models.AdConsumeResult{OpenURL: true, URL: ad.URL, Remaining: remaining}, nil
}

// candidate возвращает nil, nil, если показывать нечего
func (a *adAllocator) candidate(ctx context.Context, ipHash string) (*models.AdminAd, error) {
	settings, err := a.settingsRepo.GetAdSettings(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrSettingNotFound) {
			return nil, fmt.Errorf("failed to load ad settings: %w", err)
		}
		settings = &models.AdSettings{Mode: models.AdModeRandom}
	}

	if settings.Mode == models.AdModePriority {
		return a.priorityCandidate(ctx, settings.PriorityAdID, ipHash)
	}

	ad, err := a.adRepo.FindCandidate(ctx, ipHash)
	if err != nil {
		if errors.Is(err, repository.ErrAdNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ad, nil
}

// priorityCandidate единственный кандидат, назначенный администратором
func (a *adAllocator) priorityCandidate(ctx context.Context, adID int64, ipHash string) (*models.AdminAd, error) {
	ad, err := a.adRepo.GetByID(ctx, adID)
	if err != nil {
		if errors.Is(err, repository.ErrAdNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if ad.Remaining <= 0 {
		return nil, nil
	}

	hit, err := a.adRepo.HasHit(ctx, ad.ID, ipHash)
	if err != nil {
		return nil, err
	}
	if hit {
		return nil, nil
	}
	return ad, nil
}

// restore компенсирует уменьшение remaining. Ошибка только логируется:
// заниженный remaining допустим, завышенный нет.
func (a *adAllocator) restore(ctx context.Context, adID int64) {
	if err := a.adRepo.Restore(ctx, adID); err != nil {
		a.logger.Warn("Не удалось вернуть remaining объявления",
			zap.Int64("ad_id", adID),
			zap.Error(err),
		)
	}
}
