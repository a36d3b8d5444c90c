package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL  = errors.New("невалидный URL")
	ErrInvalidSlug = errors.New("невалидный кастомный slug")
	ErrSpamDomain  = errors.New("домен в чёрном списке")
	ErrNotOwner    = errors.New("ссылка принадлежит другому пользователю")
)

// Константы сервиса
const (
	defaultTTL      = 24 * time.Hour
	maxTTL          = 30 * 24 * time.Hour
	slugLength      = 8
	maxSlugAttempts = 5
	maxStatsDays    = 90
	charset         = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	urlPattern  = regexp.MustCompile(`^https?://[^\s]+$`)
	slugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{4,12}$`)
)

// Чёрный список доменов
var blacklistedDomains = []string{
	"malware.com",
	"phishing.com",
	"spam.com",
}

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	GetLink(ctx context.Context, slug string) (*models.Link, error)
	DeleteLink(ctx context.Context, slug string, ownerID int64) error
	GetStats(ctx context.Context, slug string, ownerID int64) (*models.LinkStats, error)
	GetDailyStats(ctx context.Context, slug string, ownerID int64, days int) ([]models.DailyClickStats, error)
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	clickRepo repository.ClickRepository
	logger    *zap.Logger
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	clickRepo repository.ClickRepository,
	logger *zap.Logger,
) LinkService {
	return &linkService{
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		clickRepo: clickRepo,
		logger:    logger,
	}
}

// CreateLink создаёт новую монетизируемую ссылку
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	if !urlPattern.MatchString(input.TargetURL) {
		return nil, ErrInvalidURL
	}
	if isBlacklisted(input.TargetURL) {
		return nil, ErrSpamDomain
	}

	custom := input.CustomSlug != nil && *input.CustomSlug != ""
	if custom && !slugPattern.MatchString(*input.CustomSlug) {
		return nil, ErrInvalidSlug
	}

	// Расчёт TTL
	var expiresAt *time.Time
	if input.ExpiresIn != nil && *input.ExpiresIn > 0 {
		ttl := time.Duration(*input.ExpiresIn) * time.Minute
		if ttl > maxTTL {
			ttl = maxTTL
		}
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	var link *models.Link
	for attempt := 0; ; attempt++ {
		slug := ""
		if custom {
			slug = *input.CustomSlug
		} else {
			generated, err := generateSlug()
			if err != nil {
				return nil, fmt.Errorf("failed to generate slug: %w", err)
			}
			slug = generated
		}

		link = &models.Link{
			Slug:      slug,
			TargetURL: input.TargetURL,
			OwnerID:   input.OwnerID,
			ExpiresAt: expiresAt,
			CreatedAt: time.Now(),
		}

		err := s.linkRepo.Create(ctx, link)
		if err == nil {
			break
		}
		// Retry с новым slug только для сгенерированных
		if !errors.Is(err, repository.ErrSlugExists) || custom || attempt+1 >= maxSlugAttempts {
			return nil, err
		}
	}

	s.cache(ctx, link)
	return link, nil
}

// GetLink получает ссылку по slug (сначала из кэша, затем из БД)
func (s *linkService) GetLink(ctx context.Context, slug string) (*models.Link, error) {
	link, err := s.cacheRepo.Get(ctx, slug)
	if err == nil {
		return link, nil
	}

	link, err = s.linkRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, link)
	return link, nil
}

// DeleteLink отключает ссылку владельца, клики остаются в журнале
func (s *linkService) DeleteLink(ctx context.Context, slug string, ownerID int64) error {
	if err := s.linkRepo.Delete(ctx, slug, ownerID); err != nil {
		return err
	}

	if err := s.cacheRepo.Delete(ctx, slug); err != nil {
		s.logger.Warn("Не удалось удалить ссылку из кэша", zap.String("slug", slug), zap.Error(err))
	}
	return nil
}

// GetStats возвращает счётчики ссылки и число уникальных IP
func (s *linkService) GetStats(ctx context.Context, slug string, ownerID int64) (*models.LinkStats, error) {
	link, err := s.owned(ctx, slug, ownerID)
	if err != nil {
		return nil, err
	}

	clicks, err := s.clickRepo.GetStats(ctx, slug)
	if err != nil {
		return nil, err
	}

	return &models.LinkStats{
		Slug:         link.Slug,
		Clicks:       link.Clicks,
		UniqueClicks: clicks.UniqueClicks,
		Earnings:     link.Earnings,
	}, nil
}

func (s *linkService) GetDailyStats(ctx context.Context, slug string, ownerID int64, days int) ([]models.DailyClickStats, error) {
	if _, err := s.owned(ctx, slug, ownerID); err != nil {
		return nil, err
	}

	if days <= 0 || days > maxStatsDays {
		days = 7
	}
	return s.clickRepo.GetDailyStats(ctx, slug, days)
}

// owned читает ссылку мимо кэша: счётчики в кэше устаревают
func (s *linkService) owned(ctx context.Context, slug string, ownerID int64) (*models.Link, error) {
	link, err := s.linkRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if link.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return link, nil
}

// cache кладёт ссылку в Redis; ошибка кэша не прерывает запрос
func (s *linkService) cache(ctx context.Context, link *models.Link) {
	ttl := defaultTTL
	if link.ExpiresAt != nil {
		ttl = time.Until(*link.ExpiresAt)
		if ttl <= 0 {
			return
		}
	}

	if err := s.cacheRepo.Set(ctx, link.Slug, link, ttl); err != nil {
		s.logger.Warn("Не удалось закэшировать ссылку", zap.String("slug", link.Slug), zap.Error(err))
	}
}

// generateSlug генерирует случайный slug длиной 8 символов
func generateSlug() (string, error) {
	result := make([]byte, slugLength)
	for i := 0; i < slugLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}
	return string(result), nil
}

// isBlacklisted проверяет наличие URL в чёрном списке доменов
func isBlacklisted(url string) bool {
	return lo.ContainsBy(blacklistedDomains, func(domain string) bool {
		return strings.Contains(url, domain)
	})
}
