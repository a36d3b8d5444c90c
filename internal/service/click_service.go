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
	"go.uber.org/zap"
)

// ErrLinkUnavailable ссылка отключена или истекла
var ErrLinkUnavailable = errors.New("link is disabled or expired")

// ClickService засчитывает клики и проводит деньги через антифрод-фильтр
type ClickService interface {
	// Credit засчитывает клик по уже загруженной ссылке
	Credit(ctx context.Context, link *models.Link, event *models.ClickEvent) (*models.ClickOutcome, error)
	// RecordDirectClick засчитывает клик без прохождения показов
	RecordDirectClick(ctx context.Context, event *models.ClickEvent) (*models.ClickOutcome, error)
}

type clickService struct {
	clickRepo  repository.ClickRepository
	linkRepo   repository.LinkRepository
	userRepo   repository.UserRepository
	gate       FraudGate
	dispatcher ReferralDispatcher
	countries  geo.CountryResolver
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewClickService создаёт сервис кликов
func NewClickService(
	clickRepo repository.ClickRepository,
	linkRepo repository.LinkRepository,
	userRepo repository.UserRepository,
	gate FraudGate,
	dispatcher ReferralDispatcher,
	countries geo.CountryResolver,
	m *metrics.Metrics,
	logger *zap.Logger,
) ClickService {
	return &clickService{
		clickRepo:  clickRepo,
		linkRepo:   linkRepo,
		userRepo:   userRepo,
		gate:       gate,
		dispatcher: dispatcher,
		countries:  countries,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *clickService) RecordDirectClick(ctx context.Context, event *models.ClickEvent) (*models.ClickOutcome, error) {
	link, err := s.linkRepo.GetByID(ctx, event.LinkID)
	if err != nil {
		return nil, err
	}
	if !link.Active(s.now()) {
		return nil, ErrLinkUnavailable
	}
	return s.Credit(ctx, link, event)
}

// Credit всегда пишет строку Click и увеличивает счётчик кликов ссылки.
// Заработок ссылки растёт только для не повторного клика, баланс владельца
// и реферальный каскад только для оплачиваемого.
func (s *clickService) Credit(ctx context.Context, link *models.Link, event *models.ClickEvent) (*models.ClickOutcome, error) {
	country := s.countries.ResolveCountry(event.IPAddress)

	verdict, err := s.gate.Evaluate(ctx, link.ID, event.IPAddress, country)
	if err != nil {
		return nil, err
	}

	click := &models.Click{
		LinkID:    link.ID,
		IPAddress: event.IPAddress,
		Country:   country,
		UserAgent: event.UserAgent,
		Device:    geo.DetectDevice(event.UserAgent),
		Referer:   event.Referer,
		ClickedAt: s.now(),
		Earnings:  verdict.Rate,
	}
	if err := s.clickRepo.RecordClick(ctx, click); err != nil {
		return nil, err
	}

	if err := s.linkRepo.RecordClick(ctx, link.ID, verdict.LinkEarnings(), click.ClickedAt); err != nil {
		return nil, fmt.Errorf("failed to update link counters: %w", err)
	}

	outcome := &models.ClickOutcome{
		ClickID:          click.ID,
		Earnings:         verdict.Rate,
		Duplicate:        verdict.Duplicate,
		IPEarnedRecently: verdict.IPEarnedRecently,
	}

	if !verdict.Paid() {
		s.metrics.Click(freeReason(verdict))
		return outcome, nil
	}

	if err := s.userRepo.CreditEarnings(ctx, link.OwnerID, verdict.Rate); err != nil {
		return nil, fmt.Errorf("failed to credit owner: %w", err)
	}
	s.metrics.Click("paid")

	// Каскад не должен влиять на результат клика
	if err := s.dispatcher.Enqueue(ctx, NewClickReferralEvent(click.ID, link.OwnerID, verdict.Rate)); err != nil {
		s.logger.Warn("Не удалось поставить реферальный каскад в очередь",
			zap.Int64("click_id", click.ID),
			zap.Error(err),
		)
	}

	return outcome, nil
}

func freeReason(v *Verdict) string {
	switch {
	case v.Duplicate:
		return "duplicate"
	case v.IPEarnedRecently:
		return "ip_earned"
	default:
		return "zero_rate"
	}
}
