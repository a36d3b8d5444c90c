package service

import (
	"context"
	"errors"
	"time"

	"github.com/SergeiKhy/paylink/internal/metrics"
	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/SergeiKhy/paylink/internal/session"
	"github.com/SergeiKhy/paylink/internal/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrTokenReplayed nonce токена уже использован для засчитанного клика
var ErrTokenReplayed = errors.New("token already used")

// EngagementTTLs сроки жизни токена, сессии показов и записи о nonce
type EngagementTTLs struct {
	Token   time.Duration
	Session time.Duration
	Nonce   time.Duration
}

// EngagementService выдаёт токены и ведёт двухэтапную проверку показов
type EngagementService interface {
	IssueToken(ctx context.Context, input *models.IssueTokenInput) (*models.IssuedToken, error)
	RecordImpression(ctx context.Context, input *models.ImpressionInput) (*models.ImpressionResult, error)
}

type engagementService struct {
	links    LinkService
	linkRepo repository.LinkRepository
	clicks   ClickService
	codec    *token.Codec
	hasher   *token.IPHasher
	sessions *session.Store
	nonces   *session.NonceStore
	ttl      EngagementTTLs
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewEngagementService(
	links LinkService,
	linkRepo repository.LinkRepository,
	clicks ClickService,
	codec *token.Codec,
	hasher *token.IPHasher,
	sessions *session.Store,
	nonces *session.NonceStore,
	ttl EngagementTTLs,
	m *metrics.Metrics,
	logger *zap.Logger,
) EngagementService {
	return &engagementService{
		links:    links,
		linkRepo: linkRepo,
		clicks:   clicks,
		codec:    codec,
		hasher:   hasher,
		sessions: sessions,
		nonces:   nonces,
		ttl:      ttl,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// IssueToken подписывает токен для ссылки и сразу открывает сессию по его nonce
func (s *engagementService) IssueToken(ctx context.Context, input *models.IssueTokenInput) (*models.IssuedToken, error) {
	link, err := s.links.GetLink(ctx, input.Slug)
	if err != nil {
		return nil, err
	}
	if !link.Active(s.now()) {
		return nil, ErrLinkUnavailable
	}

	payload := token.Payload{
		ShortLinkID: link.ID,
		Slug:        link.Slug,
		UserID:      input.UserID,
		Nonce:       uuid.NewString(),
		Exp:         s.now().Add(s.ttl.Token).Unix(),
	}
	if input.IP != "" {
		payload.IPHash = s.hasher.Hash(input.IP)
	}

	raw, err := s.codec.Issue(payload)
	if err != nil {
		return nil, err
	}

	s.sessions.Open(payload.Nonce, link.ID, s.ttl.Session)
	s.metrics.TokenIssued()

	return &models.IssuedToken{
		Token:     raw,
		Exp:       payload.Exp,
		TargetURL: link.TargetURL,
	}, nil
}

// RecordImpression отмечает этап показа. Когда оба этапа пройдены, nonce
// запоминается, клик засчитывается через антифрод-фильтр и сессия удаляется.
// Если клик засчитать не удалось, nonce снова свободен.
func (s *engagementService) RecordImpression(ctx context.Context, input *models.ImpressionInput) (*models.ImpressionResult, error) {
	if !session.ValidStage(input.Stage) {
		return nil, session.ErrInvalidStage
	}

	payload, err := s.codec.Verify(input.Token)
	if err != nil {
		return nil, err
	}
	if s.nonces.Seen(payload.Nonce) {
		return nil, ErrTokenReplayed
	}

	// Несовпадение IP только помечается, поток не блокируется
	suspicious := payload.IPHash != "" && payload.IPHash != s.hasher.Hash(input.IP)
	if suspicious {
		s.logger.Info("IP показа не совпадает с IP выдачи токена",
			zap.String("slug", payload.Slug),
			zap.Int("stage", input.Stage),
		)
	}

	// Сессия могла истечь или пропасть после рестарта: открываем лениво
	s.sessions.Open(payload.Nonce, payload.ShortLinkID, s.ttl.Session)
	progress, err := s.sessions.Advance(payload.Nonce, input.Stage)
	if err != nil {
		return nil, err
	}

	if !progress.Done {
		return &models.ImpressionResult{
			OK:         true,
			Done:       false,
			Suspicious: suspicious,
			Already:    progress.Already,
		}, nil
	}

	if !s.nonces.Remember(payload.Nonce, s.ttl.Nonce) {
		return nil, ErrTokenReplayed
	}

	outcome, link, err := s.credit(ctx, progress.LinkID, input)
	if err != nil {
		// Клик не засчитан: токен и завершённая сессия остаются для повтора
		s.nonces.Forget(payload.Nonce)
		return nil, err
	}
	s.sessions.Clear(payload.Nonce)
	s.metrics.EngagementCompleted()

	return &models.ImpressionResult{
		OK:               true,
		Done:             true,
		Suspicious:       suspicious,
		Redirect:         link.TargetURL,
		Duplicate:        outcome.Duplicate,
		IPEarnedRecently: outcome.IPEarnedRecently,
	}, nil
}

func (s *engagementService) credit(ctx context.Context, linkID int64, input *models.ImpressionInput) (*models.ClickOutcome, *models.Link, error) {
	link, err := s.linkRepo.GetByID(ctx, linkID)
	if err != nil {
		return nil, nil, err
	}

	outcome, err := s.clicks.Credit(ctx, link, &models.ClickEvent{
		LinkID:    link.ID,
		IPAddress: input.IP,
		UserAgent: input.UserAgent,
		Referer:   input.Referer,
	})
	if err != nil {
		return nil, nil, err
	}
	return outcome, link, nil
}
