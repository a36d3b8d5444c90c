package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/paylink/internal/metrics"
	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ошибки леджера. Условные обновления, не совпавшие ни с одной строкой,
// отдаются теми же значениями, что и в репозитории.
var (
	ErrInsufficientFunds   = repository.ErrInsufficientFunds
	ErrInsufficientReserve = repository.ErrInsufficientReserve
	ErrCooldownActive      = repository.ErrCooldownActive

	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrBelowMinimum          = errors.New("amount is below the minimum withdrawal")
	ErrInvalidWithdrawalType = errors.New("withdrawal type must be earned or referral")
	ErrCampaignNotActive     = errors.New("campaign is not active")
	ErrCampaignNotPaused     = errors.New("campaign is not paused")
	ErrCampaignCompleted     = errors.New("campaign is completed")
	ErrNotCampaignOwner      = errors.New("campaign belongs to another user")
	ErrNotWithdrawal         = errors.New("payment is not a withdrawal")
	ErrPaymentNotPending     = errors.New("payment is not pending")
)

// Ledger ведёт резервирование и списание по кампаниям и выводам средств
type Ledger interface {
	CreateCampaign(ctx context.Context, ownerID int64, budget decimal.Decimal) (*models.Campaign, error)
	Spend(ctx context.Context, campaignID int64, amount decimal.Decimal) (*models.Campaign, error)
	Release(ctx context.Context, ownerID, campaignID int64) (*models.Campaign, error)
	Resume(ctx context.Context, ownerID, campaignID int64) (*models.Campaign, error)
	End(ctx context.Context, ownerID, campaignID int64) (*models.Campaign, error)

	RequestWithdrawal(ctx context.Context, ownerID int64, t models.WithdrawalType, amount decimal.Decimal) (*models.Payment, error)
	ApproveWithdrawal(ctx context.Context, paymentID int64) (*models.Payment, error)
	RejectWithdrawal(ctx context.Context, paymentID int64) (*models.Payment, error)

	GetBalance(ctx context.Context, userID int64) (*models.Balance, error)
}

type ledger struct {
	userRepo     repository.UserRepository
	campaignRepo repository.CampaignRepository
	paymentRepo  repository.PaymentRepository
	minimum      decimal.Decimal
	cooldown     time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewLedger создаёт леджер. minimum минимальная сумма вывода,
// cooldown минимальный интервал между запросами на вывод одного пользователя.
func NewLedger(
	userRepo repository.UserRepository,
	campaignRepo repository.CampaignRepository,
	paymentRepo repository.PaymentRepository,
	minimum decimal.Decimal,
	cooldown time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) Ledger {
	return &ledger{
		userRepo:     userRepo,
		campaignRepo: campaignRepo,
		paymentRepo:  paymentRepo,
		minimum:      minimum,
		cooldown:     cooldown,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateCampaign резервирует бюджет из свободного остатка владельца
func (l *ledger) CreateCampaign(ctx context.Context, ownerID int64, budget decimal.Decimal) (c *models.Campaign, err error) {
	defer func() { l.metrics.Ledger("campaign_create", err) }()

	if !budget.IsPositive() {
		return nil, ErrInvalidAmount
	}

	// Проверка свободного остатка и резерв выполняются одним условным UPDATE
	if err := l.userRepo.ReserveBudget(ctx, ownerID, budget); err != nil {
		return nil, err
	}

	now := l.now()
	c = &models.Campaign{
		OwnerID:   ownerID,
		Budget:    budget,
		Spent:     decimal.Zero,
		Status:    models.CampaignActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.campaignRepo.Create(ctx, c); err != nil {
		l.releaseBudget(ctx, ownerID, budget)
		return nil, err
	}

	return c, nil
}

// Spend списывает amount из общего резерва владельца, а затем из available_balance.
// Резерв не привязан к кампании: списание может затронуть резерв другой кампании.
func (l *ledger) Spend(ctx context.Context, campaignID int64, amount decimal.Decimal) (c *models.Campaign, err error) {
	defer func() { l.metrics.Ledger("campaign_spend", err) }()

	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	c, err = l.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CampaignActive {
		return nil, ErrCampaignNotActive
	}

	if err := l.userRepo.SpendReserved(ctx, c.OwnerID, amount); err != nil {
		return nil, err
	}

	if err := l.campaignRepo.AddSpent(ctx, campaignID, amount); err != nil {
		// Пользователь уже списан: баланс выглядит меньше реального, но не больше
		l.logger.Error("Списание с пользователя без учёта в кампании",
			zap.Int64("campaign_id", campaignID),
			zap.Int64("owner_id", c.OwnerID),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrCampaignNotActive
		}
		return nil, err
	}

	c.Spent = c.Spent.Add(amount)
	c.UpdatedAt = l.now()
	return c, nil
}

// Release ставит кампанию на паузу и возвращает остаток бюджета из резерва
func (l *ledger) Release(ctx context.Context, ownerID, campaignID int64) (c *models.Campaign, err error) {
	defer func() { l.metrics.Ledger("campaign_release", err) }()

	if _, err := l.ownedCampaign(ctx, ownerID, campaignID); err != nil {
		return nil, err
	}

	c, err = l.campaignRepo.TransitionStatus(ctx, campaignID, models.CampaignActive, models.CampaignPaused)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrCampaignNotActive
		}
		return nil, err
	}

	l.releaseBudget(ctx, c.OwnerID, c.Leftover())
	return c, nil
}

// Resume снова резервирует остаток бюджета и возвращает кампанию в active
func (l *ledger) Resume(ctx context.Context, ownerID, campaignID int64) (c *models.Campaign, err error) {
	defer func() { l.metrics.Ledger("campaign_resume", err) }()

	c, err = l.ownedCampaign(ctx, ownerID, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CampaignPaused {
		return nil, ErrCampaignNotPaused
	}

	leftover := c.Leftover()
	if leftover.IsPositive() {
		if err := l.userRepo.ReserveBudget(ctx, c.OwnerID, leftover); err != nil {
			return nil, err
		}
	}

	c, err = l.campaignRepo.TransitionStatus(ctx, campaignID, models.CampaignPaused, models.CampaignActive)
	if err != nil {
		l.releaseBudget(ctx, ownerID, leftover)
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrCampaignNotPaused
		}
		return nil, err
	}

	return c, nil
}

// End завершает кампанию. Остаток возвращается из резерва только для активной
// кампании: у приостановленной он уже возвращён.
func (l *ledger) End(ctx context.Context, ownerID, campaignID int64) (c *models.Campaign, err error) {
	defer func() { l.metrics.Ledger("campaign_end", err) }()

	current, err := l.ownedCampaign(ctx, ownerID, campaignID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.CampaignCompleted {
		return nil, ErrCampaignCompleted
	}

	c, err = l.campaignRepo.TransitionStatus(ctx, campaignID, current.Status, models.CampaignCompleted)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrCampaignCompleted
		}
		return nil, err
	}

	if current.Status == models.CampaignActive {
		l.releaseBudget(ctx, c.OwnerID, c.Leftover())
	}
	return c, nil
}

// RequestWithdrawal резервирует amount в выбранном пуле и создаёт pending выплату.
// Конкурентные запросы одного пользователя отсекаются CAS по времени последнего запроса.
func (l *ledger) RequestWithdrawal(ctx context.Context, ownerID int64, t models.WithdrawalType, amount decimal.Decimal) (p *models.Payment, err error) {
	defer func() { l.metrics.Ledger("withdrawal_request", err) }()

	if !t.Valid() {
		return nil, ErrInvalidWithdrawalType
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if amount.LessThan(l.minimum) {
		return nil, ErrBelowMinimum
	}

	user, err := l.userRepo.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	settled, reserved := user.WithdrawablePool(t)
	if amount.GreaterThan(settled.Sub(reserved)) {
		return nil, ErrInsufficientFunds
	}

	// Postgres хранит микросекунды, снятие блокировки сравнивает метку точно
	lockedAt := l.now().Truncate(time.Microsecond)
	if err := l.userRepo.AcquireWithdrawalLock(ctx, ownerID, lockedAt, l.cooldown); err != nil {
		return nil, err
	}

	if err := l.userRepo.ReserveWithdrawal(ctx, ownerID, t, amount); err != nil {
		l.unlockWithdrawal(ctx, ownerID, lockedAt)
		return nil, err
	}

	p = &models.Payment{
		OwnerID:        ownerID,
		Amount:         amount,
		Category:       models.CategoryWithdrawal,
		Audience:       models.AudienceUser,
		WithdrawalType: t,
		Status:         models.PaymentPending,
		CreatedAt:      lockedAt,
		UpdatedAt:      lockedAt,
	}
	if err := l.paymentRepo.Create(ctx, p); err != nil {
		if relErr := l.userRepo.ReleaseWithdrawal(ctx, ownerID, t, amount); relErr != nil {
			l.logger.Error("Не удалось снять резерв после ошибки создания выплаты",
				zap.Int64("owner_id", ownerID),
				zap.Error(relErr),
			)
		}
		l.unlockWithdrawal(ctx, ownerID, lockedAt)
		return nil, err
	}

	l.logger.Info("Запрос на вывод средств",
		zap.Int64("payment_id", p.ID),
		zap.Int64("owner_id", ownerID),
		zap.String("type", string(t)),
		zap.String("amount", amount.StringFixed(2)),
	)
	return p, nil
}

// unlockWithdrawal снимает кулдаун неудавшегося запроса. Ошибка только логируется:
// в худшем случае пользователь ждёт кулдаун.
func (l *ledger) unlockWithdrawal(ctx context.Context, ownerID int64, lockedAt time.Time) {
	if err := l.userRepo.ReleaseWithdrawalLock(ctx, ownerID, lockedAt); err != nil {
		l.logger.Warn("Не удалось снять кулдаун вывода",
			zap.Int64("owner_id", ownerID),
			zap.Error(err),
		)
	}
}

// ApproveWithdrawal окончательно списывает выплату из заработанного пула и available_balance
func (l *ledger) ApproveWithdrawal(ctx context.Context, paymentID int64) (p *models.Payment, err error) {
	defer func() { l.metrics.Ledger("withdrawal_approve", err) }()

	return l.resolveWithdrawal(ctx, paymentID, models.PaymentApproved, l.userRepo.SettleWithdrawal)
}

// RejectWithdrawal только снимает резерв: средства снова доступны к выводу
func (l *ledger) RejectWithdrawal(ctx context.Context, paymentID int64) (p *models.Payment, err error) {
	defer func() { l.metrics.Ledger("withdrawal_reject", err) }()

	return l.resolveWithdrawal(ctx, paymentID, models.PaymentRejected, l.userRepo.ReleaseWithdrawal)
}

type poolUpdate func(ctx context.Context, userID int64, t models.WithdrawalType, amount decimal.Decimal) error

// resolveWithdrawal сначала переводит статус pending -> to (CAS), затем меняет пулы.
// Если пулы обновить не удалось, статус откатывается обратно.
func (l *ledger) resolveWithdrawal(ctx context.Context, paymentID int64, to models.PaymentStatus, update poolUpdate) (*models.Payment, error) {
	p, err := l.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Category != models.CategoryWithdrawal {
		return nil, ErrNotWithdrawal
	}
	if p.Status != models.PaymentPending {
		return nil, ErrPaymentNotPending
	}

	if err := l.paymentRepo.TransitionStatus(ctx, paymentID, models.PaymentPending, to); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrPaymentNotPending
		}
		return nil, err
	}

	if err := update(ctx, p.OwnerID, p.WithdrawalType, p.Amount); err != nil {
		if revertErr := l.paymentRepo.TransitionStatus(ctx, paymentID, to, models.PaymentPending); revertErr != nil {
			l.logger.Error("Не удалось вернуть выплату в pending",
				zap.Int64("payment_id", paymentID),
				zap.Error(revertErr),
			)
		}
		return nil, fmt.Errorf("failed to update balance for payment %d: %w", paymentID, err)
	}

	p.Status = to
	p.UpdatedAt = l.now()
	return p, nil
}

func (l *ledger) GetBalance(ctx context.Context, userID int64) (*models.Balance, error) {
	u, err := l.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.Balance{
		UserID:                 u.ID,
		AvailableBalance:       u.AvailableBalance,
		ReservedBalance:        u.ReservedBalance,
		EarnedBalance:          u.EarnedBalance,
		ReservedEarnedBalance:  u.ReservedEarnedBalance,
		ReferralEarned:         u.ReferralEarned,
		ReservedReferralEarned: u.ReservedReferralEarned,
		AsOf:                   l.now(),
	}, nil
}

func (l *ledger) ownedCampaign(ctx context.Context, ownerID, campaignID int64) (*models.Campaign, error) {
	c, err := l.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, ErrNotCampaignOwner
	}
	return c, nil
}

// releaseBudget возвращает сумму из резерва; ошибка только логируется,
// так как статус кампании уже изменён.
func (l *ledger) releaseBudget(ctx context.Context, ownerID int64, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	if err := l.userRepo.ReleaseReserved(ctx, ownerID, amount); err != nil {
		l.logger.Error("Не удалось вернуть резерв кампании",
			zap.Int64("owner_id", ownerID),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
	}
}
