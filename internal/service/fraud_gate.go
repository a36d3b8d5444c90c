package service

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/shopspring/decimal"
)

// DefaultFraudWindow окно, в котором ищутся повторные и оплаченные клики
const DefaultFraudWindow = time.Hour

// Verdict решение антифрод-фильтра по одному клику
type Verdict struct {
	Duplicate        bool
	IPEarnedRecently bool
	// Rate ставка за клик; ноль, если клик не оплачивается
	Rate decimal.Decimal
}

// Paid сообщает, переводятся ли деньги владельцу и запускается ли реферальный каскад
func (v Verdict) Paid() bool {
	return !v.Duplicate && !v.IPEarnedRecently && v.Rate.IsPositive()
}

// LinkEarnings сумма, на которую растёт Link.earnings
func (v Verdict) LinkEarnings() decimal.Decimal {
	if v.Duplicate {
		return decimal.Zero
	}
	return v.Rate
}

// FraudGate решает, оплачивается ли засчитанный клик
type FraudGate interface {
	Evaluate(ctx context.Context, linkID int64, ip, country string) (*Verdict, error)
}

type fraudGate struct {
	clickRepo repository.ClickRepository
	pricing   PricingService
	window    time.Duration
	now       func() time.Time
}

// NewFraudGate создаёт антифрод-фильтр с окном window (обычно один час)
func NewFraudGate(clickRepo repository.ClickRepository, pricing PricingService, window time.Duration) FraudGate {
	if window <= 0 {
		window = DefaultFraudWindow
	}
	return &fraudGate{
		clickRepo: clickRepo,
		pricing:   pricing,
		window:    window,
		now:       time.Now,
	}
}

// Evaluate проверяет два независимых предиката: повторный клик по той же ссылке
// с того же IP и оплаченный клик с этого IP по любой ссылке.
func (g *fraudGate) Evaluate(ctx context.Context, linkID int64, ip, country string) (*Verdict, error) {
	since := g.now().Add(-g.window)

	duplicate, err := g.clickRepo.HasClickSince(ctx, linkID, ip, since)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate click: %w", err)
	}

	earned, err := g.clickRepo.HasPaidClickSince(ctx, ip, since)
	if err != nil {
		return nil, fmt.Errorf("failed to check ip earnings: %w", err)
	}

	verdict := &Verdict{
		Duplicate:        duplicate,
		IPEarnedRecently: earned,
		Rate:             decimal.Zero,
	}
	if !duplicate && !earned {
		verdict.Rate = g.pricing.ClickRate(ctx, models.AudienceUser, country)
	}

	return verdict, nil
}
