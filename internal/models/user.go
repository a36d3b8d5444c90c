package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User holds the balance pools. All pools are kept non-negative by the
// repository write statements, not by storage constraints.
type User struct {
	ID                     int64           `json:"id"`
	ReferrerID             *int64          `json:"referrer_id,omitempty"`
	AvailableBalance       decimal.Decimal `json:"available_balance"`
	ReservedBalance        decimal.Decimal `json:"reserved_balance"`
	EarnedBalance          decimal.Decimal `json:"earned_balance"`
	ReservedEarnedBalance  decimal.Decimal `json:"reserved_earned_balance"`
	ReferralEarned         decimal.Decimal `json:"referral_earned"`
	ReservedReferralEarned decimal.Decimal `json:"reserved_referral_earned"`
	WithdrawalLockedAt     *time.Time      `json:"-"`
	CreatedAt              time.Time       `json:"created_at"`
}

// SpendableHeadroom is the part of available_balance not yet earmarked by campaigns.
func (u *User) SpendableHeadroom() decimal.Decimal {
	return u.AvailableBalance.Sub(u.ReservedBalance)
}

// WithdrawablePool returns (settled, reserved) for the given withdrawal type.
func (u *User) WithdrawablePool(t WithdrawalType) (decimal.Decimal, decimal.Decimal) {
	if t == WithdrawalReferral {
		return u.ReferralEarned, u.ReservedReferralEarned
	}
	return u.EarnedBalance, u.ReservedEarnedBalance
}

type Balance struct {
	UserID                 int64           `json:"user_id"`
	AvailableBalance       decimal.Decimal `json:"available_balance"`
	ReservedBalance        decimal.Decimal `json:"reserved_balance"`
	EarnedBalance          decimal.Decimal `json:"earned_balance"`
	ReservedEarnedBalance  decimal.Decimal `json:"reserved_earned_balance"`
	ReferralEarned         decimal.Decimal `json:"referral_earned"`
	ReservedReferralEarned decimal.Decimal `json:"reserved_referral_earned"`
	AsOf                   time.Time       `json:"as_of"`
}
