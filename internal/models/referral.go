package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReferralAction string

const (
	ReferralRegistration ReferralAction = "registration"
	ReferralClick        ReferralAction = "click"
)

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
	ReferralCancelled ReferralStatus = "cancelled"
	ReferralRefunded  ReferralStatus = "refunded"
)

type ReferralPaymentStatus string

const (
	ReferralPaymentPending ReferralPaymentStatus = "pending"
	ReferralPaymentPaid    ReferralPaymentStatus = "paid"
	ReferralPaymentFailed  ReferralPaymentStatus = "failed"
)

type ReferralTransaction struct {
	ID             int64                 `json:"id"`
	ReferrerID     int64                 `json:"referrer_id"`
	RefereeID      int64                 `json:"referee_id"`
	Action         ReferralAction        `json:"action"`
	Amount         decimal.Decimal       `json:"amount"`
	Percentage     decimal.Decimal       `json:"percentage"`
	Status         ReferralStatus        `json:"status"`
	PaymentStatus  ReferralPaymentStatus `json:"payment_status"`
	IdempotencyKey string                `json:"-"`
	PaidAt         *time.Time            `json:"paid_at,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// ReferralEvent is a primary monetized event handed to the cascade.
type ReferralEvent struct {
	SourceType string
	SourceID   int64
	RefereeID  int64
	Action     ReferralAction
	BaseAmount decimal.Decimal
}

// ReferralSettings is the global referral configuration. A zero MaxEarning means no cap.
type ReferralSettings struct {
	Enabled           bool            `json:"enabled"`
	Percentage        decimal.Decimal `json:"percentage"`
	RegistrationBonus decimal.Decimal `json:"registration_bonus"`
	MinEarning        decimal.Decimal `json:"min_earning"`
	MaxEarning        decimal.Decimal `json:"max_earning"`
}
