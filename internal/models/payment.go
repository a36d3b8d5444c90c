package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentCategory string

const (
	CategoryPayment    PaymentCategory = "payment"
	CategoryWithdrawal PaymentCategory = "withdrawal"
)

type Audience string

const (
	AudienceUser       Audience = "user"
	AudienceAdvertiser Audience = "advertiser"
)

type WithdrawalType string

const (
	WithdrawalEarned   WithdrawalType = "earned"
	WithdrawalReferral WithdrawalType = "referral"
)

func (t WithdrawalType) Valid() bool {
	return t == WithdrawalEarned || t == WithdrawalReferral
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentApproved, PaymentRejected, PaymentRefunded, PaymentFailed:
		return true
	}
	return false
}

type Payment struct {
	ID             int64           `json:"id"`
	OwnerID        int64           `json:"owner_id"`
	Amount         decimal.Decimal `json:"amount"`
	Category       PaymentCategory `json:"category"`
	Audience       Audience        `json:"audience"`
	WithdrawalType WithdrawalType  `json:"withdrawal_type,omitempty"`
	Status         PaymentStatus   `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
