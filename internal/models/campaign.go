package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

type Campaign struct {
	ID        int64           `json:"id"`
	OwnerID   int64           `json:"owner_id"`
	Budget    decimal.Decimal `json:"budget"`
	Spent     decimal.Decimal `json:"spent"`
	Status    CampaignStatus  `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Leftover is the part of the budget still held in reserved_balance.
func (c *Campaign) Leftover() decimal.Decimal {
	return decimal.Max(decimal.Zero, c.Budget.Sub(c.Spent))
}
