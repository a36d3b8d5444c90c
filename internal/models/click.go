package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Click is an append-only audit row; Earnings is zero for fraud-suppressed clicks.
type Click struct {
	ID        int64           `json:"id"`
	LinkID    int64           `json:"link_id"`
	IPAddress string          `json:"ip_address"`
	Country   string          `json:"country"`
	UserAgent string          `json:"user_agent"`
	Device    string          `json:"device"`
	Referer   string          `json:"referer"`
	ClickedAt time.Time       `json:"clicked_at"`
	Earnings  decimal.Decimal `json:"earnings"`
}

type ClickEvent struct {
	LinkID    int64
	IPAddress string
	UserAgent string
	Referer   string
}

// ClickOutcome is what the fraud gate decided for one credited click.
type ClickOutcome struct {
	ClickID          int64           `json:"click_id"`
	Earnings         decimal.Decimal `json:"earnings"`
	Duplicate        bool            `json:"duplicate"`
	IPEarnedRecently bool            `json:"ip_earned_recently"`
}

// Paid is true when the click moved money into the owner's pools.
func (o ClickOutcome) Paid() bool {
	return !o.Duplicate && !o.IPEarnedRecently && o.Earnings.IsPositive()
}

type ClickStats struct {
	Slug         string `json:"slug"`
	TotalClicks  int64  `json:"total_clicks"`
	UniqueClicks int64  `json:"unique_clicks"`
}

type DailyClickStats struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}
