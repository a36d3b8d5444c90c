package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Link struct {
	ID            int64           `json:"id"`
	Slug          string          `json:"slug"`
	TargetURL     string          `json:"target_url"`
	OwnerID       int64           `json:"owner_id"`
	Disabled      bool            `json:"disabled"`
	Clicks        int64           `json:"clicks"`
	Earnings      decimal.Decimal `json:"earnings"`
	LastClickedAt *time.Time      `json:"last_clicked_at,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Active сообщает, можно ли кликать по ссылке в момент now
func (l *Link) Active(now time.Time) bool {
	if l.Disabled {
		return false
	}
	return l.ExpiresAt == nil || l.ExpiresAt.After(now)
}

type CreateLinkInput struct {
	OwnerID    int64
	TargetURL  string
	ExpiresIn  *int
	CustomSlug *string
}

type LinkStats struct {
	Slug         string          `json:"slug"`
	Clicks       int64           `json:"clicks"`
	UniqueClicks int64           `json:"unique_clicks"`
	Earnings     decimal.Decimal `json:"earnings"`
}
