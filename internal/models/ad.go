package models

import "time"

type AdminAd struct {
	ID           int64      `json:"id"`
	URL          string     `json:"url"`
	Remaining    int64      `json:"remaining"`
	Served       int64      `json:"served"`
	Active       bool       `json:"active"`
	LastServedAt *time.Time `json:"last_served_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AdminAdHit is unique per (AdID, IPHash).
type AdminAdHit struct {
	ID        int64     `json:"id"`
	AdID      int64     `json:"ad_id"`
	IPHash    string    `json:"ip_hash"`
	IP        string    `json:"ip"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
}

type AdMode string

const (
	AdModePriority AdMode = "priority"
	AdModeRandom   AdMode = "random"
)

type AdSettings struct {
	Mode         AdMode `json:"mode"`
	PriorityAdID int64  `json:"priority_ad_id"`
}

type AdConsumeResult struct {
	OpenURL   bool   `json:"openUrl"`
	URL       string `json:"url,omitempty"`
	Remaining int64  `json:"remaining"`
}
