package models

type IssueTokenInput struct {
	Slug   string
	UserID *int64
	IP     string
}

type IssuedToken struct {
	Token     string `json:"token"`
	Exp       int64  `json:"exp"`
	TargetURL string `json:"targetUrl"`
}

type ImpressionInput struct {
	Token     string
	Stage     int
	Metrics   map[string]float64
	IP        string
	UserAgent string
	Referer   string
}

// ImpressionResult covers both the incomplete and the complete response shapes.
type ImpressionResult struct {
	OK               bool   `json:"ok"`
	Done             bool   `json:"done"`
	Suspicious       bool   `json:"suspicious"`
	Already          bool   `json:"already"`
	Redirect         string `json:"redirect,omitempty"`
	Duplicate        bool   `json:"duplicate"`
	IPEarnedRecently bool   `json:"ipEarnedRecently"`
}
