// Package metrics exposes Prometheus collectors for business events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters recorded by the services. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	TokensIssued         prometheus.Counter
	EngagementsCompleted prometheus.Counter
	Clicks               *prometheus.CounterVec
	AdConsumptions       *prometheus.CounterVec
	ReferralPayouts      *prometheus.CounterVec
	LedgerOperations     *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paylink",
			Name:      "tokens_issued_total",
			Help:      "Session tokens issued.",
		}),
		EngagementsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paylink",
			Name:      "engagements_completed_total",
			Help:      "Engagement sessions that reached both stages.",
		}),
		Clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paylink",
			Name:      "clicks_total",
			Help:      "Credited clicks by fraud gate outcome.",
		}, []string{"outcome"}),
		AdConsumptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paylink",
			Name:      "ad_consumptions_total",
			Help:      "Ad allocation attempts by result.",
		}, []string{"result"}),
		ReferralPayouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paylink",
			Name:      "referral_payouts_total",
			Help:      "Referral cascade results by action.",
		}, []string{"action", "result"}),
		LedgerOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paylink",
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by name and result.",
		}, []string{"operation", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paylink",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paylink",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.TokensIssued,
		m.EngagementsCompleted,
		m.Clicks,
		m.AdConsumptions,
		m.ReferralPayouts,
		m.LedgerOperations,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

func (m *Metrics) TokenIssued() {
	if m != nil {
		m.TokensIssued.Inc()
	}
}

func (m *Metrics) EngagementCompleted() {
	if m != nil {
		m.EngagementsCompleted.Inc()
	}
}

func (m *Metrics) Click(outcome string) {
	if m != nil {
		m.Clicks.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AdConsumed(result string) {
	if m != nil {
		m.AdConsumptions.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ReferralPayout(action, result string) {
	if m != nil {
		m.ReferralPayouts.WithLabelValues(action, result).Inc()
	}
}

func (m *Metrics) Ledger(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LedgerOperations.WithLabelValues(operation, result).Inc()
}
