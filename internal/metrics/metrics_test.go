package metrics_test

import (
	"errors"
	"testing"

	"github.com/SergeiKhy/paylink/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.TokenIssued()
	m.Click("paid")
	m.Click("paid")
	m.Click("duplicate")
	m.Ledger("spend", nil)
	m.Ledger("spend", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensIssued))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Clicks.WithLabelValues("paid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Clicks.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerOperations.WithLabelValues("spend", "error")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.TokenIssued()
		m.Click("paid")
		m.AdConsumed("served")
		m.ReferralPayout("click", "paid")
		m.Ledger("spend", nil)
		m.EngagementCompleted()
	})
}
