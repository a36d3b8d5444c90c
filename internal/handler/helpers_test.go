package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/paylink/internal/geo"
	"github.com/SergeiKhy/paylink/internal/handler"
	"github.com/SergeiKhy/paylink/internal/metrics"
	"github.com/SergeiKhy/paylink/internal/middleware"
	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/SergeiKhy/paylink/internal/service/mocks"
	"github.com/SergeiKhy/paylink/internal/session"
	"github.com/SergeiKhy/paylink/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testAPIKey  = "admin-key"
	testBaseURL = "https://pay.example"
)

// queueRecorder подменяет асинхронный диспетчер каскада
type queueRecorder struct {
	mu     sync.Mutex
	events []*models.ReferralEvent
}

func (q *queueRecorder) Start() {}
func (q *queueRecorder) Stop()  {}

func (q *queueRecorder) Enqueue(ctx context.Context, event *models.ReferralEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return nil
}

func (q *queueRecorder) Stats() service.ChannelStats { return service.ChannelStats{} }

func (q *queueRecorder) Events() []*models.ReferralEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*models.ReferralEvent(nil), q.events...)
}

// testServer полный HTTP стек поверх in-memory репозиториев
type testServer struct {
	router   *gin.Engine
	links    *mocks.MockLinkRepository
	clicks   *mocks.MockClickRepository
	users    *mocks.MockUserRepository
	payments *mocks.MockPaymentRepository
	ads      *mocks.MockAdRepository
	queue    *queueRecorder
	healthy  error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{
		links:    mocks.NewMockLinkRepository(),
		users:    mocks.NewMockUserRepository(),
		payments: mocks.NewMockPaymentRepository(),
		ads:      mocks.NewMockAdRepository(),
		queue:    &queueRecorder{},
	}
	s.clicks = mocks.NewMockClickRepository(s.links)

	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	codec, err := token.NewCodec("token-secret")
	require.NoError(t, err)
	hasher, err := token.NewIPHasher("ip-secret")
	require.NoError(t, err)
	countries := geo.StaticResolver{}

	pricing := service.NewPricingService(mocks.NewMockPricingRepository(), mocks.NewMockRateCache(nil), time.Minute, decimal.RequireFromString("1.00"), logger)
	gate := service.NewFraudGate(s.clicks, pricing, time.Hour)
	clicks := service.NewClickService(s.clicks, s.links, s.users, gate, s.queue, countries, m, logger)
	links := service.NewLinkService(s.links, mocks.NewMockCacheRepository(), s.clicks, logger)
	engagement := service.NewEngagementService(
		links, s.links, clicks, codec, hasher,
		session.NewStore(nil), session.NewNonceStore(nil),
		service.EngagementTTLs{Token: 10 * time.Minute, Session: 10 * time.Minute, Nonce: time.Hour},
		m, logger,
	)
	settings := mocks.NewMockSettingsRepository()
	ads := service.NewAdAllocator(s.ads, settings, hasher, countries, m, logger)
	ledger := service.NewLedger(s.users, mocks.NewMockCampaignRepository(), s.payments, decimal.RequireFromString("5.00"), time.Minute, m, logger)

	s.router = handler.NewRouter(
		handler.Services{
			Links:      links,
			Clicks:     clicks,
			Engagement: engagement,
			Ads:        ads,
			Ledger:     ledger,
			Referrals:  s.queue,
		},
		handler.RouterConfig{
			PublicBaseURL: testBaseURL,
			APIKey:        middleware.RequireAPIKey(map[string]string{testAPIKey: "ops"}),
			HealthChecks: map[string]handler.Pinger{
				"postgres": func(ctx context.Context) error { return s.healthy },
			},
			Metrics:  m,
			Gatherer: reg,
		},
		logger,
	)
	return s
}

type request struct {
	method string
	path   string
	body   any
	userID int64
	apiKey string
}

func (s *testServer) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	switch b := r.body.(type) {
	case nil:
	case string:
		body.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&body).Encode(b))
	}

	req := httptest.NewRequest(r.method, r.path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0")
	if r.userID != 0 {
		req.Header.Set(middleware.UserIDHeader, strconv.FormatInt(r.userID, 10))
	}
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) seedUser(t *testing.T, u *models.User) *models.User {
	t.Helper()
	require.NoError(t, s.users.Create(context.Background(), u))
	return u
}

func (s *testServer) seedLink(t *testing.T, slug string, owner int64) *models.Link {
	t.Helper()
	return s.links.Seed(&models.Link{
		Slug:      slug,
		TargetURL: "https://example.com/" + slug,
		OwnerID:   owner,
		CreatedAt: time.Now(),
	})
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
