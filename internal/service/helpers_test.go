package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/paylink/internal/config"
	"github.com/SergeiKhy/paylink/internal/geo"
	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/SergeiKhy/paylink/internal/service/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// recordingDispatcher собирает события каскада вместо асинхронной обработки
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*models.ReferralEvent
}

func (d *recordingDispatcher) Start() {}
func (d *recordingDispatcher) Stop()  {}

func (d *recordingDispatcher) Enqueue(ctx context.Context, event *models.ReferralEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Stats() service.ChannelStats { return service.ChannelStats{} }

func (d *recordingDispatcher) Events() []*models.ReferralEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*models.ReferralEvent(nil), d.events...)
}

// clickFixture окружение для антифрод-фильтра и сервиса кликов.
// Ставка US: 2.00 за 1000, fallback 1.00 за 1000.
type clickFixture struct {
	links      *mocks.MockLinkRepository
	clicks     *mocks.MockClickRepository
	users      *mocks.MockUserRepository
	pricing    *mocks.MockPricingRepository
	dispatcher *recordingDispatcher
	gate       service.FraudGate
	service    service.ClickService
}

func newClickFixture(t *testing.T) *clickFixture {
	t.Helper()

	f := &clickFixture{
		links:      mocks.NewMockLinkRepository(),
		users:      mocks.NewMockUserRepository(),
		pricing:    mocks.NewMockPricingRepository(),
		dispatcher: &recordingDispatcher{},
	}
	f.clicks = mocks.NewMockClickRepository(f.links)
	require.NoError(t, f.pricing.SetRate(context.Background(), models.AudienceUser, "US", dec("2.00")))

	pricing := service.NewPricingService(f.pricing, mocks.NewMockRateCache(nil), time.Minute, dec("1.00"), zap.NewNop())
	f.gate = service.NewFraudGate(f.clicks, pricing, time.Hour)
	countries := geo.StaticResolver{"1.1.1.1": "US", "2.2.2.2": "US"}
	f.service = service.NewClickService(f.clicks, f.links, f.users, f.gate, f.dispatcher, countries, nil, zap.NewNop())
	return f
}

func (f *clickFixture) seedLink(t *testing.T, slug string, owner int64) *models.Link {
	t.Helper()
	return f.links.Seed(&models.Link{
		Slug:      slug,
		TargetURL: "https://example.com/" + slug,
		OwnerID:   owner,
		CreatedAt: time.Now(),
	})
}

func (f *clickFixture) seedUser(t *testing.T, u *models.User) *models.User {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func referralConfig() config.ReferralConfig {
	return config.ReferralConfig{
		Enabled:           true,
		Percentage:        dec("10"),
		RegistrationBonus: dec("0.50"),
		MinEarning:        dec("0.01"),
		MaxEarning:        decimal.Zero,
	}
}

func int64Ptr(v int64) *int64 { return &v }
