package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/paylink/internal/config"
	"github.com/SergeiKhy/paylink/internal/geo"
	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/SergeiKhy/paylink/internal/token"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// testEnv Postgres и Redis в контейнерах с применённой схемой
type testEnv struct {
	db    *repository.PostgresDB
	redis *repository.RedisDB
	users repository.UserRepository
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}
	ctx := context.Background()

	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("paylink"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbContainer.Terminate(context.Background()) })

	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisContainer.Terminate(context.Background()) })

	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "paylink",
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, repository.Migrate(ctx, db))
	// Миграции идемпотентны
	require.NoError(t, repository.Migrate(ctx, db))

	redisClient, err := repository.NewRedisClient(config.RedisConfig{
		Host: redisHost,
		Port: redisPort.Port(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	return &testEnv{db: db, redis: redisClient, users: repository.NewUserRepository(db)}
}

func (env *testEnv) user(t *testing.T, u *models.User) *models.User {
	t.Helper()
	require.NoError(t, env.users.Create(context.Background(), u))
	return u
}

func (env *testEnv) reload(t *testing.T, id int64) *models.User {
	t.Helper()
	u, err := env.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// TestIntegration_CampaignLedger проверяет резерв и списание бюджета на настоящей БД
func TestIntegration_CampaignLedger(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	ledger := service.NewLedger(env.users, repository.NewCampaignRepository(env.db), repository.NewPaymentRepository(env.db),
		dec("5"), time.Minute, nil, zap.NewNop())

	advertiser := env.user(t, &models.User{AvailableBalance: dec("100")})

	campaign, err := ledger.CreateCampaign(ctx, advertiser.ID, dec("40"))
	require.NoError(t, err)
	_, err = ledger.CreateCampaign(ctx, advertiser.ID, dec("70"))
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)

	_, err = ledger.Spend(ctx, campaign.ID, dec("10"))
	require.NoError(t, err)
	_, err = ledger.Spend(ctx, campaign.ID, dec("31"))
	assert.ErrorIs(t, err, service.ErrInsufficientReserve)

	released, err := ledger.Release(ctx, advertiser.ID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignPaused, released.Status)

	u := env.reload(t, advertiser.ID)
	assert.True(t, u.AvailableBalance.Equal(dec("90")), u.AvailableBalance.String())
	assert.True(t, u.ReservedBalance.IsZero(), u.ReservedBalance.String())

	ended, err := ledger.End(ctx, advertiser.ID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignCompleted, ended.Status)
	assert.True(t, env.reload(t, advertiser.ID).ReservedBalance.IsZero())
}

// TestIntegration_WithdrawalCycle проверяет cooldown и подтверждение выплаты
func TestIntegration_WithdrawalCycle(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	ledger := service.NewLedger(env.users, repository.NewCampaignRepository(env.db), repository.NewPaymentRepository(env.db),
		dec("5"), time.Minute, nil, zap.NewNop())

	user := env.user(t, &models.User{EarnedBalance: dec("20"), AvailableBalance: dec("20")})

	payment, err := ledger.RequestWithdrawal(ctx, user.ID, models.WithdrawalEarned, dec("6"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)

	_, err = ledger.RequestWithdrawal(ctx, user.ID, models.WithdrawalEarned, dec("5"))
	assert.ErrorIs(t, err, service.ErrCooldownActive)

	approved, err := ledger.ApproveWithdrawal(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentApproved, approved.Status)

	_, err = ledger.RejectWithdrawal(ctx, payment.ID)
	assert.ErrorIs(t, err, service.ErrPaymentNotPending)

	u := env.reload(t, user.ID)
	assert.True(t, u.EarnedBalance.Equal(dec("14")), u.EarnedBalance.String())
	assert.True(t, u.ReservedEarnedBalance.IsZero())
	assert.True(t, u.AvailableBalance.Equal(dec("14")), u.AvailableBalance.String())
}

// TestIntegration_AdConcurrentSameIP проверяет уникальность показа под конкуренцией
func TestIntegration_AdConcurrentSameIP(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	adRepo := repository.NewAdRepository(env.db)
	hasher, err := token.NewIPHasher("ip-secret")
	require.NoError(t, err)
	allocator := service.NewAdAllocator(adRepo, repository.NewSettingsRepository(env.db), hasher, geo.StaticResolver{}, nil, zap.NewNop())

	ad := &models.AdminAd{URL: "https://ads.example/1", Remaining: 5, Active: true}
	require.NoError(t, adRepo.Create(ctx, ad))

	const workers = 10
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := allocator.Consume(ctx, "203.0.113.7")
			if !assert.NoError(t, err) {
				return
			}
			if result.OpenURL {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)

	stored, err := adRepo.GetByID(ctx, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stored.Remaining)

	seen, err := adRepo.HasHit(ctx, ad.ID, hasher.Hash("203.0.113.7"))
	require.NoError(t, err)
	assert.True(t, seen)
}

// TestIntegration_ReferralIdempotent проверяет уникальный ключ каскада
func TestIntegration_ReferralIdempotent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	cascade := service.NewReferralCascade(env.users, repository.NewReferralRepository(env.db), repository.NewSettingsRepository(env.db),
		config.ReferralConfig{
			Enabled:           true,
			Percentage:        dec("10"),
			RegistrationBonus: dec("0.50"),
			MinEarning:        dec("0.01"),
			MaxEarning:        decimal.Zero,
		}, nil, zap.NewNop())

	referrer := env.user(t, &models.User{})
	referee := env.user(t, &models.User{ReferrerID: &referrer.ID})

	event := service.NewClickReferralEvent(42, referee.ID, dec("1.00"))
	tx, err := cascade.Trigger(ctx, event)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, models.ReferralPaymentPaid, tx.PaymentStatus)

	_, err = cascade.Trigger(ctx, event)
	assert.True(t, errors.Is(err, repository.ErrDuplicateReferral), "got %v", err)

	u := env.reload(t, referrer.ID)
	assert.True(t, u.ReferralEarned.Equal(dec("0.10")), u.ReferralEarned.String())
}

// TestIntegration_FraudGate проверяет оба окна дедупликации на SQL-запросах
func TestIntegration_FraudGate(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	linkRepo := repository.NewLinkRepository(env.db)
	clickRepo := repository.NewClickRepository(env.db)
	pricingRepo := repository.NewPricingRepository(env.db)
	require.NoError(t, pricingRepo.SetRate(ctx, models.AudienceUser, "US", dec("2.00")))

	pricing := service.NewPricingService(pricingRepo, repository.NewRateCache(env.redis), time.Minute, dec("1.00"), zap.NewNop())
	gate := service.NewFraudGate(clickRepo, pricing, time.Hour)
	countries := geo.StaticResolver{"198.51.100.1": "US"}
	clicks := service.NewClickService(clickRepo, linkRepo, env.users, gate, nopDispatcher{}, countries, nil, zap.NewNop())

	owner := env.user(t, &models.User{})
	first := &models.Link{Slug: "first001", TargetURL: "https://example.com/1", OwnerID: owner.ID, CreatedAt: time.Now()}
	second := &models.Link{Slug: "second01", TargetURL: "https://example.com/2", OwnerID: owner.ID, CreatedAt: time.Now()}
	require.NoError(t, linkRepo.Create(ctx, first))
	require.NoError(t, linkRepo.Create(ctx, second))

	event := func(link *models.Link) *models.ClickEvent {
		return &models.ClickEvent{LinkID: link.ID, IPAddress: "198.51.100.1", UserAgent: "curl/8.0"}
	}

	outcome, err := clicks.Credit(ctx, first, event(first))
	require.NoError(t, err)
	assert.True(t, outcome.Earnings.Equal(dec("0.002")), outcome.Earnings.String())

	outcome, err = clicks.Credit(ctx, first, event(first))
	require.NoError(t, err)
	assert.True(t, outcome.Duplicate)

	outcome, err = clicks.Credit(ctx, second, event(second))
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)
	assert.True(t, outcome.IPEarnedRecently)

	stored, err := linkRepo.GetBySlug(ctx, "first001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Clicks)
	assert.True(t, stored.Earnings.Equal(dec("0.002")), stored.Earnings.String())

	stats, err := clickRepo.GetStats(ctx, "first001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalClicks)
	assert.Equal(t, int64(1), stats.UniqueClicks)

	assert.True(t, env.reload(t, owner.ID).EarnedBalance.Equal(dec("0.002")))
}

// TestIntegration_DeleteKeepsClicks удалённая ссылка сохраняет клики и окно оплаты IP
func TestIntegration_DeleteKeepsClicks(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	linkRepo := repository.NewLinkRepository(env.db)
	clickRepo := repository.NewClickRepository(env.db)
	pricing := service.NewPricingService(repository.NewPricingRepository(env.db), repository.NewRateCache(env.redis),
		time.Minute, dec("1.00"), zap.NewNop())
	gate := service.NewFraudGate(clickRepo, pricing, time.Hour)
	clicks := service.NewClickService(clickRepo, linkRepo, env.users, gate, nopDispatcher{}, geo.StaticResolver{}, nil, zap.NewNop())

	owner := env.user(t, &models.User{})
	first := &models.Link{Slug: "gone0001", TargetURL: "https://example.com/1", OwnerID: owner.ID, CreatedAt: time.Now()}
	second := &models.Link{Slug: "next0001", TargetURL: "https://example.com/2", OwnerID: owner.ID, CreatedAt: time.Now()}
	require.NoError(t, linkRepo.Create(ctx, first))
	require.NoError(t, linkRepo.Create(ctx, second))

	event := func(link *models.Link) *models.ClickEvent {
		return &models.ClickEvent{LinkID: link.ID, IPAddress: "203.0.113.7", UserAgent: "curl/8.0"}
	}

	outcome, err := clicks.Credit(ctx, first, event(first))
	require.NoError(t, err)
	require.True(t, outcome.Paid())

	require.NoError(t, linkRepo.Delete(ctx, first.Slug, owner.ID))
	assert.ErrorIs(t, linkRepo.Delete(ctx, first.Slug, owner.ID), repository.ErrLinkNotFound)

	stored, err := linkRepo.GetBySlug(ctx, first.Slug)
	require.NoError(t, err)
	assert.True(t, stored.Disabled)

	stats, err := clickRepo.GetStats(ctx, first.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalClicks)

	outcome, err = clicks.Credit(ctx, second, event(second))
	require.NoError(t, err)
	assert.True(t, outcome.IPEarnedRecently)
	assert.False(t, outcome.Paid())
	assert.True(t, env.reload(t, owner.ID).EarnedBalance.Equal(dec("0.001")))
}

// TestIntegration_Caches проверяет кэш ссылок и ставок в Redis
func TestIntegration_Caches(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	links := repository.NewCacheRepository(env.redis)
	_, err := links.Get(ctx, "missing1")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	link := &models.Link{ID: 7, Slug: "cached01", TargetURL: "https://example.com", Earnings: dec("1.5")}
	require.NoError(t, links.Set(ctx, link.Slug, link, time.Minute))
	cached, err := links.Get(ctx, link.Slug)
	require.NoError(t, err)
	assert.Equal(t, link.TargetURL, cached.TargetURL)
	assert.True(t, cached.Earnings.Equal(link.Earnings))

	require.NoError(t, links.Delete(ctx, link.Slug))
	_, err = links.Get(ctx, link.Slug)
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	rates := repository.NewRateCache(env.redis)
	require.NoError(t, rates.SetRate(ctx, models.AudienceUser, "DE", dec("3.25"), time.Minute))
	rate, err := rates.GetRate(ctx, models.AudienceUser, "DE")
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec("3.25")))

	_, err = rates.GetRate(ctx, models.AudienceAdvertiser, "DE")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

type nopDispatcher struct{}

func (nopDispatcher) Start() {}
func (nopDispatcher) Stop()  {}
func (nopDispatcher) Enqueue(context.Context, *models.ReferralEvent) error {
	return nil
}
func (nopDispatcher) Stats() service.ChannelStats { return service.ChannelStats{} }
