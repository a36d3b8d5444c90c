package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/paylink/internal/config"
	"github.com/SergeiKhy/paylink/internal/geo"
	"github.com/SergeiKhy/paylink/internal/handler"
	"github.com/SergeiKhy/paylink/internal/metrics"
	"github.com/SergeiKhy/paylink/internal/middleware"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/SergeiKhy/paylink/internal/session"
	"github.com/SergeiKhy/paylink/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига; без секретов сервис не стартует
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = repository.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// GeoIP опционален: без базы все страны Unknown и идут по fallback-ставке
	var countries geo.CountryResolver = geo.StaticResolver{}
	if cfg.Geo.DatabasePath != "" {
		resolver, err := geo.NewGeoIPResolver(cfg.Geo.DatabasePath)
		if err != nil {
			logger.Warn("GeoIP database unavailable, countries resolve to Unknown", zap.Error(err))
		} else {
			defer resolver.Close()
			countries = resolver
		}
	}

	codec, err := token.NewCodec(cfg.Security.TokenSecret)
	if err != nil {
		logger.Fatal("Failed to create token codec", zap.Error(err))
	}
	hasher, err := token.NewIPHasher(cfg.Security.IPHashSecret)
	if err != nil {
		logger.Fatal("Failed to create IP hasher", zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Инициализация репозиториев
	linkRepo := repository.NewLinkRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)
	clickRepo := repository.NewClickRepository(db)
	userRepo := repository.NewUserRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	pricingRepo := repository.NewPricingRepository(db)
	adRepo := repository.NewAdRepository(db)
	rateCache := repository.NewRateCache(redis)

	// Сессии вовлечения и nonce живут в памяти процесса
	sessions := session.NewStore(nil)
	sessions.StartJanitor(time.Minute)
	defer sessions.Stop()
	nonces := session.NewNonceStore(nil)
	nonces.StartJanitor(time.Minute)
	defer nonces.Stop()

	// Реферальный каскад (Worker Pool)
	cascade := service.NewReferralCascade(userRepo, referralRepo, settingsRepo, cfg.Referral, m, logger)
	dispatcher := service.NewReferralDispatcher(cascade, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	// Инициализация сервисов
	pricing := service.NewPricingService(pricingRepo, rateCache, cfg.Fraud.PricingCacheTTL, cfg.Fraud.FallbackCPM, logger)
	gate := service.NewFraudGate(clickRepo, pricing, cfg.Fraud.Window)
	clicks := service.NewClickService(clickRepo, linkRepo, userRepo, gate, dispatcher, countries, m, logger)
	links := service.NewLinkService(linkRepo, cacheRepo, clickRepo, logger)
	engagement := service.NewEngagementService(
		links, linkRepo, clicks, codec, hasher, sessions, nonces,
		service.EngagementTTLs{
			Token:   cfg.Engagement.TokenTTL,
			Session: cfg.Engagement.SessionTTL,
			Nonce:   cfg.Engagement.NonceTTL,
		},
		m, logger,
	)
	ads := service.NewAdAllocator(adRepo, settingsRepo, hasher, countries, m, logger)
	ledger := service.NewLedger(userRepo, campaignRepo, paymentRepo, cfg.Ledger.MinimumWithdrawal, cfg.Ledger.WithdrawalCooldown, m, logger)

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	var apiKeyMiddleware gin.HandlerFunc
	if len(cfg.Auth.APIKeys) > 0 {
		apiKeyMiddleware = middleware.RequireAPIKey(cfg.Auth.APIKeys)
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	} else {
		logger.Warn("API_KEYS is empty, campaign spend and admin routes are closed")
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(
		handler.Services{
			Links:      links,
			Clicks:     clicks,
			Engagement: engagement,
			Ads:        ads,
			Ledger:     ledger,
			Referrals:  dispatcher,
		},
		handler.RouterConfig{
			PublicBaseURL: cfg.App.PublicBaseURL,
			RateLimiter:   rateLimiter,
			APIKey:        apiKeyMiddleware,
			HealthChecks: map[string]handler.Pinger{
				"postgres": db.Ping,
				"redis":    redis.Ping,
			},
			Metrics:  m,
			Gatherer: prometheus.DefaultGatherer,
		},
		logger,
	)

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// После остановки HTTP отложенные вызовы дочищают очередь каскада
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited", zap.Int("referral_queue", dispatcher.Stats().BufferUsed))
}
