package handler

import (
	"net/http"

	"github.com/SergeiKhy/paylink/internal/metrics"
	"github.com/SergeiKhy/paylink/internal/middleware"
	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services набор доменных сервисов, которые обслуживает HTTP API
type Services struct {
	Links      service.LinkService
	Clicks     service.ClickService
	Engagement service.EngagementService
	Ads        service.AdAllocator
	Ledger     service.Ledger
	Referrals  service.ReferralDispatcher
}

// RouterConfig всё, что нужно роутеру кроме сервисов
type RouterConfig struct {
	PublicBaseURL string
	RateLimiter   *middleware.RateLimiter
	// APIKey защищает списание по кампаниям и /admin; nil закрывает эти маршруты
	APIKey       gin.HandlerFunc
	HealthChecks map[string]Pinger
	Metrics      *metrics.Metrics
	// Gatherer источник для /metrics; nil отключает эндпоинт
	Gatherer prometheus.Gatherer
}

func NewRouter(svc Services, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Логгирование и метрики запросов
	router.Use(middleware.RequestLog(logger), middleware.Metrics(cfg.Metrics))

	// Rate limiting для всех запросов
	if cfg.RateLimiter != nil {
		router.Use(cfg.RateLimiter.Middleware())
	}

	// Без настроенных ключей служебные маршруты недоступны
	apiKey := cfg.APIKey
	if apiKey == nil {
		apiKey = func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "api_keys_disabled",
				Message: "API keys are not configured",
			})
		}
	}

	health := NewHealthHandler(cfg.HealthChecks, logger)
	links := NewLinkHandler(svc.Links, svc.Clicks, cfg.PublicBaseURL, logger)
	engagement := NewEngagementHandler(svc.Engagement, logger)
	ads := NewAdHandler(svc.Ads, logger)
	ledger := NewLedgerHandler(svc.Ledger, logger)
	referrals := NewReferralHandler(svc.Referrals, logger)

	// API v.1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", health.HealthCheck)

		// Публичные эндпоинты страницы вовлечения
		v1.POST("/links/:id/click", links.DirectClick)
		v1.POST("/engagement/token", engagement.IssueToken)
		v1.POST("/engagement/impression", engagement.RecordImpression)
		v1.POST("/ads/consume", ads.Consume)

		// Эндпоинты пользователя: ID приходит от шлюза в X-User-ID
		user := v1.Group("", middleware.RequireUserID())
		{
			user.POST("/links", links.CreateLink)
			user.DELETE("/links/:slug", links.DeleteLink)
			user.GET("/links/:slug/stats", links.GetStats)
			user.GET("/links/:slug/stats/daily", links.GetDailyStats)

			user.POST("/campaigns", ledger.CreateCampaign)
			user.POST("/campaigns/:id/release", ledger.ReleaseCampaign)
			user.POST("/campaigns/:id/resume", ledger.ResumeCampaign)
			user.POST("/campaigns/:id/end", ledger.EndCampaign)

			user.POST("/withdrawals", ledger.RequestWithdrawal)
			user.GET("/me/balance", ledger.GetBalance)
		}

		// Списание делает рекламная система, не владелец кампании
		v1.POST("/campaigns/:id/spend", apiKey, ledger.Spend)

		admin := v1.Group("/admin", apiKey)
		{
			admin.POST("/withdrawals/:id/approve", ledger.ApproveWithdrawal)
			admin.POST("/withdrawals/:id/reject", ledger.RejectWithdrawal)
			admin.POST("/referrals/registration", referrals.TriggerRegistration)
		}
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// Редирект на страницу вовлечения (корневой путь) - без аутентификации
	router.GET("/:slug", links.Redirect)

	return router
}
