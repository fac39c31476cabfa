package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/subscription_server/config"
	"github.com/qs3c/subscription_server/internal/api/handler"
	"github.com/qs3c/subscription_server/internal/api/middleware"
	"github.com/qs3c/subscription_server/internal/pkg/metrics"
)

type Router struct {
	authHandler         *handler.AuthHandler
	userHandler         *handler.UserHandler
	catalogHandler      *handler.CatalogHandler
	subscriptionHandler *handler.SubscriptionHandler
	websocketHandler    *handler.WebSocketHandler
	healthHandler       *handler.HealthHandler
	admins              middleware.AdminChecker
	metrics             *metrics.Metrics
	logger              *slog.Logger
	cfg                 *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	catalogHandler *handler.CatalogHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	websocketHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
	admins middleware.AdminChecker,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:         authHandler,
		userHandler:         userHandler,
		catalogHandler:      catalogHandler,
		subscriptionHandler: subscriptionHandler,
		websocketHandler:    websocketHandler,
		healthHandler:       healthHandler,
		admins:              admins,
		metrics:             m,
		logger:              logger,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger(r.logger))
	engine.Use(middleware.Metrics(r.metrics))
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", r.healthHandler.Check)
	if r.metrics != nil {
		engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			limited := auth.Group("")
			limited.Use(middleware.RateLimit(r.cfg.RateLimit.PerSecond, r.cfg.RateLimit.Burst))
			limited.POST("/register", r.authHandler.Register)
			limited.POST("/login", r.authHandler.Login)

			auth.POST("/token/refresh", r.authHandler.Refresh)
			auth.GET("/github", r.authHandler.GithubAuth)
			auth.GET("/github/callback", r.authHandler.GithubCallback)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			authenticated.GET("/user/profile", r.userHandler.GetProfile)

			// 目录
			authenticated.GET("/features", r.catalogHandler.ListFeatures)
			authenticated.GET("/plans", r.catalogHandler.ListPlans)
			authenticated.GET("/plans/:id", r.catalogHandler.GetPlan)

			// 订阅
			subscriptions := authenticated.Group("/subscriptions")
			{
				subscriptions.GET("", r.subscriptionHandler.List)
				subscriptions.POST("", r.subscriptionHandler.Activate)
				subscriptions.PUT("", r.subscriptionHandler.Switch)
				subscriptions.POST("/deactivate", r.subscriptionHandler.Deactivate)
			}

			// 管理员
			admin := authenticated.Group("")
			admin.Use(middleware.RequireAdmin(r.admins))
			{
				admin.POST("/features", r.catalogHandler.CreateFeature)
				admin.POST("/plans", r.catalogHandler.CreatePlan)
				admin.DELETE("/plans/:id", r.catalogHandler.DeletePlan)
			}
		}
	}

	return engine
}
