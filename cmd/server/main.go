package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qs3c/subscription_server/config"
	"github.com/qs3c/subscription_server/internal/api"
	"github.com/qs3c/subscription_server/internal/api/handler"
	"github.com/qs3c/subscription_server/internal/database"
	"github.com/qs3c/subscription_server/internal/pkg/cron"
	"github.com/qs3c/subscription_server/internal/pkg/logging"
	"github.com/qs3c/subscription_server/internal/pkg/metrics"
	"github.com/qs3c/subscription_server/internal/pkg/oauth"
	"github.com/qs3c/subscription_server/internal/pkg/pubsub"
	"github.com/qs3c/subscription_server/internal/pkg/tokenstore"
	"github.com/qs3c/subscription_server/internal/pkg/ws"
	"github.com/qs3c/subscription_server/internal/repository"
	"github.com/qs3c/subscription_server/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Server.Mode)

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		logger.Error("failed to connect database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected", "driver", cfg.Database.Driver)

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		logger.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	logger.Info("redis connected")

	wsHub := ws.NewHub(logger)
	m := metrics.New(func() float64 { return float64(wsHub.ConnectionCount()) })

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	featureRepo := repository.NewFeatureRepository(db)
	planRepo := repository.NewPlanRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, tokenstore.New(rdb), cfg)
	userService := service.NewUserService(userRepo, subRepo)
	catalogService := service.NewCatalogService(featureRepo, planRepo)
	subService := service.NewSubscriptionService(subRepo, planRepo, pubsub.NewPublisher(rdb), m, logger)

	// 初始化 Router
	router := api.NewRouter(
		handler.NewAuthHandler(authService, oauth.NewStateStore(rdb), cfg.CORS.AllowedOrigins),
		handler.NewUserHandler(userService),
		handler.NewCatalogHandler(catalogService),
		handler.NewSubscriptionHandler(subService),
		handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins, logger),
		handler.NewHealthHandler(db, rdb),
		userService,
		m,
		logger,
		cfg,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditCron := cron.NewService(subService, time.Duration(cfg.Audit.IntervalMinutes)*time.Minute, logger)
	auditCron.Start()
	defer auditCron.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 订阅事件经 Redis 转发到 WebSocket，多实例部署时每个实例都能推送给本机连接
	g.Go(func() error {
		err := pubsub.NewSubscriber(rdb).Subscribe(gctx, wsHub.ForwardEvent)
		if err != nil && gctx.Err() == nil {
			return fmt.Errorf("event subscriber: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
