package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/learning-api/internal/api/http"
	"github.com/spec-kit/learning-api/internal/api/http/handlers"
	"github.com/spec-kit/learning-api/internal/auth"
	"github.com/spec-kit/learning-api/internal/cache"
	"github.com/spec-kit/learning-api/internal/clock"
	"github.com/spec-kit/learning-api/internal/config"
	"github.com/spec-kit/learning-api/internal/csrf"
	"github.com/spec-kit/learning-api/internal/events"
	"github.com/spec-kit/learning-api/internal/observability"
	"github.com/spec-kit/learning-api/internal/persistence"
	"github.com/spec-kit/learning-api/internal/ratelimit"
	"github.com/spec-kit/learning-api/internal/repository"
	"github.com/spec-kit/learning-api/internal/service"
	"github.com/spec-kit/learning-api/internal/subscription"
	"github.com/spec-kit/learning-api/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	clk := clock.Real()
	metrics := observability.NewMetrics()

	dispatcher := events.NewDispatcher(cfg.Events.BufferSize)
	dispatcher.Subscribe(events.ZapHandler(logger))
	defer dispatcher.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	subscriptionRepo := repository.NewSubscriptionRepository(pool)
	contentRepo := repository.NewContentRepository(pool)
	bookmarkRepo := repository.NewBookmarkRepository(pool)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes, clk)
	authService := service.NewAuthService(userRepo, tokens)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, clk, logger)

	limits, err := ratelimit.NewRegistry(ratelimit.NewMemoryStore(0), clk, ratelimit.Policies(cfg.RateLimit)...)
	if err != nil {
		logger.Fatal("failed to configure rate limits", zap.Error(err))
	}
	limits.StartSweeper(ctx, cfg.RateLimit.SweepInterval, logger)

	responseCache, err := newResponseCache(cfg.Cache, redis, clk, logger)
	if err != nil {
		logger.Fatal("failed to configure response cache", zap.Error(err))
	}
	responseCache.StartSweeper(ctx, cfg.Cache.SweepInterval)

	stopExpiry, err := worker.StartSubscriptionExpiryWorker(ctx, subscriptionService, cfg.Payments.ExpirySchedule, logger)
	if err != nil {
		logger.Fatal("failed to schedule subscription expiry", zap.Error(err))
	}
	defer stopExpiry()

	guard := csrf.NewGuard(cfg.CSRF.Secret)
	pipeline := httptransport.NewPipeline(httptransport.PipelineDeps{
		Authenticator: auth.NewAuthenticator(tokens),
		Gate:          subscription.NewGate(subscriptionRepo, clk, cfg.Auth.EntitlementTimeout),
		CSRF:          guard,
		Limits:        limits,
		Cache:         responseCache,
		Events:        dispatcher,
		Metrics:       metrics,
		Logger:        logger,
		Clock:         clk,
	})

	app := fiber.New(httptransport.AppConfig(cfg.App.Name, cfg.App.ProxyHeader, logger))
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	err = httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Pipeline: pipeline,
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, logger),
		Auth:          handlers.NewAuthHandler(authService, logger),
		CSRF:          handlers.NewCSRFHandler(guard, cfg.CSRF.SecureCookie, cfg.CSRF.CookieMaxAge),
		Content:       handlers.NewContentHandler(contentRepo),
		Bookmarks:     handlers.NewBookmarksHandler(bookmarkRepo),
		Subscriptions: handlers.NewSubscriptionHandler(),
		Payments:      handlers.NewPaymentsHandler(subscriptionService, cfg.Payments.WebhookSecret),
		Admin:         handlers.NewAdminHandler(responseCache, metrics, dispatcher, logger),
	})
	if err != nil {
		logger.Fatal("failed to register routes", zap.Error(err))
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func newResponseCache(cfg config.CacheConfig, redis *persistence.Redis, clk clock.Clock, logger *zap.Logger) (*cache.Cache, error) {
	opts := cache.Options{Name: cfg.Backend, Clock: clk, Timeout: cfg.BackendTimeout, Logger: logger}
	if cfg.Backend == "redis" {
		return cache.New(cache.NewRedisBackend(redis.Client, cfg.KeyPrefix), opts), nil
	}
	backend, err := cache.NewMemoryBackend(cfg.MaxEntries)
	if err != nil {
		return nil, err
	}
	return cache.New(backend, opts), nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
