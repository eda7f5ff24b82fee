package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/referral-service/internal/api/http"
	"github.com/spec-kit/referral-service/internal/api/http/handlers"
	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/config"
	"github.com/spec-kit/referral-service/internal/events"
	"github.com/spec-kit/referral-service/internal/observability"
	"github.com/spec-kit/referral-service/internal/persistence"
	"github.com/spec-kit/referral-service/internal/ratelimit"
	"github.com/spec-kit/referral-service/internal/service"
	"github.com/spec-kit/referral-service/internal/worker"
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

	if cfg.Auth.UsesDefaultSecret() {
		if cfg.App.IsDevelopment() {
			logger.Warn("AUTH_JWT_SECRET not set; signing tokens with the development default")
		} else {
			logger.Fatal("AUTH_JWT_SECRET must be set outside development", zap.String("env", cfg.App.Env))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	stores := persistence.OpenStores(pg)
	if stores.Memory {
		logger.Warn("using in-memory store; data is lost on restart")
	}

	var storePinger, redisPinger handlers.Pinger
	if pg.Enabled() {
		storePinger = pg
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window())
	if cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		limiter = ratelimit.NewRedisLimiter(redis.Client, cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window(), limiter, logger)
		redisPinger = redis
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger, cfg.Notification).RegisterHandlers()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Users:      stores.Users,
		Tokens:     tokens,
		Limiter:    limiter,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	userService := service.NewUserService(cfg.Auth, stores.Users, logger, nil)
	if cfg.Bootstrap.Enabled() {
		if _, err := userService.EnsureAdmin(ctx, service.BootstrapAdmin{
			Name:   cfg.Bootstrap.AdminName,
			Email:  cfg.Bootstrap.AdminEmail,
			Digest: cfg.Bootstrap.AdminPasswordHash,
		}); err != nil {
			logger.Fatal("failed to seed bootstrap admin", zap.Error(err))
		}
	} else if stores.Memory {
		logger.Warn("BOOTSTRAP_ADMIN_EMAIL not set; the in-memory store has no accounts to log in with")
	}
	referralService := service.NewReferralService(stores.Referrals, dispatcher, logger, nil)

	app := httptransport.NewApp(httptransport.ServerConfig{
		Name:           cfg.App.Name,
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        metrics,
	}, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, storePinger, redisPinger),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		Referrals:      handlers.NewReferralsHandler(referralService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		UserLookup:     stores.Users,
	})

	var expiry *worker.StatusExpiryJob
	if cfg.StatusExpiry.Enabled {
		expiry = worker.NewStatusExpiryJob(stores.Referrals, dispatcher, metrics, logger, worker.StatusExpiryConfig{
			Interval:     cfg.StatusExpiry.Interval(),
			StartupDelay: cfg.StatusExpiry.StartupDelay(),
			MaxAgeMonths: cfg.StatusExpiry.MaxAgeMonths,
		}, nil)
		expiry.Start()
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.Bool("memory_store", stores.Memory))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if expiry != nil {
		expiry.Stop()
	}
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
