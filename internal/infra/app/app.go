package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/infra/config"
	"github.com/dreamwise/dreamwise-api/internal/infra/database"
	kafkainfra "github.com/dreamwise/dreamwise-api/internal/infra/kafka"
	"github.com/dreamwise/dreamwise-api/internal/infra/logger"
	"github.com/dreamwise/dreamwise-api/internal/infra/notification"
	redisinfra "github.com/dreamwise/dreamwise-api/internal/infra/redis"
	"github.com/dreamwise/dreamwise-api/internal/infra/security"
	"github.com/dreamwise/dreamwise-api/internal/infra/storage"
	"github.com/dreamwise/dreamwise-api/internal/infra/telemetry"
	"github.com/dreamwise/dreamwise-api/internal/repository/memory"
	postgresrepo "github.com/dreamwise/dreamwise-api/internal/repository/postgres"
	redisrepo "github.com/dreamwise/dreamwise-api/internal/repository/redis"
	"github.com/dreamwise/dreamwise-api/internal/transport/http/middleware"
	"github.com/dreamwise/dreamwise-api/internal/transport/http/routes"
	"github.com/dreamwise/dreamwise-api/internal/usecase"
)

// Version is stamped into traces and events.
var Version = "dev"

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
	sweeper  *memory.Sweeper
}

// ephemeral holds the token, code and rate-limit state, backed by Redis or
// by process memory.
type ephemeral struct {
	revocations port.RevocationStore
	otps        port.OTPStore
	rateLimits  port.RateLimitStore
	sweepable   map[string]memory.Sweepable
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	application := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			application.close(context.Background())
		}
	}()

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, Version, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	application.tracer = tracer

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	application.pool = pool

	if cfg.Postgres.AutoMigrate {
		if err := database.RunMigrations(ctx, pool, log); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	if cfg.Redis.Enabled {
		redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		application.redis = redisClient
	}

	state, err := newEphemeral(cfg, application.redis, log)
	if err != nil {
		return nil, err
	}
	if len(state.sweepable) > 0 {
		sweeper, err := memory.NewSweeper(cfg.RateLimit.SweepSchedule, log, state.sweepable)
		if err != nil {
			return nil, err
		}
		application.sweeper = sweeper
	}

	var events port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, cfg.App.Name, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
		} else {
			application.producer = producer
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
	}

	var files port.FileStore
	if cfg.Storage.Enabled {
		avatars, err := storage.NewAvatarStore(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("init avatar storage: %w", err)
		}
		files = avatars
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	securityMetrics, err := telemetry.NewSecurityMetrics(registry, "dreamwise")
	if err != nil {
		return nil, fmt.Errorf("init security metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	manager, err := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init token manager: %w", err)
	}
	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	store := postgresrepo.NewStore(pool)
	cache := usecase.NewPrincipalCache(cfg.Auth.PrincipalCacheSize, cfg.Auth.PrincipalCacheTTL)

	tokens := usecase.NewTokenService(manager, state.revocations, log)
	tokens.WithObserver(securityMetrics)

	authService, err := usecase.NewAuthService(usecase.AuthDependencies{
		Settings: cfg.Auth,
		Users:    store.Users,
		Hasher:   hasher,
		Policy: security.NewPasswordPolicy(security.PasswordPolicyConfig{
			MinLength:        cfg.Password.MinLength,
			MinClasses:       cfg.Password.MinClasses,
			MinStrengthScore: cfg.Password.MinStrengthScore,
		}),
		Tokens: tokens,
		OTPs:   state.otps,
		Codes:  security.NewCodeHasher(cfg.JWT.Secret),
		Mailer: notification.NewEventMailer(events, log, notification.WithCodeLogging(!cfg.App.IsProduction())),
		Events: events,
		Cache:  cache,
		Logger: log,
	})
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	rateLimiter := middleware.NewRateLimiter(state.rateLimits, log).WithMetrics(securityMetrics)

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		HTTPMetrics: httpMetrics,
		AuthMetrics: securityMetrics,
		Gatherer:    registry,
		Database:    pool,
		Services: routes.ServiceSet{
			Auth:      authService,
			Journal:   usecase.NewJournalService(store, store.Journal, store.Users, events, log),
			Community: usecase.NewCommunityService(store, store.Posts, store.Journal, events, log),
			Users:     usecase.NewUserService(store.Users, store.Journal, files, cache, log),
			Admin:     usecase.NewAdminService(store.Users, cache, log),
		},
	}
	if application.redis != nil {
		deps.Cache = application.redis
	}
	application.engine = routes.Register(deps)

	ok = true
	return application, nil
}

func newEphemeral(cfg *config.AppConfig, client *redisinfra.Client, log *zap.Logger) (ephemeral, error) {
	switch cfg.RateLimit.Backend {
	case "redis":
		if client == nil {
			return ephemeral{}, errors.New("rate_limit.backend is redis but redis is disabled")
		}
		prefix := cfg.Redis.KeyPrefix
		return ephemeral{
			revocations: redisrepo.NewRevocationRepository(client.Client(), prefix),
			otps:        redisrepo.NewOTPRepository(client.Client(), prefix, cfg.Auth.OTPMaxAttempts),
			rateLimits:  redisrepo.NewRateLimitRepository(client.Client(), prefix),
		}, nil
	case "", "memory":
		log.Info("using in-memory token, code and rate-limit state")
		revocations := memory.NewRevocationStore()
		otps := memory.NewOTPStore(cfg.Auth.OTPMaxAttempts)
		rateLimits := memory.NewRateLimitStore()
		return ephemeral{
			revocations: revocations,
			otps:        otps,
			rateLimits:  rateLimits,
			sweepable: map[string]memory.Sweepable{
				"revocations": revocations,
				"otp":         otps,
				"rate_limit":  rateLimits,
			},
		}, nil
	default:
		return ephemeral{}, fmt.Errorf("unknown rate_limit.backend %q", cfg.RateLimit.Backend)
	}
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close(context.Background())

	if a.sweeper != nil {
		a.sweeper.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           otelhttp.NewHandler(a.engine, a.cfg.App.Name),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting DreamWise API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) close(ctx context.Context) {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
