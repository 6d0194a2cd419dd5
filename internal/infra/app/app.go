package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-sessions/internal/core/port"
	"github.com/arklim/social-platform-sessions/internal/infra/config"
	"github.com/arklim/social-platform-sessions/internal/infra/database"
	kafkainfra "github.com/arklim/social-platform-sessions/internal/infra/kafka"
	"github.com/arklim/social-platform-sessions/internal/infra/logger"
	redisinfra "github.com/arklim/social-platform-sessions/internal/infra/redis"
	"github.com/arklim/social-platform-sessions/internal/infra/security"
	"github.com/arklim/social-platform-sessions/internal/infra/telemetry"
	"github.com/arklim/social-platform-sessions/internal/repository/memory"
	postgresrepo "github.com/arklim/social-platform-sessions/internal/repository/postgres"
	redisrepo "github.com/arklim/social-platform-sessions/internal/repository/redis"
	"github.com/arklim/social-platform-sessions/internal/transport/http/middleware"
	"github.com/arklim/social-platform-sessions/internal/transport/http/routes"
	"github.com/arklim/social-platform-sessions/internal/usecase"
)

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tracer *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.Enabled {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	nonces, err := security.NewNonceProvider(cfg.Nonce.Secret, cfg.Nonce.Lifetime)
	if err != nil {
		return nil, fmt.Errorf("init nonce provider: %w", err)
	}

	jwtManager, err := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("init jwt manager: %w", err)
	}

	var (
		pool        *pgxpool.Pool
		redisClient *redisinfra.Client
		store       port.SessionStore
		directory   port.UserDirectory
	)

	needRedis := cfg.Storage.Driver == "redis" || cfg.Storage.CacheEnabled
	if needRedis {
		redisClient, err = redisinfra.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
	}

	switch cfg.Storage.Driver {
	case "postgres":
		pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		store = postgresrepo.NewSessionStore(pool)
		directory = postgresrepo.NewUserDirectory(pool)
	case "redis":
		store = redisrepo.NewSessionStore(redisClient.Client(), cfg.Redis.SessionSetPrefix)
		directory = memory.NewUserDirectory()
	case "memory":
		store = memory.NewSessionStore()
		directory = memory.NewUserDirectory()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	gate := security.NewCapabilityGate(nonces)

	sessionService := usecase.NewSessionService(store, gate, directory, eventPublisher, log)
	if cfg.Storage.CacheEnabled && redisClient != nil {
		cache := redisrepo.NewSessionSetCache(redisClient.Client(), cfg.Redis.CachePrefix, cfg.Redis.CacheTTL)
		sessionService.WithSessionSetCache(cache)
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	deps := routes.Dependencies{
		Config:     cfg,
		Logger:     log,
		Sessions:   sessionService,
		Nonces:     nonces,
		JWTManager: jwtManager,
		Metrics:    metrics,
	}
	if pool != nil {
		deps.Database = pool
	}
	if redisClient != nil {
		deps.Cache = redisClient
	}

	engine := routes.Register(deps)

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting session API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("storage_driver", a.cfg.Storage.Driver),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
