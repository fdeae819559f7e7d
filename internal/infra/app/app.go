package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/core/port"
	"github.com/YOGESHBOTCHA965/W/internal/infra/config"
	"github.com/YOGESHBOTCHA965/W/internal/infra/database"
	kafkainfra "github.com/YOGESHBOTCHA965/W/internal/infra/kafka"
	"github.com/YOGESHBOTCHA965/W/internal/infra/logger"
	"github.com/YOGESHBOTCHA965/W/internal/infra/mail"
	redisinfra "github.com/YOGESHBOTCHA965/W/internal/infra/redis"
	"github.com/YOGESHBOTCHA965/W/internal/infra/security"
	"github.com/YOGESHBOTCHA965/W/internal/infra/telemetry"
	memoryrepo "github.com/YOGESHBOTCHA965/W/internal/repository/memory"
	mongorepo "github.com/YOGESHBOTCHA965/W/internal/repository/mongo"
	postgresrepo "github.com/YOGESHBOTCHA965/W/internal/repository/postgres"
	redisrepo "github.com/YOGESHBOTCHA965/W/internal/repository/redis"
	"github.com/YOGESHBOTCHA965/W/internal/transport/http/middleware"
	"github.com/YOGESHBOTCHA965/W/internal/transport/http/routes"
	"github.com/YOGESHBOTCHA965/W/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application owns the HTTP server and every connection opened for it.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	// closers run in reverse order on shutdown.
	closers []func(context.Context) error
}

type userStore struct {
	repo    port.UserRepository
	checker routes.DatabaseChecker
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Name, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.wire(ctx); err != nil {
		a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Application) wire(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	deps := routes.Dependencies{Config: cfg, Logger: log}

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		a.onClose(tp.Shutdown)
		deps.TracerProvider = tp.TracerProvider()
	}

	store, err := a.openUserStore(ctx)
	if err != nil {
		return err
	}
	deps.Database = store.checker

	rateLimitStore, cache, err := a.openRateLimitStore(ctx)
	if err != nil {
		return err
	}
	if cache != nil {
		deps.Cache = cache
	}

	events := a.eventPublisher()
	mailer, err := a.mailer()
	if err != nil {
		return err
	}

	hasher, err := security.NewHasher(cfg.Security.HashAlgorithm, cfg.Security.BcryptCost, security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("init password hasher: %w", err)
	}
	otpHasher, err := security.NewBcryptHasher(cfg.Security.OTPBcryptCost)
	if err != nil {
		return fmt.Errorf("init otp hasher: %w", err)
	}

	jwtManager, err := security.NewJWTManager(security.JWTOptions{
		Issuer:        cfg.JWT.Issuer,
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		ResetSecret:   cfg.JWT.ResetSecret,
		AccessTTL:     cfg.JWT.AccessTokenTTL,
		RefreshTTL:    cfg.JWT.RefreshTokenTTL,
		ResetTTL:      cfg.JWT.ResetTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("init jwt manager: %w", err)
	}

	authMetrics, err := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init auth metrics: %w", err)
	}
	deps.HTTPMetrics, err = middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	validator := usecase.NewInputValidator(security.NewPasswordPolicy(cfg.Security.MinPasswordScore))
	credentials := usecase.NewCredentialService(store.repo, hasher, validator, events, log)
	tokens := usecase.NewTokenService(jwtManager, store.repo, events, authMetrics, log)
	otp := usecase.NewOTPService(store.repo, otpHasher, mailer, time.Duration(cfg.OTP.ExpiryMinutes)*time.Minute, log)
	lockout := usecase.NewLockoutPolicy(cfg.Lockout.MaxAttempts, cfg.Lockout.Duration)

	deps.Services = routes.ServiceSet{
		Auth:          usecase.NewAuthService(store.repo, credentials, tokens, lockout, validator, events, authMetrics, log),
		Credentials:   credentials,
		PasswordReset: usecase.NewPasswordResetService(store.repo, credentials, otp, tokens, hasher, validator, events, authMetrics, log),
	}
	deps.RateLimiter = middleware.NewRateLimiter(rateLimitStore, log)

	a.engine = routes.Register(deps)
	return nil
}

func (a *Application) openUserStore(ctx context.Context) (userStore, error) {
	cfg, log := a.cfg, a.logger

	switch cfg.Store.Driver {
	case config.StoreMongo:
		client, err := database.NewMongoClient(ctx, cfg.Mongo, log)
		if err != nil {
			return userStore{}, fmt.Errorf("init mongo: %w", err)
		}
		a.onClose(client.Disconnect)

		repo := mongorepo.NewUserRepository(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		if err := repo.EnsureIndexes(ctx); err != nil {
			return userStore{}, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return userStore{repo: repo, checker: repo}, nil

	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			return userStore{}, fmt.Errorf("init postgres: %w", err)
		}
		a.onClose(func(context.Context) error {
			pool.Close()
			return nil
		})

		if err := postgresrepo.EnsureSchema(ctx, pool); err != nil {
			return userStore{}, fmt.Errorf("ensure postgres schema: %w", err)
		}
		return userStore{repo: postgresrepo.NewUserRepository(pool), checker: pool}, nil

	default:
		log.Warn("using in-memory user store, accounts are lost on restart")
		return userStore{repo: memoryrepo.NewUserRepository()}, nil
	}
}

func (a *Application) openRateLimitStore(ctx context.Context) (port.RateLimitStore, *redisinfra.Client, error) {
	cfg, log := a.cfg, a.logger

	if !cfg.Redis.Enabled {
		log.Info("redis disabled, rate limits are kept in process memory")
		return memoryrepo.NewRateLimitStore(), nil, nil
	}

	client, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis: %w", err)
	}
	a.onClose(func(context.Context) error { return client.Close() })

	window := cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = 15 * time.Minute
	}
	store := redisrepo.NewRateLimitRepository(client.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.KeyPrefix,
		TTL:       window * 2,
	})
	return store, client, nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	cfg, log := a.cfg, a.logger

	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}
	a.onClose(func(context.Context) error { return producer.Close() })

	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, log)
}

func (a *Application) mailer() (port.OTPMailer, error) {
	cfg, log := a.cfg, a.logger

	if cfg.SMTP.Host == "" {
		log.Info("smtp not configured, reset codes go to the log")
		return mail.NewConsoleMailer(log, cfg.App.IsProduction()), nil
	}

	m, err := mail.NewSMTPMailer(cfg.SMTP, log)
	if err != nil {
		return nil, fmt.Errorf("init smtp mailer: %w", err)
	}
	return m, nil
}

func (a *Application) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *Application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// Handler exposes the routed engine, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.engine
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting WOW auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("store", a.cfg.Store.Driver),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case runErr = <-serverErrCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown server: %w", err)
	}
	a.close(shutdownCtx)
	return runErr
}
