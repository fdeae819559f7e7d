package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YOGESHBOTCHA965/W/internal/infra/config"
	"github.com/YOGESHBOTCHA965/W/internal/transport/http/handlers"
	"github.com/YOGESHBOTCHA965/W/internal/transport/http/middleware"
	"github.com/YOGESHBOTCHA965/W/internal/usecase"
)

const (
	authLimitMessage   = "Too many attempts. Please try again in 15 minutes."
	globalLimitMessage = "Too many requests. Please try again later."
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Credentials   *usecase.CredentialService
	PasswordReset *usecase.PasswordResetService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	RateLimiter    *middleware.RateLimiter
	Services       ServiceSet
	HTTPMetrics    *middleware.HTTPMetrics
	MetricsHandler http.Handler
	TracerProvider trace.TracerProvider
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Tracing(middleware.TracingOptions{
		ServiceName:    cfg.App.Name,
		TracerProvider: deps.TracerProvider,
	}))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(deps.HTTPMetrics.Handler())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS([]string{cfg.App.FrontendURL}))
	r.Use(middleware.BodyLimit(cfg.App.BodyLimit))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.NewErrorResponse(c, "Route not found.", handlers.CodeNotFound))
	})

	checks := make(map[string]handlers.ReadinessCheck, 2)
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}
	healthHandler := handlers.NewHealthHandler(checks, log)

	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	api := r.Group("/api")
	api.Use(globalLimit(deps, cfg)...)
	api.GET("/health", healthHandler.Health)

	if deps.Services.Auth != nil {
		errs := handlers.NewErrorResponder(log, cfg.App.IsProduction())
		limited := authLimit(deps, cfg)
		authGroup := api.Group("/auth")

		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Credentials, errs)
		authHandler.RegisterRoutes(authGroup, middleware.RequireAuth(deps.Services.Auth), limited...)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset, errs)
		passwordHandler.RegisterRoutes(authGroup, limited...)
	}

	return r
}

func globalLimit(deps Dependencies, cfg *config.AppConfig) []gin.HandlerFunc {
	return ipLimit(deps, "global_ip", cfg.RateLimit.GlobalMaxRequests, cfg.RateLimit.WindowDuration, globalLimitMessage)
}

func authLimit(deps Dependencies, cfg *config.AppConfig) []gin.HandlerFunc {
	return ipLimit(deps, "auth_ip", cfg.RateLimit.AuthMaxAttempts, cfg.RateLimit.WindowDuration, authLimitMessage)
}

func ipLimit(deps Dependencies, name string, limit int, window time.Duration, message string) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = 15 * time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
		Message:    message,
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
