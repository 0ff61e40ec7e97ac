package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Adekabang/DigitalID-sub000/internal/infra/config"
	"github.com/Adekabang/DigitalID-sub000/internal/orchestrator"
	"github.com/Adekabang/DigitalID-sub000/internal/transport/http/handlers"
	"github.com/Adekabang/DigitalID-sub000/internal/transport/http/middleware"
	"github.com/Adekabang/DigitalID-sub000/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Identities   *usecase.IdentityService
	Verification *usecase.VerificationService
	Reputation   *usecase.ReputationService
	Moderation   *usecase.ModerationService
	Appeals      *usecase.AppealService
	Claims       *orchestrator.Orchestrator
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
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
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSOrigins))

	if httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err != nil {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	} else {
		r.Use(httpMetrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		writeLimit := rateLimitRule(deps, "write_ip", deps.Config.RateLimit.WriteMaxAttempts, time.Minute)

		identityGroup := api.Group("/identities")
		if deps.Services.Identities != nil {
			identityHandler := handlers.NewIdentityHandler(deps.Services.Identities, deps.Services.Verification)
			if len(writeLimit) > 0 {
				identityGroup.POST("", append(append([]gin.HandlerFunc{}, writeLimit...), identityHandler.Create)...)
				identityGroup.GET("/:did", identityHandler.Status)
				identityGroup.POST("/:did/approvals", identityHandler.Approve)
			} else {
				identityHandler.RegisterRoutes(identityGroup)
			}
		}

		if deps.Services.Reputation != nil {
			reputationHandler := handlers.NewReputationHandler(deps.Services.Reputation, deps.Services.Identities)
			reputationHandler.RegisterRoutes(identityGroup)
		}

		if deps.Services.Claims != nil {
			claimHandler := handlers.NewClaimHandler(deps.Services.Claims, deps.Services.Identities)
			claimGroup := api.Group("/claims")
			claimLimit := rateLimitRule(deps, "claim_submit_ip", deps.Config.RateLimit.ClaimMaxAttempts, time.Minute)
			if len(claimLimit) > 0 {
				claimGroup.POST("", append(append([]gin.HandlerFunc{}, claimLimit...), claimHandler.Submit)...)
				claimGroup.GET("/:id", claimHandler.Get)
			} else {
				claimHandler.RegisterRoutes(claimGroup)
			}
		}

		if deps.Services.Moderation != nil {
			moderationHandler := handlers.NewModerationHandler(deps.Services.Moderation, deps.Services.Identities)
			moderationGroup := api.Group("/moderation")
			moderationHandler.RegisterRoutes(moderationGroup)
			moderationHandler.RegisterIdentityRoutes(identityGroup)
		}

		if deps.Services.Appeals != nil {
			appealHandler := handlers.NewAppealHandler(deps.Services.Appeals, deps.Services.Moderation, deps.Services.Identities)
			appealGroup := api.Group("/appeals")
			appealLimit := rateLimitRule(deps, "appeal_submit_ip", deps.Config.RateLimit.AppealMaxAttempts, time.Hour)
			if len(appealLimit) > 0 {
				appealGroup.POST("", append(append([]gin.HandlerFunc{}, appealLimit...), appealHandler.Submit)...)
				appealGroup.GET("/:id", appealHandler.Get)
				appealGroup.POST("/:id/votes", appealHandler.Vote)
			} else {
				appealHandler.RegisterRoutes(appealGroup)
			}
		}
	}

	return r
}

func rateLimitRule(deps Dependencies, name string, limit int, fallbackWindow time.Duration) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = fallbackWindow
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
