package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
	"github.com/Adekabang/DigitalID-sub000/internal/infra/config"
	"github.com/Adekabang/DigitalID-sub000/internal/infra/database"
	kafkainfra "github.com/Adekabang/DigitalID-sub000/internal/infra/kafka"
	"github.com/Adekabang/DigitalID-sub000/internal/infra/kyc"
	"github.com/Adekabang/DigitalID-sub000/internal/infra/logger"
	redisinfra "github.com/Adekabang/DigitalID-sub000/internal/infra/redis"
	"github.com/Adekabang/DigitalID-sub000/internal/infra/telemetry"
	"github.com/Adekabang/DigitalID-sub000/internal/orchestrator"
	postgresrepo "github.com/Adekabang/DigitalID-sub000/internal/repository/postgres"
	redisrepo "github.com/Adekabang/DigitalID-sub000/internal/repository/redis"
	"github.com/Adekabang/DigitalID-sub000/internal/transport/http/middleware"
	"github.com/Adekabang/DigitalID-sub000/internal/transport/http/routes"
	"github.com/Adekabang/DigitalID-sub000/internal/usecase"
)

// claimTopic is the bus topic the orchestrator consumes claim submissions
// from. It already carries the service prefix.
const claimTopic = "digitalid.claim.submitted"

type Application struct {
	cfg       *config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	orch      *orchestrator.Orchestrator
	consumer  *kafkainfra.ConsumerGroup
	handler   *kafkainfra.ClaimConsumer
	telemetry *telemetry.Provider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tel, err := telemetry.Attach(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

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

	reputationService := usecase.NewReputationService(repos.Reputation, eventPublisher, log)
	identityService := usecase.NewIdentityService(repos.Identities, reputationService, log)
	verificationService := usecase.NewVerificationService(repos.Identities, eventPublisher, log)
	moderationService := usecase.NewModerationService(repos.Identities, repos.Moderation, reputationService, eventPublisher, cfg.Moderation.Moderators, log)
	appealService := usecase.NewAppealService(repos.Appeals, moderationService, reputationService, eventPublisher, log)

	var provider port.KYCProvider
	if cfg.KYC.StubMode || cfg.KYC.BaseURL == "" {
		log.Info("using stub kyc provider", zap.Bool("approve_all", cfg.KYC.StubApproveAll))
		provider = kyc.NewStubProvider(cfg.KYC.StubApproveAll, log)
	} else {
		provider = kyc.NewClient(cfg.KYC, log)
	}

	claimGuard := redisrepo.NewClaimGuardStore(redisClient.Client(), cfg.Redis.ClaimGuardPrefix, cfg.Redis.ClaimGuardTTL)

	orch := orchestrator.New(
		repos.Claims,
		repos.Identities,
		verificationService,
		provider,
		claimGuard,
		eventPublisher,
		log,
		orchestrator.Config{
			ProviderVerifierID: cfg.KYC.VerifierID,
			ProcessTimeout:     cfg.Orchestrator.ProcessTimeout,
			MaxInFlight:        cfg.Orchestrator.MaxInFlight,
			MaxAttempts:        cfg.Orchestrator.MaxAttempts,
			RetryBaseDelay:     cfg.Orchestrator.RetryBaseDelay,
			RetryMaxDelay:      cfg.Orchestrator.RetryMaxDelay,
			SweepInterval:      cfg.Orchestrator.SweepInterval,
			SweepGrace:         cfg.Orchestrator.SweepGrace,
			SweepBatchSize:     cfg.Orchestrator.SweepBatchSize,
			ArchiveInterval:    cfg.Orchestrator.ArchiveInterval,
			ArchiveAfter:       cfg.Orchestrator.ArchiveAfter,
		},
	)

	var consumerGroup *kafkainfra.ConsumerGroup
	var claimConsumer *kafkainfra.ClaimConsumer
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.ConsumerGroup != "" {
		consumerGroup, err = kafkainfra.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, []string{claimTopic}, log)
		if err != nil {
			log.Warn("failed to join kafka consumer group, relying on sweep recovery", zap.Error(err))
			consumerGroup = nil
		} else {
			claimConsumer = kafkainfra.NewClaimConsumer(orch, log)
		}
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})

	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Identities:   identityService,
			Verification: verificationService,
			Reputation:   reputationService,
			Moderation:   moderationService,
			Appeals:      appealService,
			Claims:       orch,
		},
	})

	return &Application{
		cfg:       cfg,
		engine:    engine,
		logger:    log,
		pool:      pool,
		redis:     redisClient,
		orch:      orch,
		consumer:  consumerGroup,
		handler:   claimConsumer,
		telemetry: tel,
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
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

	a.logger.Info("starting DigitalID API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.orch.Run(ctx)
	})

	if a.consumer != nil && a.handler != nil {
		g.Go(func() error {
			return a.consumer.Run(ctx, a.handler)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		if a.consumer != nil {
			_ = a.consumer.Close()
		}
		return nil
	})

	return g.Wait()
}
