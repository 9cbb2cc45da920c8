package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/api/rest"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/audit"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
	domainverification "github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/cache"
	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/config"
	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/database"
	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/resilience"
	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/scoring"
	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/secrets"
	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/telemetry"
	twilio "github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/telephony"
	"github.com/davidleathers/fraud-stepup-backend/internal/metrics"
	auditsvc "github.com/davidleathers/fraud-stepup-backend/internal/service/audit"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/challenge"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/fraud"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/pipeline"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/telephony"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/verification"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	provider, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceName:    "fsu-api",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		ExportTimeout:  cfg.Telemetry.ExportTimeout,
		BatchTimeout:   cfg.Telemetry.BatchTimeout,
		MetricInterval: 10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shutdown telemetry", zap.Error(err))
		}
	}()

	registry, err := metrics.NewRegistry("fsu")
	if err != nil {
		return fmt.Errorf("create metrics registry: %w", err)
	}

	db, err := database.NewConnectionPool(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	registry.ObservePoolSize(db.AcquiredConns)

	redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	key, err := secrets.ParseKey(cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("security.encryption_key: %w", err)
	}
	cipher, err := secrets.NewCipher(key)
	if err != nil {
		return err
	}

	realClock := clock.RealClock{}
	promRegistry := newPrometheusRegistry(cfg.Version)

	transactions := database.NewTransactionRepository(db.Pool())
	customers := database.NewCustomerRepository(db.Pool(), cipher, logger)

	recorder := auditsvc.NewRecorder(auditSink(cfg, db, logger), logger, auditsvc.RecorderConfig{
		WriteTimeout: cfg.Audit.WriteTimeout,
		Clock:        realClock,
		Failures:     registry,
	})

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Fraud.BreakerMaxFailures,
		ResetTimeout:     cfg.Fraud.BreakerResetTimeout,
	}, realClock)
	observeBreaker(breaker, "fraud_model", promRegistry, logger)

	var model fraud.ModelClient
	if cfg.Fraud.ModelURL != "" {
		model = scoring.NewClient(cfg.Fraud.ModelURL, cfg.Fraud.ModelTimeout, breaker, logger)
	} else {
		logger.Warn("fraud.model_url not set, scoring with rules only")
	}
	scorer := fraud.NewScorer(model, cache.NewScoreCache(redisClient), registry, logger, fraud.ScorerConfig{
		ModelTimeout: cfg.Fraud.ModelTimeout,
		CacheTTL:     cfg.Fraud.ScoreCacheTTL,
	})

	sessions := verification.NewService(sessionStore(cfg, redisClient, realClock, logger), recorder, registry, realClock, logger, verification.Config{
		MaxAttempts: cfg.Verification.MaxAttempts,
		SessionTTL:  cfg.Verification.SessionTTL,
	})

	dialer, err := newCallProvider(cfg, logger)
	if err != nil {
		return err
	}
	calls := telephony.NewService(dialer, recorder, registry, realClock, logger, telephony.Config{
		FromNumber:    cfg.Telephony.FromNumber,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		CallTimeout:   cfg.Telephony.CallTimeout,
	})

	coordinator := pipeline.NewCoordinator(pipeline.Dependencies{
		Transactions: transactions,
		History:      transactions,
		Customers:    customers,
		Scorer:       scorer,
		Sessions:     sessions,
		Dialer:       calls,
		Audit:        recorder,
		Metrics:      registry,
		Clock:        realClock,
	}, fraud.NewFeatureBuilder(cfg.Fraud.LocationChangeThreshold, cfg.Fraud.Location()), logger, pipeline.Config{
		Threshold:     &cfg.Fraud.Threshold,
		HistoryLimit:  cfg.Fraud.HistoryLimit,
		BlockDuration: cfg.Verification.BlockDuration,
	})
	orchestrator := challenge.NewOrchestrator(sessions, coordinator, logger)

	auth, err := rest.NewAuthMiddleware(rest.AuthConfig{
		JWTSecret: []byte(cfg.Security.JWTSecret),
		Issuer:    cfg.Security.JWTIssuer,
	})
	if err != nil {
		return err
	}

	var validator rest.SignatureValidator
	if cfg.Telephony.Provider == "twilio" && cfg.Telephony.VerifySignatures {
		validator = twilio.NewRequestValidator(cfg.Telephony.AuthToken)
	}

	health := rest.NewHealthService(cfg.Version, 5*time.Second)
	health.Register("database", db.Ping)
	health.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	router := rest.NewRouter(rest.RouterConfig{
		Transactions: rest.NewTransactionHandler(coordinator, cache.NewRateLimiter(redisClient, realClock, logger), rest.RetryLimit{
			Limit:  cfg.Verification.RetryCallLimit,
			Window: cfg.Verification.RetryCallWindow,
		}, realClock, logger),
		Voice:          rest.NewVoiceHandler(orchestrator, calls, validator, cfg.Server.PublicBaseURL, logger),
		Health:         health,
		Auth:           auth,
		RateLimiter:    rest.NewTenantRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst),
		Metrics:        rest.NewHTTPMetrics(promRegistry),
		MetricsHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{Registry: promRegistry}),
		Logger:         logger,
	})

	logger.Info("fraud step-up pipeline ready",
		zap.String("version", cfg.Version),
		zap.Int("threshold", coordinator.Threshold()),
		zap.String("telephony_provider", dialer.GetProviderName()),
		zap.String("session_store", cfg.Verification.Store),
		zap.String("audit_sink", cfg.Audit.Sink))

	server := rest.NewServer(rest.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)
	return server.Run(ctx)
}

func auditSink(cfg *config.Config, db *database.ConnectionPool, logger *zap.Logger) audit.EventRepository {
	if cfg.Audit.Sink == "log" {
		return auditsvc.NewLogRepository(logger)
	}
	return database.NewAuditRepository(db.Pool())
}

func sessionStore(cfg *config.Config, client *redis.Client, c clock.Clock, logger *zap.Logger) domainverification.Store {
	if cfg.Verification.Store == "memory" {
		logger.Warn("verification sessions are held in memory and will not survive a restart")
		return verification.NewMemoryStore(c)
	}
	return cache.NewSessionStore(client, c, logger)
}

func newCallProvider(cfg *config.Config, logger *zap.Logger) (telephony.Provider, error) {
	if cfg.Telephony.Provider == "log" {
		return twilio.NewLogProvider(logger), nil
	}
	p, err := twilio.NewTwilioProvider(twilio.TwilioConfig{
		AccountSID: cfg.Telephony.AccountSID,
		AuthToken:  cfg.Telephony.AuthToken,
		APIBaseURL: cfg.Telephony.APIBaseURL,
		Timeout:    cfg.Telephony.CallTimeout,
		MaxRetries: cfg.Telephony.MaxRetries,
	}, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}
