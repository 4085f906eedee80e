// Package main is the entry point of the learning engine worker.
//
// The worker owns the background side of the engine:
//   - schema migrations on startup
//   - the domain event bus, optionally fanned out over Redis
//   - certificate retries for completions whose issuance failed
//   - the stale attempt report and regrading of stranded submissions
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/learning-engine/config"
	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/internal/engine"
	"github.com/alem-hub/learning-engine/internal/infrastructure/external/certificates"
	"github.com/alem-hub/learning-engine/internal/infrastructure/messaging"
	"github.com/alem-hub/learning-engine/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/learning-engine/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/learning-engine/internal/infrastructure/scheduler"
	"github.com/alem-hub/learning-engine/internal/infrastructure/scheduler/jobs"
	opshttp "github.com/alem-hub/learning-engine/internal/interface/http"
	"github.com/alem-hub/learning-engine/internal/interface/http/handlers"
	"github.com/alem-hub/learning-engine/pkg/circuitbreaker"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddCaller: true,
	}).With(logger.String("app", cfg.App.Name), logger.String("instance", cfg.App.InstanceID))
	defer log.Sync()

	log.Info("starting learning engine worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Any("features", cfg.Features.Enabled()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	dbCfg := postgres.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	dbCfg.MaxConns = int32(cfg.Database.MaxConns)
	dbCfg.MinConns = int32(cfg.Database.MinConns)
	dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	db, err := postgres.NewConnection(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		db.Close()
	}()
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(db).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		cache, err = redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   3,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("failed to connect to Redis, running without cache and fan-out", logger.Err(err))
			cache = nil
		} else {
			defer cache.Close()
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	localBus := messaging.InMemoryEventBusConfig{
		AsyncMode:      cfg.Features.IsEnabled(config.FeatureAsyncEvents),
		WorkerPoolSize: cfg.Engine.EventWorkers,
		Logger:         log,
	}

	var bus interface {
		shared.EventBus
		Close() error
	}
	if cache != nil && cfg.Features.IsEnabled(config.FeatureRedisFanout) {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         cache.NewPubSub(),
			ChannelName:    cfg.Redis.EventChannel,
			InstanceID:     cfg.App.InstanceID,
			LocalBusConfig: localBus,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
		bus = redisBus
	} else {
		bus = messaging.NewInMemoryEventBus(localBus)
	}
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	auditLog := log.With(logger.Component("events"))
	if err := bus.SubscribeAll(func(ev shared.Event) error {
		auditLog.Info("domain event",
			logger.String("type", string(ev.EventType())),
			logger.String("aggregate_id", ev.AggregateID()),
			logger.Any("payload", ev.Payload()),
		)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to subscribe audit log: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. CERTIFICATE ISSUER
	// ─────────────────────────────────────────────────────────────────────────
	issuerCfg := certificates.DefaultClientConfig(cfg.Certificates.BaseURL)
	issuerCfg.APIKey = cfg.Certificates.APIKey
	issuerCfg.Timeout = cfg.Certificates.RequestTimeout
	issuerCfg.Logger = log
	issuerCfg.Breaker = circuitbreaker.CertificateServiceBreaker(
		func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
		circuitbreaker.WithFailureThreshold(cfg.Certificates.CircuitBreakerThreshold),
		circuitbreaker.WithTimeout(cfg.Certificates.CircuitBreakerTimeout),
		circuitbreaker.WithIsFailure(certificates.IsOutage),
	)
	issuer, err := certificates.NewClient(issuerCfg)
	if err != nil {
		return fmt.Errorf("failed to create certificate client: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	var catalogReader catalog.Reader = postgres.NewCatalogReader(db)
	if cache != nil && cfg.Features.IsEnabled(config.FeatureCatalogCache) {
		catalogReader = redis.NewCatalogCache(cache, catalogReader, cfg.Engine.CatalogCacheTTL, log)
	}

	clock := timeutil.System()
	enrollments := postgres.NewEnrollmentRepository(db)
	certificateRepo := postgres.NewCertificateRepository(db)
	attempts := postgres.NewAttemptRepository(db)

	eng, err := engine.New(engine.Deps{
		Enrollments:  enrollments,
		Progress:     postgres.NewProgressRepository(db),
		Attempts:     attempts,
		Certificates: certificateRepo,
		Catalog:      catalogReader,
		Issuer:       issuer,
		Publisher:    bus,
		Clock:        clock,
		Logger:       log,
	}, engine.Settings{
		RetryAttempts: cfg.Engine.RetryAttempts,
		RetryDelay:    cfg.Engine.RetryDelay,
		IssueTimeout:  cfg.Certificates.IssueTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to wire engine: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	if cfg.Scheduler.Enabled {
		if cfg.Features.IsEnabled(config.FeatureCertificateRetry) {
			retryCfg := jobs.DefaultCertificateRetryConfig()
			retryCfg.StaleClaimAge = cfg.Scheduler.StaleClaimAge
			retryCfg.BatchSize = cfg.Scheduler.BatchSize
			retryCfg.Timeout = cfg.Scheduler.JobTimeout
			job := jobs.NewCertificateRetryJob(enrollments, certificateRepo, eng, clock, log, retryCfg)
			if err := sched.Register(job, cfg.Scheduler.CertificateRetrySpec); err != nil {
				return fmt.Errorf("failed to register %s: %w", job.Name(), err)
			}
		}
		if cfg.Features.IsEnabled(config.FeatureStaleAttempts) {
			staleCfg := jobs.DefaultStaleAttemptsConfig()
			staleCfg.Timeout = cfg.Scheduler.JobTimeout
			job := jobs.NewStaleAttemptsJob(attempts, eng, bus, clock, log, staleCfg)
			if err := sched.Register(job, cfg.Scheduler.StaleAttemptsSpec); err != nil {
				return fmt.Errorf("failed to register %s: %w", job.Name(), err)
			}
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. OPS ENDPOINT
	// ─────────────────────────────────────────────────────────────────────────
	var ops *opshttp.Server
	var opsErr <-chan error
	if cfg.Observability.HealthEnabled {
		health := handlers.NewCompositeHealthChecker(cfg.App.Version)
		health.AddCheck("postgres", handlers.NewPingCheck(db))
		if cache != nil {
			health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
		}
		if cfg.Scheduler.Enabled {
			health.AddCheck("scheduler", handlers.NewRunningCheck(sched.IsRunning))
		}
		health.AddOptionalCheck("certificates", func(context.Context) error {
			if state := issuer.BreakerState(); state == circuitbreaker.StateOpen {
				return fmt.Errorf("circuit breaker is %s", state)
			}
			return nil
		})

		opsCfg := opshttp.DefaultConfig()
		opsCfg.Host = cfg.Observability.HealthHost
		opsCfg.Port = cfg.Observability.HealthPort
		ops = opshttp.NewServer(opsCfg, opshttp.Dependencies{
			Health: health,
			Jobs: func() any {
				return map[string]any{
					"jobs":    sched.ListJobs(),
					"metrics": sched.GetMetrics().Snapshot(),
				}
			},
			Logger: log,
		})
		opsErr = ops.StartAsync()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("learning engine worker is running")
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	case err := <-opsErr:
		if err != nil {
			log.Error("ops endpoint failed", logger.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if ops != nil {
		if err := ops.Shutdown(shutdownCtx); err != nil {
			log.Warn("ops endpoint did not stop cleanly", logger.Err(err))
		}
	}

	if sched.IsRunning() {
		if err := sched.Stop(shutdownCtx); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Warn("scheduler did not stop cleanly", logger.Err(err))
		}
	}

	log.Info("shutdown completed", logger.Any("scheduler", sched.GetMetrics().Snapshot()))
	return nil
}
