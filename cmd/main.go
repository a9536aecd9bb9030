package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/minisource/jobscheduler/config"
	"github.com/minisource/jobscheduler/internal/core"
	"github.com/minisource/jobscheduler/internal/database"
	"github.com/minisource/jobscheduler/internal/executor/httpexec"
	"github.com/minisource/jobscheduler/internal/handler"
	"github.com/minisource/jobscheduler/internal/jobstore/memstore"
	"github.com/minisource/jobscheduler/internal/jobstore/sqlstore"
	"github.com/minisource/jobscheduler/internal/leader"
	"github.com/minisource/jobscheduler/internal/repository"
	"github.com/minisource/jobscheduler/internal/router"
	"github.com/minisource/jobscheduler/internal/service"
	"github.com/minisource/jobscheduler/internal/telemetry/metrics"
	"github.com/minisource/jobscheduler/internal/telemetry/tracing"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	structured, err := config.LoadStructured(getEnv("SCHEDULER_CONFIG_FILE", "config/scheduler.yaml"))
	if err != nil {
		logger.Fatal("failed to load structured config", zap.Error(err))
	}

	db, err := database.NewPostgresConnection(&cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("failed to auto-migrate", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	tracingProvider, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    "otlp-grpc",
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     "dev",
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer tracingProvider.Shutdown(context.Background())

	executionRepo := repository.NewExecutionRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	sched := core.NewScheduler(
		core.WithLogger(logger),
		core.WithPanicHandler(func(recovered any) {
			logger.Error("recovered from panic in scheduler event listener", zap.Any("panic", recovered))
		}),
		core.WithDefaultJobStore(func() core.JobStore { return memstore.New() }),
		core.WithDefaultExecutor(func() core.Executor {
			return httpexec.New(httpexec.Config{
				Workers:        cfg.Scheduler.WorkerCount,
				RequestTimeout: 30 * time.Second,
				MaxRetries:     cfg.Scheduler.MaxRetries,
				RetryDelay:     time.Duration(cfg.Scheduler.RetryDelaySeconds) * time.Second,
			}, http.DefaultClient, httpexec.WithLogger(logger))
		}),
	)

	// Structured config lets an embedder register additional job
	// stores/executors beyond the implicit DefaultAlias pair above
	// (spec.md §9 Design Notes). Declared aliases are wired through a
	// small class switch since Go has no dynamic symbol lookup by name.
	for alias, spec := range structured.Jobstores {
		store, err := buildJobStore(spec, db)
		if err != nil {
			logger.Fatal("failed to build declared job store", zap.String("alias", alias), zap.Error(err))
		}
		if err := sched.AddJobStore(alias, store); err != nil {
			logger.Fatal("failed to register declared job store", zap.String("alias", alias), zap.Error(err))
		}
	}
	for alias, spec := range structured.Executors {
		exec, err := buildExecutor(spec, logger)
		if err != nil {
			logger.Fatal("failed to build declared executor", zap.String("alias", alias), zap.Error(err))
		}
		if err := sched.AddExecutor(alias, exec); err != nil {
			logger.Fatal("failed to register declared executor", zap.String("alias", alias), zap.Error(err))
		}
	}

	sched.Events().Subscribe(metrics.Listener(), core.EventAll)

	jobService := service.NewJobService(sched, core.DefaultAlias)
	executionService := service.NewExecutionService(executionRepo)
	historyService := service.NewHistoryService(historyRepo)

	handlers := &router.Handlers{
		Job:       handler.NewJobHandler(jobService),
		Execution: handler.NewExecutionHandler(executionService),
		History:   handler.NewHistoryHandler(historyService),
		Health:    handler.NewHealthHandler(db, sched),
	}

	app := fiber.New(fiber.Config{
		AppName:      "Minisource Job Scheduler",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	})

	router.SetupRouter(app, handlers)

	startScheduler(ctx, logger, cfg, redisClient, sched)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("starting job scheduler service", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down job scheduler service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := sched.Shutdown(shutdownCtx, true); err != nil {
		logger.Error("scheduler shutdown error", zap.Error(err))
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("job scheduler service stopped")
}

// startScheduler starts the firing loop directly, or behind a Redis
// leader campaign when SCHEDULER_HA is set, so only one replica of a
// multi-instance deployment fires jobs at a time.
func startScheduler(ctx context.Context, logger *zap.Logger, cfg *config.Config, redisClient *redis.Client, sched *core.Scheduler) {
	if !getEnvBool("SCHEDULER_HA", false) {
		if err := sched.Start(ctx); err != nil {
			logger.Fatal("failed to start scheduler", zap.Error(err))
		}
		return
	}

	replicaID := fmt.Sprintf("replica-%d", os.Getpid())
	elector := leader.New(redisClient, "jobscheduler", replicaID,
		time.Duration(cfg.Scheduler.LockTTLSeconds)*time.Second)

	go func() {
		err := elector.Run(ctx, func(leaderCtx context.Context) error {
			metrics.LeaderStatus.Set(1)
			defer metrics.LeaderStatus.Set(0)
			if err := sched.Start(leaderCtx); err != nil {
				return err
			}
			<-leaderCtx.Done()
			return sched.Shutdown(context.Background(), true)
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("leader campaign stopped", zap.Error(err))
		}
	}()
}

// buildJobStore constructs a declared job store by class name. "memory"
// and "postgres" are the two job stores this module ships.
func buildJobStore(spec config.ComponentSpec, db *gorm.DB) (core.JobStore, error) {
	switch spec.Class {
	case "memory":
		return memstore.New(), nil
	case "postgres":
		return sqlstore.New(db), nil
	default:
		return nil, fmt.Errorf("unknown jobstore class %q", spec.Class)
	}
}

// buildExecutor constructs a declared executor by class name. "http" is
// the only executor this module ships; its opts mirror httpexec.Config.
func buildExecutor(spec config.ComponentSpec, logger *zap.Logger) (core.Executor, error) {
	switch spec.Class {
	case "http":
		return httpexec.New(httpexec.Config{
			Workers:        spec.OptInt("workers", 4),
			RequestTimeout: spec.OptDuration("request_timeout", 30*time.Second),
			MaxRetries:     spec.OptInt("max_retries", 3),
			RetryDelay:     spec.OptDuration("retry_delay", time.Second),
		}, http.DefaultClient, httpexec.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown executor class %q", spec.Class)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	return v == "1" || v == "true" || v == "TRUE"
}
