package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/reconforge/api/internal/app"
	"github.com/reconforge/api/internal/config"
	"github.com/reconforge/api/internal/infra/http"
	"github.com/reconforge/api/internal/infra/http/handler"
	"github.com/reconforge/api/internal/infra/jobs"
	"github.com/reconforge/api/internal/infra/postgres"
	"github.com/reconforge/api/internal/infra/redis"
	"github.com/reconforge/api/internal/infra/websocket"
	"github.com/reconforge/api/internal/runner"
	"github.com/reconforge/api/internal/runner/adapters"
	"github.com/reconforge/api/internal/tracing"
	"github.com/reconforge/api/pkg/logger"
	"github.com/reconforge/api/pkg/validator"
)

// @title           ReconForge API
// @version         1.0
// @description     Reconnaissance scan job orchestration API

// @host      localhost:8080
// @BasePath  /api/v1

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	shutdownTracing, err := tracing.Init(ctx, &cfg.Tracing, cfg.App.Name)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error("failed to shut down tracing", "error", err)
		}
	}()

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)

	jobRepo := postgres.NewScanJobRepository(db)
	targetRepo := postgres.NewTargetRepository(db)
	notifier := redis.NewNotifier(redisClient, log)

	jobClient, err := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	if err != nil {
		log.Error("failed to create job client", "error", err)
		return 1
	}
	defer closeWithLog(jobClient, "job client", log)

	// Scan execution
	registry := runner.NewRegistry(adapters.All()...)
	executor := &runner.Executor{GracePeriod: cfg.Scan.GracePeriod}
	spool := runner.NewSpool(cfg.Scan.SpoolDir, log)
	pool := runner.NewPool(registry, executor, spool, cfg.Scan.JobParallelism, log)
	cancels := runner.NewCancelRegistry()

	scanRunner := app.NewScanRunner(jobRepo, targetRepo, pool, cancels, spool, cfg.Scan.Keywords, log)
	scanRunner.SetStatusNotifier(notifier)
	go notifier.RelayCancels(ctx, cancels)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Scan.MaxConcurrentJobs,
	}, scanRunner, log)
	if err != nil {
		log.Error("failed to create worker", "error", err)
		return 1
	}
	if err := worker.Start(); err != nil {
		log.Error("failed to start worker", "error", err)
		return 1
	}

	reaper := jobs.NewReaper(jobRepo, cfg.Scan.StaleAfter, log)
	if err := reaper.Start(); err != nil {
		log.Error("failed to start reaper", "error", err)
		return 1
	}

	// Services and API
	v := validator.New()
	scanJobService := app.NewScanJobService(jobRepo, targetRepo, jobClient, log)
	scanJobService.SetCancelBroadcaster(notifier)
	scanJobService.SetStatusNotifier(notifier)
	targetService := app.NewTargetService(targetRepo, log)

	hub := websocket.NewHub(log)
	go hub.Run(ctx, notifier.SubscribeStatus(ctx))

	server := http.NewServer(cfg, http.Handlers{
		Health:   handler.NewHealthHandler(handler.WithDatabase(db), handler.WithRedis(redisClient)),
		ScanJobs: handler.NewScanJobHandler(scanJobService, v, log),
		Targets:  handler.NewTargetHandler(targetService, v, log),
		WS:       hub,
	}, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	reaper.Stop()
	worker.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

func initLogger(cfg *config.Config) *logger.Logger {
	if cfg.IsDevelopment() {
		return logger.NewDevelopment()
	}
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
