package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/grandlivre/grandlivre/internal/accounting/reports"
	"github.com/grandlivre/grandlivre/internal/accounting/statements"
	"github.com/grandlivre/grandlivre/internal/app"
	"github.com/grandlivre/grandlivre/internal/platform/cache"
	"github.com/grandlivre/grandlivre/internal/platform/db"
	"github.com/grandlivre/grandlivre/jobs"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, statement cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	mappingSet, err := statements.LoadFile(cfg.StatementsPath)
	if err != nil {
		logger.Error("load statement mappings", slog.Any("error", err))
		os.Exit(1)
	}

	reportsService := reports.NewService(reports.NewRepository(pool))
	stmtCache := statements.NewCache(redisClient, cfg.StatementCacheTTL)
	if err := stmtCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("statement cache subscription", slog.Any("error", err))
	}
	stmtService := statements.NewService(reportsService, statements.NewMapper(mappingSet), stmtCache, logger)

	scanner := jobs.NewIntegrityScanner(pool, logger)
	warmer := jobs.NewStatementWarmer(stmtService, logger)

	scanTask, err := jobs.NewIntegrityScanTask(jobs.IntegrityScanPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: scanner.HandleTask},
			{Type: jobs.TaskStatementWarmup, Handler: warmer.HandleTask},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
