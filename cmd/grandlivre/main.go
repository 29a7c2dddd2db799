package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/grandlivre/grandlivre/internal/accounting/chart"
	"github.com/grandlivre/grandlivre/internal/accounting/journals"
	"github.com/grandlivre/grandlivre/internal/accounting/periods"
	"github.com/grandlivre/grandlivre/internal/accounting/reports"
	"github.com/grandlivre/grandlivre/internal/accounting/statements"
	"github.com/grandlivre/grandlivre/internal/accounting/templates"
	"github.com/grandlivre/grandlivre/internal/app"
	"github.com/grandlivre/grandlivre/internal/audit"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// A missing Redis only disables caching; the API still serves.
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

	templateSet, err := templates.LoadFile(cfg.TemplatesPath)
	if err != nil {
		logger.Error("load entry templates", slog.Any("error", err))
		os.Exit(1)
	}
	mappingSet, err := statements.LoadFile(cfg.StatementsPath)
	if err != nil {
		logger.Error("load statement mappings", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := audit.NewLogger(dbpool)
	auditHandler := audit.NewHandler(logger, audit.NewService(dbpool))

	chartRepo := chart.NewRepository(dbpool)
	chartHandler := chart.NewHandler(logger, chartRepo)

	journalsRepo := journals.NewRepository(dbpool)
	journalsService := journals.NewService(journalsRepo, auditLogger)

	periodsRepo := periods.NewRepository(dbpool)
	periodsService := periods.NewService(periodsRepo, auditLogger)
	periodsHandler := periods.NewHandler(logger, periodsService)

	engine := templates.NewEngine(templateSet)
	templatesHandler := templates.NewHandler(logger, engine, chartRepo, journalsService)

	reportsRepo := reports.NewRepository(dbpool)
	reportsService := reports.NewService(reportsRepo)
	formatter := reports.NewFormatter(cfg.Locale, cfg.Currency)
	reportsHandler := reports.NewHandler(logger, reportsService, formatter)

	stmtCache := statements.NewCache(redisClient, cfg.StatementCacheTTL)
	if err := stmtCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("statement cache subscription", slog.Any("error", err))
	}
	stmtService := statements.NewService(reportsService, statements.NewMapper(mappingSet), stmtCache, logger)
	statementsHandler := statements.NewHandler(logger, stmtService)

	journalsHandler := journals.NewHandler(logger, journalsService, journalsRepo, stmtService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		ChartHandler:      chartHandler,
		JournalsHandler:   journalsHandler,
		PeriodsHandler:    periodsHandler,
		TemplatesHandler:  templatesHandler,
		ReportsHandler:    reportsHandler,
		StatementsHandler: statementsHandler,
		AuditHandler:      auditHandler,
		JobsHandler:       jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
