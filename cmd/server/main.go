package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/config"
	"github.com/mamadbah2/flockwatch/internal/repository/mongodb"
	redisrepo "github.com/mamadbah2/flockwatch/internal/repository/redis"
	"github.com/mamadbah2/flockwatch/internal/repository/sheets"
	"github.com/mamadbah2/flockwatch/internal/scheduler"
	"github.com/mamadbah2/flockwatch/internal/server/handlers"
	"github.com/mamadbah2/flockwatch/internal/server/router"
	"github.com/mamadbah2/flockwatch/internal/service/aggregation"
	"github.com/mamadbah2/flockwatch/internal/service/alerts"
	commandsvc "github.com/mamadbah2/flockwatch/internal/service/commands"
	"github.com/mamadbah2/flockwatch/internal/service/insights"
	reportingsvc "github.com/mamadbah2/flockwatch/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/flockwatch/internal/service/whatsapp"
	"github.com/mamadbah2/flockwatch/pkg/clients/anthropic"
	whatsappclient "github.com/mamadbah2/flockwatch/pkg/clients/whatsapp"
	"github.com/mamadbah2/flockwatch/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	mongoRepo, err := mongodb.NewMongoDBRepository(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := mongoRepo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	// Alert and insight state live in Redis when configured so acknowledgements
	// survive restarts and are shared across instances.
	var (
		alertStates   alerts.StateStore   = redisrepo.NewMemoryStateStore()
		insightStates insights.StateStore = redisrepo.NewMemoryStateStore()
		locker        aggregation.Locker
	)
	if cfg.Redis.Enabled() {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			baseLogger.Fatal("failed to reach redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()

		alertStates = redisrepo.NewStateStore(rdb, "alert")
		insightStates = redisrepo.NewStateStore(rdb, "insight")
		locker = redisrepo.NewBatchLocker(rdb, cfg.Monitoring.LockTTL, baseLogger.Named("repo.redis"))
		baseLogger.Info("redis state store enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		baseLogger.Warn("redis not configured, alert state kept in memory")
	}

	var journal aggregation.Journal
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sheetJournal := sheets.NewJournal(sheetsRepo)
		if err := sheetJournal.EnsureHeader(context.Background()); err != nil {
			baseLogger.Warn("could not prepare journal sheet", zap.Error(err))
		}
		journal = sheetJournal
		baseLogger.Info("report journal enabled")
	}

	aggregator := aggregation.NewService(mongoRepo, journal, locker, baseLogger.Named("svc.aggregation"))
	aggregator.SetMaxAttempts(cfg.Monitoring.MaxConflictRetries)

	alertEngine := alerts.NewEngine(mongoRepo, alertStates, cfg.Rules.Alerts, baseLogger.Named("svc.alerts"))
	alertEngine.SetRecentReportLimit(cfg.Monitoring.RecentReportLimit)
	insightEngine := insights.NewEngine(mongoRepo, insightStates, cfg.Rules.Insights, baseLogger.Named("svc.insights"))
	reportingSvc := reportingsvc.NewService(mongoRepo, baseLogger.Named("svc.reporting"))

	h := router.Handlers{
		Batches:    handlers.NewBatchHandler(aggregator, baseLogger.Named("handlers.batches")),
		Monitoring: handlers.NewMonitoringHandler(alertEngine, insightEngine, baseLogger.Named("handlers.monitoring")),
	}

	var (
		weeklyReporter scheduler.WeeklyReporter
		messenger      scheduler.Messenger
	)
	if cfg.WhatsApp.Enabled() {
		commandDispatcher := commandsvc.NewService(aggregator, baseLogger.Named("svc.commands"))
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, commandDispatcher, baseLogger.Named("svc.whatsapp"))
		h.Webhook = handlers.NewWebhookHandler(messagingSvc, baseLogger.Named("handlers.whatsapp"))

		if cfg.WhatsApp.ManagerID != "" {
			alertEngine.SetNotifier(messagingSvc)
			weeklyReporter, messenger = reportingSvc, messagingSvc

			var summarizer insights.Summarizer
			if cfg.AI.AnthropicKey != "" {
				summarizer = anthropic.NewClient(cfg.AI.AnthropicKey)
				baseLogger.Info("anthropic digest summaries enabled")
			}
			insightEngine.SetDigest(summarizer, messagingSvc)
		}
	} else {
		baseLogger.Warn("whatsapp credentials missing, field commands and notifications disabled")
	}

	engine := router.New(h, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(*cfg, alertEngine, insightEngine, weeklyReporter, messenger, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
