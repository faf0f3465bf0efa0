package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/rss-broadcaster/internal/api"
	"github.com/notifyhub/rss-broadcaster/internal/broadcast"
	"github.com/notifyhub/rss-broadcaster/internal/config"
	"github.com/notifyhub/rss-broadcaster/internal/db"
	"github.com/notifyhub/rss-broadcaster/internal/feed"
	"github.com/notifyhub/rss-broadcaster/internal/metrics"
	"github.com/notifyhub/rss-broadcaster/internal/ratelimiter"
	"github.com/notifyhub/rss-broadcaster/internal/repository"
	"github.com/notifyhub/rss-broadcaster/internal/service"
	"github.com/notifyhub/rss-broadcaster/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	settings := repository.NewPgSettingsRepository(pool)
	subscribers := repository.NewPgSubscriberRepository(pool)
	queueRepo := repository.NewPgQueueRepository(pool, ratelimiter.New(cfg.QueueWriteRate))

	svc := service.NewBroadcastService(
		broadcast.NewLockManager(settings),
		broadcast.NewSubscriberSource(subscribers, cfg.ScanPageSize, logger),
		broadcast.NewScheduler(broadcast.DefaultRand, logger),
		broadcast.NewBatcher(queueRepo, broadcast.BatcherConfig{
			BatchSize:   cfg.BatchSize,
			MaxAttempts: cfg.BatchMaxAttempts,
		}, logger, broadcast.WithBatchHook(m.BatchHook())),
		cfg.BroadcastTimeout,
		logger,
		service.RunHooks{OnRun: m.RunHook()},
	)

	poller := feed.NewPoller(
		feed.NewGofeedSource(cfg.FeedURL, cfg.FeedTimeout),
		settings,
		svc,
		feed.PollerConfig{
			TemplateID: cfg.TemplateID,
			TagName:    cfg.SubscriberTag,
			TargetTime: cfg.TargetTime,
		},
		logger,
	)

	// ---- feed worker ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	feedW, err := worker.NewFeedWorker(poller, cfg.PollSchedule, cfg.PollOnStart, logger, m.FeedHook())
	if err != nil {
		logger.Fatal("invalid poll schedule", zap.Error(err))
	}
	workerDone := make(chan struct{})
	go func() {
		feedW.Run(workerCtx)
		close(workerDone)
	}()

	// ---- HTTP server ----
	router := api.NewRouter(svc, feedW, pool, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Cancel the running feed check; the broadcast releases its lock
	//    on the way out.
	cancelWorkers()

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("feed worker did not stop before the shutdown timeout")
	}

	logger.Info("server stopped cleanly")
}
