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

	"github.com/aqura-labs/pushrelay/internal/api"
	"github.com/aqura-labs/pushrelay/internal/config"
	"github.com/aqura-labs/pushrelay/internal/db"
	"github.com/aqura-labs/pushrelay/internal/delivery"
	"github.com/aqura-labs/pushrelay/internal/evictor"
	"github.com/aqura-labs/pushrelay/internal/metrics"
	"github.com/aqura-labs/pushrelay/internal/processor"
	"github.com/aqura-labs/pushrelay/internal/ratelimiter"
	"github.com/aqura-labs/pushrelay/internal/registry"
	"github.com/aqura-labs/pushrelay/internal/repository"
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

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	subRepo := repository.NewPgSubscriptionRepository(pool)
	queueRepo := repository.NewPgQueueRepository(pool)

	// The agent channel is the only one the server can drive itself;
	// in-process fallbacks need a platform bridge and are wired by
	// embedders that have one.
	agent := delivery.NewAgentChannel(delivery.AgentConfig{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subject:         cfg.VAPIDSubject,
		TTL:             cfg.PushTTL,
		Timeout:         cfg.PushTimeout,
		WaitTimeout:     cfg.AgentWaitTimeout,
	}, logger)
	deliverer := delivery.NewDeliverer(
		[]delivery.Channel{agent},
		ratelimiter.New(cfg.DeliveryRate),
		logger,
	)
	deliverer.OnDelivered(m.DelivererHook())

	ev := evictor.New(subRepo, ratelimiter.New(cfg.SweepRate), logger)
	reg := registry.New(subRepo, ev, logger)

	mat := processor.NewMaterializer(queueRepo, subRepo, logger)
	proc := processor.New(queueRepo, subRepo, deliverer, processor.Config{
		PollInterval: cfg.PollInterval,
		ClaimBatch:   cfg.ClaimBatch,
		RetryBackoff: cfg.RetryBackoff,
		FailedRowTTL: cfg.FailedRowTTL,
	}, m.ProcessorHooks(), logger)
	jan := processor.NewJanitor(queueRepo, cfg.JanitorPeriod, cfg.RetentionDays, logger)

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	proc.Start(workerCtx)
	jan.Start(workerCtx)

	sweeper := evictor.NewSweeper(ev, cfg.SweepInterval, cfg.InactiveDays, logger)
	sweeper.Start(workerCtx)

	collector := metrics.NewCollector(m, queueRepo, subRepo, cfg.MetricsSampleInterval, logger)
	collector.Start(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(reg, ev, mat, proc, jan, promReg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
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

	// 2. Stop the workers; each waits for its in-flight pass to finish.
	proc.Stop()
	jan.Stop()
	sweeper.Stop()
	collector.Stop()

	logger.Info("server stopped cleanly")
}
