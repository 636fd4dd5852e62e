package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/dealboard/internal/activity"
	"github.com/V4T54L/dealboard/internal/adapter/api"
	"github.com/V4T54L/dealboard/internal/adapter/api/handler"
	"github.com/V4T54L/dealboard/internal/adapter/metrics"
	"github.com/V4T54L/dealboard/internal/adapter/notifier"
	"github.com/V4T54L/dealboard/internal/adapter/pii"
	"github.com/V4T54L/dealboard/internal/adapter/publisher"
	"github.com/V4T54L/dealboard/internal/domain"
	"github.com/V4T54L/dealboard/internal/pipeline"
	"github.com/V4T54L/dealboard/internal/pkg/config"
	"github.com/V4T54L/dealboard/internal/pkg/logger"
	"github.com/V4T54L/dealboard/internal/seed"
	"github.com/V4T54L/dealboard/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Metrics ---
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	reg := domain.DefaultRegistry()
	m := metrics.NewPipelineMetrics(promRegistry, reg)

	// --- Pipeline Store and Views ---
	store := pipeline.NewStore(reg, pipeline.WithLogger(logger))
	piiRedactor := pii.NewRedactor(cfg.PIIRedactionFields, logger)
	feed := activity.NewFeed(reg, cfg.ActivityFeedSize, logger)
	sseBroker := handler.NewSSEBroker(piiRedactor, cfg.SSEClientBuffer, m.SSEClients, logger)

	store.Subscribe(m.Observe)
	store.Subscribe(feed.Observe)
	store.Subscribe(sseBroker.Observe)

	// --- Optional Redis and Kafka Integrations ---
	sinks := notifier.Multi{notifier.NewLogNotifier(logger)}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("could not connect to redis, toasts and change events may be lost", "error", err)
		}

		sinks = append(sinks, notifier.NewRedisNotifier(redisClient, cfg.ToastChannel))

		streamPublisher := publisher.NewRedisStreamPublisher(redisClient, cfg.ChangeStream, cfg.ChangeStreamMaxLen, 0, piiRedactor, logger)
		store.Subscribe(streamPublisher.Observe)
		go streamPublisher.Run(ctx)
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := publisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, piiRedactor, logger)
		store.Subscribe(kafkaPublisher.Observe)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Error("failed to close kafka publisher", "error", err)
			}
		}()
		logger.Info("publishing change events to kafka", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	// --- Seed Data ---
	deals, err := loadSeed(cfg.SeedFile)
	if err != nil {
		logger.Error("failed to load seed deals", "error", err)
		os.Exit(1)
	}
	if err := store.Import(deals...); err != nil {
		logger.Error("failed to import seed deals", "error", err)
		os.Exit(1)
	}

	// --- Use Cases ---
	pipelineUseCase := usecase.NewPipelineUseCase(store, sinks, m, logger)

	// --- Start Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           api.NewAdminRouter(promRegistry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Dashboard Server ---
	// No WriteTimeout: /events responses stay open.
	dashboardServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(cfg, logger, store, pipelineUseCase, feed, sseBroker, piiRedactor, m),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting dashboard server", "addr", dashboardServer.Addr, "deals", store.Len())
		if err := dashboardServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("dashboard server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	sseBroker.Close()
	if err := dashboardServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("dashboard server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}

func loadSeed(path string) ([]domain.Deal, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.LoadFile(path)
}
