package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/florist-backend/internal/notifications"
	"github.com/angelmondragon/florist-backend/pkg/config"
	"github.com/angelmondragon/florist-backend/pkg/instance"
	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/metrics"
	"github.com/angelmondragon/florist-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/florist-backend/pkg/pubsub"
	"github.com/angelmondragon/florist-backend/pkg/redis"
)

const serviceName = "notifications-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, pubsub.Checks{Subscription: true}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		_ = redisClient.Close()
		os.Exit(1)
	}

	defer func() {
		if err := multierr.Combine(pubsubClient.Close(), redisClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing worker clients", err)
		}
	}()

	var mailer notifications.Mailer
	if cfg.Sendgrid.Enabled() {
		sg, err := notifications.NewSendGridMailer(cfg.Sendgrid, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create sendgrid mailer", err)
			os.Exit(1)
		}
		mailer = sg
	} else {
		logg.Warn(context.Background(), "sendgrid not configured, emails will only be logged")
		mailer = notifications.NewLogMailer(logg)
	}

	reg := prometheus.NewRegistry()
	mailService, err := notifications.NewService(mailer, cfg.Sendgrid.ShopEmail, metrics.NewMailMetrics(reg), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	consumer, err := notifications.NewConsumer(mailService, pubsubClient.NotificationsSubscription(), manager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Logger:   logg,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  serviceName,
		"subscription": cfg.PubSub.NotificationsSubscription,
		"instance":     instance.GetID(),
	})

	if cfg.FeatureFlags.Metrics {
		metricsServer := &http.Server{Addr: ":" + cfg.App.Port, Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics server stopped", err)
			}
		}()
		defer func() {
			_ = metricsServer.Shutdown(context.Background())
		}()
	}

	logg.Info(ctx, "starting notifications worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notifications worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "notifications worker shutting down gracefully")
}
