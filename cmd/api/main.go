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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/florist-backend/api/controllers"
	"github.com/angelmondragon/florist-backend/api/routes"
	"github.com/angelmondragon/florist-backend/internal/cart"
	"github.com/angelmondragon/florist-backend/internal/checkout"
	"github.com/angelmondragon/florist-backend/internal/deliveryzones"
	"github.com/angelmondragon/florist-backend/internal/orders"
	"github.com/angelmondragon/florist-backend/internal/paymentmethods"
	"github.com/angelmondragon/florist-backend/internal/stores"
	"github.com/angelmondragon/florist-backend/pkg/config"
	"github.com/angelmondragon/florist-backend/pkg/db"
	"github.com/angelmondragon/florist-backend/pkg/instance"
	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/metrics"
	"github.com/angelmondragon/florist-backend/pkg/migrate"
	"github.com/angelmondragon/florist-backend/pkg/outbox"
	"github.com/angelmondragon/florist-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	// Outside dev redis is mandatory. In dev a missing redis falls back to
	// process memory so the wizard can be exercised without infrastructure.
	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		if !cfg.App.IsDev() {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		logg.Warn(context.Background(), "redis unavailable, using in-memory carts and sessions")
		redisClient = nil
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(reg)
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	var (
		zones    deliveryzones.Provider  = deliveryzones.NewRepository(dbClient.DB())
		pickups  stores.Provider         = stores.NewRepository(dbClient.DB())
		methods  paymentmethods.Provider = paymentmethods.NewRepository(dbClient.DB())
		opener   cart.Opener
		sessions checkout.SessionStore
	)
	if redisClient != nil {
		zones = deliveryzones.NewCached(zones, redisClient, cfg.Reference.CacheTTL, logg)
		pickups = stores.NewCached(pickups, redisClient, cfg.Reference.CacheTTL, logg)
		methods = paymentmethods.NewCached(methods, redisClient, cfg.Reference.CacheTTL, logg)
		opener = cart.NewRedisOpener(redisClient, cfg.Cart.TTL, logg)
		sessions = checkout.NewRedisSessionStore(redisClient, cfg.Checkout.SessionTTL)
	} else {
		opener = cart.NewMemoryOpener(logg)
		sessions = checkout.NewMemorySessionStore()
	}

	cartService, err := cart.NewService(opener)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Sessions: sessions,
		Carts:    opener,
		Gateway:  ordersService,
		Reference: checkout.ReferenceProviders{
			Zones:   zones,
			Stores:  pickups,
			Methods: methods,
		},
		Metrics: checkoutMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{"database": dbClient}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	addr := ":" + cfg.App.Port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			reg,
			httpMetrics,
			readiness,
			redisClient,
			cartService,
			checkoutService,
			routes.ReferenceProviders{Zones: zones, Stores: pickups, Methods: methods},
			ordersService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
