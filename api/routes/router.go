package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/florist-backend/api/controllers"
	"github.com/angelmondragon/florist-backend/api/middleware"
	"github.com/angelmondragon/florist-backend/internal/cart"
	"github.com/angelmondragon/florist-backend/internal/checkout"
	"github.com/angelmondragon/florist-backend/internal/deliveryzones"
	"github.com/angelmondragon/florist-backend/internal/orders"
	"github.com/angelmondragon/florist-backend/internal/paymentmethods"
	"github.com/angelmondragon/florist-backend/internal/stores"
	"github.com/angelmondragon/florist-backend/pkg/config"
	"github.com/angelmondragon/florist-backend/pkg/logger"
	"github.com/angelmondragon/florist-backend/pkg/metrics"
	"github.com/angelmondragon/florist-backend/pkg/redis"
)

// ReferenceProviders are the listing sources behind the public reference routes.
type ReferenceProviders struct {
	Zones   deliveryzones.Provider
	Stores  stores.Provider
	Methods paymentmethods.Provider
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	readiness map[string]controllers.Pinger,
	redisClient *redis.Client,
	cartService cart.Service,
	checkoutService checkout.Service,
	reference ReferenceProviders,
	ordersService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	// A nil *redis.Client must not reach the middleware as a non-nil interface.
	var (
		idempotencyStore middleware.ReplayStore
		limiterStore     middleware.RateLimitStore
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		limiterStore = redisClient
	}
	submitOnce := middleware.Idempotency(idempotencyStore, middleware.IdempotencyPolicy{
		Scope: "checkout_submit",
		TTL:   cfg.Checkout.SubmitIdempotency,
	}, logg)
	adminOnce := middleware.Idempotency(idempotencyStore, middleware.IdempotencyPolicy{Scope: "admin_orders"}, logg)
	submitPolicy := middleware.NewRateLimitPolicy("checkout_submit", cfg.Checkout.SubmitWindow, cfg.Checkout.SubmitLimitPerIP)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if cfg.FeatureFlags.Metrics && gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{productId}", controllers.CartSetQuantity(cartService, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(cartService, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutStart(checkoutService, logg))
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", controllers.CheckoutGet(checkoutService, logg))
				r.Patch("/draft", controllers.CheckoutUpdateDraft(checkoutService, logg))
				r.Post("/advance", controllers.CheckoutAdvance(checkoutService, logg))
				r.Post("/back", controllers.CheckoutBack(checkoutService, logg))
				r.With(
					middleware.RateLimit(submitPolicy, limiterStore, logg),
					submitOnce,
				).Post("/submit", controllers.CheckoutSubmit(checkoutService, logg))
			})
		})

		r.Get("/delivery-zones", controllers.DeliveryZones(reference.Zones, logg))
		r.Get("/pickup-stores", controllers.PickupStores(reference.Stores, logg))
		r.Get("/payment-methods", controllers.PaymentMethods(reference.Methods, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RequireRole(cfg.JWT.AdminRole, logg),
		)
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrdersList(ordersService, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(ordersService, logg))
			r.With(adminOnce).Post("/{orderId}/status", controllers.AdminOrderUpdateStatus(ordersService, logg))
			r.With(adminOnce).Post("/{orderId}/payment-status", controllers.AdminOrderUpdatePaymentStatus(ordersService, logg))
		})
	})

	return r
}
