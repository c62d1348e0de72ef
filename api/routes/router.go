package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/payments"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()

	var counters redis.CounterStore
	var redisPinger db.Pinger
	if redisClient != nil {
		counters = redisClient
		redisPinger = redisClient
	}

	clientIPs, err := middleware.NewClientIPResolver(cfg.App.TrustedProxies)
	if err != nil && logg != nil {
		logg.Error(context.Background(), "router.trusted_proxies.invalid", err)
	}

	generalPolicy := middleware.NewRateLimitPolicy("general", cfg.RateLimit.GeneralWindow, cfg.RateLimit.GeneralLimit)
	ordersPolicy := middleware.NewRateLimitPolicy("orders", cfg.RateLimit.OrdersWindow, cfg.RateLimit.OrdersLimit)
	paymentsPolicy := middleware.NewRateLimitPolicy("payments", cfg.RateLimit.PaymentsWindow, cfg.RateLimit.PaymentsLimit)

	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/webhook", stripeWebhookHandler(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(generalPolicy, counters, clientIPs, logg))

			r.Route("/payments", func(r chi.Router) {
				r.With(
					middleware.RateLimit(paymentsPolicy, counters, clientIPs, logg),
					middleware.OptionalAuth(cfg.JWT, logg),
				).Post("/create-payment", paymentcontrollers.CreatePayment(paymentsSvc, logg))
				r.Get("/verify-payment/{paymentIntentId}", paymentcontrollers.VerifyPayment(paymentsSvc, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(
					middleware.RateLimit(ordersPolicy, counters, clientIPs, logg),
					middleware.Auth(cfg.JWT, logg),
				).Post("/", ordercontrollers.Place(ordersSvc, logg))
				r.With(middleware.RateLimit(ordersPolicy, counters, clientIPs, logg)).Post("/guest", ordercontrollers.PlaceGuest(ordersSvc, logg))
				r.With(middleware.Auth(cfg.JWT, logg)).Get("/my", ordercontrollers.Mine(ordersSvc, logg))
				r.With(middleware.Auth(cfg.JWT, logg)).Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
				r.Post("/{orderId}/send-cancel-otp", ordercontrollers.SendCancelOTP(ordersSvc, logg))
				r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersSvc, logg))
			})

			r.Route("/admin/orders", func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, logg), middleware.RequireStaff(logg))
				r.Get("/", ordercontrollers.AdminList(ordersSvc, logg))
				r.Put("/{orderId}/status", ordercontrollers.AdminUpdateStatus(ordersSvc, logg))
				r.Delete("/{orderId}", ordercontrollers.AdminDelete(ordersSvc, logg))
			})
		})
	})

	return r
}

func stripeWebhookHandler(svc *stripewebhook.Service, client *stripe.Client, guard *stripewebhook.IdempotencyGuard, logg *logger.Logger) http.HandlerFunc {
	var (
		handlerSvc webhookcontrollers.StripeWebhookService
		decoder    webhookcontrollers.EventDecoder
		checker    webhookcontrollers.WebhookGuard
	)
	if svc != nil {
		handlerSvc = svc
	}
	if client != nil {
		decoder = client
	}
	if guard != nil {
		checker = guard
	}
	return webhookcontrollers.StripeWebhook(handlerSvc, decoder, checker, logg)
}
