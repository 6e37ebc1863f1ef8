package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shoplinkhq/shoplink-backend/api/controllers"
	"github.com/shoplinkhq/shoplink-backend/api/middleware"
	"github.com/shoplinkhq/shoplink-backend/internal/coupons"
	"github.com/shoplinkhq/shoplink-backend/internal/fulfillments"
	"github.com/shoplinkhq/shoplink-backend/internal/modifications"
	"github.com/shoplinkhq/shoplink-backend/internal/orders"
	"github.com/shoplinkhq/shoplink-backend/internal/payments"
	"github.com/shoplinkhq/shoplink-backend/internal/taxes"
	"github.com/shoplinkhq/shoplink-backend/internal/wallets"
	"github.com/shoplinkhq/shoplink-backend/pkg/config"
	"github.com/shoplinkhq/shoplink-backend/pkg/db"
	"github.com/shoplinkhq/shoplink-backend/pkg/logger"
	"github.com/shoplinkhq/shoplink-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	idemStore redis.IdempotencyStore,
	gatherer prometheus.Gatherer,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	walletsSvc wallets.Service,
	couponsSvc coupons.Service,
	taxesSvc taxes.Service,
	modificationsSvc modifications.Service,
	fulfillmentsSvc fulfillments.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Flat registrations keep chi route patterns aligned with the
	// idempotency rules, which match on the full pattern.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Post("/orders", controllers.CreateOrder(ordersSvc, logg))
		r.Get("/orders/{orderId}", controllers.OrderDetail(ordersSvc, logg))
		r.Get("/orders/{orderId}/payment", controllers.OrderPayment(paymentsSvc, logg))
		r.Post("/orders/{orderId}/coupon", controllers.ApplyCoupon(couponsSvc, logg))
		r.Post("/orders/{orderId}/tax", controllers.CalculateOrderTax(taxesSvc, logg))
		r.Post("/orders/{orderId}/modifications", controllers.RequestModification(modificationsSvc, logg))
		r.Get("/orders/{orderId}/fulfillments", controllers.ListOrderFulfillments(fulfillmentsSvc, logg))
		r.Post("/orders/{orderId}/fulfillments", controllers.CreateFulfillment(fulfillmentsSvc, logg))

		r.Post("/payments", controllers.InitiatePayment(paymentsSvc, logg))
		r.Post("/payments/{paymentId}/release", controllers.ReleasePayment(paymentsSvc, logg))
		r.Post("/payments/{paymentId}/refund", controllers.RefundPayment(paymentsSvc, logg))

		r.Post("/wallets/credit", controllers.WalletCredit(walletsSvc, logg))
		r.Post("/wallets/debit", controllers.WalletDebit(walletsSvc, logg))
		r.Post("/wallets/transfer", controllers.WalletTransfer(walletsSvc, logg))
		r.Get("/wallets/{userId}", controllers.WalletDetail(walletsSvc, logg))

		r.Post("/coupons/validate", controllers.ValidateCoupon(couponsSvc, logg))

		r.Post("/modifications/{modificationId}/approve", controllers.ApproveModification(modificationsSvc, logg))
		r.Post("/modifications/{modificationId}/reject", controllers.RejectModification(modificationsSvc, logg))

		r.Post("/fulfillments/{fulfillmentId}/ship", controllers.ShipFulfillment(fulfillmentsSvc, logg))
		r.Post("/fulfillments/{fulfillmentId}/deliver", controllers.DeliverFulfillment(fulfillmentsSvc, logg))
	})

	return r
}
