package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradelane/marketpay-backend/api/controllers"
	webhookcontrollers "github.com/tradelane/marketpay-backend/api/controllers/webhooks"
	"github.com/tradelane/marketpay-backend/api/middleware"
	"github.com/tradelane/marketpay-backend/internal/payments"
	"github.com/tradelane/marketpay-backend/internal/payouts"
	"github.com/tradelane/marketpay-backend/pkg/config"
	"github.com/tradelane/marketpay-backend/pkg/db"
	"github.com/tradelane/marketpay-backend/pkg/enums"
	"github.com/tradelane/marketpay-backend/pkg/logger"
	pkgredis "github.com/tradelane/marketpay-backend/pkg/redis"
)

// RouterParams bundles everything NewRouter wires into the handler tree.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *pkgredis.Client
	Payments *payments.Service
	Payouts  *payouts.Engine
	Webhooks webhookcontrollers.IngestService
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, params.DB, params.Redis, logg))
	})

	// Provider deliveries authenticate by signature, not JWT.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(params.Webhooks, logg))
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(params.Webhooks, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(params.Redis, logg))

		r.Post("/{orderId}/pay", controllers.PayOrder(params.Payments, logg))
		r.Get("/{orderId}/payment", controllers.GetOrderPayment(params.Payments, logg))
	})

	r.Route("/api/admin/v1/payments", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.RoleAdmin), logg))
		r.Use(middleware.Idempotency(params.Redis, logg))

		r.Post("/{paymentId}/release", controllers.AdminReleasePayment(params.Payouts, logg))
		r.Post("/{paymentId}/hold", controllers.AdminHoldPayment(params.Payouts, logg))
		r.Post("/{paymentId}/refund", controllers.AdminRefundPayment(params.Payouts, logg))
	})

	return r
}
