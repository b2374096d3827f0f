package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmtri/stylehub-backend/api/controllers"
	"github.com/dmtri/stylehub-backend/api/middleware"
	checkoutsvc "github.com/dmtri/stylehub-backend/internal/checkout"
	"github.com/dmtri/stylehub-backend/internal/payment"
	"github.com/dmtri/stylehub-backend/pkg/config"
	"github.com/dmtri/stylehub-backend/pkg/db"
	"github.com/dmtri/stylehub-backend/pkg/logger"
	"github.com/dmtri/stylehub-backend/pkg/metrics"
	redispkg "github.com/dmtri/stylehub-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redispkg.Client,
	checkoutService *checkoutsvc.Service,
	paymentAdapter *payment.Adapter,
	checkoutMetrics *metrics.CheckoutMetrics,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/checkout", controllers.Checkout(checkoutService, logg))
	r.Route("/payment", func(r chi.Router) {
		r.Get("/return", controllers.PaymentReturn(paymentAdapter, checkoutMetrics, logg))
		r.Post("/retry/{orderId}", controllers.PaymentRetry(checkoutService, logg))
	})

	return r
}
