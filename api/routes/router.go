package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mathias-bellec/MkulimaLink-sub002/api/controllers"
	webhookcontrollers "github.com/mathias-bellec/MkulimaLink-sub002/api/controllers/webhooks"
	"github.com/mathias-bellec/MkulimaLink-sub002/api/middleware"
	"github.com/mathias-bellec/MkulimaLink-sub002/internal/orders"
	"github.com/mathias-bellec/MkulimaLink-sub002/internal/prices"
	"github.com/mathias-bellec/MkulimaLink-sub002/internal/products"
	paymentwebhook "github.com/mathias-bellec/MkulimaLink-sub002/internal/webhooks/payment"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/config"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/db"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/logger"
	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/redis"
)

type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Products products.Service
	Prices   prices.Service
	Orders   orders.Service
	Callback *paymentwebhook.Service
	Registry *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config
	logg := deps.Logger

	var idemStore redis.IdempotencyStore
	if deps.Redis != nil {
		idemStore = deps.Redis
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Idempotency(idemStore, logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// The callback route sits outside the idempotency middleware: the
	// webhook service carries its own signature check and dedupe guard.
	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/callback", webhookcontrollers.PaymentCallback(deps.Callback, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.CreateProduct(deps.Products, logg))
			r.Get("/", controllers.ListProducts(deps.Products, logg))
			r.Get("/{productID}", controllers.GetProduct(deps.Products, logg))
			r.Put("/{productID}", controllers.UpdateProduct(deps.Products, logg))
		})

		r.Route("/prices", func(r chi.Router) {
			r.Post("/", controllers.RecordPrice(deps.Prices, logg))
			r.Get("/latest", controllers.LatestPrice(deps.Prices, logg))
			r.Get("/", controllers.ListRegionPrices(deps.Prices, logg))
		})

		// Offline replays post orders here under their create_transaction
		// action type; the handler is the same order creation path.
		r.Post("/transactions", controllers.CreateOrder(deps.Orders, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(deps.Orders, logg))
			r.Get("/", controllers.ListBuyerOrders(deps.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(deps.Orders, logg))
			if deps.Orders != nil {
				r.Post("/{orderID}/confirm", controllers.OrderAction(logg, deps.Orders.Confirm))
				r.Post("/{orderID}/ship", controllers.OrderAction(logg, deps.Orders.Ship))
				r.Post("/{orderID}/deliver", controllers.OrderAction(logg, deps.Orders.Deliver))
			}
			r.Post("/{orderID}/cancel", controllers.CancelOrder(deps.Orders, logg))
			r.Post("/{orderID}/refund", controllers.RefundOrder(deps.Orders, logg))
		})
	})

	return r
}
