package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/furniture-production-backend/api/controllers"
	batchcontrollers "github.com/angelmondragon/furniture-production-backend/api/controllers/batches"
	materialcontrollers "github.com/angelmondragon/furniture-production-backend/api/controllers/materials"
	ordercontrollers "github.com/angelmondragon/furniture-production-backend/api/controllers/orders"
	productioncontrollers "github.com/angelmondragon/furniture-production-backend/api/controllers/productions"
	"github.com/angelmondragon/furniture-production-backend/api/middleware"
	"github.com/angelmondragon/furniture-production-backend/internal/batches"
	"github.com/angelmondragon/furniture-production-backend/internal/inventory"
	"github.com/angelmondragon/furniture-production-backend/internal/notifications"
	"github.com/angelmondragon/furniture-production-backend/internal/orders"
	"github.com/angelmondragon/furniture-production-backend/internal/production"
	"github.com/angelmondragon/furniture-production-backend/pkg/config"
	"github.com/angelmondragon/furniture-production-backend/pkg/logger"
	"github.com/angelmondragon/furniture-production-backend/pkg/redis"
)

// Dependencies groups the services behind the HTTP surface. Nil services
// answer with an internal error; a nil Redis disables replay protection.
type Dependencies struct {
	Health        map[string]controllers.Pinger
	Redis         *redis.Client
	Gatherer      prometheus.Gatherer
	Orders        orders.Service
	Production    production.Service
	Inventory     inventory.Service
	Forecast      materialcontrollers.Forecaster
	Batches       batches.Service
	Notifications notifications.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Health))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if deps.Redis != nil {
			r.Use(middleware.Idempotency(deps.Redis, cfg.Eventing.HTTPIdempotencyTTL, logg))
		}

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOperator(logg))
				r.Post("/accept", ordercontrollers.Accept(deps.Orders, logg))
				r.Post("/reject", ordercontrollers.Reject(deps.Orders, logg))
				r.Post("/ready-for-delivery", ordercontrollers.ReadyForDelivery(deps.Orders, logg))
				r.Post("/delivered", ordercontrollers.Delivered(deps.Orders, logg))
				r.Get("/material-check", ordercontrollers.MaterialCheck(deps.Orders, logg))
				r.Get("/productions", productioncontrollers.ListByOrder(deps.Production, logg))
			})
		})

		r.Route("/productions/{productionId}", func(r chi.Router) {
			r.Use(middleware.RequireOperator(logg))
			r.Get("/", productioncontrollers.Detail(deps.Production, logg))
			r.Patch("/", productioncontrollers.Patch(deps.Production, logg))
			r.Patch("/processes/{processId}", productioncontrollers.PatchProcess(deps.Production, logg))
		})

		r.Route("/materials/{materialId}", func(r chi.Router) {
			r.Use(middleware.RequireOperator(logg))
			r.Get("/", materialcontrollers.Detail(deps.Inventory, logg))
			r.Post("/adjust", materialcontrollers.Adjust(deps.Inventory, logg))
			r.Get("/forecast", materialcontrollers.Forecast(deps.Forecast, logg))
		})

		r.Route("/products/{productId}/batch-outputs", func(r chi.Router) {
			r.Use(middleware.RequireOperator(logg))
			r.Get("/", batchcontrollers.List(deps.Batches, logg))
			r.Post("/", batchcontrollers.Record(deps.Batches, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	return r
}
