package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/settleflow/settleflow-backend/api/controllers"
	ordercontrollers "github.com/settleflow/settleflow-backend/api/controllers/orders"
	settlementcontrollers "github.com/settleflow/settleflow-backend/api/controllers/settlements"
	"github.com/settleflow/settleflow-backend/api/middleware"
	"github.com/settleflow/settleflow-backend/internal/orders"
	"github.com/settleflow/settleflow-backend/internal/settlements"
	"github.com/settleflow/settleflow-backend/pkg/config"
	"github.com/settleflow/settleflow-backend/pkg/logger"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Orders      orders.Service
	Settlements settlements.QueryService
	DeadLetters settlementcontrollers.DLQLister
	Gatherer    prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.NamedPinger{Name: "database", Pinger: p.DB},
			controllers.NamedPinger{Name: "redis", Pinger: p.Redis},
		))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.CreateOrder(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.GetOrder(p.Orders, logg))
		})
		r.Route("/settlements", func(r chi.Router) {
			r.Get("/", settlementcontrollers.ListSettlements(p.Settlements, logg))
			if p.DeadLetters != nil {
				r.Get("/dlq", settlementcontrollers.ListDeadLetters(p.DeadLetters, logg))
			}
			r.Get("/{orderId}", settlementcontrollers.GetSettlement(p.Settlements, logg))
		})
	})

	return r
}
