package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/lanecalc/api/controllers"
	"github.com/angelmondragon/lanecalc/api/controllers/lanes"
	"github.com/angelmondragon/lanecalc/api/middleware"
	"github.com/angelmondragon/lanecalc/pkg/config"
	"github.com/angelmondragon/lanecalc/pkg/db"
	"github.com/angelmondragon/lanecalc/pkg/idempotency"
	"github.com/angelmondragon/lanecalc/pkg/logger"
	"github.com/angelmondragon/lanecalc/pkg/redis"
)

// TransactionStore serves finalized transactions to the API.
type TransactionStore interface {
	lanes.History
	controllers.TransactionReader
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	sessions lanes.Sessions,
	store TransactionStore,
	guard *idempotency.Manager,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisP,
		}))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/lanes/{laneID}", func(r chi.Router) {
		r.Use(middleware.Lane(logg))

		// Tenders reach the terminal, returns emit refunds and hold/void move
		// snapshots out of the session, so a retry must not repeat them.
		var replays middleware.ReplayGuard
		if guard != nil {
			replays = guard
		}
		idem := middleware.Idempotent(replays, logg)

		r.Route("/transaction", func(r chi.Router) {
			r.Get("/", lanes.Current(sessions, logg))
			r.Post("/scans", lanes.Scan(sessions, logg))
			r.Post("/discounts", lanes.Discount(sessions, logg))
			r.Put("/customer", lanes.AssignCustomer(sessions, logg))
			r.With(idem).Post("/payments", lanes.Pay(sessions, logg))
			r.With(idem).Post("/hold", lanes.Hold(sessions, logg))
			r.With(idem).Post("/void", lanes.Void(sessions, logg))
		})

		r.Route("/held", func(r chi.Router) {
			r.Get("/", lanes.Held(sessions, logg))
			r.With(idem).Post("/{transactionID}/recall", lanes.Recall(sessions, logg))
			r.With(idem).Post("/{transactionID}/void", lanes.VoidHeld(sessions, logg))
		})

		r.Get("/transactions", lanes.Transactions(store, logg))
		r.With(idem).Post("/transactions/{transactionID}/returns", lanes.Return(sessions, logg))
	})

	r.Route("/api/v1/transactions", func(r chi.Router) {
		r.Get("/{transactionID}", controllers.TransactionGet(store, logg))
	})

	return r
}
