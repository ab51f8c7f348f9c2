package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rencana-app/rencana/internal/ahsp"
	"github.com/rencana-app/rencana/internal/auth"
	"github.com/rencana-app/rencana/internal/masterdata/items"
	"github.com/rencana-app/rencana/internal/masterdata/regions"
	"github.com/rencana-app/rencana/internal/masterdata/units"
	"github.com/rencana-app/rencana/internal/observability"
	"github.com/rencana-app/rencana/internal/pricing"
	"github.com/rencana-app/rencana/internal/project"
	"github.com/rencana-app/rencana/internal/project/analyses"
	"github.com/rencana-app/rencana/internal/project/boq"
	"github.com/rencana-app/rencana/internal/project/rollup"
	"github.com/rencana-app/rencana/internal/shared"
	"github.com/rencana-app/rencana/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	AuthHandler     *auth.Handler
	UnitsHandler    *units.Handler
	ItemsHandler    *items.Handler
	RegionsHandler  *regions.Handler
	PricingHandler  *pricing.Handler
	AHSPHandler     *ahsp.Handler
	ProjectHandler  *project.Handler
	AnalysesHandler *analyses.Handler
	BoqHandler      *boq.Handler
	RollupHandler   *rollup.Handler
	UsersHandler    *users.Handler
}

// NewRouter constructs the chi.Router with the Rencana defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Route("/masterdata", func(r chi.Router) {
			r.Route("/units", params.UnitsHandler.MountRoutes)
			r.Route("/items", params.ItemsHandler.MountRoutes)
			r.Route("/regions", params.RegionsHandler.MountRoutes)
		})

		params.PricingHandler.MountRoutes(r)

		r.Route("/ahsp", params.AHSPHandler.MountRoutes)

		r.Route("/projects", func(r chi.Router) {
			params.ProjectHandler.MountRoutes(r)
			r.Route("/{id}", func(r chi.Router) {
				r.Route("/analyses", params.AnalysesHandler.MountRoutes)
				params.BoqHandler.MountProjectRoutes(r)
				params.RollupHandler.MountRoutes(r)
			})
		})

		params.BoqHandler.MountRootRoutes(r)

		r.Route("/users", params.UsersHandler.MountRoutes)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
