package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atlasbeton/atlasbeton/internal/audit"
	"github.com/atlasbeton/atlasbeton/internal/bank"
	"github.com/atlasbeton/atlasbeton/internal/ledger"
	"github.com/atlasbeton/atlasbeton/internal/observability"
	"github.com/atlasbeton/atlasbeton/internal/recon"
	"github.com/atlasbeton/atlasbeton/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	BankHandler   *bank.Handler
	LedgerHandler *ledger.Handler
	ReconHandler  *recon.Handler
	AuditHandler  *audit.Handler
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.BankHandler != nil {
			api.Route("/bank", params.BankHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			api.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.ReconHandler != nil {
			api.Route("/recon", params.ReconHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			api.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
