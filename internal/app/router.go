package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/grandlivre/grandlivre/internal/accounting/chart"
	"github.com/grandlivre/grandlivre/internal/accounting/journals"
	"github.com/grandlivre/grandlivre/internal/accounting/periods"
	"github.com/grandlivre/grandlivre/internal/accounting/reports"
	"github.com/grandlivre/grandlivre/internal/accounting/statements"
	"github.com/grandlivre/grandlivre/internal/accounting/templates"
	"github.com/grandlivre/grandlivre/internal/audit"
	"github.com/grandlivre/grandlivre/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	ChartHandler      *chart.Handler
	JournalsHandler   *journals.Handler
	PeriodsHandler    *periods.Handler
	TemplatesHandler  *templates.Handler
	ReportsHandler    *reports.Handler
	StatementsHandler *statements.Handler
	AuditHandler      *audit.Handler
	JobsHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router for the ledger API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/accounting", func(r chi.Router) {
		if params.ChartHandler != nil {
			params.ChartHandler.MountRoutes(r)
		}
		if params.JournalsHandler != nil {
			params.JournalsHandler.MountRoutes(r)
		}
		if params.PeriodsHandler != nil {
			params.PeriodsHandler.MountRoutes(r)
		}
		if params.TemplatesHandler != nil {
			params.TemplatesHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
		}
		if params.StatementsHandler != nil {
			params.StatementsHandler.MountRoutes(r)
		}
	})

	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}
