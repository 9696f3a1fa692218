package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/eaxy/eaxy/internal/audit/http"
	"github.com/eaxy/eaxy/internal/auth"
	"github.com/eaxy/eaxy/internal/ledger"
	"github.com/eaxy/eaxy/internal/observability"
	"github.com/eaxy/eaxy/internal/platform/httpx"
	"github.com/eaxy/eaxy/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthHandler    *auth.Handler
	AuthMiddleware auth.Middleware
	LedgerHandler  *ledger.Handler
	AuditHandler   *audithttp.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
	// AccessLog enables chi's request logger.
	AccessLog bool
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.AccessLog {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusOK, map[string]bool{"ok": true})
		})
		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireToken)
			if params.LedgerHandler != nil {
				params.LedgerHandler.MountRoutes(r)
			}
			r.Route("/admin", func(r chi.Router) {
				r.Use(params.AuthMiddleware.RequireAdmin)
				if params.LedgerHandler != nil {
					params.LedgerHandler.MountAdminRoutes(r)
				}
				params.AuditHandler.MountRoutes(r)
				if params.JobHandler != nil {
					r.Post("/backup", params.JobHandler.HandleEnqueueBackup)
				}
			})
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
