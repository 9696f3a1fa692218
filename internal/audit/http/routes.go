package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/eaxy/eaxy/internal/auth"
	"github.com/eaxy/eaxy/internal/platform/httpx"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
)

// MountRoutes registers the audit timeline and CSV export. Callers must
// guard the router with auth.Middleware.RequireAdmin.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(exportRateLimit, exportRateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
		}),
	)
	r.Get("/audit", h.handleTimeline)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/audit/export.csv", h.handleExport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Identity != "" {
		return "identity:" + auth.FoldIdentity(claims.Identity), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
