package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/eaxy/eaxy/internal/platform/httpx"
	"github.com/eaxy/eaxy/internal/shared"
)

type claimsContextKey struct{}

// ContextWithClaims stores verified claims in context.
func ContextWithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts claims stored by RequireToken.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(Claims)
	return claims, ok
}

// Middleware guards routes with bearer tokens.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireToken rejects requests without a valid bearer token.
func (m Middleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.Service.Authorize(r.Context(), httpx.BearerToken(r))
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("rejected token", slog.String("path", r.URL.Path))
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="eaxy"`)
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// RequireAdmin allows only admin claims through. It must run after RequireToken.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		if !claims.IsAdmin() {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
