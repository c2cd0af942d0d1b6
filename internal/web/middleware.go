package web

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/auth"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/pkg/utilities"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// ScopeMiddleware opens the auth scope of each request: a request id and the
// cookie jar holding the caller's tokens.
func ScopeMiddleware(opts identity.CookieOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 64 {
				id = utilities.NewRequestID()
			}
			w.Header().Set(RequestIDHeader, id)
			jar := identity.NewCookieJar(w, r, opts)
			sc := auth.NewScope(r.Context(), id, jar)
			next.ServeHTTP(w, r.WithContext(auth.WithScope(r.Context(), sc)))
		})
	}
}

// scope returns the request's auth scope, opening a cookie-less one when the
// middleware did not run.
func scope(r *http.Request) *auth.Scope {
	if sc, ok := auth.ScopeFromContext(r.Context()); ok {
		return sc
	}
	return auth.NewScope(r.Context(), utilities.NewRequestID(), nil)
}

// Protected renders next only for authenticated callers; the admitted user
// is available through auth.UserFromContext. Everyone else gets a redirect
// before next runs.
func Protected(g *auth.Guard, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := scope(r)
			d := g.Protected(sc)
			if !d.Allowed() {
				logger.Debugw("redirecting anonymous caller", "request_id", sc.ID(), "path", r.URL.Path, "target", d.Target())
				redirect(w, d.Target())
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), d.User())))
		})
	}
}

// AuthSurface renders next only for callers without a live session.
func AuthSurface(g *auth.Guard, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := scope(r)
			d := g.AuthSurface(sc)
			if !d.Allowed() {
				logger.Debugw("redirecting signed-in caller", "request_id", sc.ID(), "path", r.URL.Path, "target", d.Target())
				redirect(w, d.Target())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// redirect answers 302 with no body.
func redirect(w http.ResponseWriter, target string) {
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusFound)
}
