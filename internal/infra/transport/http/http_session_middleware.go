package http

import (
	"context"
	"net/http"

	"github.com/mkrupp/sampleapp/internal/domain"
	context_ "github.com/mkrupp/sampleapp/internal/infra/context"
	"github.com/mkrupp/sampleapp/internal/infra/logging"
)

// SessionResolver maps a session token to the identity it belongs to.
type SessionResolver interface {
	// Resolve returns the identity and true for a live session, false for
	// anonymous requests, and an error only when the lookup itself failed.
	Resolve(ctx context.Context, token string) (domain.Identity, bool, error)
}

// SessionMiddleware creates middleware that resolves the session cookie named
// cookieName on every request. Resolved identities are added to the request
// context; requests without a cookie or with a dead session continue anonymously,
// and a dead session's cookie is expired so the browser stops sending it.
// A failing lookup answers 500 rather than silently logging the user out.
func SessionMiddleware(
	next http.Handler,
	resolver SessionResolver,
	cookieName string,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(cookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)

			return
		}

		identity, ok, err := resolver.Resolve(r.Context(), cookie.Value)
		if err != nil {
			log.ErrorContext(r.Context(), "resolve session failed", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return
		} else if !ok {
			log.DebugContext(r.Context(), "stale session cookie")
			ExpireCookie(w, cookieName)
			next.ServeHTTP(w, r)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithIdentity(r.Context(), identity)))
	})
}

// ExpireCookie tells the browser to drop the cookie named name.
func ExpireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
