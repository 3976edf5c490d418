package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/luzgui1/localwhisper/internal/logging"
)

// authMiddleware enforces "Authorization: Bearer <apiKey>" on protected
// routes. An empty apiKey disables auth entirely (local development); the
// startup path logs a warning for that case so it never passes silently.
// Token values are never logged.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())

		token := bearerToken(r)
		switch {
		case token == "":
			log.Warn("auth: missing Authorization header", slog.String("path", r.URL.Path))
			challenge(w, `Bearer realm="localwhisper"`, "authorization required")
		case token != apiKey:
			log.Warn("auth: invalid token", slog.String("path", r.URL.Path))
			challenge(w, `Bearer realm="localwhisper" error="invalid_token"`, "invalid token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// challenge writes a 401 with the given WWW-Authenticate value.
func challenge(w http.ResponseWriter, wwwAuth, msg string) {
	w.Header().Set("WWW-Authenticate", wwwAuth)
	http.Error(w, msg, http.StatusUnauthorized)
}

// bearerToken pulls the token out of an "Authorization: Bearer <token>"
// header, returning "" for absent or non-Bearer headers.
func bearerToken(r *http.Request) string {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
