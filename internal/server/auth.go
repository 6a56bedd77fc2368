package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/ragchat-go/internal/logging"
)

// authMiddleware requires "Authorization: Bearer <apiKey>". An empty apiKey
// disables the check; New warns about that once at startup. The presented
// token never reaches the logs.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		switch {
		case token == "":
			reject(w, r, `Bearer realm="ragchat"`, "Authorization required.", "missing bearer token")
		case subtle.ConstantTimeCompare([]byte(token), want) != 1:
			reject(w, r, `Bearer realm="ragchat", error="invalid_token"`, "Invalid API key.", "invalid bearer token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func reject(w http.ResponseWriter, r *http.Request, challenge, msg, reason string) {
	logging.FromContext(r.Context()).Warn("auth: "+reason, slog.String("path", r.URL.Path))
	w.Header().Set("WWW-Authenticate", challenge)
	writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: msg, Code: "unauthorized"})
}

// bearerToken returns the credential of a Bearer Authorization header, or ""
// when the header is absent or uses another scheme.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
