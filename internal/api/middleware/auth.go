package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const tokenContextKey contextKey = "token"

// Token puts the caller's bearer token (a session or creator token) in the
// request context. Tokens are opaque here; services decide what they grant.
func Token(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := extractToken(r); token != "" {
			r = r.WithContext(context.WithValue(r.Context(), tokenContextKey, token))
		}
		next.ServeHTTP(w, r)
	})
}

// extractToken extracts the token from the request
func extractToken(r *http.Request) string {
	// Check Authorization header first
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	// Fall back to the session query parameter used by shared summary links
	return r.URL.Query().Get("session")
}

// GetToken returns the caller's token, or "" if none was sent
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}
