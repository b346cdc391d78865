package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dockerx/cms/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// UsernameKey is the context key for the authenticated admin's username.
const UsernameKey contextKey = "username"

// TokenValidator checks a bearer token and returns the username it was issued to.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// RequireAuth returns middleware that validates a Bearer JWT and injects the
// username into the request context.
func RequireAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}

			username, err := v.ValidateToken(strings.TrimSpace(parts[1]))
			if err != nil {
				response.Unauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UsernameKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Username returns the authenticated username stored by RequireAuth.
func Username(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(UsernameKey).(string)
	return u, ok && u != ""
}
