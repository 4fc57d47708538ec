package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/drivewise/drivewise/internal/auth"
)

type contextKey string

const callerKey contextKey = "callerEmail"

// CallerEmail returns the authenticated caller's email, if any
func CallerEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(callerKey).(string)
	return email, ok && email != ""
}

// AuthMiddleware resolves the bearer token and stores the caller identity in
// the request context
func AuthMiddleware(tokens *auth.TokenService) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "Authentication required")
				return
			}
			email, err := tokens.Resolve(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					unauthorized(w, "Token expired")
					return
				}
				unauthorized(w, "Invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), callerKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{"errors": map[string]string{"general": message}})
}
