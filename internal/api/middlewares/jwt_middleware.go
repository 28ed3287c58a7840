package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const userEmailKey contextKey = "user_email"

// TokenVerifier resolves a bearer token to the caller's email.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// JWTMiddleware validates the Authorization header and attaches the caller's
// email to the request context. Anything else gets a 401 before the handler runs.
func JWTMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}

			email, err := verifier.Verify(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userEmailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserEmail returns the authenticated email stored by JWTMiddleware.
func UserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(userEmailKey).(string)
	return email, ok && email != ""
}

// WithUserEmail is used by tests that skip the middleware.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userEmailKey, email)
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
