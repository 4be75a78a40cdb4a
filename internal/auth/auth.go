// Package auth authenticates API callers by bearer token. A token is the
// user's API key; the resolved user is stored on the request context for
// handlers further down the chain.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nimblebank/cardissuer/issuance/models"
)

// UserSource resolves an API key to a user. found is false for an unknown
// key; err is reserved for infrastructure failures.
type UserSource interface {
	UserByAPIKey(ctx context.Context, apiKey string) (user *models.User, found bool, err error)
}

// UserSourceFunc adapts a function to the UserSource interface.
type UserSourceFunc func(ctx context.Context, apiKey string) (*models.User, bool, error)

func (f UserSourceFunc) UserByAPIKey(ctx context.Context, apiKey string) (*models.User, bool, error) {
	return f(ctx, apiKey)
}

type ctxKey struct{}

// Middleware rejects requests without a resolvable bearer token. Unknown or
// missing tokens get 401; a failing user source gets 500 so an outage is not
// mistaken for bad credentials.
func Middleware(users UserSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication credentials were not provided.")
				return
			}

			user, found, err := users.UserByAPIKey(r.Context(), token)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred.")
				return
			}
			if !found {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid authentication credentials.")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
		})
	}
}

// UserFromContext returns the authenticated user set by Middleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(*models.User)
	return user, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func writeError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":          kind,
		"message":        message,
		"correlation_id": chimw.GetReqID(r.Context()),
	})
}
