package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TokenVerifier is the port to the external identity collaborator. The
// engine never trusts a client-asserted user id; every operation runs under
// the id this verifier returns.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (uuid.UUID, error)
}

type contextKey string

const userIDKey contextKey = "focusd.user_id"

// UserIDFromContext returns the verified user id placed by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// AuthMiddleware verifies the bearer token on every request. Verification
// failures are fatal for the request; they are never retried with stale
// credentials.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			userID, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				log.Warn().Err(err).Msg("token verification failed")
				http.Error(w, "please sign in again", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// WebSocket clients cannot set headers from the browser; allow the token
	// as a query parameter there.
	return r.URL.Query().Get("token")
}
