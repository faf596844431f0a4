// Package auth provides bearer token authentication for the Teamdrop API.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/teamdrop/internal/domain"
)

// SessionValidator resolves a bearer token to its user.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*domain.User, error)
}

// TokenFromRequest extracts the bearer token from the Authorization
// header. Returns an empty string when no token is present.
func TokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Middleware authenticates requests and stores the user in the request
// context. Requests without a valid session are rejected with 401.
func Middleware(sessions SessionValidator, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "auth").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeUnauthorized(w, "authentication required")
				return
			}

			user, err := sessions.Validate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrSessionExpired):
					writeUnauthorized(w, "session expired")
				case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrInvalidToken):
					writeUnauthorized(w, "invalid session")
				default:
					log.Error().Err(err).Msg("session validation failed")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// Optional authenticates the request when a token is present but lets
// anonymous requests through. Used on endpoints that serve both
// authenticated and public traffic.
func Optional(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token != "" {
				if user, err := sessions.Validate(r.Context(), token); err == nil {
					r = r.WithContext(WithUser(r.Context(), user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
