package auth

import (
	"context"

	"github.com/prn-tf/teamdrop/internal/domain"
)

type contextKey struct{ name string }

var userKey = &contextKey{"user"}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or nil for
// unauthenticated requests.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey).(*domain.User)
	return user
}
