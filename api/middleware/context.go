package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/sokohub/sokohub-backend/pkg/enums"
)

type contextKey int

const (
	userIDKey contextKey = iota
	roleKey
	accessIDKey
)

func valueOf[T any](ctx context.Context, key contextKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	v, _ := ctx.Value(key).(T)
	return v
}

func withValue(ctx context.Context, key contextKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func UserIDFromContext(ctx context.Context) string { return valueOf[string](ctx, userIDKey) }

// UserUUIDFromContext parses the authenticated user id.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	return id, err == nil
}

func RoleFromContext(ctx context.Context) enums.UserRole { return valueOf[enums.UserRole](ctx, roleKey) }

// AccessIDFromContext returns the jti of the access token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string { return valueOf[string](ctx, accessIDKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, userIDKey, userID)
}

func WithRole(ctx context.Context, role enums.UserRole) context.Context {
	return withValue(ctx, roleKey, role)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return withValue(ctx, accessIDKey, accessID)
}
