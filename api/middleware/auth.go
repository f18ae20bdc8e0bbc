package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sokohub/sokohub-backend/api/responses"
	pkgAuth "github.com/sokohub/sokohub-backend/pkg/auth"
	"github.com/sokohub/sokohub-backend/pkg/auth/session"
	"github.com/sokohub/sokohub-backend/pkg/config"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
)

// Auth accepts a bearer access token whose session still exists and puts the
// caller's id, role and access id on the request context.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, cfg, verifier)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if logg != nil {
				ctx = logg.WithUserID(ctx, UserIDFromContext(ctx))
				ctx = logg.WithActorRole(ctx, string(RoleFromContext(ctx)))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, verifier session.AccessSessionChecker) (context.Context, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if verifier != nil {
		live, err := verifier.HasSession(r.Context(), claims.ID)
		switch {
		case err != nil:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		case !live:
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}
	ctx := WithUserID(r.Context(), claims.UserID.String())
	ctx = WithRole(ctx, claims.Role)
	return WithAccessID(ctx, claims.ID), nil
}

// BearerToken returns the Authorization header value without its
// case-insensitive "Bearer " prefix.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(raw, " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return raw
}
