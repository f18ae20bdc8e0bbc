package middleware

import (
	"net/http"

	"github.com/sokohub/sokohub-backend/api/responses"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
)

// RequireRole rejects authenticated callers whose role differs from role.
func RequireRole(role enums.UserRole, logg *logger.Logger) func(http.Handler) http.Handler {
	forbidden := pkgerrors.New(pkgerrors.CodeForbidden, string(role)+" role required").
		WithDetails(map[string]string{"required_role": string(role)})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := RoleFromContext(r.Context()); got == role {
				next.ServeHTTP(w, r)
				return
			}
			responses.WriteError(r.Context(), logg, w, forbidden)
		})
	}
}
