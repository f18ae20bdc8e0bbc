package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sokohub/sokohub-backend/api/responses"
	pkgerrors "github.com/sokohub/sokohub-backend/pkg/errors"
	"github.com/sokohub/sokohub-backend/pkg/logger"
)

// Recoverer turns a handler panic into an INTERNAL_ERROR response. The error
// path logs it and reports it to the request's Sentry hub.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithField(ctx, "route", routeLabel(r))
				}
				cause := fmt.Errorf("panic: %v", rec)
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "recovered panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
