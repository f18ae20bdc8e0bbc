package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/sokohub/sokohub-backend/pkg/logger"
)

const (
	requestIDHeader   = "X-Request-Id"
	maxRequestIDBytes = 64
)

// RequestID echoes a sane client X-Request-Id or mints one, tags the logger
// with it and gives the request its own Sentry hub.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if !validRequestID(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			hub := sentry.CurrentHub().Clone()
			hub.Scope().SetTag("request_id", reqID)
			hub.Scope().SetRequest(r)
			ctx = sentry.SetHubOnContext(ctx, hub)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDBytes {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
