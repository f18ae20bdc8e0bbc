package logger

import (
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

// SentryOptions configures error reporting for one process.
type SentryOptions struct {
	DSN              string
	Environment      string
	ServiceName      string
	TracesSampleRate float64
}

// SetupSentry initialises the global Sentry hub. An empty DSN disables
// reporting; the returned flush func is always safe to call.
func SetupSentry(opts SentryOptions) (func(), error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		ServerName:       opts.ServiceName,
		EnableTracing:    opts.TracesSampleRate > 0,
		TracesSampleRate: opts.TracesSampleRate,
	})
	if err != nil {
		return func() {}, err
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", opts.ServiceName)
	})
	return func() { sentry.Flush(sentryFlushTimeout) }, nil
}
