package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// ErrorReporter forwards unexpected failures to an error tracker.
type ErrorReporter interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// SentryReporter reports errors to Sentry.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter initializes the Sentry client. With an empty dsn it
// returns a reporter that drops everything.
func NewSentryReporter(dsn, environment string) (ErrorReporter, error) {
	if dsn == "" {
		return NopReporter{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, err
	}
	return &SentryReporter{hub: sentry.CurrentHub()}, nil
}

func (r *SentryReporter) CaptureError(_ context.Context, err error, tags map[string]string) {
	hub := r.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	hub.CaptureException(err)
}

// Flush waits for pending events, up to timeout.
func (r *SentryReporter) Flush(timeout time.Duration) {
	r.hub.Flush(timeout)
}

// NopReporter discards errors.
type NopReporter struct{}

func (NopReporter) CaptureError(context.Context, error, map[string]string) {}
func (NopReporter) Flush(time.Duration)                                    {}
