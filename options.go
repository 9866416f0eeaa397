package chronicle

import (
	"log/slog"
	"time"

	"chronicle/actor"
)

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithActorResolver sets the acting-user resolver used for audit
// attribution. Default is actor.Anonymous.
func WithActorResolver(r actor.Resolver) Option {
	return func(ic *Interceptor) {
		if r != nil {
			ic.actors = r
		}
	}
}

// WithLogger sets the structured logger. Default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(ic *Interceptor) {
		if logger != nil {
			ic.logger = logger
		}
	}
}

// WithMetrics attaches a metrics bundle. Default records nothing.
func WithMetrics(m *Metrics) Option {
	return func(ic *Interceptor) {
		ic.metrics = m
	}
}

// WithPublisher sets the post-commit publisher committed records are handed
// to (e.g. a sink.Worker).
func WithPublisher(p Publisher) Option {
	return func(ic *Interceptor) {
		ic.publisher = p
	}
}

// WithStrictVerification makes a tracking inconsistency (a Modified change
// with identical before/after images) fail the save instead of being
// logged. Intended for verification builds and CI.
func WithStrictVerification() Option {
	return func(ic *Interceptor) {
		ic.strict = true
	}
}

// WithClock overrides the time source; tests use it for deterministic
// record timestamps.
func WithClock(now func() time.Time) Option {
	return func(ic *Interceptor) {
		if now != nil {
			ic.now = now
		}
	}
}
