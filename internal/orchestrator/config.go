package orchestrator

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratagen/internal/breaker"
	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/metrics"
)

const instrumentationName = "github.com/dusk-indust/stratagen/internal/orchestrator"

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	breaker breaker.Config
	policy  hooks.Policy
}

func defaultOptions() options {
	return options{
		logger: zap.NewNop(),
		tracer: otel.Tracer(instrumentationName),
		breaker: breaker.Config{
			FailureThreshold: breaker.DefaultFailureThreshold,
			ResetTimeout:     breaker.DefaultResetTimeout,
		},
		policy: hooks.DefaultPolicy(),
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records section, enrichment, hook and breaker metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the tracer used for per-section spans. Defaults to the
// global provider's tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithBreakerConfig sets the threshold and reset timeout of the circuit
// breakers guarding optional providers. Name is ignored; each breaker is
// named after its section.
func WithBreakerConfig(cfg breaker.Config) Option {
	return func(o *options) { o.breaker = cfg }
}

// WithHookPolicy sets the hook quota and diversity policy.
func WithHookPolicy(p hooks.Policy) Option {
	return func(o *options) { o.policy = p }
}
