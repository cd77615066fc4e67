package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/metrics"
	"github.com/dusk-indust/stratagen/internal/orchestrator"
	"github.com/dusk-indust/stratagen/internal/provider"
)

// stack is a Pipeline built over one replay fixture directory, plus the late
// sources and policy that go with it.
type stack struct {
	pipeline *orchestrator.Pipeline
	late     map[string]provider.LateFunc
	policy   hooks.Policy
	metrics  *metrics.Metrics
}

// buildStack wires replay providers behind the configured rate limit and
// returns a Pipeline using the configured breakers and hook policy.
func (a *app) buildStack(fixtures string) (*stack, error) {
	replay, err := provider.NewReplay(fixtures)
	if err != nil {
		return nil, err
	}
	late, err := replay.Late()
	if err != nil {
		return nil, err
	}
	policy, err := a.cfg.Policy()
	if err != nil {
		return nil, err
	}

	limiter := a.cfg.Limiter()
	for name, fn := range late {
		late[name] = provider.LimitLate(fn, limiter)
	}

	m := metrics.New(nil)
	p := orchestrator.NewPipeline(
		provider.Limit(replay, limiter),
		orchestrator.WithLogger(a.log),
		orchestrator.WithMetrics(m),
		orchestrator.WithBreakerConfig(a.cfg.BreakerSettings()),
		orchestrator.WithHookPolicy(policy),
	)
	return &stack{pipeline: p, late: late, policy: policy, metrics: m}, nil
}

// serveMetrics exposes m on the configured metrics address until the returned
// stop function is called. It is a no-op when no address is configured.
func (a *app) serveMetrics(m *metrics.Metrics) (stop func(), err error) {
	addr := a.cfg.Metrics.Addr
	if addr == "" {
		return func() {}, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics: server stopped", zap.Error(err))
		}
	}()
	a.log.Info("metrics: serving", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
