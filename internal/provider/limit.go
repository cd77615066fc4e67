package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/dusk-indust/stratagen/internal/strategy"
)

// Compile-time interface check.
var _ Set = (*limited)(nil)

// limited waits on a shared token bucket before every provider call.
type limited struct {
	next    Set
	limiter *rate.Limiter
}

// Limit returns a Set that calls limiter.Wait before delegating to next. A
// nil limiter returns next unchanged.
func Limit(next Set, limiter *rate.Limiter) Set {
	if limiter == nil {
		return next
	}
	return &limited{next: next, limiter: limiter}
}

// LimitLate wraps fn with the same limiter.
func LimitLate(fn LateFunc, limiter *rate.Limiter) LateFunc {
	if limiter == nil {
		return fn
	}
	return func(ctx context.Context) (strategy.ProviderResult[*strategy.Enrichment], error) {
		if err := wait(ctx, limiter); err != nil {
			return strategy.ProviderResult[*strategy.Enrichment]{}, err
		}
		return fn(ctx)
	}
}

func wait(ctx context.Context, limiter *rate.Limiter) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("provider: rate limit: %w", err)
	}
	return nil
}

func (l *limited) IndustryResearch(ctx context.Context, in Brief) (strategy.ProviderResult[*strategy.IndustryResearch], error) {
	if err := wait(ctx, l.limiter); err != nil {
		return strategy.ProviderResult[*strategy.IndustryResearch]{}, err
	}
	return l.next.IndustryResearch(ctx, in)
}

func (l *limited) CompetitorIntel(ctx context.Context, in Brief) (strategy.ProviderResult[*strategy.CompetitorIntel], error) {
	if err := wait(ctx, l.limiter); err != nil {
		return strategy.ProviderResult[*strategy.CompetitorIntel]{}, err
	}
	return l.next.CompetitorIntel(ctx, in)
}

func (l *limited) ICPAnalysis(ctx context.Context, in AnalysisInput) (strategy.ProviderResult[*strategy.ICPAnalysis], error) {
	if err := wait(ctx, l.limiter); err != nil {
		return strategy.ProviderResult[*strategy.ICPAnalysis]{}, err
	}
	return l.next.ICPAnalysis(ctx, in)
}

func (l *limited) OfferAnalysis(ctx context.Context, in AnalysisInput) (strategy.ProviderResult[*strategy.OfferAnalysis], error) {
	if err := wait(ctx, l.limiter); err != nil {
		return strategy.ProviderResult[*strategy.OfferAnalysis]{}, err
	}
	return l.next.OfferAnalysis(ctx, in)
}

func (l *limited) Synthesis(ctx context.Context, in SynthesisInput) (strategy.ProviderResult[*strategy.Synthesis], error) {
	if err := wait(ctx, l.limiter); err != nil {
		return strategy.ProviderResult[*strategy.Synthesis]{}, err
	}
	return l.next.Synthesis(ctx, in)
}
