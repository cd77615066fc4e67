// Package provider defines the boundary between the pipeline and the
// external services that produce each analysis.
package provider

import (
	"context"

	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/strategy"
)

// Brief identifies the business being analysed.
type Brief struct {
	RunID   string
	Context string
}

// AnalysisInput feeds the second-phase analyses.
type AnalysisInput struct {
	Brief
	Research *strategy.IndustryResearch
}

// SynthesisInput carries everything the final document is built from. Offer
// is the reconciled analysis.
type SynthesisInput struct {
	Brief
	Research    *strategy.IndustryResearch
	Competitors *strategy.CompetitorIntel // nil when unavailable
	ICP         *strategy.ICPAnalysis
	Offer       *strategy.OfferAnalysis
	Enrichment  *strategy.Enrichment
	Tier        hooks.Tier
	Quotas      hooks.Quotas
}

// Set is the group of providers a pipeline run calls. Implementations must be
// safe for concurrent use.
type Set interface {
	IndustryResearch(ctx context.Context, in Brief) (strategy.ProviderResult[*strategy.IndustryResearch], error)
	CompetitorIntel(ctx context.Context, in Brief) (strategy.ProviderResult[*strategy.CompetitorIntel], error)
	ICPAnalysis(ctx context.Context, in AnalysisInput) (strategy.ProviderResult[*strategy.ICPAnalysis], error)
	OfferAnalysis(ctx context.Context, in AnalysisInput) (strategy.ProviderResult[*strategy.OfferAnalysis], error)
	Synthesis(ctx context.Context, in SynthesisInput) (strategy.ProviderResult[*strategy.Synthesis], error)
}

// LateFunc fetches one optional enrichment dataset.
type LateFunc func(ctx context.Context) (strategy.ProviderResult[*strategy.Enrichment], error)

// Compile-time interface check.
var _ Set = Funcs{}

// Funcs adapts plain functions to a Set. A nil field fails with
// ErrNotConfigured.
type Funcs struct {
	IndustryResearchFn func(ctx context.Context, in Brief) (strategy.ProviderResult[*strategy.IndustryResearch], error)
	CompetitorIntelFn  func(ctx context.Context, in Brief) (strategy.ProviderResult[*strategy.CompetitorIntel], error)
	ICPAnalysisFn      func(ctx context.Context, in AnalysisInput) (strategy.ProviderResult[*strategy.ICPAnalysis], error)
	OfferAnalysisFn    func(ctx context.Context, in AnalysisInput) (strategy.ProviderResult[*strategy.OfferAnalysis], error)
	SynthesisFn        func(ctx context.Context, in SynthesisInput) (strategy.ProviderResult[*strategy.Synthesis], error)
}

func (f Funcs) IndustryResearch(ctx context.Context, in Brief) (strategy.ProviderResult[*strategy.IndustryResearch], error) {
	if f.IndustryResearchFn == nil {
		return strategy.ProviderResult[*strategy.IndustryResearch]{}, notConfigured("industry-research")
	}
	return f.IndustryResearchFn(ctx, in)
}

func (f Funcs) CompetitorIntel(ctx context.Context, in Brief) (strategy.ProviderResult[*strategy.CompetitorIntel], error) {
	if f.CompetitorIntelFn == nil {
		return strategy.ProviderResult[*strategy.CompetitorIntel]{}, notConfigured("competitor-intel")
	}
	return f.CompetitorIntelFn(ctx, in)
}

func (f Funcs) ICPAnalysis(ctx context.Context, in AnalysisInput) (strategy.ProviderResult[*strategy.ICPAnalysis], error) {
	if f.ICPAnalysisFn == nil {
		return strategy.ProviderResult[*strategy.ICPAnalysis]{}, notConfigured("icp-analysis")
	}
	return f.ICPAnalysisFn(ctx, in)
}

func (f Funcs) OfferAnalysis(ctx context.Context, in AnalysisInput) (strategy.ProviderResult[*strategy.OfferAnalysis], error) {
	if f.OfferAnalysisFn == nil {
		return strategy.ProviderResult[*strategy.OfferAnalysis]{}, notConfigured("offer-analysis")
	}
	return f.OfferAnalysisFn(ctx, in)
}

func (f Funcs) Synthesis(ctx context.Context, in SynthesisInput) (strategy.ProviderResult[*strategy.Synthesis], error) {
	if f.SynthesisFn == nil {
		return strategy.ProviderResult[*strategy.Synthesis]{}, notConfigured("synthesis")
	}
	return f.SynthesisFn(ctx, in)
}
