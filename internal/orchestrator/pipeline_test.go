package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stratagen/internal/breaker"
	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/logging"
	"github.com/dusk-indust/stratagen/internal/metrics"
	"github.com/dusk-indust/stratagen/internal/provider"
	"github.com/dusk-indust/stratagen/internal/reconcile"
	"github.com/dusk-indust/stratagen/internal/strategy"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func usage(in, out int) strategy.Usage {
	return strategy.Usage{Input: in, Output: out}
}

func okResult[T any](data T, cost float64) strategy.ProviderResult[T] {
	return strategy.ProviderResult[T]{Data: data, Cost: cost, Usage: usage(100, 50), ProviderID: "test"}
}

func generated(n int, prefix string) []hooks.Candidate {
	out := make([]hooks.Candidate, n)
	for i := range out {
		out[i] = hooks.Candidate{
			Text:      fmt.Sprintf("%s %d", prefix, i),
			Technique: hooks.TechniqueQuestion,
			Source:    hooks.Source{Type: hooks.SourceGenerated},
		}
	}
	return out
}

// recorder counts provider calls and captures the synthesis input.
type recorder struct {
	mu      sync.Mutex
	calls   map[string]int
	synthIn *provider.SynthesisInput
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string]int)}
}

func (r *recorder) hit(section string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[section]++
}

func (r *recorder) count(section string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[section]
}

func (r *recorder) synthesisInput() *provider.SynthesisInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.synthIn
}

func threeCompetitors() *strategy.CompetitorIntel {
	return &strategy.CompetitorIntel{Competitors: []strategy.Competitor{
		{Name: "Acme", AdTexts: []string{"Acme ad"}, Platforms: []string{"meta"}},
		{Name: "Globex", AdTexts: []string{"Globex ad"}},
		{Name: "Initech", AdTexts: []string{"Initech ad"}},
	}}
}

// healthyProviders returns a provider set where every call succeeds
// immediately.
func healthyProviders(rec *recorder) provider.Funcs {
	return provider.Funcs{
		IndustryResearchFn: func(ctx context.Context, in provider.Brief) (strategy.ProviderResult[*strategy.IndustryResearch], error) {
			rec.hit(strategy.SectionIndustryResearch)
			return okResult(&strategy.IndustryResearch{Market: "Invoicing", Summary: "Growing."}, 0.01), nil
		},
		CompetitorIntelFn: func(ctx context.Context, in provider.Brief) (strategy.ProviderResult[*strategy.CompetitorIntel], error) {
			rec.hit(strategy.SectionCompetitorIntel)
			return okResult(threeCompetitors(), 0.02), nil
		},
		ICPAnalysisFn: func(ctx context.Context, in provider.AnalysisInput) (strategy.ProviderResult[*strategy.ICPAnalysis], error) {
			rec.hit(strategy.SectionICPAnalysis)
			return okResult(&strategy.ICPAnalysis{Verdict: strategy.VerdictWorkable, PainPointStrength: strategy.StrengthStrong}, 0.03), nil
		},
		OfferAnalysisFn: func(ctx context.Context, in provider.AnalysisInput) (strategy.ProviderResult[*strategy.OfferAnalysis], error) {
			rec.hit(strategy.SectionOfferAnalysis)
			return okResult(&strategy.OfferAnalysis{
				OverallScore:   6.5,
				Recommendation: strategy.RecommendProceed,
				Economics:      strategy.EconomicsFavorable,
				Confidence:     0.8,
			}, 0.04), nil
		},
		SynthesisFn: func(ctx context.Context, in provider.SynthesisInput) (strategy.ProviderResult[*strategy.Synthesis], error) {
			rec.mu.Lock()
			rec.calls[strategy.SectionSynthesis]++
			rec.synthIn = &in
			rec.mu.Unlock()
			return okResult(&strategy.Synthesis{
				Title:            "Strategy",
				ExecutiveSummary: "Lead with time saved.",
				Hooks:            generated(12, "hook"),
				FallbackHooks:    generated(12, "fallback"),
			}, 0.05), nil
		},
	}
}

// gate returns a channel and the func that closes it. The func also runs when
// the test ends, so detached provider goroutines never outlive it.
func gate(t *testing.T) (<-chan struct{}, func()) {
	t.Helper()
	ch := make(chan struct{})
	var once sync.Once
	release := func() { once.Do(func() { close(ch) }) }
	t.Cleanup(release)
	return ch, release
}

// ---------------------------------------------------------------------------
// Happy path
// ---------------------------------------------------------------------------

func TestRun_Success(t *testing.T) {
	rec := newRecorder()
	p := NewPipeline(healthyProviders(rec))

	res, err := p.Run(context.Background(), Input{Context: "B2B invoicing", Grace: time.Second})
	require.NoError(t, err)
	require.True(t, res.Success)
	_, perr := uuid.Parse(res.RunID)
	require.NoError(t, perr, "run ID should be a UUID")

	a := res.Artifact
	require.NotNil(t, a)
	assert.Equal(t, res.RunID, a.RunID)
	assert.Equal(t, "Invoicing", a.Industry.Market)
	require.NotNil(t, a.Competitors)
	assert.Len(t, a.Competitors.Competitors, 3)
	assert.Len(t, a.Enrichment.AdSources, 3)
	assert.Equal(t, hooks.TierStandard, a.Tier)
	assert.Equal(t, hooks.DefaultPolicy().QuotasFor(hooks.TierStandard), a.Quotas)
	assert.Len(t, a.Hooks, 12)
	assert.Empty(t, a.Violations)
	assert.Empty(t, res.Pending)

	assert.InDelta(t, 0.15, a.TotalCost, 1e-9)
	assert.Equal(t, 750, a.Usage.Total)
	for _, section := range []string{
		strategy.SectionIndustryResearch,
		strategy.SectionCompetitorIntel,
		strategy.SectionICPAnalysis,
		strategy.SectionOfferAnalysis,
		strategy.SectionReconciliation,
		strategy.SectionSynthesis,
	} {
		st, ok := a.Sections[section]
		if assert.True(t, ok, "missing ledger entry for %s", section) {
			assert.Equal(t, "success", st.Outcome)
		}
	}

	in := rec.synthesisInput()
	require.NotNil(t, in)
	assert.Equal(t, res.RunID, in.RunID)
	assert.Equal(t, "B2B invoicing", in.Context)
	assert.Equal(t, hooks.TierStandard, in.Tier)
	assert.Equal(t, a.Quotas, in.Quotas)
	assert.NotNil(t, in.Competitors)
}

func TestRun_ProvidersDetachedFromCallerCancellation(t *testing.T) {
	rec := newRecorder()
	set := healthyProviders(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var providerErr error
	set.IndustryResearchFn = func(pctx context.Context, in provider.Brief) (strategy.ProviderResult[*strategy.IndustryResearch], error) {
		rec.hit(strategy.SectionIndustryResearch)
		cancel()
		providerErr = pctx.Err()
		return okResult(&strategy.IndustryResearch{Market: "m", Summary: "s"}, 0.01), nil
	}

	res, err := NewPipeline(set).Run(ctx, Input{Grace: time.Second})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "before phase 2")
	assert.NoError(t, providerErr, "a running provider never sees the caller's cancellation")
	assert.False(t, res.Success)
	assert.Empty(t, res.Section)
	assert.Zero(t, rec.count(strategy.SectionICPAnalysis), "phase 2 must not start after cancellation")
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	rec := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewPipeline(healthyProviders(rec)).Run(ctx, Input{})
	require.ErrorIs(t, err, ErrCancelled)
	assert.False(t, res.Success)
	assert.Nil(t, res.Artifact)
	assert.Zero(t, rec.count(strategy.SectionIndustryResearch))
	assert.Zero(t, rec.count(strategy.SectionCompetitorIntel))
}

// ---------------------------------------------------------------------------
// Required and optional failures
// ---------------------------------------------------------------------------

func TestRun_RequiredSectionFailure(t *testing.T) {
	tests := []struct {
		name    string
		section string
		mutate  func(*provider.Funcs)
		errText string
	}{
		{
			name:    "industry research error",
			section: strategy.SectionIndustryResearch,
			mutate: func(f *provider.Funcs) {
				f.IndustryResearchFn = func(context.Context, provider.Brief) (strategy.ProviderResult[*strategy.IndustryResearch], error) {
					return strategy.ProviderResult[*strategy.IndustryResearch]{}, errors.New("upstream 503")
				}
			},
			errText: "upstream 503",
		},
		{
			name:    "icp analysis error",
			section: strategy.SectionICPAnalysis,
			mutate: func(f *provider.Funcs) {
				f.ICPAnalysisFn = func(context.Context, provider.AnalysisInput) (strategy.ProviderResult[*strategy.ICPAnalysis], error) {
					return strategy.ProviderResult[*strategy.ICPAnalysis]{}, errors.New("model refused")
				}
			},
			errText: "model refused",
		},
		{
			name:    "invalid offer payload",
			section: strategy.SectionOfferAnalysis,
			mutate: func(f *provider.Funcs) {
				f.OfferAnalysisFn = func(context.Context, provider.AnalysisInput) (strategy.ProviderResult[*strategy.OfferAnalysis], error) {
					return okResult(&strategy.OfferAnalysis{OverallScore: 11}, 0), nil
				}
			},
			errText: "outside 0-10",
		},
		{
			name:    "synthesis error",
			section: strategy.SectionSynthesis,
			mutate: func(f *provider.Funcs) {
				f.SynthesisFn = nil
			},
			errText: provider.ErrNotConfigured.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder()
			set := healthyProviders(rec)
			tt.mutate(&set)

			res, err := NewPipeline(set).Run(context.Background(), Input{Grace: time.Second})
			require.Error(t, err)

			var se *SectionError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.section, se.Section)
			assert.Contains(t, err.Error(), tt.errText)

			assert.False(t, res.Success)
			assert.Nil(t, res.Artifact)
			assert.Equal(t, tt.section, res.Section)
			assert.Equal(t, err.Error(), res.Error)
			if tt.section != strategy.SectionSynthesis {
				assert.Zero(t, rec.count(strategy.SectionSynthesis))
			}
		})
	}
}

func TestRun_OptionalFailureLeavesSectionAbsent(t *testing.T) {
	rec := newRecorder()
	set := healthyProviders(rec)
	set.CompetitorIntelFn = func(context.Context, provider.Brief) (strategy.ProviderResult[*strategy.CompetitorIntel], error) {
		return strategy.ProviderResult[*strategy.CompetitorIntel]{}, errors.New("scraper blocked")
	}
	logger, logs := logging.NewObserved()

	res, err := NewPipeline(set, WithLogger(logger)).Run(context.Background(), Input{Grace: time.Second})
	require.NoError(t, err)
	require.True(t, res.Success)

	a := res.Artifact
	assert.Nil(t, a.Competitors)
	assert.Equal(t, hooks.TierZero, a.Tier)
	assert.Equal(t, "error", a.Sections[strategy.SectionCompetitorIntel].Outcome)
	assert.Empty(t, res.Pending, "a failed source is absent, not pending")
	assert.Nil(t, rec.synthesisInput().Competitors)

	warns := logs.FilterMessage("pipeline: optional section unavailable").All()
	require.Len(t, warns, 1)
	assert.Equal(t, strategy.SectionCompetitorIntel, warns[0].ContextMap()["section"])
}

func TestRun_ReservedLateName(t *testing.T) {
	p := NewPipeline(healthyProviders(newRecorder()))
	late := map[string]provider.LateFunc{
		strategy.SectionSynthesis: func(context.Context) (strategy.ProviderResult[*strategy.Enrichment], error) {
			return okResult(&strategy.Enrichment{}, 0), nil
		},
	}

	res, err := p.Run(context.Background(), Input{Late: late})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
	assert.False(t, res.Success)
}

// ---------------------------------------------------------------------------
// Deadline-bounded enrichment
// ---------------------------------------------------------------------------

func TestRun_ZeroGraceLeavesSlowSourcePending(t *testing.T) {
	rec := newRecorder()
	wait, release := gate(t)
	late := map[string]provider.LateFunc{
		"keyword-research": func(ctx context.Context) (strategy.ProviderResult[*strategy.Enrichment], error) {
			<-wait
			return okResult(&strategy.Enrichment{Keywords: []strategy.Keyword{{Term: "invoice app", Volume: 900}}}, 0.005), nil
		},
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	start := time.Now()
	res, err := NewPipeline(healthyProviders(rec), WithMetrics(m)).Run(context.Background(), Input{Late: late, Grace: 0})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "run must not wait for the slow source")

	assert.True(t, res.Success)
	require.Contains(t, res.Pending, "keyword-research")
	assert.Contains(t, res.PendingNames(), "keyword-research")
	assert.Empty(t, res.Artifact.Enrichment.Keywords)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EnrichmentTimeouts.WithLabelValues("keyword-research")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")), 0)

	// The handle stays live: once released it can be merged.
	release()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, res.MergeLate(ctx, "keyword-research"))

	assert.NotContains(t, res.Pending, "keyword-research")
	require.Len(t, res.Artifact.Enrichment.Keywords, 1)
	assert.Equal(t, "invoice app", res.Artifact.Enrichment.Keywords[0].Term)
	assert.Equal(t, []string{"keyword-research"}, res.Artifact.LateMerged)
	assert.Contains(t, res.Artifact.Sections, "keyword-research")
	assert.GreaterOrEqual(t, res.Artifact.TotalCost, 0.135-1e-9)
}

func TestRun_LateSourceWithinGraceIsMerged(t *testing.T) {
	late := map[string]provider.LateFunc{
		"ads-library": func(ctx context.Context) (strategy.ProviderResult[*strategy.Enrichment], error) {
			return okResult(&strategy.Enrichment{Notes: []string{"ads scraped"}}, 0), nil
		},
	}
	res, err := NewPipeline(healthyProviders(newRecorder())).Run(context.Background(), Input{
		Late:        late,
		Grace:       time.Second,
		PreSupplied: &strategy.Enrichment{Notes: []string{"from brief"}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Pending)
	assert.Equal(t, []string{"from brief", "ads scraped"}, res.Artifact.Enrichment.Notes,
		"pre-supplied data merges before late providers")
}

func TestMergeLate_CompetitorIntel(t *testing.T) {
	rec := newRecorder()
	set := healthyProviders(rec)
	wait, release := gate(t)
	set.CompetitorIntelFn = func(context.Context, provider.Brief) (strategy.ProviderResult[*strategy.CompetitorIntel], error) {
		<-wait
		return okResult(threeCompetitors(), 0.02), nil
	}

	res, err := NewPipeline(set).Run(context.Background(), Input{Grace: 0})
	require.NoError(t, err)
	require.Contains(t, res.Pending, strategy.SectionCompetitorIntel)
	assert.Nil(t, res.Artifact.Competitors)
	assert.Equal(t, hooks.TierZero, res.Artifact.Tier)

	// Waiting with an expired context keeps the handle pending.
	expired, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	err = res.MergeLate(expired, strategy.SectionCompetitorIntel)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, res.Pending, strategy.SectionCompetitorIntel)

	release()
	require.NoError(t, res.MergeLate(context.Background(), strategy.SectionCompetitorIntel))
	require.NotNil(t, res.Artifact.Competitors)
	assert.Len(t, res.Artifact.Enrichment.AdSources, 3)
	assert.Equal(t, hooks.TierZero, res.Artifact.Tier, "tier is fixed at synthesis time")

	err = res.MergeLate(context.Background(), strategy.SectionCompetitorIntel)
	require.Error(t, err, "a merged source is no longer pending")
}

func TestMergeLate_FailedSourceDropped(t *testing.T) {
	wait, release := gate(t)
	late := map[string]provider.LateFunc{
		"trends": func(ctx context.Context) (strategy.ProviderResult[*strategy.Enrichment], error) {
			<-wait
			return strategy.ProviderResult[*strategy.Enrichment]{}, errors.New("quota exceeded")
		},
	}
	res, err := NewPipeline(healthyProviders(newRecorder())).Run(context.Background(), Input{Late: late})
	require.NoError(t, err)
	require.Contains(t, res.Pending, "trends")

	release()
	err = res.MergeLate(context.Background(), "trends")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.NotContains(t, res.Pending, "trends")
	assert.Empty(t, res.Artifact.LateMerged)

	assert.Error(t, (&Result{}).MergeLate(context.Background(), "trends"), "no artifact")
}

// ---------------------------------------------------------------------------
// Reconciliation and hooks
// ---------------------------------------------------------------------------

func TestRun_SynthesisReceivesReconciledOffer(t *testing.T) {
	rec := newRecorder()
	set := healthyProviders(rec)
	set.ICPAnalysisFn = func(context.Context, provider.AnalysisInput) (strategy.ProviderResult[*strategy.ICPAnalysis], error) {
		return okResult(&strategy.ICPAnalysis{Verdict: strategy.VerdictInvalid, PainPointStrength: strategy.StrengthWeak}, 0), nil
	}
	set.OfferAnalysisFn = func(context.Context, provider.AnalysisInput) (strategy.ProviderResult[*strategy.OfferAnalysis], error) {
		return okResult(&strategy.OfferAnalysis{
			OverallScore:   8.5,
			Recommendation: strategy.RecommendProceed,
			Economics:      strategy.EconomicsFavorable,
			Confidence:     0.9,
		}, 0), nil
	}

	res, err := NewPipeline(set).Run(context.Background(), Input{Grace: time.Second})
	require.NoError(t, err)

	rc := res.Artifact.Reconciliation
	assert.Equal(t, 3, rc.ConflictsDetected)
	assert.Equal(t, strategy.RecommendICPRefinementNeeded, res.Artifact.Offer.Recommendation)
	assert.InDelta(t, reconcile.NonProceedScoreCap, res.Artifact.Offer.OverallScore, 1e-9)

	in := rec.synthesisInput()
	require.NotNil(t, in)
	assert.Equal(t, res.Artifact.Offer, *in.Offer, "synthesis sees the reconciled offer")
	assert.InDelta(t, reconcile.WeakPainConfidenceCap, in.Offer.Confidence, 1e-9)
}

func TestRun_HooksRemediated(t *testing.T) {
	set := healthyProviders(newRecorder())
	set.SynthesisFn = func(context.Context, provider.SynthesisInput) (strategy.ProviderResult[*strategy.Synthesis], error) {
		hs := generated(4, "own")
		for i := 0; i < 8; i++ {
			hs = append(hs, hooks.Candidate{
				Text:   fmt.Sprintf("acme %d", i),
				Source: hooks.Source{Type: hooks.SourceExtracted, Competitors: []string{"Acme"}},
			})
		}
		return okResult(&strategy.Synthesis{
			ExecutiveSummary: "s",
			Hooks:            hs,
			FallbackHooks:    generated(10, "fallback"),
		}, 0), nil
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	res, err := NewPipeline(set, WithMetrics(m)).Run(context.Background(), Input{Grace: time.Second})
	require.NoError(t, err)

	a := res.Artifact
	assert.NotEmpty(t, a.Violations)
	assert.Len(t, a.Hooks, 12)
	assert.Empty(t, hooks.Validate(a.Hooks, hooks.DefaultMaxPerSource), "remediated hooks pass validation")

	acme := 0
	for _, h := range a.Hooks {
		for _, c := range h.Source.Competitors {
			if c == "Acme" {
				acme++
			}
		}
	}
	assert.Equal(t, 2, acme)
	assert.Positive(t, testutil.ToFloat64(m.HookViolations.WithLabelValues(string(hooks.ViolationConcentration))))
}

// ---------------------------------------------------------------------------
// Circuit breaker across runs
// ---------------------------------------------------------------------------

func TestRun_BreakerOpensAcrossRuns(t *testing.T) {
	rec := newRecorder()
	set := healthyProviders(rec)
	set.CompetitorIntelFn = func(context.Context, provider.Brief) (strategy.ProviderResult[*strategy.CompetitorIntel], error) {
		rec.hit(strategy.SectionCompetitorIntel)
		return strategy.ProviderResult[*strategy.CompetitorIntel]{}, errors.New("down")
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	logger, logs := logging.NewObserved()
	p := NewPipeline(set,
		WithLogger(logger),
		WithMetrics(m),
		WithBreakerConfig(breaker.Config{FailureThreshold: 2, ResetTimeout: time.Hour}),
	)

	for i := 0; i < 3; i++ {
		res, err := p.Run(context.Background(), Input{Grace: time.Second})
		require.NoError(t, err, "run %d", i)
		require.True(t, res.Success)
		assert.Nil(t, res.Artifact.Competitors)
	}

	assert.Equal(t, 2, rec.count(strategy.SectionCompetitorIntel), "third run is rejected by the open breaker")
	assert.Equal(t, breaker.StateOpen, p.Breaker(strategy.SectionCompetitorIntel).State())
	assert.InDelta(t, float64(breaker.StateOpen), testutil.ToFloat64(m.BreakerState.WithLabelValues(strategy.SectionCompetitorIntel)), 0)
	assert.Len(t, logs.FilterMessage("pipeline: breaker state change").All(), 1)

	var sawRetryAt bool
	for _, e := range logs.FilterMessage("pipeline: optional section unavailable").All() {
		if _, ok := e.ContextMap()["retry_at"]; ok {
			sawRetryAt = true
		}
	}
	assert.True(t, sawRetryAt, "open-circuit warnings carry the retry time")
}

// ---------------------------------------------------------------------------
// Progress and logging
// ---------------------------------------------------------------------------

func TestRun_ProgressEvents(t *testing.T) {
	var (
		mu     sync.Mutex
		events []ProgressEvent
	)
	observer := func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}

	res, err := NewPipeline(healthyProviders(newRecorder())).Run(context.Background(), Input{Observer: observer, Grace: time.Second})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	seen := make(map[string]bool)
	for _, ev := range events {
		seen[ev.Section+"/"+string(ev.Status)] = true
	}
	for _, key := range []string{
		"industry-research/starting",
		"industry-research/complete",
		"competitor-intel/complete",
		"icp-analysis/complete",
		"offer-analysis/complete",
		"reconciliation/complete",
		"enrichment/complete",
		"synthesis/complete",
		"hooks/complete",
	} {
		assert.True(t, seen[key], "missing progress event %s", key)
	}

	last := events[len(events)-1]
	assert.Equal(t, strategy.SectionHooks, last.Section)
	assert.Equal(t, PhaseSynthesis, last.Phase)
	assert.InDelta(t, res.Artifact.TotalCost, last.CumulativeCost, 1e-9)
	assert.IsType(t, []hooks.Candidate{}, last.Data)
}

func TestRun_ProgressError(t *testing.T) {
	set := healthyProviders(newRecorder())
	set.SynthesisFn = nil

	var (
		mu  sync.Mutex
		got []ProgressEvent
	)
	observer := func(ev ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Status == ProgressError {
			got = append(got, ev)
		}
	}
	_, err := NewPipeline(set).Run(context.Background(), Input{Grace: time.Second, Observer: observer})
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, strategy.SectionSynthesis, got[0].Section)
	assert.Contains(t, got[0].Message, "not configured")
}

func TestRun_StructuredLogs(t *testing.T) {
	logger, logs := logging.NewObserved()
	res, err := NewPipeline(healthyProviders(newRecorder()), WithLogger(logger)).Run(context.Background(), Input{Grace: time.Second})
	require.NoError(t, err)

	complete := logs.FilterMessage("pipeline: phase complete").All()
	require.NotEmpty(t, complete)
	sections := make(map[string]bool)
	for _, e := range complete {
		fields := e.ContextMap()
		sections[fields["section"].(string)] = true
		assert.Equal(t, res.RunID, fields["run_id"])
		assert.Contains(t, fields, "duration_ms")
	}
	assert.True(t, sections[strategy.SectionIndustryResearch])
	assert.True(t, sections[strategy.SectionSynthesis])

	done := logs.FilterMessage("pipeline: run complete").All()
	require.Len(t, done, 1)
	assert.EqualValues(t, 12, done[0].ContextMap()["hooks"])
}

func TestRun_RequiredFailureLogged(t *testing.T) {
	set := healthyProviders(newRecorder())
	set.IndustryResearchFn = nil
	logger, logs := logging.NewObserved()

	_, err := NewPipeline(set, WithLogger(logger)).Run(context.Background(), Input{})
	require.Error(t, err)

	entries := logs.FilterMessage("pipeline: required section failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, strategy.SectionIndustryResearch, entries[0].ContextMap()["section"])
}

// ---------------------------------------------------------------------------
// fanOut
// ---------------------------------------------------------------------------

func TestFanOut_FirstFailureCancelsSiblings(t *testing.T) {
	siblingCancelled := make(chan struct{})
	err := fanOut(context.Background(), []sectionTask{
		{section: "a", run: func(ctx context.Context) error { return errors.New("boom") }},
		{section: "b", run: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				close(siblingCancelled)
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return errors.New("sibling was not cancelled")
			}
		}},
	})
	require.Error(t, err)

	var se *SectionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "a", se.Section)
	select {
	case <-siblingCancelled:
	case <-time.After(time.Second):
		t.Fatal("sibling context was not cancelled")
	}
}

func TestFanOut_AllSucceed(t *testing.T) {
	var mu sync.Mutex
	ran := make(map[string]bool)
	tasks := make([]sectionTask, 0, 3)
	for _, name := range []string{"a", "b", "c"} {
		tasks = append(tasks, sectionTask{section: name, run: func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			ran[name] = true
			return nil
		}})
	}
	require.NoError(t, fanOut(context.Background(), tasks))
	assert.Len(t, ran, 3)
}
