// Package orchestrator runs the strategy pipeline: required research, the
// parallel ICP and offer analyses with reconciliation, deadline-bounded
// optional enrichment, and the final synthesis with hook remediation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/stratagen/internal/breaker"
	"github.com/dusk-indust/stratagen/internal/deadline"
	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/logging"
	"github.com/dusk-indust/stratagen/internal/provider"
	"github.com/dusk-indust/stratagen/internal/reconcile"
	"github.com/dusk-indust/stratagen/internal/strategy"
)

// Pipeline coordinates strategy runs against one provider Set. Circuit
// breakers for optional providers live as long as the Pipeline, so failures
// carry across runs. A Pipeline is safe for concurrent runs.
type Pipeline struct {
	providers provider.Set
	opts      options

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

// NewPipeline creates a Pipeline calling providers.
func NewPipeline(providers provider.Set, opts ...Option) *Pipeline {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Pipeline{
		providers: providers,
		opts:      o,
		breakers:  make(map[string]*breaker.Breaker),
	}
}

// Breaker returns the circuit breaker guarding the named optional provider,
// creating it on first use.
func (p *Pipeline) Breaker(name string) *breaker.Breaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.breakers[name]; ok {
		return b
	}
	cfg := p.opts.breaker
	cfg.Name = name
	b := breaker.New(cfg, breaker.WithStateListener(func(name string, from, to breaker.State) {
		p.opts.logger.Warn("pipeline: breaker state change",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		p.opts.metrics.SetBreakerState(name, int(to))
	}))
	p.breakers[name] = b
	return b
}

// reservedSections may not be used as late provider names.
var reservedSections = map[string]bool{
	strategy.SectionIndustryResearch: true,
	strategy.SectionCompetitorIntel:  true,
	strategy.SectionICPAnalysis:      true,
	strategy.SectionOfferAnalysis:    true,
	strategy.SectionReconciliation:   true,
	strategy.SectionEnrichment:       true,
	strategy.SectionSynthesis:        true,
	strategy.SectionHooks:            true,
}

// Run executes one pipeline run. The returned Result is never nil. A failed
// required section yields a *SectionError; a context that ends before a
// phase starts yields ErrCancelled. Both set Success to false. In-flight
// provider calls are not interrupted by cancellation.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	r := &run{
		p:      p,
		id:     uuid.NewString(),
		in:     in,
		start:  time.Now(),
		ledger: newLedger(),
	}
	r.brief = provider.Brief{RunID: r.id, Context: in.Context}
	r.log = p.opts.logger.With(zap.String("run_id", r.id))
	ctx = logging.WithRunID(ctx, r.id)

	for name := range in.Late {
		if name == "" || reservedSections[name] {
			return r.fail(fmt.Errorf("pipeline: late provider name %q is reserved", name))
		}
	}

	res, err := r.execute(ctx)
	switch {
	case err == nil:
		p.opts.metrics.RecordRun("success")
	case errors.Is(err, ErrCancelled):
		p.opts.metrics.RecordRun("cancelled")
	default:
		p.opts.metrics.RecordRun("failed")
	}
	return res, err
}

// run is the state of one Run call.
type run struct {
	p      *Pipeline
	id     string
	in     Input
	brief  provider.Brief
	start  time.Time
	ledger *Ledger
	log    *zap.Logger

	emitMu sync.Mutex
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	// Providers never see the caller's cancellation; it is honoured only at
	// phase boundaries.
	detached := context.WithoutCancel(ctx)

	// Phase 1: research. Competitor intel and late enrichment are detached;
	// only industry research is awaited.
	if err := r.checkpoint(ctx, PhaseResearch); err != nil {
		return r.fail(err)
	}
	intel := r.startCompetitorIntel(detached)
	late := r.startLate(detached)

	research, err := invoke(detached, r, PhaseResearch, strategy.SectionIndustryResearch, nil,
		func(ctx context.Context) (strategy.ProviderResult[*strategy.IndustryResearch], error) {
			return r.p.providers.IndustryResearch(ctx, r.brief)
		})
	if err != nil {
		return r.fail(&SectionError{Section: strategy.SectionIndustryResearch, Err: err})
	}

	// Phase 2: analyses, then reconciliation.
	if err := r.checkpoint(ctx, PhaseAnalysis); err != nil {
		return r.fail(err)
	}
	icp, offer, err := r.analyse(detached, research)
	if err != nil {
		return r.fail(err)
	}
	rec := r.reconcileAnalyses(icp, offer)

	enrichment, competitors, pending := r.collectEnrichment(ctx, intel, late)

	// Phase 3: synthesis and hooks.
	if err := r.checkpoint(ctx, PhaseSynthesis); err != nil {
		return r.fail(err)
	}
	policy := r.p.opts.policy
	tier := hooks.ClassifySourceTier(enrichment.AdSources)
	quotas := policy.QuotasFor(tier)

	adjusted := rec.Adjusted
	synthesis, err := invoke(detached, r, PhaseSynthesis, strategy.SectionSynthesis, nil,
		func(ctx context.Context) (strategy.ProviderResult[*strategy.Synthesis], error) {
			return r.p.providers.Synthesis(ctx, provider.SynthesisInput{
				Brief:       r.brief,
				Research:    research,
				Competitors: competitors,
				ICP:         icp,
				Offer:       &adjusted,
				Enrichment:  enrichment,
				Tier:        tier,
				Quotas:      quotas,
			})
		})
	if err != nil {
		return r.fail(&SectionError{Section: strategy.SectionSynthesis, Err: err})
	}

	finalHooks, violations := r.remediateHooks(synthesis)

	artifact := &Artifact{
		RunID:          r.id,
		Context:        r.in.Context,
		Industry:       research,
		Competitors:    competitors,
		ICP:            icp,
		Offer:          rec.Adjusted,
		Reconciliation: rec,
		Enrichment:     enrichment,
		Synthesis:      synthesis,
		Hooks:          finalHooks,
		Violations:     violations,
		HookMix:        hooks.Summarize(finalHooks),
		Tier:           tier,
		Quotas:         quotas,
		Sections:       r.ledger.Snapshot(),
		TotalCost:      r.ledger.TotalCost(),
		Usage:          r.ledger.Usage(),
		Elapsed:        time.Since(r.start),
	}

	r.log.Info("pipeline: run complete",
		zap.Int64("duration_ms", artifact.Elapsed.Milliseconds()),
		zap.Float64("cost", artifact.TotalCost),
		zap.Int("hooks", len(finalHooks)),
		zap.Int("pending", len(pending)),
	)

	res := &Result{
		RunID:    r.id,
		Success:  true,
		Artifact: artifact,
		Pending:  pending,
		ledger:   r.ledger,
	}
	if _, ok := pending[strategy.SectionCompetitorIntel]; ok {
		res.pendingIntel = intel
	}
	return res, nil
}

// checkpoint is the only place cancellation is observed.
func (r *run) checkpoint(ctx context.Context, phase Phase) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w before phase %d (%s): %w", ErrCancelled, int(phase), phase, context.Cause(ctx))
	}
	r.log.Debug("pipeline: phase starting", zap.Int("phase", int(phase)), zap.String("name", phase.String()))
	return nil
}

func (r *run) fail(err error) (*Result, error) {
	res := &Result{RunID: r.id, Error: err.Error()}
	var se *SectionError
	switch {
	case errors.As(err, &se):
		res.Section = se.Section
		r.log.Error("pipeline: required section failed", zap.String("section", se.Section), zap.Error(se.Err))
	case errors.Is(err, ErrCancelled):
		r.log.Info("pipeline: run cancelled", zap.Error(err))
	default:
		r.log.Error("pipeline: run failed", zap.Error(err))
	}
	return res, err
}

// emit calls the observer, one event at a time, stamping elapsed time and
// cumulative cost.
func (r *run) emit(ev ProgressEvent) {
	if r.in.Observer == nil {
		return
	}
	ev.Elapsed = time.Since(r.start)
	ev.CumulativeCost = r.ledger.TotalCost()

	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	r.in.Observer(ev)
}

func (r *run) warnAbsent(section string, err error) {
	fields := []zap.Field{zap.String("section", section), zap.Error(err)}
	var openErr *breaker.OpenError
	if errors.As(err, &openErr) {
		fields = append(fields, zap.Time("retry_at", openErr.RetryAt))
	}
	r.log.Warn("pipeline: optional section unavailable", fields...)
}

// startCompetitorIntel starts the detached competitor research. Its progress
// event fires on completion whether or not anyone still waits for it.
func (r *run) startCompetitorIntel(ctx context.Context) *deadline.Future[*strategy.CompetitorIntel] {
	guard := r.p.Breaker(strategy.SectionCompetitorIntel)
	return deadline.Go(ctx, func(ctx context.Context) (*strategy.CompetitorIntel, error) {
		intel, err := invoke(ctx, r, PhaseResearch, strategy.SectionCompetitorIntel, guard,
			func(ctx context.Context) (strategy.ProviderResult[*strategy.CompetitorIntel], error) {
				return r.p.providers.CompetitorIntel(ctx, r.brief)
			})
		if err != nil {
			r.warnAbsent(strategy.SectionCompetitorIntel, err)
		}
		return intel, err
	})
}

// startLate starts every late enrichment provider, each behind its own
// breaker.
func (r *run) startLate(ctx context.Context) map[string]*deadline.Future[*strategy.Enrichment] {
	out := make(map[string]*deadline.Future[*strategy.Enrichment], len(r.in.Late))
	for name, fn := range r.in.Late {
		guard := r.p.Breaker(name)
		out[name] = deadline.Go(ctx, func(ctx context.Context) (*strategy.Enrichment, error) {
			enr, err := invoke[*strategy.Enrichment](ctx, r, PhaseResearch, name, guard, fn)
			if err != nil {
				r.warnAbsent(name, err)
			}
			return enr, err
		})
	}
	return out
}

func (r *run) analyse(ctx context.Context, research *strategy.IndustryResearch) (*strategy.ICPAnalysis, *strategy.OfferAnalysis, error) {
	in := provider.AnalysisInput{Brief: r.brief, Research: research}

	var (
		icp   *strategy.ICPAnalysis
		offer *strategy.OfferAnalysis
	)
	err := fanOut(ctx, []sectionTask{
		{
			section: strategy.SectionICPAnalysis,
			run: func(ctx context.Context) error {
				v, err := invoke(ctx, r, PhaseAnalysis, strategy.SectionICPAnalysis, nil,
					func(ctx context.Context) (strategy.ProviderResult[*strategy.ICPAnalysis], error) {
						return r.p.providers.ICPAnalysis(ctx, in)
					})
				icp = v
				return err
			},
		},
		{
			section: strategy.SectionOfferAnalysis,
			run: func(ctx context.Context) error {
				v, err := invoke(ctx, r, PhaseAnalysis, strategy.SectionOfferAnalysis, nil,
					func(ctx context.Context) (strategy.ProviderResult[*strategy.OfferAnalysis], error) {
						return r.p.providers.OfferAnalysis(ctx, in)
					})
				offer = v
				return err
			},
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return icp, offer, nil
}

func (r *run) reconcileAnalyses(icp *strategy.ICPAnalysis, offer *strategy.OfferAnalysis) reconcile.Result {
	rec := reconcile.Reconcile(*icp, *offer)
	r.ledger.Record(strategy.SectionReconciliation, SectionStat{Elapsed: rec.Elapsed, Outcome: "success"})

	for _, adj := range rec.Adjustments {
		r.log.Info("pipeline: reconciliation adjustment",
			zap.String("rule", adj.Rule),
			zap.String("field", adj.Field),
			zap.Any("previous", adj.Previous),
			zap.Any("new", adj.New),
		)
	}
	r.emit(ProgressEvent{
		Phase:   PhaseAnalysis,
		Section: strategy.SectionReconciliation,
		Status:  ProgressComplete,
		Message: fmt.Sprintf("%d adjustments", rec.ConflictsDetected),
		Data:    rec,
	})
	return rec
}

// collectEnrichment races every optional source against one shared deadline
// and merges what resolved in time, in a fixed order: pre-supplied data,
// competitor ad text, then late providers by name. Sources that missed the
// deadline are returned as pending handles.
func (r *run) collectEnrichment(
	ctx context.Context,
	intel *deadline.Future[*strategy.CompetitorIntel],
	late map[string]*deadline.Future[*strategy.Enrichment],
) (*strategy.Enrichment, *strategy.CompetitorIntel, map[string]*deadline.Future[*strategy.Enrichment]) {
	grace := r.in.Grace
	if grace < 0 {
		grace = 0
	}
	deadlineAt := time.Now().Add(grace)

	names := make([]string, 0, len(late))
	for name := range late {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		g        errgroup.Group
		intelOut deadline.Outcome[*strategy.CompetitorIntel]
		lateOuts = make([]deadline.Outcome[*strategy.Enrichment], len(names))
	)
	g.Go(func() error {
		intelOut = deadline.RaceUntil(ctx, intel, deadlineAt)
		return nil
	})
	for i, name := range names {
		g.Go(func() error {
			lateOuts[i] = deadline.RaceUntil(ctx, late[name], deadlineAt)
			return nil
		})
	}
	_ = g.Wait()

	merged := r.in.PreSupplied.Merge(nil)
	pending := make(map[string]*deadline.Future[*strategy.Enrichment])
	resolved := 0

	var competitors *strategy.CompetitorIntel
	if intelOut.Resolved() {
		if v, err := intelOut.Value(); err == nil {
			competitors = v
			merged = merged.Merge(intelEnrichment(v))
			resolved++
		}
	} else {
		pending[strategy.SectionCompetitorIntel] = deadline.Map(intel, intelEnrichment)
		r.timedOut(strategy.SectionCompetitorIntel, grace)
	}

	for i, name := range names {
		out := lateOuts[i]
		if out.TimedOut() {
			pending[name] = out.Pending()
			r.timedOut(name, grace)
			continue
		}
		if v, err := out.Value(); err == nil {
			merged = merged.Merge(v)
			resolved++
		}
	}

	r.emit(ProgressEvent{
		Phase:   PhaseAnalysis,
		Section: strategy.SectionEnrichment,
		Status:  ProgressComplete,
		Message: fmt.Sprintf("%d merged, %d pending", resolved, len(pending)),
		Data:    merged,
	})
	return merged, competitors, pending
}

func (r *run) timedOut(source string, grace time.Duration) {
	r.p.opts.metrics.RecordEnrichmentTimeout(source)
	r.log.Info("pipeline: enrichment deadline passed",
		zap.String("section", source),
		zap.Int64("grace_ms", grace.Milliseconds()),
	)
}

func intelEnrichment(intel *strategy.CompetitorIntel) *strategy.Enrichment {
	return &strategy.Enrichment{AdSources: strategy.AdSourcesFromIntel(intel)}
}

// remediateHooks validates the synthesis hooks and repairs them from the
// synthesis fallback pool.
func (r *run) remediateHooks(syn *strategy.Synthesis) ([]hooks.Candidate, []hooks.Violation) {
	policy := r.p.opts.policy
	violations := policy.Check(syn.Hooks)
	final := syn.Hooks
	if len(violations) > 0 || len(syn.Hooks) < policy.Total {
		final = policy.Remediate(syn.Hooks, violations, syn.FallbackHooks)
	}

	byKind := make(map[hooks.ViolationKind]int)
	for _, v := range violations {
		byKind[v.Kind]++
	}
	for kind, n := range byKind {
		r.p.opts.metrics.RecordHookViolations(string(kind), n)
	}
	if len(violations) > 0 {
		r.log.Info("pipeline: hooks remediated",
			zap.Int("violations", len(violations)),
			zap.Int("before", len(syn.Hooks)),
			zap.Int("after", len(final)),
		)
	}

	r.emit(ProgressEvent{
		Phase:   PhaseSynthesis,
		Section: strategy.SectionHooks,
		Status:  ProgressComplete,
		Message: fmt.Sprintf("%d hooks, %d violations repaired", len(final), len(violations)),
		Data:    final,
	})
	return final, violations
}
