package orchestrator

import (
	"time"

	"github.com/dusk-indust/stratagen/internal/deadline"
	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/provider"
	"github.com/dusk-indust/stratagen/internal/reconcile"
	"github.com/dusk-indust/stratagen/internal/strategy"
)

// Phase identifies a pipeline phase (1–3).
type Phase int

const (
	PhaseResearch  Phase = 1
	PhaseAnalysis  Phase = 2
	PhaseSynthesis Phase = 3
)

func (p Phase) String() string {
	switch p {
	case PhaseResearch:
		return "research"
	case PhaseAnalysis:
		return "analysis"
	case PhaseSynthesis:
		return "synthesis"
	default:
		return "unknown"
	}
}

// ProgressStatus is the state of a section within a phase.
type ProgressStatus string

const (
	ProgressStarting ProgressStatus = "starting"
	ProgressComplete ProgressStatus = "complete"
	ProgressError    ProgressStatus = "error"
)

// ProgressEvent is emitted to the caller during pipeline execution. Events
// are never stored by the pipeline.
type ProgressEvent struct {
	Phase          Phase
	Section        string
	Status         ProgressStatus
	Message        string
	Elapsed        time.Duration // since the run started
	CumulativeCost float64
	Data           any // section payload on completion
}

// Input configures one pipeline run. Grace is the time optional enrichment
// may take after the analysis phase completes; zero only accepts data that
// is already in. Observer may be called from several goroutines, including
// after Run returns when detached work completes late.
type Input struct {
	Context     string
	Observer    func(ProgressEvent)
	PreSupplied *strategy.Enrichment
	Late        map[string]provider.LateFunc
	Grace       time.Duration
}

// Artifact is the assembled strategy.
type Artifact struct {
	RunID          string                     `json:"runId"`
	Context        string                     `json:"context"`
	Industry       *strategy.IndustryResearch `json:"industry"`
	Competitors    *strategy.CompetitorIntel  `json:"competitors,omitempty"`
	ICP            *strategy.ICPAnalysis      `json:"icp"`
	Offer          strategy.OfferAnalysis     `json:"offer"`
	Reconciliation reconcile.Result           `json:"reconciliation"`
	Enrichment     *strategy.Enrichment       `json:"enrichment"`
	Synthesis      *strategy.Synthesis        `json:"synthesis"`
	Hooks          []hooks.Candidate          `json:"hooks"`
	Violations     []hooks.Violation          `json:"violations,omitempty"`
	HookMix        hooks.Mix                  `json:"hookMix"`
	Tier           hooks.Tier                 `json:"tier"`
	Quotas         hooks.Quotas               `json:"quotas"`
	Sections       map[string]SectionStat     `json:"sections"`
	TotalCost      float64                    `json:"totalCost"`
	Usage          strategy.Usage             `json:"usage"`
	Elapsed        time.Duration              `json:"elapsedNs"`
	LateMerged     []string                   `json:"lateMerged,omitempty"`
}

// Result is the outcome of a run. On failure Error and Section describe the
// failing required section; Section is empty for cancellation.
type Result struct {
	RunID    string
	Success  bool
	Artifact *Artifact
	Error    string
	Section  string

	// Pending holds optional enrichment that missed the grace deadline. Each
	// handle stays awaitable; see MergeLate.
	Pending map[string]*deadline.Future[*strategy.Enrichment]

	pendingIntel *deadline.Future[*strategy.CompetitorIntel]
	ledger       *Ledger
}
