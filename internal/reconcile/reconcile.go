// Package reconcile detects logical contradictions between the ICP and offer
// analyses and resolves them deterministically by adjusting a copy of the
// offer analysis.
package reconcile

import (
	"fmt"
	"time"

	"github.com/dusk-indust/stratagen/internal/strategy"
)

var now = time.Now

// Rule names, in evaluation order.
const (
	RuleInvalidICPBlocksProceed    = "invalid-icp-blocks-proceed"
	RuleBlockingRiskCapsEconomics  = "blocking-risk-caps-economics"
	RuleScoreMatchesRecommendation = "score-matches-recommendation"
	RuleWeakPainCapsConfidence     = "weak-pain-caps-confidence"
)

// Caps applied by the rules.
const (
	NonProceedScoreCap    = 7.0
	WeakPainConfidenceCap = 0.7
)

// Adjustment records one field change made to the offer analysis.
type Adjustment struct {
	Field     string `json:"field"`
	Previous  any    `json:"previous"`
	New       any    `json:"new"`
	Rule      string `json:"rule"`
	Rationale string `json:"rationale"`
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Adjusted          strategy.OfferAnalysis `json:"adjusted"`
	ConflictsDetected int                    `json:"conflictsDetected"`
	Adjustments       []Adjustment           `json:"adjustments"`
	Notes             []string               `json:"notes,omitempty"`
	Elapsed           time.Duration          `json:"elapsedNs"`
}

// Changed reports whether any rule fired.
func (r Result) Changed() bool {
	return len(r.Adjustments) > 0
}

type rule struct {
	name  string
	apply func(icp strategy.ICPAnalysis, offer *strategy.OfferAnalysis) *Adjustment
}

// rules run in this fixed order; each sees the adjustments made before it.
var rules = []rule{
	{RuleInvalidICPBlocksProceed, invalidICPBlocksProceed},
	{RuleBlockingRiskCapsEconomics, blockingRiskCapsEconomics},
	{RuleScoreMatchesRecommendation, scoreMatchesRecommendation},
	{RuleWeakPainCapsConfidence, weakPainCapsConfidence},
}

// Reconcile applies every rule to a copy of offer. It never fails and never
// modifies its inputs. Enum values it does not recognise make the rules that
// read them inapplicable.
func Reconcile(icp strategy.ICPAnalysis, offer strategy.OfferAnalysis) Result {
	start := now()
	adjusted := offer.Clone()

	var adjustments []Adjustment
	for _, r := range rules {
		if adj := r.apply(icp, &adjusted); adj != nil {
			adj.Rule = r.name
			adjustments = append(adjustments, *adj)
		}
	}

	var notes []string
	if !knownVerdict(icp.Verdict) {
		notes = append(notes, fmt.Sprintf("icp verdict %q not recognised; verdict rules skipped", icp.Verdict))
	}
	if !knownRecommendation(offer.Recommendation) {
		notes = append(notes, fmt.Sprintf("offer recommendation %q not recognised; recommendation rules skipped", offer.Recommendation))
	}
	if len(adjustments) == 0 {
		notes = append(notes, "no conflicts detected")
	}

	if adjustments == nil {
		adjustments = []Adjustment{}
	}
	return Result{
		Adjusted:          adjusted,
		ConflictsDetected: len(adjustments),
		Adjustments:       adjustments,
		Notes:             notes,
		Elapsed:           now().Sub(start),
	}
}

func invalidICPBlocksProceed(icp strategy.ICPAnalysis, offer *strategy.OfferAnalysis) *Adjustment {
	if icp.Verdict != strategy.VerdictInvalid || offer.Recommendation != strategy.RecommendProceed {
		return nil
	}
	prev := offer.Recommendation
	offer.Recommendation = strategy.RecommendICPRefinementNeeded
	return &Adjustment{
		Field:     "recommendation",
		Previous:  prev,
		New:       offer.Recommendation,
		Rationale: "the ICP was judged invalid, so the offer cannot proceed until the audience is refined",
	}
}

func blockingRiskCapsEconomics(icp strategy.ICPAnalysis, offer *strategy.OfferAnalysis) *Adjustment {
	if offer.Economics != strategy.EconomicsFavorable {
		return nil
	}
	risk, ok := firstBlockingRisk(icp.Risks)
	if !ok {
		return nil
	}
	prev := offer.Economics
	offer.Economics = strategy.EconomicsMarginal
	return &Adjustment{
		Field:     "economics",
		Previous:  prev,
		New:       offer.Economics,
		Rationale: fmt.Sprintf("ICP risk %q (%s) is blocking, so economics cannot be favorable", risk.Category, risk.Severity),
	}
}

func scoreMatchesRecommendation(_ strategy.ICPAnalysis, offer *strategy.OfferAnalysis) *Adjustment {
	if !knownRecommendation(offer.Recommendation) || offer.Recommendation == strategy.RecommendProceed {
		return nil
	}
	if offer.OverallScore <= NonProceedScoreCap {
		return nil
	}
	prev := offer.OverallScore
	offer.OverallScore = NonProceedScoreCap
	return &Adjustment{
		Field:     "overallScore",
		Previous:  prev,
		New:       offer.OverallScore,
		Rationale: fmt.Sprintf("recommendation %q is incompatible with a score above %g", offer.Recommendation, NonProceedScoreCap),
	}
}

func weakPainCapsConfidence(icp strategy.ICPAnalysis, offer *strategy.OfferAnalysis) *Adjustment {
	if icp.PainPointStrength != strategy.StrengthWeak || offer.Confidence <= WeakPainConfidenceCap {
		return nil
	}
	prev := offer.Confidence
	offer.Confidence = WeakPainConfidenceCap
	return &Adjustment{
		Field:     "confidence",
		Previous:  prev,
		New:       offer.Confidence,
		Rationale: "pain points are weak, so confidence in the offer is capped",
	}
}

func firstBlockingRisk(risks []strategy.Risk) (strategy.Risk, bool) {
	for _, r := range risks {
		if r.Blocking || r.Severity == strategy.SeverityCritical {
			return r, true
		}
	}
	return strategy.Risk{}, false
}

func knownVerdict(v strategy.Verdict) bool {
	switch v {
	case strategy.VerdictValidated, strategy.VerdictWorkable, strategy.VerdictInvalid:
		return true
	}
	return false
}

func knownRecommendation(r strategy.Recommendation) bool {
	switch r {
	case strategy.RecommendProceed, strategy.RecommendAdjustMessaging, strategy.RecommendAdjustPricing,
		strategy.RecommendICPRefinementNeeded, strategy.RecommendMajorOfferRework:
		return true
	}
	return false
}
