package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stratagen/internal/strategy"
)

func consistentPair() (strategy.ICPAnalysis, strategy.OfferAnalysis) {
	icp := strategy.ICPAnalysis{
		Verdict:           strategy.VerdictValidated,
		PainPointStrength: strategy.StrengthStrong,
		Risks:             []strategy.Risk{{Category: "budget", Severity: strategy.SeverityLow}},
	}
	offer := strategy.OfferAnalysis{
		OverallScore:   6.5,
		Recommendation: strategy.RecommendProceed,
		Economics:      strategy.EconomicsFavorable,
		Confidence:     0.9,
	}
	return icp, offer
}

func TestReconcile_NoConflicts(t *testing.T) {
	icp, offer := consistentPair()
	res := Reconcile(icp, offer)

	assert.Equal(t, 0, res.ConflictsDetected)
	assert.Empty(t, res.Adjustments)
	assert.False(t, res.Changed())
	assert.Equal(t, offer, res.Adjusted)
	assert.Contains(t, res.Notes, "no conflicts detected")
}

func TestReconcile_SingleRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*strategy.ICPAnalysis, *strategy.OfferAnalysis)
		rule   string
		field  string
		check  func(t *testing.T, o strategy.OfferAnalysis)
	}{
		{
			name: "invalid icp blocks proceed",
			mutate: func(i *strategy.ICPAnalysis, _ *strategy.OfferAnalysis) {
				i.Verdict = strategy.VerdictInvalid
			},
			rule:  RuleInvalidICPBlocksProceed,
			field: "recommendation",
			check: func(t *testing.T, o strategy.OfferAnalysis) {
				assert.Equal(t, strategy.RecommendICPRefinementNeeded, o.Recommendation)
			},
		},
		{
			name: "blocking risk caps economics",
			mutate: func(i *strategy.ICPAnalysis, _ *strategy.OfferAnalysis) {
				i.Risks = append(i.Risks, strategy.Risk{Category: "compliance", Severity: strategy.SeverityHigh, Blocking: true})
			},
			rule:  RuleBlockingRiskCapsEconomics,
			field: "economics",
			check: func(t *testing.T, o strategy.OfferAnalysis) {
				assert.Equal(t, strategy.EconomicsMarginal, o.Economics)
			},
		},
		{
			name: "critical risk counts as blocking",
			mutate: func(i *strategy.ICPAnalysis, _ *strategy.OfferAnalysis) {
				i.Risks = []strategy.Risk{{Category: "market", Severity: strategy.SeverityCritical}}
			},
			rule:  RuleBlockingRiskCapsEconomics,
			field: "economics",
			check: func(t *testing.T, o strategy.OfferAnalysis) {
				assert.Equal(t, strategy.EconomicsMarginal, o.Economics)
			},
		},
		{
			name: "score matches recommendation",
			mutate: func(_ *strategy.ICPAnalysis, o *strategy.OfferAnalysis) {
				o.Recommendation = strategy.RecommendAdjustPricing
				o.OverallScore = 8.5
			},
			rule:  RuleScoreMatchesRecommendation,
			field: "overallScore",
			check: func(t *testing.T, o strategy.OfferAnalysis) {
				assert.Equal(t, 7.0, o.OverallScore)
			},
		},
		{
			name: "weak pain caps confidence",
			mutate: func(i *strategy.ICPAnalysis, _ *strategy.OfferAnalysis) {
				i.PainPointStrength = strategy.StrengthWeak
			},
			rule:  RuleWeakPainCapsConfidence,
			field: "confidence",
			check: func(t *testing.T, o strategy.OfferAnalysis) {
				assert.Equal(t, 0.7, o.Confidence)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			icp, offer := consistentPair()
			tt.mutate(&icp, &offer)

			res := Reconcile(icp, offer)
			require.Len(t, res.Adjustments, 1)
			assert.Equal(t, 1, res.ConflictsDetected)
			adj := res.Adjustments[0]
			assert.Equal(t, tt.rule, adj.Rule)
			assert.Equal(t, tt.field, adj.Field)
			assert.NotEqual(t, adj.Previous, adj.New)
			assert.NotEmpty(t, adj.Rationale)
			tt.check(t, res.Adjusted)
		})
	}
}

func TestReconcile_RulesSeePriorAdjustments(t *testing.T) {
	icp, offer := consistentPair()
	offer.OverallScore = 8.5
	icp.Verdict = strategy.VerdictInvalid
	icp.PainPointStrength = strategy.StrengthWeak
	icp.Risks = []strategy.Risk{{Category: "regulation", Severity: strategy.SeverityCritical}}

	res := Reconcile(icp, offer)

	// The recommendation change from the first rule makes the score rule fire.
	var ruleNames []string
	for _, a := range res.Adjustments {
		ruleNames = append(ruleNames, a.Rule)
	}
	assert.Equal(t, []string{
		RuleInvalidICPBlocksProceed,
		RuleBlockingRiskCapsEconomics,
		RuleScoreMatchesRecommendation,
		RuleWeakPainCapsConfidence,
	}, ruleNames)
	assert.Equal(t, len(res.Adjustments), res.ConflictsDetected)

	assert.Equal(t, strategy.OfferAnalysis{
		OverallScore:   7,
		Recommendation: strategy.RecommendICPRefinementNeeded,
		Economics:      strategy.EconomicsMarginal,
		Confidence:     0.7,
	}, res.Adjusted)
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	icp, offer := consistentPair()
	icp.Verdict = strategy.VerdictInvalid
	offer.RedFlags = []string{"long sales cycle"}
	before := offer.Clone()

	res := Reconcile(icp, offer)
	res.Adjusted.RedFlags[0] = "edited"

	assert.Equal(t, before, offer)
}

func TestReconcile_UnknownEnumsAreInapplicable(t *testing.T) {
	icp := strategy.ICPAnalysis{Verdict: "maybe", PainPointStrength: "meh"}
	offer := strategy.OfferAnalysis{
		OverallScore:   9,
		Recommendation: "ship_it",
		Economics:      "great",
		Confidence:     0.95,
	}

	res := Reconcile(icp, offer)
	assert.Equal(t, 0, res.ConflictsDetected)
	assert.Equal(t, offer, res.Adjusted)
	assert.Len(t, res.Notes, 3)
}

func TestReconcile_Deterministic(t *testing.T) {
	icp, offer := consistentPair()
	icp.Verdict = strategy.VerdictInvalid
	icp.PainPointStrength = strategy.StrengthWeak

	a := Reconcile(icp, offer)
	b := Reconcile(icp, offer)
	assert.Equal(t, a.ConflictsDetected, b.ConflictsDetected)
	assert.Equal(t, a.Adjustments, b.Adjustments)
	assert.Equal(t, a.Adjusted, b.Adjusted)
}
