package strategy

import (
	"errors"
	"fmt"
	"strings"
)

// IndustryResearch is the required first-phase output every later phase
// builds on.
type IndustryResearch struct {
	Market  string   `json:"market" yaml:"market"`
	Summary string   `json:"summary" yaml:"summary"`
	Trends  []string `json:"trends,omitempty" yaml:"trends,omitempty"`
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`
}

func (r *IndustryResearch) Validate() error {
	if r == nil {
		return errors.New("industry research is nil")
	}
	if strings.TrimSpace(r.Market) == "" {
		return errors.New("industry research: market is required")
	}
	if strings.TrimSpace(r.Summary) == "" {
		return errors.New("industry research: summary is required")
	}
	return nil
}

// Competitor is one competitor found by competitor research.
type Competitor struct {
	Name        string   `json:"name" yaml:"name"`
	Positioning string   `json:"positioning,omitempty" yaml:"positioning,omitempty"`
	AdTexts     []string `json:"adTexts,omitempty" yaml:"ad_texts,omitempty"`
	Platforms   []string `json:"platforms,omitempty" yaml:"platforms,omitempty"`
}

// CompetitorIntel is the optional competitor research output.
type CompetitorIntel struct {
	Competitors []Competitor `json:"competitors" yaml:"competitors"`
}

func (c *CompetitorIntel) Validate() error {
	if c == nil {
		return errors.New("competitor intel is nil")
	}
	for i, comp := range c.Competitors {
		if strings.TrimSpace(comp.Name) == "" {
			return fmt.Errorf("competitor intel: competitor %d has no name", i)
		}
	}
	return nil
}

// Verdict is the ICP validation outcome.
type Verdict string

const (
	VerdictValidated Verdict = "validated"
	VerdictWorkable  Verdict = "workable"
	VerdictInvalid   Verdict = "invalid"
)

// Severity grades an ICP risk.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Strength grades how acute the audience's pain points are.
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
	StrengthWeak     Strength = "weak"
)

// Risk is one risk the ICP analysis identified.
type Risk struct {
	Category string   `json:"category" yaml:"category"`
	Severity Severity `json:"severity" yaml:"severity"`
	Blocking bool     `json:"blocking,omitempty" yaml:"blocking,omitempty"`
	Note     string   `json:"note,omitempty" yaml:"note,omitempty"`
}

// ICPAnalysis is the ideal-customer-profile assessment.
type ICPAnalysis struct {
	Verdict           Verdict  `json:"verdict" yaml:"verdict"`
	Risks             []Risk   `json:"risks,omitempty" yaml:"risks,omitempty"`
	PainPointStrength Strength `json:"painPointStrength" yaml:"pain_point_strength"`
	Segments          []string `json:"segments,omitempty" yaml:"segments,omitempty"`
}

// Validate only checks that the record exists. Unknown enum values are
// tolerated and simply fail to match reconciliation rules.
func (a *ICPAnalysis) Validate() error {
	if a == nil {
		return errors.New("icp analysis is nil")
	}
	return nil
}

// Recommendation is the offer analysis' go/no-go advice.
type Recommendation string

const (
	RecommendProceed             Recommendation = "proceed"
	RecommendAdjustMessaging     Recommendation = "adjust_messaging"
	RecommendAdjustPricing       Recommendation = "adjust_pricing"
	RecommendICPRefinementNeeded Recommendation = "icp_refinement_needed"
	RecommendMajorOfferRework    Recommendation = "major_offer_rework"
)

// Economics grades the offer's unit economics.
type Economics string

const (
	EconomicsFavorable   Economics = "favorable"
	EconomicsMarginal    Economics = "marginal"
	EconomicsUnfavorable Economics = "unfavorable"
)

// OfferAnalysis is the offer viability assessment. Reconciliation may
// produce an adjusted copy; the original is never mutated.
type OfferAnalysis struct {
	OverallScore   float64        `json:"overallScore" yaml:"overall_score"`
	Recommendation Recommendation `json:"recommendation" yaml:"recommendation"`
	Economics      Economics      `json:"economics" yaml:"economics"`
	Confidence     float64        `json:"confidence" yaml:"confidence"`
	RedFlags       []string       `json:"redFlags,omitempty" yaml:"red_flags,omitempty"`
}

func (o *OfferAnalysis) Validate() error {
	if o == nil {
		return errors.New("offer analysis is nil")
	}
	if o.OverallScore < 0 || o.OverallScore > 10 {
		return fmt.Errorf("offer analysis: overall score %g outside 0-10", o.OverallScore)
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("offer analysis: confidence %g outside 0-1", o.Confidence)
	}
	return nil
}

// Clone returns a deep copy.
func (o OfferAnalysis) Clone() OfferAnalysis {
	c := o
	if o.RedFlags != nil {
		c.RedFlags = append([]string(nil), o.RedFlags...)
	}
	return c
}
