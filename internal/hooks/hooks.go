// Package hooks classifies creative-source richness, validates the diversity
// of generated ad hooks and repairs sets that lean too heavily on one
// competitor.
package hooks

import "strings"

// Technique is the persuasion technique a hook uses.
type Technique string

const (
	TechniqueQuestion    Technique = "question"
	TechniqueStatistic   Technique = "statistic"
	TechniqueStory       Technique = "story"
	TechniqueContrarian  Technique = "contrarian"
	TechniquePainPoint   Technique = "pain_point"
	TechniqueCuriosity   Technique = "curiosity"
	TechniqueSocialProof Technique = "social_proof"
	TechniqueUrgency     Technique = "urgency"
)

// Awareness is the audience awareness stage a hook targets.
type Awareness string

const (
	AwarenessUnaware       Awareness = "unaware"
	AwarenessProblemAware  Awareness = "problem_aware"
	AwarenessSolutionAware Awareness = "solution_aware"
	AwarenessProductAware  Awareness = "product_aware"
	AwarenessMostAware     Awareness = "most_aware"
)

// SourceType records how a hook relates to external creative text.
type SourceType string

const (
	// SourceExtracted hooks are taken verbatim from a competitor ad.
	SourceExtracted SourceType = "extracted"
	// SourceInspired hooks follow a pattern seen in a competitor ad.
	SourceInspired SourceType = "inspired"
	// SourceGenerated hooks have no source.
	SourceGenerated SourceType = "generated"
)

// Source attributes a hook to the competitors and platform it came from.
type Source struct {
	Type        SourceType `json:"type" yaml:"type"`
	Competitors []string   `json:"competitors,omitempty" yaml:"competitors,omitempty"`
	Platform    string     `json:"platform,omitempty" yaml:"platform,omitempty"`
}

// Candidate is one generated ad hook.
type Candidate struct {
	Text      string    `json:"text" yaml:"text"`
	Technique Technique `json:"technique" yaml:"technique"`
	Awareness Awareness `json:"awareness" yaml:"awareness"`
	Source    Source    `json:"source" yaml:"source"`
}

// Attributed reports whether the candidate names at least one competitor.
func (c Candidate) Attributed() bool {
	return len(c.sources()) > 0
}

// sources returns the candidate's distinct normalised competitor names in
// first-seen order.
func (c Candidate) sources() []string {
	if len(c.Source.Competitors) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.Source.Competitors))
	seen := make(map[string]bool, len(c.Source.Competitors))
	for _, name := range c.Source.Competitors {
		key := normalize(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// attributes reports whether the candidate names the normalised source.
func (c Candidate) attributes(source string) bool {
	for _, s := range c.sources() {
		if s == source {
			return true
		}
	}
	return false
}

// CreativeSource is the ad text collected from one external competitor.
type CreativeSource struct {
	Name     string   `json:"name" yaml:"name"`
	Platform string   `json:"platform,omitempty" yaml:"platform,omitempty"`
	Texts    []string `json:"texts,omitempty" yaml:"texts,omitempty"`
}

// Usable reports whether the source contributed at least one non-blank text.
func (s CreativeSource) Usable() bool {
	for _, t := range s.Texts {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
