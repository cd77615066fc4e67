package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/stratagen/internal/hooks"
)

// Keyword is one search keyword with its demand and price.
type Keyword struct {
	Term   string  `json:"term" yaml:"term"`
	Volume int     `json:"volume,omitempty" yaml:"volume,omitempty"`
	CPC    float64 `json:"cpc,omitempty" yaml:"cpc,omitempty"`
}

// Enrichment is optional supplementary data: keywords, competitor ad text
// and free-form notes. Enrichment from several providers is merged.
type Enrichment struct {
	Keywords  []Keyword              `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	AdSources []hooks.CreativeSource `json:"adSources,omitempty" yaml:"ad_sources,omitempty"`
	Notes     []string               `json:"notes,omitempty" yaml:"notes,omitempty"`
}

func (e *Enrichment) Validate() error {
	if e == nil {
		return errors.New("enrichment is nil")
	}
	for i, k := range e.Keywords {
		if strings.TrimSpace(k.Term) == "" {
			return fmt.Errorf("enrichment: keyword %d has no term", i)
		}
	}
	return nil
}

// Empty reports whether the enrichment carries no data.
func (e *Enrichment) Empty() bool {
	return e == nil || (len(e.Keywords) == 0 && len(e.AdSources) == 0 && len(e.Notes) == 0)
}

// Merge returns a new Enrichment holding e followed by o. Keywords are
// deduplicated by term, case-insensitively, keeping the first seen. Either
// side may be nil.
func (e *Enrichment) Merge(o *Enrichment) *Enrichment {
	out := &Enrichment{}
	seen := make(map[string]bool)
	for _, src := range []*Enrichment{e, o} {
		if src == nil {
			continue
		}
		for _, k := range src.Keywords {
			key := strings.ToLower(strings.TrimSpace(k.Term))
			if seen[key] {
				continue
			}
			seen[key] = true
			out.Keywords = append(out.Keywords, k)
		}
		out.AdSources = append(out.AdSources, src.AdSources...)
		out.Notes = append(out.Notes, src.Notes...)
	}
	return out
}

// AdSourcesFromIntel converts competitor research into creative sources for
// tier classification.
func AdSourcesFromIntel(intel *CompetitorIntel) []hooks.CreativeSource {
	if intel == nil {
		return nil
	}
	out := make([]hooks.CreativeSource, 0, len(intel.Competitors))
	for _, c := range intel.Competitors {
		platform := ""
		if len(c.Platforms) > 0 {
			platform = c.Platforms[0]
		}
		out = append(out, hooks.CreativeSource{Name: c.Name, Platform: platform, Texts: c.AdTexts})
	}
	return out
}

// Section is one named block of the strategy document.
type Section struct {
	Name    string `json:"name" yaml:"name"`
	Content string `json:"content" yaml:"content"`
}

// Synthesis is the final-phase strategy document together with its hook
// candidates and a pool of unattributed fallback hooks.
type Synthesis struct {
	Title            string            `json:"title" yaml:"title"`
	ExecutiveSummary string            `json:"executiveSummary" yaml:"executive_summary"`
	Sections         []Section         `json:"sections,omitempty" yaml:"sections,omitempty"`
	Hooks            []hooks.Candidate `json:"hooks,omitempty" yaml:"hooks,omitempty"`
	FallbackHooks    []hooks.Candidate `json:"fallbackHooks,omitempty" yaml:"fallback_hooks,omitempty"`
}

func (s *Synthesis) Validate() error {
	if s == nil {
		return errors.New("synthesis is nil")
	}
	if strings.TrimSpace(s.ExecutiveSummary) == "" {
		return errors.New("synthesis: executive summary is required")
	}
	for i, h := range s.Hooks {
		if strings.TrimSpace(h.Text) == "" {
			return fmt.Errorf("synthesis: hook %d has no text", i)
		}
	}
	return nil
}
