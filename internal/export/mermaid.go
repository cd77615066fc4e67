package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/stratagen/internal/orchestrator"
	"github.com/dusk-indust/stratagen/internal/strategy"
)

// builtinSections are the sections every run knows about; anything else in
// the ledger came from a late provider.
var builtinSections = map[string]bool{
	strategy.SectionIndustryResearch: true,
	strategy.SectionCompetitorIntel:  true,
	strategy.SectionICPAnalysis:      true,
	strategy.SectionOfferAnalysis:    true,
	strategy.SectionReconciliation:   true,
	strategy.SectionEnrichment:       true,
	strategy.SectionSynthesis:        true,
	strategy.SectionHooks:            true,
}

// GenerateMermaid produces a Mermaid graph TD diagram of a run. Sections are
// grouped by phase and labelled with their outcome; data flow between
// sections becomes arrows.
func GenerateMermaid(res *orchestrator.Result) (string, error) {
	if res == nil || res.Artifact == nil {
		return "", fmt.Errorf("export: run produced no artifact")
	}
	a := res.Artifact

	// Build section → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(name string) string {
		if id, ok := nodeIDs[name]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[name] = id
		return id
	}

	pending := make(map[string]bool, len(res.Pending))
	for name := range res.Pending {
		pending[name] = true
	}

	lateSet := make(map[string]bool)
	for name := range a.Sections {
		if !builtinSections[name] {
			lateSet[name] = true
		}
	}
	for name := range pending {
		if !builtinSections[name] {
			lateSet[name] = true
		}
	}
	late := make([]string, 0, len(lateSet))
	for name := range lateSet {
		late = append(late, name)
	}
	sort.Strings(late)

	outcome := func(name string) string {
		if pending[name] {
			return "pending"
		}
		if s, ok := a.Sections[name]; ok {
			return s.Outcome
		}
		switch name {
		case strategy.SectionEnrichment, strategy.SectionHooks:
			return "success"
		}
		return "absent"
	}

	phases := []struct {
		phase    orchestrator.Phase
		sections []string
	}{
		{orchestrator.PhaseResearch, append([]string{strategy.SectionIndustryResearch, strategy.SectionCompetitorIntel}, late...)},
		{orchestrator.PhaseAnalysis, []string{strategy.SectionICPAnalysis, strategy.SectionOfferAnalysis, strategy.SectionReconciliation, strategy.SectionEnrichment}},
		{orchestrator.PhaseSynthesis, []string{strategy.SectionSynthesis, strategy.SectionHooks}},
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	classes := make(map[string][]string)
	for _, ph := range phases {
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%d. %s\"]\n", getID(ph.phase.String()+"_phase"), int(ph.phase), ph.phase))
		for _, name := range ph.sections {
			state := outcome(name)
			sb.WriteString(fmt.Sprintf("    %s[\"%.40s<br/>%s\"]\n", getID(name), name, state))
			classes[state] = append(classes[state], getID(name))
		}
		sb.WriteString("  end\n")
	}

	edges := [][2]string{
		{strategy.SectionIndustryResearch, strategy.SectionICPAnalysis},
		{strategy.SectionIndustryResearch, strategy.SectionOfferAnalysis},
		{strategy.SectionICPAnalysis, strategy.SectionReconciliation},
		{strategy.SectionOfferAnalysis, strategy.SectionReconciliation},
		{strategy.SectionCompetitorIntel, strategy.SectionEnrichment},
	}
	for _, name := range late {
		edges = append(edges, [2]string{name, strategy.SectionEnrichment})
	}
	edges = append(edges,
		[2]string{strategy.SectionReconciliation, strategy.SectionSynthesis},
		[2]string{strategy.SectionEnrichment, strategy.SectionSynthesis},
		[2]string{strategy.SectionSynthesis, strategy.SectionHooks},
	)
	for _, e := range edges {
		arrow := "-->"
		if pending[e[0]] || outcome(e[0]) != "success" {
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("  %s %s %s\n", getID(e[0]), arrow, getID(e[1])))
	}

	for _, state := range []string{"error", "pending", "absent"} {
		ids := classes[state]
		if len(ids) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("  classDef %s %s\n", state, classStyle[state]))
		sb.WriteString(fmt.Sprintf("  class %s %s\n", strings.Join(ids, ","), state))
	}

	return sb.String(), nil
}

var classStyle = map[string]string{
	"error":   "fill:#fdd,stroke:#c00",
	"pending": "fill:#ffd,stroke:#aa0,stroke-dasharray:4",
	"absent":  "fill:#eee,stroke:#999",
}
