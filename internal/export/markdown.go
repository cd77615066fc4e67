package export

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/orchestrator"
	"github.com/dusk-indust/stratagen/internal/strategy"
)

// notAvailable stands in for an optional section the run did not produce.
const notAvailable = "_Not available in this run._"

// Markdown renders an artifact as one markdown document. Optional sections
// that did not arrive are rendered with a placeholder so the document shape
// is stable across runs.
func Markdown(a *orchestrator.Artifact) (string, error) {
	if a == nil {
		return "", errors.New("export: nil artifact")
	}
	if a.Synthesis == nil {
		return "", errors.New("export: artifact has no synthesis")
	}

	sections := []Section{
		{Name: "summary", Content: summarySection(a)},
		{Name: strategy.SectionIndustryResearch, Content: marketSection(a.Industry)},
		{Name: strategy.SectionCompetitorIntel, Content: competitorSection(a.Competitors)},
		{Name: strategy.SectionICPAnalysis, Content: audienceSection(a.ICP)},
		{Name: strategy.SectionOfferAnalysis, Content: offerSection(a.Offer)},
		{Name: strategy.SectionReconciliation, Content: reconciliationSection(a)},
		{Name: strategy.SectionEnrichment, Content: enrichmentSection(a.Enrichment)},
	}
	for _, s := range a.Synthesis.Sections {
		sections = append(sections, Section{
			Name:    "strategy/" + s.Name,
			Content: fmt.Sprintf("## %s\n\n%s", s.Name, strings.TrimSpace(s.Content)),
		})
	}
	sections = append(sections,
		Section{Name: strategy.SectionHooks, Content: hooksSection(a)},
		Section{Name: "accounting", Content: accountingSection(a)},
	)

	return documentLayout.Assemble(sections)
}

func summarySection(a *orchestrator.Artifact) string {
	var b strings.Builder
	title := a.Synthesis.Title
	if title == "" {
		title = "Marketing Strategy"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Run `%s`\n\n", a.RunID)
	b.WriteString(strings.TrimSpace(a.Synthesis.ExecutiveSummary))
	return b.String()
}

func marketSection(r *strategy.IndustryResearch) string {
	var b strings.Builder
	b.WriteString("## Market\n\n")
	if r == nil {
		b.WriteString(notAvailable)
		return b.String()
	}
	fmt.Fprintf(&b, "**%s**\n\n%s", r.Market, strings.TrimSpace(r.Summary))
	writeList(&b, "Trends", r.Trends)
	writeList(&b, "Sources", r.Sources)
	return b.String()
}

func competitorSection(c *strategy.CompetitorIntel) string {
	var b strings.Builder
	b.WriteString("## Competitors\n\n")
	if c == nil || len(c.Competitors) == 0 {
		b.WriteString(notAvailable)
		return b.String()
	}
	b.WriteString("| Competitor | Positioning | Platforms | Ads |\n")
	b.WriteString("|------------|-------------|-----------|-----|\n")
	for _, comp := range c.Competitors {
		fmt.Fprintf(&b, "| %s | %s | %s | %d |\n",
			comp.Name, comp.Positioning, strings.Join(comp.Platforms, ", "), len(comp.AdTexts))
	}
	return strings.TrimRight(b.String(), "\n")
}

func audienceSection(icp *strategy.ICPAnalysis) string {
	var b strings.Builder
	b.WriteString("## Audience\n\n")
	if icp == nil {
		b.WriteString(notAvailable)
		return b.String()
	}
	fmt.Fprintf(&b, "- Verdict: %s\n- Pain point strength: %s", icp.Verdict, icp.PainPointStrength)
	writeList(&b, "Segments", icp.Segments)
	if len(icp.Risks) > 0 {
		b.WriteString("\n\n### Risks\n")
		for _, r := range icp.Risks {
			blocking := ""
			if r.Blocking {
				blocking = " (blocking)"
			}
			fmt.Fprintf(&b, "\n- %s: %s%s", r.Category, r.Severity, blocking)
			if r.Note != "" {
				fmt.Fprintf(&b, ". %s", r.Note)
			}
		}
	}
	return b.String()
}

func offerSection(o strategy.OfferAnalysis) string {
	var b strings.Builder
	b.WriteString("## Offer\n\n")
	fmt.Fprintf(&b, "- Score: %.1f/10\n", o.OverallScore)
	fmt.Fprintf(&b, "- Recommendation: %s\n", o.Recommendation)
	fmt.Fprintf(&b, "- Economics: %s\n", o.Economics)
	fmt.Fprintf(&b, "- Confidence: %.0f%%", o.Confidence*100)
	writeList(&b, "Red flags", o.RedFlags)
	return b.String()
}

func reconciliationSection(a *orchestrator.Artifact) string {
	var b strings.Builder
	b.WriteString("## Reconciliation\n\n")
	rec := a.Reconciliation
	if !rec.Changed() {
		b.WriteString("No conflicts between audience and offer analyses.")
	} else {
		b.WriteString("| Field | Before | After | Rule |\n")
		b.WriteString("|-------|--------|-------|------|\n")
		for _, adj := range rec.Adjustments {
			fmt.Fprintf(&b, "| %s | %v | %v | %s |\n", adj.Field, adj.Previous, adj.New, adj.Rule)
		}
		b.WriteString("\n")
		for _, adj := range rec.Adjustments {
			fmt.Fprintf(&b, "- %s\n", adj.Rationale)
		}
	}
	for _, n := range rec.Notes {
		fmt.Fprintf(&b, "\n> %s", n)
	}
	return strings.TrimRight(b.String(), "\n")
}

func enrichmentSection(e *strategy.Enrichment) string {
	var b strings.Builder
	b.WriteString("## Enrichment\n\n")
	if e.Empty() {
		b.WriteString(notAvailable)
		return b.String()
	}
	if len(e.Keywords) > 0 {
		b.WriteString("| Keyword | Volume | CPC |\n")
		b.WriteString("|---------|--------|-----|\n")
		for _, k := range e.Keywords {
			fmt.Fprintf(&b, "| %s | %d | %.2f |\n", k.Term, k.Volume, k.CPC)
		}
		b.WriteString("\n")
	}
	if len(e.AdSources) > 0 {
		fmt.Fprintf(&b, "Creative sources: %d (%s)\n", len(e.AdSources), hooks.ClassifySourceTier(e.AdSources))
	}
	for _, n := range e.Notes {
		fmt.Fprintf(&b, "\n> %s", n)
	}
	return strings.TrimRight(b.String(), "\n")
}

func hooksSection(a *orchestrator.Artifact) string {
	var b strings.Builder
	b.WriteString("## Hooks\n\n")
	fmt.Fprintf(&b, "Source tier **%s**: %d extracted, %d inspired, %d generated.\n\n",
		a.Tier, a.Quotas.Extracted, a.Quotas.Inspired, a.Quotas.Generated)
	if len(a.Hooks) == 0 {
		b.WriteString(notAvailable)
		return b.String()
	}
	for i, h := range a.Hooks {
		fmt.Fprintf(&b, "%d. %s", i+1, h.Text)
		var tags []string
		if h.Technique != "" {
			tags = append(tags, string(h.Technique))
		}
		if h.Source.Type != "" {
			tags = append(tags, string(h.Source.Type))
		}
		if len(h.Source.Competitors) > 0 {
			tags = append(tags, strings.Join(h.Source.Competitors, "+"))
		}
		if len(tags) > 0 {
			fmt.Fprintf(&b, " _(%s)_", strings.Join(tags, ", "))
		}
		b.WriteString("\n")
	}
	if n := len(a.Violations); n > 0 {
		fmt.Fprintf(&b, "\n%d diversity violations were repaired before export.\n", n)
	}
	return strings.TrimRight(b.String(), "\n")
}

func accountingSection(a *orchestrator.Artifact) string {
	var b strings.Builder
	b.WriteString("## Run Accounting\n\n")
	b.WriteString("| Section | Outcome | Duration | Cost | Tokens |\n")
	b.WriteString("|---------|---------|----------|------|--------|\n")
	names := make([]string, 0, len(a.Sections))
	for name := range a.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := a.Sections[name]
		fmt.Fprintf(&b, "| %s | %s | %s | $%.4f | %d |\n", name, s.Outcome, s.Elapsed.Round(time.Millisecond), s.Cost, s.Usage.Total)
	}
	fmt.Fprintf(&b, "\nTotal: $%.4f, %d tokens, %s", a.TotalCost, a.Usage.Total, a.Elapsed.Round(time.Millisecond))
	if len(a.LateMerged) > 0 {
		fmt.Fprintf(&b, "\n\nMerged after the run: %s", strings.Join(a.LateMerged, ", "))
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n%s:\n", title)
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "- %s", item)
	}
}
