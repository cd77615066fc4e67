package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/stratagen/internal/strategy"
)

// sectionRule separates sections in the rendered document.
const sectionRule = "\n\n---\n\n"

// Section is one named block of rendered markdown.
type Section struct {
	Name    string
	Content string
}

// Layout fixes the order of a document's sections. An entry ending in "/*"
// is a slot: it takes every section whose name has that prefix, in the order
// the sections were given, and may match none.
type Layout []string

// documentLayout is the order Markdown renders a strategy in.
var documentLayout = Layout{
	"summary",
	strategy.SectionIndustryResearch,
	strategy.SectionCompetitorIntel,
	strategy.SectionICPAnalysis,
	strategy.SectionOfferAnalysis,
	strategy.SectionReconciliation,
	strategy.SectionEnrichment,
	"strategy/*",
	strategy.SectionHooks,
	"accounting",
}

// Assemble joins sections in layout order. Every named entry must be present
// exactly once; sections the layout does not place go last.
func (l Layout) Assemble(sections []Section) (string, error) {
	count := make(map[string]int, len(sections))
	var dups []string
	for _, sec := range sections {
		count[sec.Name]++
		if count[sec.Name] == 2 {
			dups = append(dups, sec.Name)
		}
	}
	if len(dups) > 0 {
		for i, name := range dups {
			dups[i] = fmt.Sprintf("%q (x%d)", name, count[name])
		}
		return "", fmt.Errorf("export: duplicate sections: %s", strings.Join(dups, ", "))
	}

	placed := make([]bool, len(sections))
	var (
		parts   []string
		missing []string
	)
	for _, entry := range l {
		if prefix, ok := strings.CutSuffix(entry, "*"); ok {
			for i, sec := range sections {
				if !placed[i] && strings.HasPrefix(sec.Name, prefix) {
					placed[i] = true
					parts = append(parts, sec.Content)
				}
			}
			continue
		}
		i := indexOf(sections, entry)
		if i < 0 {
			missing = append(missing, entry)
			continue
		}
		placed[i] = true
		parts = append(parts, sections[i].Content)
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("export: layout sections missing: %s", strings.Join(missing, ", "))
	}

	for i, sec := range sections {
		if !placed[i] {
			parts = append(parts, sec.Content)
		}
	}
	return strings.Join(parts, sectionRule), nil
}

func indexOf(sections []Section, name string) int {
	for i, sec := range sections {
		if sec.Name == name {
			return i
		}
	}
	return -1
}
