package hooks

import "sort"

// Mix summarises a final hook set for reporting.
type Mix struct {
	Total        int                `json:"total"`
	BySourceType map[SourceType]int `json:"bySourceType"`
	ByTechnique  map[Technique]int  `json:"byTechnique"`
	BySource     map[string]int     `json:"bySource,omitempty"`
	Sources      []string           `json:"sources,omitempty"`
}

// Summarize counts hooks per source type, technique and competitor.
func Summarize(candidates []Candidate) Mix {
	m := Mix{
		Total:        len(candidates),
		BySourceType: make(map[SourceType]int),
		ByTechnique:  make(map[Technique]int),
		BySource:     make(map[string]int),
	}
	for _, c := range candidates {
		st := c.Source.Type
		if st == "" {
			st = SourceGenerated
		}
		m.BySourceType[st]++
		if c.Technique != "" {
			m.ByTechnique[c.Technique]++
		}
		for _, src := range c.sources() {
			m.BySource[src]++
		}
	}
	for src := range m.BySource {
		m.Sources = append(m.Sources, src)
	}
	sort.Strings(m.Sources)
	return m
}
