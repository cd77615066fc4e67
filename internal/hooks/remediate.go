package hooks

// Remediate repairs a candidate set using the reference total and
// concentration limit with the given per-source cap.
func Remediate(candidates []Candidate, violations []Violation, pool []Candidate, maxPerSource int) []Candidate {
	return remediate(candidates, violations, pool, maxPerSource, DefaultTotal, DefaultConcentrationLimit)
}

// Remediate repairs a candidate set under the policy's limits.
func (p Policy) Remediate(candidates []Candidate, violations []Violation, pool []Candidate) []Candidate {
	return remediate(candidates, violations, pool, p.MaxPerSource, p.Total, p.ConcentrationLimit)
}

type keptCandidate struct {
	Candidate
	violated bool
}

// remediate walks candidates in order. Flagged candidates are kept only while
// every source they name is still under the cap; unflagged candidates are
// always kept. The set is then backfilled up to total from unattributed pool
// entries whose text is not already present. A final pass drops flagged
// candidates, latest first, from any source still above the concentration
// limit, which can only happen when the pool ran short.
func remediate(candidates []Candidate, violations []Violation, pool []Candidate, maxPerSource, total int, limit float64) []Candidate {
	flagged := make(map[int]bool, len(violations))
	for _, v := range violations {
		flagged[v.Index] = true
	}

	kept := make([]keptCandidate, 0, total)
	counts := make(map[string]int)
	texts := make(map[string]bool)
	for i, c := range candidates {
		srcs := c.sources()
		if flagged[i] {
			over := false
			for _, src := range srcs {
				if counts[src] >= maxPerSource {
					over = true
					break
				}
			}
			if over {
				continue
			}
		}
		for _, src := range srcs {
			counts[src]++
		}
		texts[normalize(c.Text)] = true
		kept = append(kept, keptCandidate{Candidate: c, violated: flagged[i]})
	}

	for _, c := range pool {
		if len(kept) >= total {
			break
		}
		if c.Attributed() {
			continue
		}
		key := normalize(c.Text)
		if key == "" || texts[key] {
			continue
		}
		texts[key] = true
		kept = append(kept, keptCandidate{Candidate: c})
	}

	kept = trimConcentration(kept, counts, limit)

	out := make([]Candidate, len(kept))
	for i, k := range kept {
		out[i] = k.Candidate
	}
	return out
}

func trimConcentration(kept []keptCandidate, counts map[string]int, limit float64) []keptCandidate {
	for {
		src := overLimit(kept, counts, limit)
		if src == "" {
			return kept
		}
		idx := -1
		for i := len(kept) - 1; i >= 0; i-- {
			if kept[i].violated && kept[i].attributes(src) {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Only unflagged candidates remain for this source; they stay.
			return kept
		}
		for _, s := range kept[idx].sources() {
			counts[s]--
		}
		kept = append(kept[:idx], kept[idx+1:]...)
	}
}

// overLimit returns the first source, in kept order, whose share exceeds
// limit.
func overLimit(kept []keptCandidate, counts map[string]int, limit float64) string {
	total := float64(len(kept))
	for _, k := range kept {
		for _, src := range k.sources() {
			if float64(counts[src]) > limit*total {
				return src
			}
		}
	}
	return ""
}
