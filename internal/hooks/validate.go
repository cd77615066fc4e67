package hooks

import "fmt"

// ViolationKind names the diversity rule a candidate broke.
type ViolationKind string

const (
	// ViolationConcentration marks a candidate whose source holds more than
	// the concentration limit of the whole set.
	ViolationConcentration ViolationKind = "source-concentration"
	// ViolationPerSourceCap marks a candidate beyond its source's cap.
	ViolationPerSourceCap ViolationKind = "per-source-cap"
)

// Violation flags one candidate, by index, for one rule.
type Violation struct {
	Kind   ViolationKind `json:"kind"`
	Index  int           `json:"index"`
	Source string        `json:"source"`
	Detail string        `json:"detail"`
}

type violationKey struct {
	kind  ViolationKind
	index int
}

// Validate checks candidates against the reference concentration limit and
// the given per-source cap.
func Validate(candidates []Candidate, maxPerSource int) []Violation {
	return validate(candidates, maxPerSource, DefaultConcentrationLimit)
}

// Check validates candidates against the policy's cap and concentration
// limit.
func (p Policy) Check(candidates []Candidate) []Violation {
	return validate(candidates, p.MaxPerSource, p.ConcentrationLimit)
}

// validate reports concentration violations first, then cap violations. A
// candidate appears at most once per kind but may carry both kinds. Source
// names compare case-insensitively; the share is taken over the whole set,
// generated candidates included.
func validate(candidates []Candidate, maxPerSource int, limit float64) []Violation {
	total := len(candidates)
	if total == 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, c := range candidates {
		for _, src := range c.sources() {
			if counts[src] == 0 {
				order = append(order, src)
			}
			counts[src]++
		}
	}

	var out []Violation
	seen := make(map[violationKey]bool)
	add := func(v Violation) {
		k := violationKey{v.Kind, v.Index}
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, v)
	}

	for _, src := range order {
		n := counts[src]
		if float64(n) <= limit*float64(total) {
			continue
		}
		detail := fmt.Sprintf("source %q holds %d of %d hooks (%.0f%%, limit %.0f%%)",
			src, n, total, 100*float64(n)/float64(total), 100*limit)
		for i, c := range candidates {
			if c.attributes(src) {
				add(Violation{Kind: ViolationConcentration, Index: i, Source: src, Detail: detail})
			}
		}
	}

	occurrences := make(map[string]int)
	for i, c := range candidates {
		for _, src := range c.sources() {
			occurrences[src]++
			if occurrences[src] > maxPerSource {
				add(Violation{
					Kind:   ViolationPerSourceCap,
					Index:  i,
					Source: src,
					Detail: fmt.Sprintf("occurrence %d of source %q exceeds cap %d", occurrences[src], src, maxPerSource),
				})
			}
		}
	}
	return out
}
