package hooks

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tier is a coarse classification of how much real competitor creative text
// was available.
type Tier string

const (
	TierZero     Tier = "zero"
	TierSparse   Tier = "sparse"
	TierStandard Tier = "standard"
)

// Tiers lists every tier in ascending richness.
var Tiers = []Tier{TierZero, TierSparse, TierStandard}

// ClassifySourceTier counts the sources that contributed usable text: none is
// zero, one or two is sparse, three or more is standard. Sources sharing a
// name (case-insensitively) count once.
func ClassifySourceTier(sources []CreativeSource) Tier {
	seen := make(map[string]bool, len(sources))
	usable := 0
	for _, s := range sources {
		if !s.Usable() {
			continue
		}
		key := normalize(s.Name)
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		usable++
	}
	switch {
	case usable == 0:
		return TierZero
	case usable <= 2:
		return TierSparse
	default:
		return TierStandard
	}
}

// Quotas is how many final hooks of each source type a tier calls for.
type Quotas struct {
	Extracted    int `json:"extracted" yaml:"extracted"`
	Inspired     int `json:"inspired" yaml:"inspired"`
	Generated    int `json:"generated" yaml:"generated"`
	MaxPerSource int `json:"maxPerSource" yaml:"-"`
}

// Sum returns the total number of hooks the quotas describe.
func (q Quotas) Sum() int {
	return q.Extracted + q.Inspired + q.Generated
}

// Policy is the configurable hook quota table.
type Policy struct {
	Total              int             `yaml:"total"`
	MaxPerSource       int             `yaml:"max_per_source"`
	ConcentrationLimit float64         `yaml:"concentration_limit"`
	Tiers              map[Tier]Quotas `yaml:"tiers"`
}

// Reference policy values.
const (
	DefaultTotal              = 12
	DefaultMaxPerSource       = 2
	DefaultConcentrationLimit = 0.5
)

// DefaultPolicy returns the reference table: 12 hooks, at most 2 per source,
// no source above half the set.
func DefaultPolicy() Policy {
	return Policy{
		Total:              DefaultTotal,
		MaxPerSource:       DefaultMaxPerSource,
		ConcentrationLimit: DefaultConcentrationLimit,
		Tiers: map[Tier]Quotas{
			TierZero:     {Extracted: 0, Inspired: 0, Generated: 12},
			TierSparse:   {Extracted: 2, Inspired: 4, Generated: 6},
			TierStandard: {Extracted: 4, Inspired: 4, Generated: 4},
		},
	}
}

// QuotasFor returns the reference quotas for tier.
func QuotasFor(tier Tier) Quotas {
	return DefaultPolicy().QuotasFor(tier)
}

// QuotasFor returns the policy's quotas for tier. An unknown tier falls back
// to an all-generated split.
func (p Policy) QuotasFor(tier Tier) Quotas {
	q, ok := p.Tiers[tier]
	if !ok {
		q = Quotas{Generated: p.Total}
	}
	q.MaxPerSource = p.MaxPerSource
	return q
}

// Validate checks that every tier's quotas add up to Total.
func (p Policy) Validate() error {
	if p.Total <= 0 {
		return fmt.Errorf("hooks: policy total must be positive, got %d", p.Total)
	}
	if p.MaxPerSource <= 0 {
		return fmt.Errorf("hooks: policy max_per_source must be positive, got %d", p.MaxPerSource)
	}
	if p.ConcentrationLimit <= 0 || p.ConcentrationLimit > 1 {
		return fmt.Errorf("hooks: policy concentration_limit must be in (0, 1], got %g", p.ConcentrationLimit)
	}
	for _, tier := range Tiers {
		q, ok := p.Tiers[tier]
		if !ok {
			return fmt.Errorf("hooks: policy missing tier %q", tier)
		}
		if q.Extracted < 0 || q.Inspired < 0 || q.Generated < 0 {
			return fmt.Errorf("hooks: tier %q has a negative quota", tier)
		}
		if q.Sum() != p.Total {
			return fmt.Errorf("hooks: tier %q quotas sum to %d, want %d", tier, q.Sum(), p.Total)
		}
	}
	return nil
}

// LoadPolicy reads a YAML policy file. Fields absent from the file keep their
// reference values. The result is validated.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("hooks: read policy %s: %w", path, err)
	}
	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("hooks: parse policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
