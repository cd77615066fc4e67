package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/stratagen/internal/strategy"
)

// Compile-time interface check.
var _ Set = (*Replay)(nil)

// fixture is the on-disk form of one provider result. Delay simulates
// latency; Error makes the call fail with that message.
type fixture[T any] struct {
	Data       T              `yaml:"data"`
	Cost       float64        `yaml:"cost"`
	Usage      strategy.Usage `yaml:"usage"`
	ProviderID string         `yaml:"provider_id"`
	Delay      time.Duration  `yaml:"delay"`
	Error      string         `yaml:"error"`
}

// Replay serves canned provider results from a fixtures directory, one file
// per section (industry-research.yaml, icp-analysis.yaml, ...). JSON files
// with the same keys are accepted. Optional enrichment fixtures live under
// late/<name>.yaml. Files are read on every call.
type Replay struct {
	dir string
}

// NewReplay returns a Replay reading from dir.
func NewReplay(dir string) (*Replay, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("replay: fixtures dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("replay: fixtures path %s is not a directory", dir)
	}
	return &Replay{dir: dir}, nil
}

func (r *Replay) IndustryResearch(ctx context.Context, _ Brief) (strategy.ProviderResult[*strategy.IndustryResearch], error) {
	return replay[*strategy.IndustryResearch](ctx, r.dir, strategy.SectionIndustryResearch)
}

func (r *Replay) CompetitorIntel(ctx context.Context, _ Brief) (strategy.ProviderResult[*strategy.CompetitorIntel], error) {
	return replay[*strategy.CompetitorIntel](ctx, r.dir, strategy.SectionCompetitorIntel)
}

func (r *Replay) ICPAnalysis(ctx context.Context, _ AnalysisInput) (strategy.ProviderResult[*strategy.ICPAnalysis], error) {
	return replay[*strategy.ICPAnalysis](ctx, r.dir, strategy.SectionICPAnalysis)
}

func (r *Replay) OfferAnalysis(ctx context.Context, _ AnalysisInput) (strategy.ProviderResult[*strategy.OfferAnalysis], error) {
	return replay[*strategy.OfferAnalysis](ctx, r.dir, strategy.SectionOfferAnalysis)
}

func (r *Replay) Synthesis(ctx context.Context, _ SynthesisInput) (strategy.ProviderResult[*strategy.Synthesis], error) {
	return replay[*strategy.Synthesis](ctx, r.dir, strategy.SectionSynthesis)
}

// Late returns one LateFunc per fixture under late/, keyed by file name
// without extension. A missing late/ directory yields an empty map.
func (r *Replay) Late() (map[string]LateFunc, error) {
	lateDir := filepath.Join(r.dir, "late")
	entries, err := os.ReadDir(lateDir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]LateFunc{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("replay: read %s: %w", lateDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(names)

	out := make(map[string]LateFunc, len(names))
	for _, name := range names {
		out[name] = func(ctx context.Context) (strategy.ProviderResult[*strategy.Enrichment], error) {
			return replay[*strategy.Enrichment](ctx, lateDir, name)
		}
	}
	return out, nil
}

func replay[T any](ctx context.Context, dir, section string) (strategy.ProviderResult[T], error) {
	var zero strategy.ProviderResult[T]

	path, err := findFixture(dir, section)
	if err != nil {
		return zero, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("replay: read %s: %w", path, err)
	}
	var fx fixture[T]
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return zero, fmt.Errorf("replay: parse %s: %w", path, err)
	}

	if fx.Delay > 0 {
		timer := time.NewTimer(fx.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return zero, fmt.Errorf("replay: %s: %w", section, ctx.Err())
		}
	}
	if fx.Error != "" {
		return zero, &CallError{Section: section, Message: fx.Error}
	}

	providerID := fx.ProviderID
	if providerID == "" {
		providerID = "replay"
	}
	return strategy.ProviderResult[T]{
		Data:       fx.Data,
		Cost:       fx.Cost,
		Usage:      fx.Usage,
		ProviderID: providerID,
	}, nil
}

func findFixture(dir, section string) (string, error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		p := filepath.Join(dir, section+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("replay: %s: %w in %s", section, ErrNoFixture, dir)
}
