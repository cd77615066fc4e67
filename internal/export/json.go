package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dusk-indust/stratagen/internal/orchestrator"
)

// StrategyExport is the top-level JSON export structure.
type StrategyExport struct {
	RunID      string                 `json:"runId"`
	ExportedAt string                 `json:"exportedAt"`
	Title      string                 `json:"title"`
	Sections   []SectionExport        `json:"sections"`
	Pending    []string               `json:"pending,omitempty"`
	Artifact   *orchestrator.Artifact `json:"artifact"`
}

// SectionExport is the accounting line for one section.
type SectionExport struct {
	Name       string  `json:"name"`
	Outcome    string  `json:"outcome"`
	DurationMs int64   `json:"durationMs"`
	Cost       float64 `json:"cost"`
	Tokens     int     `json:"tokens"`
	Provider   string  `json:"provider,omitempty"`
}

// ExportStrategy builds a StrategyExport from a successful run.
func ExportStrategy(res *orchestrator.Result) (*StrategyExport, error) {
	if res == nil || res.Artifact == nil {
		return nil, errors.New("export: run produced no artifact")
	}
	a := res.Artifact

	export := &StrategyExport{
		RunID:      a.RunID,
		ExportedAt: now().UTC().Format(time.RFC3339),
		Pending:    res.PendingNames(),
		Artifact:   a,
	}
	if a.Synthesis != nil {
		export.Title = a.Synthesis.Title
	}

	names := make([]string, 0, len(a.Sections))
	for name := range a.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := a.Sections[name]
		export.Sections = append(export.Sections, SectionExport{
			Name:       name,
			Outcome:    s.Outcome,
			DurationMs: s.Elapsed.Milliseconds(),
			Cost:       s.Cost,
			Tokens:     s.Usage.Total,
			Provider:   s.ProviderID,
		})
	}
	return export, nil
}

// MarshalStrategy renders res as indented JSON.
func MarshalStrategy(res *orchestrator.Result) ([]byte, error) {
	export, err := ExportStrategy(res)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal strategy: %w", err)
	}
	return data, nil
}

var now = time.Now
