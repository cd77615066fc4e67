// Package status reports which pipeline sections a replay fixture directory
// can serve, so a fixture set can be checked before a run.
package status

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/stratagen/internal/orchestrator"
	"github.com/dusk-indust/stratagen/internal/strategy"
)

// SectionInfo describes the fixture for a single section or late source.
type SectionInfo struct {
	Section  string
	Phase    orchestrator.Phase
	Required bool
	Present  bool
	Fails    bool          // fixture is set up to return an error
	Delay    time.Duration // simulated latency
	Path     string        // empty when not present
	Err      string        // parse error, if any
}

// Usable reports whether a run can take data from this fixture.
func (si SectionInfo) Usable() bool {
	return si.Present && !si.Fails && si.Err == ""
}

// FixtureStatus holds the status of one fixture directory.
type FixtureStatus struct {
	Dir      string
	Sections []SectionInfo
	Late     []SectionInfo
	Missing  []string // required sections without a usable fixture
}

// Ready reports whether every required section has a usable fixture.
func (s FixtureStatus) Ready() bool {
	return len(s.Missing) == 0
}

var sectionPlan = []struct {
	name     string
	phase    orchestrator.Phase
	required bool
}{
	{strategy.SectionIndustryResearch, orchestrator.PhaseResearch, true},
	{strategy.SectionCompetitorIntel, orchestrator.PhaseResearch, false},
	{strategy.SectionICPAnalysis, orchestrator.PhaseAnalysis, true},
	{strategy.SectionOfferAnalysis, orchestrator.PhaseAnalysis, true},
	{strategy.SectionSynthesis, orchestrator.PhaseSynthesis, true},
}

var fixtureExts = []string{".yaml", ".yml", ".json"}

// header is the part of a fixture file status cares about.
type header struct {
	Delay time.Duration `yaml:"delay"`
	Error string        `yaml:"error"`
}

// Scan checks dir for one fixture per pipeline section and for late
// enrichment fixtures under dir/late.
func Scan(dir string) (FixtureStatus, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return FixtureStatus{}, fmt.Errorf("status: fixtures dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return FixtureStatus{}, fmt.Errorf("status: %s is not a directory", dir)
	}

	st := FixtureStatus{Dir: dir}
	for _, s := range sectionPlan {
		si := inspect(dir, s.name)
		si.Phase = s.phase
		si.Required = s.required
		st.Sections = append(st.Sections, si)
		if si.Required && !si.Usable() {
			st.Missing = append(st.Missing, si.Section)
		}
	}

	late, err := scanLate(filepath.Join(dir, "late"))
	if err != nil {
		return FixtureStatus{}, err
	}
	st.Late = late
	return st, nil
}

func scanLate(dir string) ([]SectionInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("status: read %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, want := range fixtureExts {
			if ext == want {
				names = append(names, strings.TrimSuffix(e.Name(), ext))
				break
			}
		}
	}
	sort.Strings(names)

	out := make([]SectionInfo, 0, len(names))
	for _, name := range names {
		si := inspect(dir, name)
		si.Phase = orchestrator.PhaseResearch
		out = append(out, si)
	}
	return out, nil
}

func inspect(dir, section string) SectionInfo {
	si := SectionInfo{Section: section}
	for _, ext := range fixtureExts {
		path := filepath.Join(dir, section+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		si.Present = true
		si.Path = path
		var h header
		if err := yaml.Unmarshal(data, &h); err != nil {
			si.Err = err.Error()
			return si
		}
		si.Delay = h.Delay
		si.Fails = h.Error != ""
		return si
	}
	return si
}

// Label returns the bracketed state shown by the CLI, e.g. "ready",
// "missing" or "ready, delay 3s".
func (si SectionInfo) Label() string {
	var parts []string
	switch {
	case !si.Present:
		parts = append(parts, "missing")
	case si.Err != "":
		parts = append(parts, "invalid")
	case si.Fails:
		parts = append(parts, "fails")
	default:
		parts = append(parts, "ready")
	}
	if si.Present && si.Delay > 0 {
		parts = append(parts, "delay "+si.Delay.String())
	}
	if !si.Required && !si.Present {
		parts = append(parts, "optional")
	}
	return strings.Join(parts, ", ")
}
