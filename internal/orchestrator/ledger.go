package orchestrator

import (
	"sync"
	"time"

	"github.com/dusk-indust/stratagen/internal/strategy"
)

// SectionStat is the accounting for one section of one run.
type SectionStat struct {
	Elapsed    time.Duration  `json:"elapsedNs"`
	Cost       float64        `json:"cost"`
	Usage      strategy.Usage `json:"usage"`
	ProviderID string         `json:"providerId,omitempty"`
	Outcome    string         `json:"outcome"` // success, error, timeout
}

// Ledger accumulates per-section timing and cost for a single run. Each
// section is recorded once; the total only grows.
type Ledger struct {
	mu       sync.Mutex
	sections map[string]SectionStat
	total    float64
	usage    strategy.Usage
}

func newLedger() *Ledger {
	return &Ledger{sections: make(map[string]SectionStat)}
}

// Record stores the stat for section. It returns false, leaving the ledger
// unchanged, if section was already recorded.
func (l *Ledger) Record(section string, st SectionStat) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sections[section]; ok {
		return false
	}
	l.sections[section] = st
	if st.Cost > 0 {
		l.total += st.Cost
	}
	l.usage = l.usage.Add(st.Usage)
	return true
}

// TotalCost returns the cost recorded so far.
func (l *Ledger) TotalCost() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Usage returns the summed token usage.
func (l *Ledger) Usage() strategy.Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage
}

// Snapshot returns a copy of the per-section stats.
func (l *Ledger) Snapshot() map[string]SectionStat {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]SectionStat, len(l.sections))
	for k, v := range l.sections {
		out[k] = v
	}
	return out
}
