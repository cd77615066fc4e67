package orchestrator

import (
	"fmt"
	"sync"
)

// ProgressReporter adapts the Observer callback to a buffered channel.
type ProgressReporter struct {
	mu     sync.Mutex
	ch     chan ProgressEvent
	closed bool
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full or closed, the event is silently dropped.
// Emit has the Observer signature and may be passed as Input.Observer.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.closed {
		return
	}
	select {
	case pr.ch <- event:
	default:
		// Drop the event if the channel is full.
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel. Later Emits are dropped, which
// covers detached sections that finish after the run.
func (pr *ProgressReporter) Close() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.closed {
		return
	}
	pr.closed = true
	close(pr.ch)
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressStarting:
		return fmt.Sprintf("  ● %s...", event.Section)
	case ProgressComplete:
		if event.Message != "" {
			return fmt.Sprintf("  ✓ %s complete (%s, $%.4f total)", event.Section, event.Message, event.CumulativeCost)
		}
		return fmt.Sprintf("  ✓ %s complete ($%.4f total)", event.Section, event.CumulativeCost)
	case ProgressError:
		return fmt.Sprintf("  ✗ %s failed: %s", event.Section, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Section)
	}
}

// FormatPhaseHeader formats a phase header for display.
// Returns: "[{runID}] Phase {N}: {phase.String()}"
func FormatPhaseHeader(runID string, phase Phase) string {
	return fmt.Sprintf("[%s] Phase %d: %s", runID, int(phase), phase.String())
}
