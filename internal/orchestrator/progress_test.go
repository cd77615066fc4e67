package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReporter_EmitAndSubscribe(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	ch := pr.Subscribe()
	want := ProgressEvent{
		Phase:   PhaseAnalysis,
		Section: "icp-analysis",
		Status:  ProgressStarting,
		Message: "generating",
	}

	pr.Emit(want)

	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestProgressReporter_EmitWhenFull_DoesNotBlock(t *testing.T) {
	pr := NewProgressReporter()
	defer pr.Close()

	// The internal channel buffer is 64. Emitting 100 events must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pr.Emit(ProgressEvent{Phase: PhaseResearch, Section: "section", Status: ProgressStarting})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked when the channel was full")
	}
	assert.Len(t, pr.Subscribe(), 64)
}

func TestProgressReporter_Close_ChannelClosed(t *testing.T) {
	pr := NewProgressReporter()
	ch := pr.Subscribe()

	pr.Close()
	pr.Close() // idempotent

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after Close")
}

func TestProgressReporter_EmitAfterClose_Dropped(t *testing.T) {
	pr := NewProgressReporter()
	pr.Close()

	require.NotPanics(t, func() {
		pr.Emit(ProgressEvent{Phase: PhaseResearch, Section: "competitor-intel", Status: ProgressComplete})
	})
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		name  string
		event ProgressEvent
		want  string
	}{
		{
			name:  "starting",
			event: ProgressEvent{Section: "industry-research", Status: ProgressStarting},
			want:  "  ● industry-research...",
		},
		{
			name:  "complete",
			event: ProgressEvent{Section: "industry-research", Status: ProgressComplete, CumulativeCost: 0.0125},
			want:  "  ✓ industry-research complete ($0.0125 total)",
		},
		{
			name:  "complete with message",
			event: ProgressEvent{Section: "reconciliation", Status: ProgressComplete, Message: "2 adjustments", CumulativeCost: 0.5},
			want:  "  ✓ reconciliation complete (2 adjustments, $0.5000 total)",
		},
		{
			name:  "error",
			event: ProgressEvent{Section: "synthesis", Status: ProgressError, Message: "boom"},
			want:  "  ✗ synthesis failed: boom",
		},
		{
			name:  "unknown",
			event: ProgressEvent{Section: "hooks", Status: "weird"},
			want:  "  ? hooks (unknown status)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatProgress(tt.event))
		})
	}
}

func TestFormatPhaseHeader(t *testing.T) {
	assert.Equal(t, "[run-1] Phase 2: analysis", FormatPhaseHeader("run-1", PhaseAnalysis))
	assert.Equal(t, "unknown", Phase(9).String())
}

func TestLedger_RecordOnce(t *testing.T) {
	l := newLedger()

	assert.True(t, l.Record("a", SectionStat{Cost: 0.5, Usage: usage(10, 5)}))
	assert.False(t, l.Record("a", SectionStat{Cost: 9}), "second record of a section is ignored")
	assert.True(t, l.Record("b", SectionStat{Cost: 0.25, Usage: usage(1, 1)}))
	assert.True(t, l.Record("c", SectionStat{Cost: -1}), "negative cost never reduces the total")

	assert.InDelta(t, 0.75, l.TotalCost(), 1e-9)
	assert.Equal(t, 17, l.Usage().Total)

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	snap["a"] = SectionStat{}
	assert.InDelta(t, 0.5, l.Snapshot()["a"].Cost, 1e-9, "snapshot is a copy")
}
