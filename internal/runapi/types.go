// Package runapi serves strategy runs over HTTP: JSON-RPC methods submit,
// inspect, list and cancel runs, and an SSE endpoint streams a run's progress.
// Runs live in memory for the lifetime of the process.
package runapi

import (
	"time"

	"github.com/dusk-indust/stratagen/internal/export"
	"github.com/dusk-indust/stratagen/internal/orchestrator"
	"github.com/dusk-indust/stratagen/internal/strategy"
)

// RunState represents the lifecycle state of a submitted run.
type RunState string

const (
	RunStateSubmitted RunState = "submitted"
	RunStateWorking   RunState = "working"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
	RunStateCanceled  RunState = "canceled"
)

// IsTerminal returns true if the run state is a final state.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed, RunStateCanceled:
		return true
	}
	return false
}

// Run is one submitted pipeline run. ID is assigned on submission;
// PipelineRunID is the pipeline's own correlation id once it has started.
type Run struct {
	ID            string    `json:"id"`
	PipelineRunID string    `json:"pipelineRunId,omitempty"`
	Context       string    `json:"context"`
	Status        RunStatus `json:"status"`
	SubmittedAt   time.Time `json:"submittedAt"`

	// Set once the run completes.
	Document string                 `json:"document,omitempty"`
	Export   *export.StrategyExport `json:"export,omitempty"`
	Pending  []string               `json:"pending,omitempty"`
}

// RunStatus tracks the current state and when it changed. Section names the
// failing required section of a failed run.
type RunStatus struct {
	State     RunState  `json:"state"`
	Message   string    `json:"message,omitempty"`
	Section   string    `json:"section,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// --- Service description ---

// Card describes the service at the well-known endpoint.
type Card struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Methods     []string `json:"methods"`
	Streaming   bool     `json:"streaming"`
	LateSources []string `json:"lateSources,omitempty"`
}

// --- Streaming Types ---

// Event is one SSE frame on a run's event stream. Exactly one of Progress
// and Run is set: progress frames while the run is working, then a single
// Run frame with the final snapshot.
type Event struct {
	RunID    string    `json:"runId"`
	Progress *Progress `json:"progress,omitempty"`
	Run      *Run      `json:"run,omitempty"`

	// Err is set if the stream encountered an error.
	Err error `json:"-"`
}

// Progress is the wire form of an orchestrator.ProgressEvent. The section
// payload is not sent.
type Progress struct {
	Phase          int     `json:"phase"`
	PhaseName      string  `json:"phaseName"`
	Section        string  `json:"section"`
	Status         string  `json:"status"`
	Message        string  `json:"message,omitempty"`
	ElapsedMs      int64   `json:"elapsedMs"`
	CumulativeCost float64 `json:"cumulativeCost"`
}

// ProgressFrom converts a pipeline progress event to its wire form.
func ProgressFrom(ev orchestrator.ProgressEvent) Progress {
	return Progress{
		Phase:          int(ev.Phase),
		PhaseName:      ev.Phase.String(),
		Section:        ev.Section,
		Status:         string(ev.Status),
		Message:        ev.Message,
		ElapsedMs:      ev.Elapsed.Milliseconds(),
		CumulativeCost: ev.CumulativeCost,
	}
}

// Event converts the wire form back to a progress event for formatting.
func (p Progress) Event() orchestrator.ProgressEvent {
	return orchestrator.ProgressEvent{
		Phase:          orchestrator.Phase(p.Phase),
		Section:        p.Section,
		Status:         orchestrator.ProgressStatus(p.Status),
		Message:        p.Message,
		Elapsed:        time.Duration(p.ElapsedMs) * time.Millisecond,
		CumulativeCost: p.CumulativeCost,
	}
}

// --- Request / Response Types ---

// SubmitRequest starts a run. With Blocking set the call returns only once
// the run is terminal or the request ends.
type SubmitRequest struct {
	Context     string               `json:"context"`
	GraceMs     *int                 `json:"graceMs,omitempty"`
	PreSupplied *strategy.Enrichment `json:"preSupplied,omitempty"`
	Blocking    bool                 `json:"blocking"`
}

// GetRunRequest retrieves a run by ID.
type GetRunRequest struct {
	ID string `json:"id"`
}

// ListRunsRequest queries runs with filtering and pagination.
type ListRunsRequest struct {
	State     RunState `json:"state,omitempty"`
	PageSize  int      `json:"pageSize,omitempty"`
	PageToken string   `json:"pageToken,omitempty"`
}

// ListRunsResponse is the paginated response for ListRuns. Listed runs omit
// Document and Export.
type ListRunsResponse struct {
	Runs          []Run  `json:"runs"`
	TotalSize     int    `json:"totalSize"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// CancelRunRequest cancels a running run.
type CancelRunRequest struct {
	ID string `json:"id"`
}
