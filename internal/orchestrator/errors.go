package orchestrator

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the caller's context ends before a phase
// starts. It wraps the context's cause.
var ErrCancelled = errors.New("pipeline: cancelled")

// SectionError reports a failed required section. It aborts the run.
type SectionError struct {
	Section string
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("pipeline: required section %s failed: %v", e.Section, e.Err)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}
