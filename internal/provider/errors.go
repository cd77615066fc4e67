package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned for a section no provider was supplied for.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrNoFixture is returned by Replay when a section has no fixture file.
	ErrNoFixture = errors.New("no fixture")
)

func notConfigured(section string) error {
	return fmt.Errorf("provider: %s: %w", section, ErrNotConfigured)
}

// CallError is a failure reported by a fixture or remote service for one
// section.
type CallError struct {
	Section string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("provider: %s: %s", e.Section, e.Message)
}
