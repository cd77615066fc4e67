package runapi

import (
	"errors"
	"fmt"
	"sync"
)

// Errors returned by the store and the service. The HTTP layer maps them to
// JSON-RPC error codes.
var (
	ErrRunNotFound      = errors.New("run not found")
	ErrRunNotCancelable = errors.New("run is not cancelable")
	ErrInvalidRequest   = errors.New("invalid request")
)

// Store is a concurrency-safe in-memory store for submitted runs. Runs are
// stored in a map keyed by ID with a separate slice maintaining insertion
// order for deterministic pagination.
type Store struct {
	mu       sync.RWMutex
	runs     map[string]*Run
	orderIDs []string // insertion-order run IDs
}

// NewStore returns an initialized Store ready for use.
func NewStore() *Store {
	return &Store{
		runs:     make(map[string]*Run),
		orderIDs: make([]string, 0),
	}
}

// Create stores a new run. It returns an error if a run with the same ID
// already exists.
func (s *Store) Create(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %q already exists", run.ID)
	}
	s.runs[run.ID] = &run
	s.orderIDs = append(s.orderIDs, run.ID)
	return nil
}

// Get returns a copy of the run with the given ID. The returned copy is safe
// to mutate without affecting the store; Export is shared and must be
// treated as read-only.
func (s *Store) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", id, ErrRunNotFound)
	}
	return copyRun(r), nil
}

// Update applies fn to the stored run under a write lock and returns a copy
// of the result.
func (s *Store) Update(id string, fn func(*Run)) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", id, ErrRunNotFound)
	}
	fn(r)
	return copyRun(r), nil
}

// List returns runs matching the filter with pagination support.
//
// Filtering:
//   - If State is non-empty, only runs in that state are included.
//
// Pagination:
//   - PageToken is the ID of the last run from the previous page; results
//     start after that run in insertion order.
//   - PageSize <= 0 means return all matching runs.
func (s *Store) List(filter ListRunsRequest) (*ListRunsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startIdx := 0
	if filter.PageToken != "" {
		found := false
		for i, id := range s.orderIDs {
			if id == filter.PageToken {
				startIdx = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: invalid page token %q", ErrInvalidRequest, filter.PageToken)
		}
	}

	totalSize := 0
	var matched []Run
	for i, id := range s.orderIDs {
		r := s.runs[id]
		if filter.State != "" && r.Status.State != filter.State {
			continue
		}
		totalSize++
		if i < startIdx {
			continue
		}
		summary := *copyRun(r)
		summary.Document = ""
		summary.Export = nil
		matched = append(matched, summary)
	}

	var nextPageToken string
	if filter.PageSize > 0 && len(matched) > filter.PageSize {
		nextPageToken = matched[filter.PageSize-1].ID
		matched = matched[:filter.PageSize]
	}
	if matched == nil {
		matched = []Run{}
	}

	return &ListRunsResponse{
		Runs:          matched,
		TotalSize:     totalSize,
		NextPageToken: nextPageToken,
	}, nil
}

func copyRun(src *Run) *Run {
	dst := *src
	if src.Pending != nil {
		dst.Pending = append([]string(nil), src.Pending...)
	}
	return &dst
}
