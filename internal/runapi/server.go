package runapi

import (
	"context"
	"net"
	"net/http"
)

// Handler processes incoming run API requests.
type Handler interface {
	// HandleSubmit starts a run and returns it.
	HandleSubmit(ctx context.Context, req SubmitRequest) (*Run, error)

	// HandleGetRun returns the current state of a run.
	HandleGetRun(ctx context.Context, req GetRunRequest) (*Run, error)

	// HandleListRuns returns runs matching the filter.
	HandleListRuns(ctx context.Context, req ListRunsRequest) (*ListRunsResponse, error)

	// HandleCancelRun cancels a running run.
	HandleCancelRun(ctx context.Context, req CancelRunRequest) (*Run, error)

	// Subscribe streams a run's progress until it finishes.
	Subscribe(id string) (<-chan Event, func(), error)
}

// Server is the HTTP server that exposes a Handler.
type Server struct {
	card    Card
	handler Handler
	extra   map[string]http.Handler
	http    *http.Server
	ln      net.Listener
}

// NewServer creates a server for the given handler.
func NewServer(card Card, handler Handler) *Server {
	return &Server{
		card:    card,
		handler: handler,
		extra:   make(map[string]http.Handler),
	}
}

// Handle mounts an additional handler, such as /metrics, on the server's mux.
// It must be called before Start.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.extra[pattern] = h
}

// Addr returns the listening address once Start has returned.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}
