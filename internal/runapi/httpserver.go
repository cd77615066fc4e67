package runapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Start binds addr, registers routes and begins serving in a background
// goroutine. Bind errors are returned; ctx is not retained.
func (s *Server) Start(_ context.Context, addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /.well-known/stratagen.json", s.handleCard)
	mux.HandleFunc("POST /rpc", s.handleRPC)
	mux.HandleFunc("GET /runs/{id}/events", s.handleEvents)
	for pattern, h := range s.extra {
		mux.Handle(pattern, h)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("runapi: listen %s: %w", addr, err)
	}
	s.ln = ln
	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.http.Serve(ln)

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// handleCard serves the service card as JSON at the well-known endpoint.
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleRPC processes incoming JSON-RPC 2.0 requests and dispatches them
// to the appropriate handler method.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, CodeParseError, "Parse error: "+err.Error())
		return
	}
	if req.JSONRPC != rpcVersion {
		writeRPCError(w, req.ID, CodeInvalidRequest, fmt.Sprintf("Invalid request: jsonrpc must be %q", rpcVersion))
		return
	}

	ctx := r.Context()

	switch req.Method {
	case MethodSubmit:
		dispatch(ctx, w, &req, s.handler.HandleSubmit)
	case MethodGet:
		dispatch(ctx, w, &req, s.handler.HandleGetRun)
	case MethodList:
		dispatch(ctx, w, &req, s.handler.HandleListRuns)
	case MethodCancel:
		dispatch(ctx, w, &req, s.handler.HandleCancelRun)
	default:
		writeRPCError(w, req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// dispatch unmarshals params into P and calls fn.
func dispatch[P, R any](ctx context.Context, w http.ResponseWriter, req *rpcRequest, fn func(context.Context, P) (R, error)) {
	var params P
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeRPCError(w, req.ID, CodeInvalidParams, "Invalid params: "+err.Error())
			return
		}
	}

	result, err := fn(ctx, params)
	if err != nil {
		writeRPCError(w, req.ID, errorCode(err), err.Error())
		return
	}

	writeRPCResult(w, req.ID, result)
}

// errorCode maps service errors to JSON-RPC error codes.
func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return CodeRunNotFound
	case errors.Is(err, ErrRunNotCancelable):
		return CodeRunNotCancelable
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidParams
	default:
		return CodeInternal
	}
}

// handleEvents streams a run's progress as SSE. A snapshot of the run is
// sent last, after the run finishes or immediately if it already has.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	events, unsubscribe, err := s.handler.Subscribe(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrRunNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	defer unsubscribe()

	sw := NewSSEWriter(w)
	sw.Init()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				run, err := s.handler.HandleGetRun(r.Context(), GetRunRequest{ID: id})
				if err != nil {
					return
				}
				_ = sw.WriteEvent(Event{RunID: id, Run: run})
				return
			}
			if err := sw.WriteEvent(ev); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// writeRPCResult writes a successful JSON-RPC response.
func writeRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeRPCError(w, id, CodeInternal, "Failed to marshal result: "+err.Error())
		return
	}

	resp := rpcResponse{
		JSONRPC: rpcVersion,
		ID:      id,
		Result:  data,
	}

	json.NewEncoder(w).Encode(resp)
}

// writeRPCError writes a JSON-RPC error response.
func writeRPCError(w http.ResponseWriter, id any, code int, message string) {
	resp := rpcResponse{
		JSONRPC: rpcVersion,
		ID:      id,
		Error: &rpcErrorObject{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(resp)
}
