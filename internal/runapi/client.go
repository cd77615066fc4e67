package runapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Client calls a stratagen run server over HTTP/JSON-RPC.
type Client struct {
	baseURL   string
	http      *http.Client
	requestID atomic.Int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout. Streams opened by Subscribe are
// not subject to it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit starts a run via the runs/submit method.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Run, error) {
	var run Run
	if err := c.call(ctx, MethodSubmit, req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Get retrieves a run by ID via the runs/get method.
func (c *Client) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := c.call(ctx, MethodGet, GetRunRequest{ID: id}, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// List queries runs via the runs/list method.
func (c *Client) List(ctx context.Context, req ListRunsRequest) (*ListRunsResponse, error) {
	var resp ListRunsResponse
	if err := c.call(ctx, MethodList, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel asks the server to cancel a run via the runs/cancel method.
func (c *Client) Cancel(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := c.call(ctx, MethodCancel, CancelRunRequest{ID: id}, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Subscribe opens the SSE stream for a run. The channel ends with an Event
// carrying the final Run, then closes.
func (c *Client) Subscribe(ctx context.Context, id string) (<-chan Event, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/runs/"+id+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("runapi: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	// Streams outlive the request timeout.
	hc := *c.http
	hc.Timeout = 0
	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("runapi: subscribe: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("runapi: subscribe: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return ReadEvents(ctx, resp.Body), nil
}

// Card fetches the service card from the well-known URI.
func (c *Client) Card(ctx context.Context) (*Card, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/.well-known/stratagen.json", nil)
	if err != nil {
		return nil, fmt.Errorf("runapi: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("runapi: fetch card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("runapi: fetch card: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var card Card
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("runapi: decode card: %w", err)
	}
	return &card, nil
}

// nextID returns a monotonically increasing request ID for JSON-RPC calls.
func (c *Client) nextID() int64 {
	return c.requestID.Add(1)
}

// call performs a JSON-RPC 2.0 call over HTTP POST.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("runapi: marshal params: %w", err)
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: rpcVersion,
		ID:      c.nextID(),
		Method:  method,
		Params:  paramsJSON,
	})
	if err != nil {
		return fmt.Errorf("runapi: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("runapi: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("runapi: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("runapi: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("runapi: %s: HTTP %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("runapi: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return &RPCError{
			Method:  method,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    rpcResp.Error.Data,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("runapi: decode result: %w", err)
		}
	}
	return nil
}

// RPCError represents a JSON-RPC error returned by the server.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("runapi: %s: rpc error %d: %s (data: %s)", e.Method, e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("runapi: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}
