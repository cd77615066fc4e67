package runapi

import "encoding/json"

const rpcVersion = "2.0"

// Methods served on POST /rpc.
const (
	MethodSubmit = "runs/submit"
	MethodGet    = "runs/get"
	MethodList   = "runs/list"
	MethodCancel = "runs/cancel"
)

// Error codes carried in RPCError.Code. The first five are the JSON-RPC 2.0
// reserved codes; the run codes sit in the implementation-defined range.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternal         = -32603
	CodeRunNotFound      = -32001
	CodeRunNotCancelable = -32002
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcErrorObject `json:"error,omitempty"`
}

type rpcErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}
