package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// JSONRPCVersion is the only accepted "jsonrpc" value.
const JSONRPCVersion = "2.0"

// ProtocolVersion is reported in the initialize handshake.
const ProtocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an incoming JSON-RPC message. HasID distinguishes a request
// from a notification; an explicit "id": null still counts as an id.
type Request struct {
	JSONRPC string
	ID      json.RawMessage
	HasID   bool
	Method  string
	Params  json.RawMessage
}

// IsNotification reports whether the message must go unanswered.
func (r *Request) IsNotification() bool {
	return !r.HasID
}

// Response is an outgoing JSON-RPC message.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func newError(code int, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func invalidParams(format string, args ...any) *RPCError {
	return newError(CodeInvalidParams, format, args...)
}

func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

func errorResponse(id json.RawMessage, err *RPCError) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: err}
}

var nullID = json.RawMessage("null")

// decodeRequest parses body. A nil Request with a non-nil error means the
// body is not a JSON object at all.
func decodeRequest(body []byte) (*Request, *RPCError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, newError(CodeParseError, "parse error: %v", err)
	}

	req := &Request{}
	if id, ok := fields["id"]; ok {
		req.HasID = true
		req.ID = id
	}
	if params, ok := fields["params"]; ok {
		req.Params = params
	}

	if raw, ok := fields["jsonrpc"]; ok {
		if err := json.Unmarshal(raw, &req.JSONRPC); err != nil {
			return req, newError(CodeInvalidRequest, "invalid request: jsonrpc must be a string")
		}
	}
	if raw, ok := fields["method"]; ok {
		if err := json.Unmarshal(raw, &req.Method); err != nil {
			return req, newError(CodeInvalidRequest, "invalid request: method must be a string")
		}
	}

	if req.HasID && !validID(req.ID) {
		req.ID = nullID
		return req, newError(CodeInvalidRequest, "invalid request: id must be a string, number or null")
	}
	if req.JSONRPC != JSONRPCVersion {
		return req, newError(CodeInvalidRequest, "invalid request: jsonrpc must be %q", JSONRPCVersion)
	}
	if req.Method == "" {
		return req, newError(CodeInvalidRequest, "invalid request: missing method")
	}
	return req, nil
}

func validID(id json.RawMessage) bool {
	id = bytes.TrimSpace(id)
	if len(id) == 0 {
		return false
	}
	switch id[0] {
	case '{', '[', 't', 'f':
		return false
	}
	return true
}

// looseID matches an "id" member holding a string or number.
var looseID = regexp.MustCompile(`"id"\s*:\s*(-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?|"(?:[^"\\]|\\.)*")`)

// recoverID pulls an id out of a body that failed to parse.
func recoverID(body []byte) (json.RawMessage, bool) {
	m := looseID.FindSubmatch(body)
	if m == nil {
		return nil, false
	}
	id := json.RawMessage(append([]byte(nil), m[1]...))
	if !json.Valid(id) {
		return nil, false
	}
	return id, true
}
