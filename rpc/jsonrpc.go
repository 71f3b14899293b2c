package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// isNotification reports whether the request carries no id.
func (r *RPCRequest) isNotification() bool {
	return len(r.ID) == 0
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// MarshalJSON keeps "result": null for successful calls whose result is nil.
func (r *RPCResponse) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *RPCError       `json:"error"`
		}{r.JSONRPC, id, r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{r.JSONRPC, id, r.Result})
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

func invalidParams(format string, args ...any) *RPCError {
	return &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func serverError(format string, args ...any) *RPCError {
	return &RPCError{Code: CodeServerError, Message: fmt.Sprintf(format, args...)}
}

// toRPCError maps a handler error to its wire form. Plain errors are server
// errors (-32000), which is how tooling expects rejected transactions.
func toRPCError(err error) *RPCError {
	var re *RPCError
	if errors.As(err, &re) {
		return re
	}
	return &RPCError{Code: CodeServerError, Message: err.Error()}
}

func errorResponse(id json.RawMessage, err *RPCError) *RPCResponse {
	return &RPCResponse{JSONRPC: "2.0", ID: id, Error: err}
}

// parseMessage splits a request body into requests. batch is true when the
// body was a JSON array.
func parseMessage(body []byte) (reqs []*RPCRequest, batch bool, err *RPCError) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false, &RPCError{Code: CodeInvalidRequest, Message: "empty request"}
	}

	if body[0] == '[' {
		var raw []json.RawMessage
		if e := json.Unmarshal(body, &raw); e != nil {
			return nil, true, &RPCError{Code: CodeParseError, Message: "parse error: " + e.Error()}
		}
		if len(raw) == 0 {
			return nil, true, &RPCError{Code: CodeInvalidRequest, Message: "empty batch"}
		}
		reqs = make([]*RPCRequest, 0, len(raw))
		for _, msg := range raw {
			var req RPCRequest
			if e := json.Unmarshal(msg, &req); e != nil {
				// keep the slot so the batch answers with an invalid request
				reqs = append(reqs, nil)
				continue
			}
			reqs = append(reqs, &req)
		}
		return reqs, true, nil
	}

	if !json.Valid(body) {
		return nil, false, &RPCError{Code: CodeParseError, Message: "parse error"}
	}
	var req RPCRequest
	if e := json.Unmarshal(body, &req); e != nil {
		return nil, false, &RPCError{Code: CodeInvalidRequest, Message: "invalid request: " + e.Error()}
	}
	return []*RPCRequest{&req}, false, nil
}

// validate checks the request envelope.
func (r *RPCRequest) validate() *RPCError {
	if r == nil {
		return &RPCError{Code: CodeInvalidRequest, Message: "invalid request"}
	}
	if r.JSONRPC != "2.0" {
		return &RPCError{Code: CodeInvalidRequest, Message: `invalid request: jsonrpc must be "2.0"`}
	}
	if r.Method == "" {
		return &RPCError{Code: CodeInvalidRequest, Message: "invalid request: missing method"}
	}
	return nil
}

// ------------------------------------------------------------
// Params decoding
// ------------------------------------------------------------

// splitParams turns the params member into positional arguments. Absent or
// null params mean no arguments.
func splitParams(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, invalidParams("params must be an array")
	}
	return args, nil
}

// param decodes the required argument at index i into v.
func param(args []json.RawMessage, i int, v any) error {
	if i >= len(args) {
		return invalidParams("missing value for required argument %d", i)
	}
	if err := json.Unmarshal(args[i], v); err != nil {
		return invalidParams("invalid argument %d: %v", i, err)
	}
	return nil
}

// optionalParam decodes argument i into v when present and not null.
func optionalParam(args []json.RawMessage, i int, v any) (bool, error) {
	if i >= len(args) || bytes.Equal(bytes.TrimSpace(args[i]), []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(args[i], v); err != nil {
		return false, invalidParams("invalid argument %d: %v", i, err)
	}
	return true, nil
}
