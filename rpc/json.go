// Package rpc exposes the ledger over JSON-RPC 2.0: a single HTTP endpoint
// for the tossig_ method namespace, a websocket endpoint streaming batch
// records, and a typed client for both.
package rpc

import (
	"encoding/json"
	"fmt"
)

const vsn = "2.0"

// JSON-RPC 2.0 error codes. The -32000 range carries application errors.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeBatchRejected  = -32000
	CodeInvalidRecord  = -32001
)

// jsonrpcMessage is both request and response; requests carry Method/Params,
// responses Result or Error.
type jsonrpcMessage struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONError      `json:"error,omitempty"`
}

// JSONError is a JSON-RPC 2.0 error object. The client surfaces it verbatim
// so callers can branch on Code.
type JSONError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (err *JSONError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("json-rpc error %d", err.Code)
	}
	return err.Message
}

// ErrorCode returns the JSON-RPC error code of err.
func (err *JSONError) ErrorCode() int { return err.Code }

func invalidParams(format string, args ...interface{}) *JSONError {
	return &JSONError{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}
