// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonrpc2 implements the JSON-RPC 2.0 envelopes and codec used by
// the task engine.
package jsonrpc2

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/go-a2a/paytask/internal/pool"
)

// Version is the only supported protocol version.
const Version = "2.0"

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc2: code %d: %s", e.Code, e.Message)
}

// NewError returns an error object with the given code and message.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithData returns a copy of e carrying data.
func (e *Error) WithData(data any) *Error {
	c := *e
	c.Data = data
	return &c
}

// Protocol level errors.
var (
	ErrParse          = NewError(-32700, "parse error")
	ErrInvalidRequest = NewError(-32600, "invalid request")
	ErrMethodNotFound = NewError(-32601, "method not found")
	ErrInvalidParams  = NewError(-32602, "invalid params")
	ErrInternal       = NewError(-32603, "internal error")
)

// Request is a JSON-RPC request or notification.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id,omitzero"`
	Method  string         `json:"method"`
	Params  jsontext.Value `json:"params,omitzero"`
}

// IsNotification reports whether the request carries no ID.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Validate checks the envelope.
func (r *Request) Validate() error {
	if r.JSONRPC != Version {
		return fmt.Errorf("jsonrpc must be %q", Version)
	}
	if r.Method == "" {
		return errors.New("method cannot be empty")
	}
	if len(r.ID) > 0 {
		switch r.ID.Kind() {
		case '"', '0', 'n':
		default:
			return errors.New("id must be a string, number or null")
		}
	}
	return nil
}

// UnmarshalParams decodes the request params into target.
// Missing params decode as an empty object.
func (r *Request) UnmarshalParams(target any) error {
	params := r.Params
	if len(params) == 0 || params.Kind() == 'n' {
		params = jsontext.Value("{}")
	}
	return json.Unmarshal(params, target)
}

// Response is a JSON-RPC response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id"`
	Result  jsontext.Value `json:"result,omitzero"`
	Error   *Error         `json:"error,omitzero"`
}

// NewResponse builds a response for id. A non-nil err takes precedence over
// result. Errors that are not *Error are reported as internal errors.
func NewResponse(id jsontext.Value, result any, err error) *Response {
	if len(id) == 0 {
		id = jsontext.Value("null")
	}
	resp := &Response{JSONRPC: Version, ID: id}
	if err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = ErrInternal.WithData(err.Error())
		}
		resp.Error = rpcErr
		return resp
	}

	b, merr := json.Marshal(result)
	if merr != nil {
		resp.Error = ErrInternal.WithData(fmt.Sprintf("marshal result: %v", merr))
		return resp
	}
	resp.Result = b
	return resp
}

// DecodeRequests parses a single request or a batch. batch reports whether
// the payload was a JSON array.
func DecodeRequests(data []byte) (reqs []*Request, batch bool, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false, ErrParse.WithData("empty body")
	}
	if data[0] == '[' {
		var raw []jsontext.Value
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, true, ErrParse.WithData(err.Error())
		}
		if len(raw) == 0 {
			return nil, true, ErrInvalidRequest.WithData("empty batch")
		}
		reqs = make([]*Request, len(raw))
		for i, v := range raw {
			var req Request
			if err := json.Unmarshal(v, &req); err != nil {
				// Keep the slot so the caller can answer it with an error.
				req = Request{}
			}
			reqs[i] = &req
		}
		return reqs, true, nil
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, false, ErrParse.WithData(err.Error())
	}
	return []*Request{&req}, false, nil
}

// Encode marshals v using a pooled buffer.
func Encode(v any) ([]byte, error) {
	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)

	if err := json.MarshalWrite(buf, v); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}
