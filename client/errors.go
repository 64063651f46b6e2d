// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"fmt"

	"github.com/go-a2a/paytask"
)

// RPCError represents a JSON-RPC 2.0 error returned by a remote agent.
type RPCError struct {
	// Code is the error code
	Code int `json:"code"`
	// Message is the error message
	Message string `json:"message"`
	// Data is optional additional information about the error
	Data any `json:"data,omitzero"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error: code = %d, message = %s, data = %v", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error: code = %d, message = %s", e.Code, e.Message)
}

// IsRPCError checks if an error is an RPCError with the specified code.
func IsRPCError(err error, code int) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == code
	}
	return false
}

// IsTaskNotFoundError checks if an error is due to a task not being found.
func IsTaskNotFoundError(err error) bool {
	return IsRPCError(err, paytask.ErrorCodeTaskNotFound)
}

// IsTaskTerminalError checks if an error is due to a task being in a terminal state.
func IsTaskTerminalError(err error) bool {
	return IsRPCError(err, paytask.ErrorCodeTaskTerminal)
}

// HTTPError is a non-200 answer of the remote agent.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("server returned non-OK status: %d, body: %s", e.StatusCode, e.Body)
}
