// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/internal/jsonrpc2"
	"github.com/go-a2a/paytask/server/task"
)

// ToRPCError converts an operation error to the JSON-RPC error object sent
// to the caller. Engine errors keep their code and details. Anything
// unclassified becomes an internal error without leaking its text.
func ToRPCError(err error) *jsonrpc2.Error {
	if err == nil {
		return nil
	}

	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var e *paytask.Error
	if errors.As(err, &e) {
		return jsonrpc2.NewError(e.Code(), e.Message).WithData(e.Data())
	}

	var ve task.TaskValidationError
	if errors.As(err, &ve) {
		return jsonrpc2.ErrInvalidParams.WithData(map[string]any{"kind": string(paytask.KindValidation), "detail": ve.Err.Error()})
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return jsonrpc2.ErrInternal.WithData("deadline exceeded")
	case errors.Is(err, context.Canceled):
		return jsonrpc2.ErrInternal.WithData("request canceled")
	}
	return jsonrpc2.ErrInternal
}

// HTTPStatus returns the status code the administrative REST surface uses
// for err.
func HTTPStatus(err error) int {
	var ve task.TaskValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}

	switch paytask.KindOf(err) {
	case paytask.KindTaskNotFound:
		return http.StatusNotFound
	case paytask.KindTaskTerminal, paytask.KindConcurrentProcessing:
		return http.StatusConflict
	case paytask.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case paytask.KindValidation:
		return http.StatusBadRequest
	case paytask.KindUnauthenticated:
		return http.StatusUnauthorized
	case paytask.KindUpstreamAgentTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
