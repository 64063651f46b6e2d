// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package paytask

import (
	"errors"
	"fmt"
)

// JSON-RPC error codes. The -32000 range is reserved for engine errors.
const (
	ErrorCodeTaskNotFound         = -32001
	ErrorCodeTaskTerminal         = -32002
	ErrorCodeInvalidTransition    = -32010
	ErrorCodeConcurrentProcessing = -32011
	ErrorCodeUpstreamAgentTimeout = -32012
	ErrorCodeUnauthenticated      = -32020
	ErrorCodeJSONParse            = -32700
	ErrorCodeInvalidRequest       = -32600
	ErrorCodeMethodNotFound       = -32601
	ErrorCodeInvalidParams        = -32602
	ErrorCodeInternalError        = -32603
)

// ErrorKind classifies engine errors.
type ErrorKind string

const (
	KindTaskNotFound         ErrorKind = "TaskNotFound"
	KindTaskTerminal         ErrorKind = "TaskTerminal"
	KindInvalidTransition    ErrorKind = "InvalidTransition"
	KindConcurrentProcessing ErrorKind = "ConcurrentProcessing"
	KindUpstreamAgentTimeout ErrorKind = "UpstreamAgentTimeout"
	KindValidation           ErrorKind = "ValidationError"
	KindUnauthenticated      ErrorKind = "Unauthenticated"
)

var kindCodes = map[ErrorKind]int{
	KindTaskNotFound:         ErrorCodeTaskNotFound,
	KindTaskTerminal:         ErrorCodeTaskTerminal,
	KindInvalidTransition:    ErrorCodeInvalidTransition,
	KindConcurrentProcessing: ErrorCodeConcurrentProcessing,
	KindUpstreamAgentTimeout: ErrorCodeUpstreamAgentTimeout,
	KindValidation:           ErrorCodeInvalidParams,
	KindUnauthenticated:      ErrorCodeUnauthenticated,
}

// Code returns the JSON-RPC error code of the kind.
func (k ErrorKind) Code() int {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return ErrorCodeInternalError
}

// Error is the error type returned by every engine operation for a
// classified failure. Use [errors.Is] with the Err* sentinels to test for a
// kind, or [errors.As] to read the details.
type Error struct {
	Kind    ErrorKind
	TaskID  string
	Message string

	// From and To are set for transition errors.
	From TaskState
	To   TaskState

	// Field is set for validation errors.
	Field string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.TaskID != "" {
		msg = fmt.Sprintf("%s (task %s)", msg, e.TaskID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Code returns the JSON-RPC error code.
func (e *Error) Code() int {
	return e.Kind.Code()
}

// Data returns the structured details carried in a JSON-RPC error envelope.
func (e *Error) Data() map[string]any {
	data := map[string]any{"kind": string(e.Kind)}
	if e.TaskID != "" {
		data["taskId"] = e.TaskID
	}
	if e.From != "" {
		data["from"] = string(e.From)
	}
	if e.To != "" {
		data["to"] = string(e.To)
	}
	if e.Field != "" {
		data["field"] = e.Field
	}
	return data
}

// Sentinels for use with [errors.Is].
var (
	ErrTaskNotFound         = &Error{Kind: KindTaskNotFound, Message: "task not found"}
	ErrTaskTerminal         = &Error{Kind: KindTaskTerminal, Message: "task is in a terminal state"}
	ErrInvalidTransition    = &Error{Kind: KindInvalidTransition, Message: "invalid state transition"}
	ErrConcurrentProcessing = &Error{Kind: KindConcurrentProcessing, Message: "task is being processed"}
	ErrUpstreamAgentTimeout = &Error{Kind: KindUpstreamAgentTimeout, Message: "remote agent did not answer in time"}
	ErrValidation           = &Error{Kind: KindValidation, Message: "validation error"}
	ErrUnauthenticated      = &Error{Kind: KindUnauthenticated, Message: "caller is not authenticated"}
)

// NewTaskNotFoundError creates a TaskNotFound error.
func NewTaskNotFoundError(taskID string) *Error {
	return &Error{Kind: KindTaskNotFound, TaskID: taskID, Message: "task not found"}
}

// NewTaskTerminalError creates a TaskTerminal error for a task in state.
func NewTaskTerminalError(taskID string, state TaskState) *Error {
	return &Error{
		Kind:    KindTaskTerminal,
		TaskID:  taskID,
		From:    state,
		Message: fmt.Sprintf("task is %s and accepts no further changes", state),
	}
}

// NewInvalidTransitionError creates an InvalidTransition error.
func NewInvalidTransitionError(taskID string, from, to TaskState) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		TaskID:  taskID,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("cannot move from %s to %s", from, to),
	}
}

// NewConcurrentProcessingError creates a ConcurrentProcessing error.
func NewConcurrentProcessingError(taskID string) *Error {
	return &Error{Kind: KindConcurrentProcessing, TaskID: taskID, Message: "task is being processed"}
}

// NewUpstreamAgentTimeoutError creates an UpstreamAgentTimeout error.
func NewUpstreamAgentTimeoutError(taskID, remoteURL string, err error) *Error {
	return &Error{
		Kind:    KindUpstreamAgentTimeout,
		TaskID:  taskID,
		Message: fmt.Sprintf("remote agent %s did not answer in time", remoteURL),
		Err:     err,
	}
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Field:   field,
		Message: fmt.Sprintf("invalid %s: %s", field, fmt.Sprintf(format, args...)),
	}
}

// NewUnauthenticatedError creates an Unauthenticated error.
func NewUnauthenticatedError(reason string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: "caller is not authenticated: " + reason}
}

// KindOf returns the kind of err, or "" when err is not an engine error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
