// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionConflict is returned by Update when the task changed since it was read.
	ErrVersionConflict = errors.New("task version conflict")

	// ErrTransferAlreadySet is returned by Update when a second transfer ID is assigned.
	ErrTransferAlreadySet = errors.New("task transfer ID already set")
)

// TaskStoreError represents an error from the task store.
type TaskStoreError struct {
	Operation string
	TaskID    string
	Err       error
}

// Error returns the error message.
func (e TaskStoreError) Error() string {
	return fmt.Sprintf("task store %s operation failed for task %s: %v", e.Operation, e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e TaskStoreError) Unwrap() error {
	return e.Err
}

// TaskValidationError represents an error when task validation fails.
type TaskValidationError struct {
	TaskID string
	Err    error
}

// Error returns the error message.
func (e TaskValidationError) Error() string {
	return fmt.Sprintf("task %s validation failed: %v", e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e TaskValidationError) Unwrap() error {
	return e.Err
}

// VersionConflictError reports the versions seen by a failed compare-and-swap.
type VersionConflictError struct {
	TaskID   string
	Expected int64
	Actual   int64
}

// Error returns the error message.
func (e VersionConflictError) Error() string {
	return fmt.Sprintf("task %s: expected version %d, found %d", e.TaskID, e.Expected, e.Actual)
}

// Is makes the error match [ErrVersionConflict].
func (e VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// NewTaskStoreError creates a new TaskStoreError.
func NewTaskStoreError(operation, taskID string, err error) TaskStoreError {
	return TaskStoreError{
		Operation: operation,
		TaskID:    taskID,
		Err:       err,
	}
}

// NewTaskValidationError creates a new TaskValidationError.
func NewTaskValidationError(taskID string, err error) TaskValidationError {
	return TaskValidationError{
		TaskID: taskID,
		Err:    err,
	}
}

// NewVersionConflictError creates a new VersionConflictError.
func NewVersionConflictError(taskID string, expected, actual int64) VersionConflictError {
	return VersionConflictError{
		TaskID:   taskID,
		Expected: expected,
		Actual:   actual,
	}
}
