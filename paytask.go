// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package paytask provides the domain model of an Agent-to-Agent (A2A) task
// engine for payment agents: tasks with a strict finite-state lifecycle,
// append-only message history, artifacts, and the JSON-RPC method contracts
// used to address them.
package paytask

// Version is the current version of the task engine protocol surface.
const Version = "0.3.0"

// TaskState represents the state of a Task.
type TaskState string

const (
	// TaskStateSubmitted indicates the task has been created and awaits processing.
	TaskStateSubmitted TaskState = "submitted"

	// TaskStateWorking indicates the task is being worked on.
	TaskStateWorking TaskState = "working"

	// TaskStateInputRequired indicates the task is paused until a human or agent replies.
	TaskStateInputRequired TaskState = "input-required"

	// TaskStateCompleted indicates the task has been completed.
	TaskStateCompleted TaskState = "completed"

	// TaskStateCanceled indicates the task has been canceled.
	TaskStateCanceled TaskState = "canceled"

	// TaskStateFailed indicates the task has failed.
	TaskStateFailed TaskState = "failed"

	// TaskStateRejected indicates the task was rejected by the agent handling it.
	TaskStateRejected TaskState = "rejected"
)

// AllTaskStates lists every known state in lifecycle order.
var AllTaskStates = []TaskState{
	TaskStateSubmitted,
	TaskStateWorking,
	TaskStateInputRequired,
	TaskStateCompleted,
	TaskStateCanceled,
	TaskStateFailed,
	TaskStateRejected,
}

// Valid reports whether s is a known state.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	}
	return false
}

// String implements [fmt.Stringer].
func (s TaskState) String() string {
	return string(s)
}

// Direction records who initiated a task relative to the agent owning it.
type Direction string

const (
	// DirectionInbound marks a task another party sent to this agent.
	DirectionInbound Direction = "inbound"

	// DirectionOutbound marks a task this agent delegates to a remote agent.
	DirectionOutbound Direction = "outbound"
)

// Role identifies the author of a Message.
type Role string

const (
	// RoleUser is a human or a calling agent.
	RoleUser Role = "user"

	// RoleAgent is the agent that owns the task.
	RoleAgent Role = "agent"
)
