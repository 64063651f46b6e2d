// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package task provides the durable task store used by the engine.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/go-a2a/paytask"
)

// TaskStore defines the interface for task persistence operations.
//
// Every method is keyed by tenant. Update is a compare-and-swap on the task
// version: it fails with [ErrVersionConflict] when the stored version differs
// from the expected one, and it appends messages and artifacts in the same
// atomic step as the row change.
type TaskStore interface {
	// Create stores a new task together with its initial history.
	// The store assigns Seq, Version and timestamps.
	Create(ctx context.Context, task *paytask.Task) (*paytask.Task, error)

	// Get retrieves a task with its ordered history and artifacts.
	// Returns a TaskNotFound error if the task doesn't exist.
	Get(ctx context.Context, tenantID, taskID string) (*paytask.Task, error)

	// Update applies m when the stored version equals expectedVersion and
	// returns the updated task with history and artifacts.
	Update(ctx context.Context, tenantID, taskID string, expectedVersion int64, m Mutation) (*paytask.Task, error)

	// List returns the tasks matching q ordered by creation sequence,
	// without history or artifacts.
	List(ctx context.Context, q Query) (*Page, error)

	// Stats counts the tasks of an agent per state.
	Stats(ctx context.Context, tenantID, agentID string) (map[paytask.TaskState]int64, error)

	// Delete removes a task with its messages and artifacts.
	Delete(ctx context.Context, tenantID, taskID string) error

	// Initialize prepares the storage backend for use.
	Initialize(ctx context.Context) error

	// Close cleanly shuts down the storage backend.
	Close(ctx context.Context) error
}

// Mutation describes one atomic change of a task row. Zero fields are left
// unchanged.
type Mutation struct {
	// State is validated against the transition table when it differs from
	// the stored state.
	State         paytask.TaskState
	StatusMessage *string
	// TransferID can be assigned once. Assigning a different value to a task
	// that already carries one fails with [ErrTransferAlreadySet].
	TransferID   string
	PendingReply *bool

	AppendMessages  []paytask.Message
	AppendArtifacts []paytask.Artifact
}

// Query selects tasks for List. Empty fields do not filter.
type Query struct {
	TenantID  string
	AgentID   string
	ContextID string
	States    []paytask.TaskState

	// UpdatedBefore keeps tasks whose last update is older than the given time.
	UpdatedBefore time.Time

	// AfterSeq starts the page after the task with this sequence number.
	AfterSeq int64
	// Limit bounds the page size. Zero returns every matching task.
	Limit int
}

// Page is one page of List results.
type Page struct {
	Tasks []*paytask.Task
	// Total is the number of tasks matching the query filters.
	Total int64
	// Skipped is the number of matching tasks ordered before this page.
	Skipped int64
	HasMore bool
}

// applyMutation validates m against t and applies it in place.
func applyMutation(t *paytask.Task, m Mutation, now time.Time) error {
	if t.State.IsTerminal() {
		return paytask.NewTaskTerminalError(t.ID, t.State)
	}
	if m.State != "" && m.State != t.State {
		next, err := paytask.Transition(t.ID, t.State, m.State)
		if err != nil {
			return err
		}
		t.State = next
	}

	if m.TransferID != "" && m.TransferID != t.TransferID {
		if t.TransferID != "" {
			return fmt.Errorf("%w: task %s already references %s", ErrTransferAlreadySet, t.ID, t.TransferID)
		}
		t.TransferID = m.TransferID
	}
	if m.StatusMessage != nil {
		t.StatusMessage = *m.StatusMessage
	}
	if m.PendingReply != nil {
		t.PendingReply = *m.PendingReply
	}

	t.Version++
	t.UpdatedAt = now
	return nil
}

// prepareMessages fills the store-owned fields of messages appended after
// the first `existing` entries of a task history.
func prepareMessages(taskID string, existing int, msgs []paytask.Message, now time.Time) ([]paytask.Message, error) {
	out := make([]paytask.Message, len(msgs))
	for i, m := range msgs {
		m = m.Clone()
		if err := m.Validate(); err != nil {
			return nil, NewTaskValidationError(taskID, err)
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m.TaskID = taskID
		m.Seq = int64(existing + i + 1)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		out[i] = m
	}
	return out, nil
}

// prepareArtifacts fills the store-owned fields of appended artifacts.
func prepareArtifacts(taskID string, arts []paytask.Artifact, now time.Time) ([]paytask.Artifact, error) {
	out := make([]paytask.Artifact, len(arts))
	for i, a := range arts {
		a = a.Clone()
		if err := a.Validate(); err != nil {
			return nil, NewTaskValidationError(taskID, err)
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.TaskID = taskID
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		out[i] = a
	}
	return out, nil
}

// matches reports whether t satisfies the filters of q.
func (q Query) matches(t *paytask.Task) bool {
	if q.TenantID != "" && t.TenantID != q.TenantID {
		return false
	}
	if q.AgentID != "" && t.AgentID != q.AgentID {
		return false
	}
	if q.ContextID != "" && t.ContextID != q.ContextID {
		return false
	}
	if !q.UpdatedBefore.IsZero() && !t.UpdatedAt.Before(q.UpdatedBefore) {
		return false
	}
	if len(q.States) == 0 {
		return true
	}
	for _, s := range q.States {
		if t.State == s {
			return true
		}
	}
	return false
}
