// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package paytask

import (
	"fmt"
	"time"
)

// Task is one unit of asynchronous agent work with its own lifecycle.
//
// A Task is identified by (TenantID, ID). History and Artifacts are filled
// only by reads that ask for them; they are owned by the task and deleted
// with it.
type Task struct {
	TenantID       string    `json:"tenantId"`
	ID             string    `json:"id"`
	AgentID        string    `json:"agentId"`
	ContextID      string    `json:"contextId,omitzero"`
	State          TaskState `json:"state"`
	StatusMessage  string    `json:"statusMessage,omitzero"`
	Direction      Direction `json:"direction"`
	RemoteAgentURL string    `json:"remoteAgentUrl,omitzero"`
	TransferID     string    `json:"transferId,omitzero"`

	// PendingReply is set when a reply was appended to an input-required
	// task and cleared when processing picks it up.
	PendingReply bool `json:"pendingReply,omitzero"`

	// Version increases on every stored mutation and guards compare-and-swap updates.
	Version int64 `json:"version"`

	// Seq is the creation sequence within the store.
	Seq int64 `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	History   []Message  `json:"history,omitzero"`
	Artifacts []Artifact `json:"artifacts,omitzero"`
}

// Validate ensures the Task row is well formed.
func (t *Task) Validate() error {
	if t == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if t.TenantID == "" {
		return fmt.Errorf("task tenant ID cannot be empty")
	}
	if t.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if t.AgentID == "" {
		return fmt.Errorf("task agent ID cannot be empty")
	}
	if !t.State.Valid() {
		return fmt.Errorf("invalid task state %q", t.State)
	}
	switch t.Direction {
	case DirectionInbound, DirectionOutbound:
	default:
		return fmt.Errorf("invalid task direction %q", t.Direction)
	}
	if t.Direction == DirectionOutbound && t.RemoteAgentURL == "" {
		return fmt.Errorf("outbound task requires a remote agent URL")
	}
	return nil
}

// IsSettled reports whether the financial side effect of the task has
// already happened. Reprocessing a settled task must be a no-op.
func (t *Task) IsSettled() bool {
	return t.State == TaskStateCompleted && t.TransferID != ""
}

// Processable reports whether a process run may pick the task up: it was
// just submitted, or it received a reply that has not been processed yet.
func (t *Task) Processable() bool {
	switch t.State {
	case TaskStateSubmitted:
		return true
	case TaskStateWorking:
		return t.PendingReply
	}
	return false
}

// LatestUserMessage returns the most recent message authored by the user.
func (t *Task) LatestUserMessage() (Message, bool) {
	for i := len(t.History) - 1; i >= 0; i-- {
		if t.History[i].Role == RoleUser {
			return t.History[i], true
		}
	}
	return Message{}, false
}

// LatestAgentMessage returns the most recent message authored by the agent.
func (t *Task) LatestAgentMessage() (Message, bool) {
	for i := len(t.History) - 1; i >= 0; i-- {
		if t.History[i].Role == RoleAgent {
			return t.History[i], true
		}
	}
	return Message{}, false
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.History != nil {
		c.History = make([]Message, len(t.History))
		for i, m := range t.History {
			c.History[i] = m.Clone()
		}
	}
	if t.Artifacts != nil {
		c.Artifacts = make([]Artifact, len(t.Artifacts))
		for i, a := range t.Artifacts {
			c.Artifacts[i] = a.Clone()
		}
	}
	return &c
}

// WithHistoryLength returns a copy of t keeping only the last n messages.
// A non-positive n keeps the full history.
func (t *Task) WithHistoryLength(n int) *Task {
	c := t.Clone()
	if n > 0 && len(c.History) > n {
		c.History = c.History[len(c.History)-n:]
	}
	return c
}

// Summary returns the list projection of t.
func (t *Task) Summary() TaskSummary {
	return TaskSummary{
		ID:            t.ID,
		AgentID:       t.AgentID,
		ContextID:     t.ContextID,
		State:         t.State,
		StatusMessage: t.StatusMessage,
		Direction:     t.Direction,
		TransferID:    t.TransferID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// TaskSummary is the projection returned by tasks/list.
type TaskSummary struct {
	ID            string    `json:"id"`
	AgentID       string    `json:"agentId"`
	ContextID     string    `json:"contextId,omitzero"`
	State         TaskState `json:"state"`
	StatusMessage string    `json:"statusMessage,omitzero"`
	Direction     Direction `json:"direction"`
	TransferID    string    `json:"transferId,omitzero"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
