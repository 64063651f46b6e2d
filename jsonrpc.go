// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package paytask

import (
	"net/url"
	"strings"
)

// JSON-RPC method names served on every agent address.
const (
	// MethodMessageSend creates a task or appends a message to an existing one.
	MethodMessageSend = "message/send"
	// MethodTasksGet returns a task with its history and artifacts.
	MethodTasksGet = "tasks/get"
	// MethodTasksList pages through task summaries.
	MethodTasksList = "tasks/list"
	// MethodTasksCancel cancels a non-terminal task.
	MethodTasksCancel = "tasks/cancel"
)

// Paging limits of tasks/list.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// SendMessageParams are the parameters of message/send.
type SendMessageParams struct {
	Message   Message `json:"message"`
	ContextID string  `json:"contextId,omitzero"`
	// ID addresses an existing task. When empty a new task is created.
	ID string `json:"id,omitzero"`
	// RemoteAgentURL marks a new task for delegation to another agent.
	RemoteAgentURL string `json:"remoteAgentUrl,omitzero"`
}

// Validate normalizes the message role and checks the parameters.
func (p *SendMessageParams) Validate() error {
	if p.Message.Role == "" {
		p.Message.Role = RoleUser
	}
	if p.Message.Role != RoleUser {
		return NewValidationError("message.role", "only %q messages can be sent", RoleUser)
	}
	if err := p.Message.Parts.Validate(); err != nil {
		return NewValidationError("message.parts", "%v", err)
	}
	if p.RemoteAgentURL != "" {
		if p.ID != "" {
			return NewValidationError("remoteAgentUrl", "can only be set when creating a task")
		}
		u, err := url.Parse(p.RemoteAgentURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return NewValidationError("remoteAgentUrl", "must be an absolute http(s) URL")
		}
	}
	p.ContextID = strings.TrimSpace(p.ContextID)
	return nil
}

// TaskQueryParams are the parameters of tasks/get.
type TaskQueryParams struct {
	ID            string `json:"id"`
	HistoryLength int    `json:"historyLength,omitzero"`
}

// Validate checks the parameters.
func (p *TaskQueryParams) Validate() error {
	if p.ID == "" {
		return NewValidationError("id", "task ID cannot be empty")
	}
	if p.HistoryLength < 0 {
		return NewValidationError("historyLength", "must not be negative")
	}
	return nil
}

// TaskIDParams are the parameters of tasks/cancel.
type TaskIDParams struct {
	ID string `json:"id"`
}

// Validate checks the parameters.
func (p *TaskIDParams) Validate() error {
	if p.ID == "" {
		return NewValidationError("id", "task ID cannot be empty")
	}
	return nil
}

// ListTasksParams are the parameters of tasks/list.
type ListTasksParams struct {
	Limit     int       `json:"limit,omitzero"`
	Cursor    string    `json:"cursor,omitzero"`
	State     TaskState `json:"state,omitzero"`
	AgentID   string    `json:"agent_id,omitzero"`
	ContextID string    `json:"contextId,omitzero"`
}

// Validate applies the default limit and checks the filters.
func (p *ListTasksParams) Validate() error {
	switch {
	case p.Limit == 0:
		p.Limit = DefaultListLimit
	case p.Limit < 0 || p.Limit > MaxListLimit:
		return NewValidationError("limit", "must be between 1 and %d", MaxListLimit)
	}
	if p.State != "" && !p.State.Valid() {
		return NewValidationError("state", "unknown state %q", p.State)
	}
	return nil
}

// ListTasksResult is the result of tasks/list.
type ListTasksResult struct {
	Tasks      []TaskSummary `json:"tasks"`
	Pagination Pagination    `json:"pagination"`
}

// Pagination describes where a page sits in the filtered result set.
type Pagination struct {
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
	Limit      int    `json:"limit"`
	NextCursor string `json:"nextCursor,omitzero"`
}
