// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package session groups the tasks that share a context id into one
// multi-turn conversation. Sessions are derived from the store and never
// stored themselves.
package session

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/server/task"
)

// Summary describes one session of an agent.
type Summary struct {
	ContextID     string    `json:"contextId"`
	TaskCount     int       `json:"taskCount"`
	OpenTaskCount int       `json:"openTaskCount"`
	FirstActivity time.Time `json:"firstActivity"`
	LastActivity  time.Time `json:"lastActivity"`
}

// Entry is one message of a session transcript.
type Entry struct {
	TaskID    string            `json:"taskId"`
	TaskState paytask.TaskState `json:"taskState"`
	Role      paytask.Role      `json:"role"`
	Text      string            `json:"text,omitzero"`
	Parts     paytask.Parts     `json:"parts"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Context answers session queries against a task store.
type Context struct {
	store task.TaskStore
}

// New creates a Context reading from store.
func New(store task.TaskStore) *Context {
	return &Context{store: store}
}

// Tasks returns the tasks of a context with their history and artifacts,
// ordered by creation.
func (c *Context) Tasks(ctx context.Context, tenantID, contextID string) ([]*paytask.Task, error) {
	if contextID == "" {
		return nil, paytask.NewValidationError("contextId", "cannot be empty")
	}
	page, err := c.store.List(ctx, task.Query{TenantID: tenantID, ContextID: contextID})
	if err != nil {
		return nil, err
	}
	tasks := make([]*paytask.Task, 0, len(page.Tasks))
	for _, row := range page.Tasks {
		t, err := c.store.Get(ctx, tenantID, row.ID)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// List summarizes the sessions of an agent, most recently active first.
// Tasks without a context id are not part of any session.
func (c *Context) List(ctx context.Context, tenantID, agentID string) ([]Summary, error) {
	page, err := c.store.List(ctx, task.Query{TenantID: tenantID, AgentID: agentID})
	if err != nil {
		return nil, err
	}

	byContext := make(map[string]*Summary)
	for _, t := range page.Tasks {
		if t.ContextID == "" {
			continue
		}
		s, ok := byContext[t.ContextID]
		if !ok {
			s = &Summary{ContextID: t.ContextID, FirstActivity: t.CreatedAt, LastActivity: t.UpdatedAt}
			byContext[t.ContextID] = s
		}
		s.TaskCount++
		if !t.State.IsTerminal() {
			s.OpenTaskCount++
		}
		if t.CreatedAt.Before(s.FirstActivity) {
			s.FirstActivity = t.CreatedAt
		}
		if t.UpdatedAt.After(s.LastActivity) {
			s.LastActivity = t.UpdatedAt
		}
	}

	out := make([]Summary, 0, len(byContext))
	for _, s := range byContext {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Summary) int {
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(a.ContextID, b.ContextID)
	})
	return out, nil
}

// Narrative flattens the histories of a context into one transcript: the
// tasks in creation order, each task's messages in append order.
func (c *Context) Narrative(ctx context.Context, tenantID, contextID string) ([]Entry, error) {
	tasks, err := c.Tasks(ctx, tenantID, contextID)
	if err != nil {
		return nil, err
	}
	return Transcript(tasks), nil
}

// Transcript flattens the histories of tasks, in the given order.
func Transcript(tasks []*paytask.Task) []Entry {
	var entries []Entry
	for _, t := range tasks {
		for _, m := range t.History {
			entries = append(entries, Entry{
				TaskID:    t.ID,
				TaskState: t.State,
				Role:      m.Role,
				Text:      m.Parts.Text(),
				Parts:     m.Parts,
				CreatedAt: m.CreatedAt,
			})
		}
	}
	return entries
}
