// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package handler provides the request handlers of the agent addresses.
// This package implements the task operations behind each JSON-RPC method
// and the Dispatcher that adapts JSON-RPC envelopes to them.
package handler

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/server/processor"
	"github.com/go-a2a/paytask/server/task"
)

// CallContext identifies who is calling which agent address.
type CallContext struct {
	TenantID string
	AgentID  string
}

// RequestHandler defines the operations served on an agent address.
// This interface abstracts the task logic from the JSON-RPC adaptation.
type RequestHandler interface {
	// OnSendMessage creates a task, or appends to the task named by params.ID.
	OnSendMessage(ctx context.Context, call CallContext, params *paytask.SendMessageParams) (*paytask.Task, error)

	// OnGetTask returns a task with its history and artifacts.
	OnGetTask(ctx context.Context, call CallContext, params *paytask.TaskQueryParams) (*paytask.Task, error)

	// OnListTasks returns one page of task summaries.
	OnListTasks(ctx context.Context, call CallContext, params *paytask.ListTasksParams) (*paytask.ListTasksResult, error)

	// OnCancelTask cancels a non-terminal task.
	OnCancelTask(ctx context.Context, call CallContext, params *paytask.TaskIDParams) (*paytask.Task, error)
}

// TaskHandler is the [RequestHandler] backed by a task store and processor.
// Tasks of other agents are reported as not found.
type TaskHandler struct {
	store     task.TaskStore
	processor *processor.Processor
}

var _ RequestHandler = (*TaskHandler)(nil)

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(store task.TaskStore, p *processor.Processor) *TaskHandler {
	return &TaskHandler{store: store, processor: p}
}

// load returns the task when it belongs to the called agent.
func (h *TaskHandler) load(ctx context.Context, call CallContext, taskID string) (*paytask.Task, error) {
	t, err := h.store.Get(ctx, call.TenantID, taskID)
	if err != nil {
		return nil, err
	}
	if t.AgentID != call.AgentID {
		return nil, paytask.NewTaskNotFoundError(taskID)
	}
	return t, nil
}

// OnSendMessage implements [RequestHandler].
func (h *TaskHandler) OnSendMessage(ctx context.Context, call CallContext, params *paytask.SendMessageParams) (*paytask.Task, error) {
	if params.ID == "" {
		return h.processor.Submit(ctx, call.TenantID, call.AgentID, params)
	}
	if _, err := h.load(ctx, call, params.ID); err != nil {
		return nil, err
	}
	return h.processor.Append(ctx, call.TenantID, params.ID, params.Message)
}

// OnGetTask implements [RequestHandler].
func (h *TaskHandler) OnGetTask(ctx context.Context, call CallContext, params *paytask.TaskQueryParams) (*paytask.Task, error) {
	t, err := h.load(ctx, call, params.ID)
	if err != nil {
		return nil, err
	}
	return t.WithHistoryLength(params.HistoryLength), nil
}

// OnListTasks implements [RequestHandler].
func (h *TaskHandler) OnListTasks(ctx context.Context, call CallContext, params *paytask.ListTasksParams) (*paytask.ListTasksResult, error) {
	if params.AgentID != "" && params.AgentID != call.AgentID {
		return nil, paytask.NewValidationError("agent_id", "must match the addressed agent %q", call.AgentID)
	}
	after, err := DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	q := task.Query{
		TenantID:  call.TenantID,
		AgentID:   call.AgentID,
		ContextID: params.ContextID,
		AfterSeq:  after,
		Limit:     params.Limit,
	}
	if params.State != "" {
		q.States = []paytask.TaskState{params.State}
	}
	page, err := h.store.List(ctx, q)
	if err != nil {
		return nil, err
	}

	result := &paytask.ListTasksResult{
		Tasks: make([]paytask.TaskSummary, 0, len(page.Tasks)),
		Pagination: paytask.Pagination{
			Total:      page.Total,
			Page:       int(page.Skipped)/params.Limit + 1,
			TotalPages: int((page.Total + int64(params.Limit) - 1) / int64(params.Limit)),
			Limit:      params.Limit,
		},
	}
	for _, t := range page.Tasks {
		result.Tasks = append(result.Tasks, t.Summary())
	}
	if page.HasMore && len(page.Tasks) > 0 {
		result.Pagination.NextCursor = EncodeCursor(page.Tasks[len(page.Tasks)-1].Seq)
	}
	return result, nil
}

// OnCancelTask implements [RequestHandler].
func (h *TaskHandler) OnCancelTask(ctx context.Context, call CallContext, params *paytask.TaskIDParams) (*paytask.Task, error) {
	if _, err := h.load(ctx, call, params.ID); err != nil {
		return nil, err
	}
	return h.processor.Cancel(ctx, call.TenantID, params.ID)
}

// EncodeCursor returns the opaque tasks/list cursor positioned after seq.
func EncodeCursor(seq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte("seq:" + strconv.FormatInt(seq, 10)))
}

// DecodeCursor parses a cursor produced by EncodeCursor. The empty cursor
// starts at the beginning.
func DecodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || len(raw) < 5 || string(raw[:4]) != "seq:" {
		return 0, paytask.NewValidationError("cursor", "malformed cursor")
	}
	seq, err := strconv.ParseInt(string(raw[4:]), 10, 64)
	if err != nil || seq < 0 {
		return 0, paytask.NewValidationError("cursor", "malformed cursor")
	}
	return seq, nil
}
