// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/auth"
	"github.com/go-a2a/paytask/server/session"
)

// ProcessResponse is the body of POST /tasks/{id}/process.
type ProcessResponse struct {
	Task   *paytask.Task `json:"task"`
	Noop   bool          `json:"noop"`
	Action string        `json:"action,omitempty"`
}

// RespondRequest is the body of POST /tasks/{id}/respond. Text is a
// shorthand for a message holding one text part.
type RespondRequest struct {
	Message *paytask.Message `json:"message,omitempty"`
	Text    string           `json:"text,omitempty"`
}

// ProcessAllRequest is the body of POST /process.
type ProcessAllRequest struct {
	AgentID string `json:"agentId"`
}

// BatchOutcome reports one task of a batch.
type BatchOutcome struct {
	TaskID string            `json:"taskId"`
	State  paytask.TaskState `json:"state,omitempty"`
	Noop   bool              `json:"noop,omitempty"`
	Error  *errorBody        `json:"error,omitempty"`
}

// ProcessAllResponse is the body answered by POST /process.
type ProcessAllResponse struct {
	AgentID   string         `json:"agentId"`
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Outcomes  []BatchOutcome `json:"outcomes"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	AgentID string                      `json:"agentId"`
	Total   int64                       `json:"total"`
	States  map[paytask.TaskState]int64 `json:"states"`
}

// SessionsResponse is the body of GET /sessions.
type SessionsResponse struct {
	AgentID  string            `json:"agentId"`
	Sessions []session.Summary `json:"sessions"`
}

// SessionResponse is the body of GET /sessions/{contextID}.
type SessionResponse struct {
	ContextID string                `json:"contextId"`
	Tasks     []paytask.TaskSummary `json:"tasks"`
	Narrative []session.Entry       `json:"narrative"`
}

func (s *Server) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "paytask.server."+op,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
}

// fail records err on span and answers it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.writeError(w, r, err)
}

// loadTask returns the task named by the request path when the caller may
// act for its agent. Other agents' tasks are reported as not found.
func (s *Server) loadTask(r *http.Request) (auth.Caller, *paytask.Task, error) {
	caller, _ := auth.CallerFrom(r.Context())
	id := r.PathValue("id")
	t, err := s.store.Get(r.Context(), caller.TenantID, id)
	if err != nil {
		return caller, nil, err
	}
	if !caller.CanActFor(t.AgentID) {
		return caller, nil, paytask.NewTaskNotFoundError(id)
	}
	return caller, t, nil
}

// agentParam returns the agentId query parameter, falling back to the agent
// the caller is bound to.
func agentParam(r *http.Request, caller auth.Caller) (string, error) {
	agentID := r.URL.Query().Get("agentId")
	if agentID == "" {
		agentID = caller.AgentID
	}
	if agentID == "" {
		return "", paytask.NewValidationError("agentId", "cannot be empty")
	}
	if !caller.CanActFor(agentID) {
		return "", paytask.NewUnauthenticatedError("caller cannot act for agent " + agentID)
	}
	return agentID, nil
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.start(r.Context(), "Process", attribute.String("paytask.task_id", r.PathValue("id")))
	defer span.End()
	r = r.WithContext(ctx)

	caller, t, err := s.loadTask(r)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	res, err := s.processor.Process(ctx, caller.TenantID, t.ID)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, &ProcessResponse{Task: res.Task, Noop: res.Noop, Action: string(res.Action)})
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.start(r.Context(), "Respond", attribute.String("paytask.task_id", r.PathValue("id")))
	defer span.End()
	r = r.WithContext(ctx)

	var req RespondRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.fail(w, r, span, err)
		return
	}
	var msg paytask.Message
	switch {
	case req.Message != nil:
		msg = *req.Message
	case req.Text != "":
		msg = paytask.NewUserTextMessage(req.Text)
	default:
		s.fail(w, r, span, paytask.NewValidationError("message", "cannot be empty"))
		return
	}

	caller, t, err := s.loadTask(r)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	updated, err := s.processor.Respond(ctx, caller.TenantID, t.ID, msg)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, updated)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.start(r.Context(), "Cancel", attribute.String("paytask.task_id", r.PathValue("id")))
	defer span.End()
	r = r.WithContext(ctx)

	caller, t, err := s.loadTask(r)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	canceled, err := s.processor.Cancel(ctx, caller.TenantID, t.ID)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, canceled)
}

func (s *Server) handleProcessAll(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.start(r.Context(), "ProcessAll")
	defer span.End()
	r = r.WithContext(ctx)

	var req ProcessAllRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.fail(w, r, span, err)
		return
	}
	caller, _ := auth.CallerFrom(ctx)
	if req.AgentID == "" {
		req.AgentID = caller.AgentID
	}
	if req.AgentID == "" {
		s.fail(w, r, span, paytask.NewValidationError("agentId", "cannot be empty"))
		return
	}
	if !caller.CanActFor(req.AgentID) {
		s.fail(w, r, span, paytask.NewUnauthenticatedError("caller cannot act for agent "+req.AgentID))
		return
	}
	span.SetAttributes(attribute.String("paytask.agent_id", req.AgentID))

	res, err := s.batch.ProcessAll(ctx, caller.TenantID, req.AgentID)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	resp := &ProcessAllResponse{
		AgentID:   req.AgentID,
		Processed: res.Processed,
		Skipped:   res.Skipped,
		Failed:    len(res.Errors),
		Outcomes:  make([]BatchOutcome, 0, len(res.Outcomes)),
	}
	for _, o := range res.Outcomes {
		out := BatchOutcome{TaskID: o.TaskID, State: o.State, Noop: o.Noop}
		if o.Err != nil {
			body := errorBody{Kind: string(paytask.KindOf(o.Err)), Message: o.Err.Error(), TaskID: o.TaskID}
			if body.Kind == "" {
				body.Kind = "Internal"
			}
			out.Error = &body
		}
		resp.Outcomes = append(resp.Outcomes, out)
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.start(r.Context(), "Stats")
	defer span.End()
	r = r.WithContext(ctx)

	caller, _ := auth.CallerFrom(ctx)
	agentID, err := agentParam(r, caller)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	counts, err := s.store.Stats(ctx, caller.TenantID, agentID)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	resp := &StatsResponse{AgentID: agentID, States: make(map[paytask.TaskState]int64, len(paytask.AllTaskStates))}
	for _, state := range paytask.AllTaskStates {
		resp.States[state] = counts[state]
		resp.Total += counts[state]
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.start(r.Context(), "Sessions")
	defer span.End()
	r = r.WithContext(ctx)

	caller, _ := auth.CallerFrom(ctx)
	agentID, err := agentParam(r, caller)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	sessions, err := s.sessions.List(ctx, caller.TenantID, agentID)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, &SessionsResponse{AgentID: agentID, Sessions: sessions})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	contextID := r.PathValue("contextID")
	ctx, span := s.start(r.Context(), "Session", attribute.String("paytask.context_id", contextID))
	defer span.End()
	r = r.WithContext(ctx)

	caller, _ := auth.CallerFrom(ctx)
	tasks, err := s.sessions.Tasks(ctx, caller.TenantID, contextID)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	visible := tasks[:0]
	for _, t := range tasks {
		if caller.CanActFor(t.AgentID) {
			visible = append(visible, t)
		}
	}

	resp := &SessionResponse{
		ContextID: contextID,
		Tasks:     make([]paytask.TaskSummary, 0, len(visible)),
		Narrative: session.Transcript(visible),
	}
	for _, t := range visible {
		resp.Tasks = append(resp.Tasks, t.Summary())
	}
	if resp.Narrative == nil {
		resp.Narrative = []session.Entry{}
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}
