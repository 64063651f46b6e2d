// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/internal/jsonrpc2"
)

// rpcServer answers every call with fn's result or error.
func rpcServer(t *testing.T, fn func(req *jsonrpc2.Request) (any, error)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		reqs, _, err := jsonrpc2.DecodeRequests(body)
		if err != nil {
			t.Errorf("DecodeRequests() error = %v", err)
			return
		}
		result, callErr := fn(reqs[0])
		data, _ := jsonrpc2.Encode(jsonrpc2.NewResponse(reqs[0].ID, result, callErr))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendMessage(t *testing.T) {
	srv := rpcServer(t, func(req *jsonrpc2.Request) (any, error) {
		if req.Method != paytask.MethodMessageSend {
			t.Errorf("method = %q", req.Method)
		}
		var params paytask.SendMessageParams
		if err := req.UnmarshalParams(&params); err != nil {
			t.Errorf("UnmarshalParams() error = %v", err)
		}
		return &paytask.Task{
			ID:        "remote-1",
			State:     paytask.TaskStateSubmitted,
			ContextID: params.ContextID,
			History:   []paytask.Message{params.Message},
		}, nil
	})

	c := New(srv.URL, WithBearerToken("secret"))
	task, err := c.SendMessage(t.Context(), &paytask.SendMessageParams{
		Message:   paytask.NewUserTextMessage("pay the invoice"),
		ContextID: "ctx-1",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if task.ID != "remote-1" || task.State != paytask.TaskStateSubmitted || task.ContextID != "ctx-1" {
		t.Errorf("SendMessage() = %+v", task)
	}
	if len(task.History) != 1 || task.History[0].Text() != "pay the invoice" {
		t.Errorf("History = %+v", task.History)
	}
}

func TestCallRPCError(t *testing.T) {
	srv := rpcServer(t, func(req *jsonrpc2.Request) (any, error) {
		return nil, jsonrpc2.NewError(paytask.ErrorCodeTaskTerminal, "task is completed")
	})

	c := New(srv.URL, WithBearerToken("secret"))
	_, err := c.CancelTask(t.Context(), "remote-1")
	if !IsTaskTerminalError(err) {
		t.Fatalf("CancelTask() error = %v, want TaskTerminal RPC error", err)
	}
	if IsTaskNotFoundError(err) {
		t.Error("IsTaskNotFoundError() = true for a TaskTerminal error")
	}
}

func TestCallTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(srv.URL, WithTimeout(20*time.Millisecond))
	_, err := c.GetTask(t.Context(), &paytask.TaskQueryParams{ID: "x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("GetTask() error = %v, want deadline exceeded", err)
	}
}

func TestCallHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	var httpErr *HTTPError
	_, err := New(srv.URL).ListTasks(t.Context(), &paytask.ListTasksParams{Limit: 5})
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("ListTasks() error = %v, want 401 HTTPError", err)
	}
}

func TestTransportRequestShape(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{}}`)
	}))
	t.Cleanup(srv.Close)

	tr := NewTransport(srv.URL, srv.Client())
	if err := tr.Call(t.Context(), "tasks/get", &paytask.TaskQueryParams{ID: "a"}, nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got["jsonrpc"] != "2.0" || got["method"] != "tasks/get" || got["id"] != float64(1) {
		t.Errorf("request = %v", got)
	}
}
