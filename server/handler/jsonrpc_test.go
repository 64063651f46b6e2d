// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/go-cmp/cmp"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/internal/jsonrpc2"
	"github.com/go-a2a/paytask/ledger"
	"github.com/go-a2a/paytask/server/processor"
	"github.com/go-a2a/paytask/server/task"
)

var payer = CallContext{TenantID: "t1", AgentID: "payer"}

func newDispatcher(t *testing.T) (*Dispatcher, *processor.Processor) {
	t.Helper()
	store := task.NewInMemoryTaskStore()
	p := processor.New(store, ledger.NewMemoryLedger())
	return NewDispatcher(NewTaskHandler(store, p)), p
}

// call sends one request and decodes its result into result, returning the
// error object when the call failed.
func call(t *testing.T, d *Dispatcher, cc CallContext, method string, params any, result any) *jsonrpc2.Error {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	body, err := json.Marshal(&jsonrpc2.Request{JSONRPC: jsonrpc2.Version, ID: jsontext.Value(`1`), Method: method, Params: raw})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	out, err := d.Dispatch(t.Context(), cc, body)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	var resp jsonrpc2.Response
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode response %s: %v", out, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			t.Fatalf("decode result: %v", err)
		}
	}
	return nil
}

func send(t *testing.T, d *Dispatcher, text string) *paytask.Task {
	t.Helper()
	var created paytask.Task
	if rpcErr := call(t, d, payer, paytask.MethodMessageSend, &paytask.SendMessageParams{
		Message: paytask.NewUserTextMessage(text),
	}, &created); rpcErr != nil {
		t.Fatalf("message/send error = %v", rpcErr)
	}
	return &created
}

func TestMessageSend(t *testing.T) {
	d, p := newDispatcher(t)

	created := send(t, d, "Book a flight to São Paulo for 800 USDC")
	if created.State != paytask.TaskStateSubmitted || len(created.History) != 1 {
		t.Fatalf("message/send = state %s, %d messages; want submitted with 1", created.State, len(created.History))
	}

	// Appending to a submitted task leaves the state alone.
	var appended paytask.Task
	if rpcErr := call(t, d, payer, paytask.MethodMessageSend, &paytask.SendMessageParams{
		ID:      created.ID,
		Message: paytask.NewUserTextMessage("Book a flight to São Paulo for 800 USDC, window seat"),
	}, &appended); rpcErr != nil {
		t.Fatalf("message/send append error = %v", rpcErr)
	}
	if appended.State != paytask.TaskStateSubmitted || len(appended.History) != 2 {
		t.Errorf("append = state %s, %d messages", appended.State, len(appended.History))
	}

	if _, err := p.Process(t.Context(), payer.TenantID, created.ID); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// Sending to an input-required task answers it.
	var answered paytask.Task
	if rpcErr := call(t, d, payer, paytask.MethodMessageSend, &paytask.SendMessageParams{
		ID:      created.ID,
		Message: paytask.NewUserTextMessage("Approved. Go ahead."),
	}, &answered); rpcErr != nil {
		t.Fatalf("message/send reply error = %v", rpcErr)
	}
	if answered.State != paytask.TaskStateWorking || !answered.PendingReply {
		t.Errorf("reply = state %s pending %v, want working pending", answered.State, answered.PendingReply)
	}

	res, err := p.Process(t.Context(), payer.TenantID, created.ID)
	if err != nil || res.Task.State != paytask.TaskStateCompleted {
		t.Fatalf("Process() = %+v, %v; want completed", res, err)
	}

	rpcErr := call(t, d, payer, paytask.MethodMessageSend, &paytask.SendMessageParams{
		ID:      created.ID,
		Message: paytask.NewUserTextMessage("one more thing"),
	}, nil)
	if rpcErr == nil || rpcErr.Code != paytask.ErrorCodeTaskTerminal {
		t.Errorf("message/send to completed task error = %v, want code %d", rpcErr, paytask.ErrorCodeTaskTerminal)
	}
}

func TestGetAndCancel(t *testing.T) {
	d, _ := newDispatcher(t)
	created := send(t, d, "send $5")

	var got paytask.Task
	if rpcErr := call(t, d, payer, paytask.MethodTasksGet, &paytask.TaskQueryParams{ID: created.ID}, &got); rpcErr != nil {
		t.Fatalf("tasks/get error = %v", rpcErr)
	}
	if got.ID != created.ID || len(got.History) != 1 || got.History[0].Text() != "send $5" {
		t.Errorf("tasks/get = %+v", got)
	}

	other := CallContext{TenantID: "t1", AgentID: "payee"}
	if rpcErr := call(t, d, other, paytask.MethodTasksGet, &paytask.TaskQueryParams{ID: created.ID}, nil); rpcErr == nil || rpcErr.Code != paytask.ErrorCodeTaskNotFound {
		t.Errorf("tasks/get from another agent error = %v, want TaskNotFound", rpcErr)
	}
	foreign := CallContext{TenantID: "t2", AgentID: "payer"}
	if rpcErr := call(t, d, foreign, paytask.MethodTasksGet, &paytask.TaskQueryParams{ID: created.ID}, nil); rpcErr == nil || rpcErr.Code != paytask.ErrorCodeTaskNotFound {
		t.Errorf("tasks/get from another tenant error = %v, want TaskNotFound", rpcErr)
	}

	var canceled paytask.Task
	if rpcErr := call(t, d, payer, paytask.MethodTasksCancel, &paytask.TaskIDParams{ID: created.ID}, &canceled); rpcErr != nil {
		t.Fatalf("tasks/cancel error = %v", rpcErr)
	}
	if canceled.State != paytask.TaskStateCanceled {
		t.Errorf("tasks/cancel state = %s, want canceled", canceled.State)
	}

	rpcErr := call(t, d, payer, paytask.MethodTasksCancel, &paytask.TaskIDParams{ID: created.ID}, nil)
	if rpcErr == nil || rpcErr.Code != paytask.ErrorCodeTaskTerminal {
		t.Fatalf("second tasks/cancel error = %v, want TaskTerminal", rpcErr)
	}
	var data map[string]any
	raw, _ := json.Marshal(rpcErr.Data)
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("decode error data: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"kind": "TaskTerminal", "taskId": created.ID, "from": "canceled"}, data); diff != "" {
		t.Errorf("error data mismatch (-want +got):\n%s", diff)
	}
}

func TestListPagination(t *testing.T) {
	d, _ := newDispatcher(t)
	want := make([]string, 7)
	for i := range want {
		want[i] = send(t, d, fmt.Sprintf("send $%d", i+1)).ID
	}

	var (
		got    []string
		cursor string
		pages  []int
	)
	for {
		var res paytask.ListTasksResult
		if rpcErr := call(t, d, payer, paytask.MethodTasksList, &paytask.ListTasksParams{Limit: 3, Cursor: cursor}, &res); rpcErr != nil {
			t.Fatalf("tasks/list error = %v", rpcErr)
		}
		if res.Pagination.Total != 7 || res.Pagination.TotalPages != 3 {
			t.Errorf("pagination = %+v, want total 7 over 3 pages", res.Pagination)
		}
		pages = append(pages, res.Pagination.Page)
		for _, s := range res.Tasks {
			got = append(got, s.ID)
		}
		if res.Pagination.NextCursor == "" {
			break
		}
		cursor = res.Pagination.NextCursor
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listed ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, pages); diff != "" {
		t.Errorf("page numbers mismatch (-want +got):\n%s", diff)
	}

	var filtered paytask.ListTasksResult
	if rpcErr := call(t, d, payer, paytask.MethodTasksList, &paytask.ListTasksParams{State: paytask.TaskStateCompleted}, &filtered); rpcErr != nil {
		t.Fatalf("tasks/list error = %v", rpcErr)
	}
	if filtered.Pagination.Total != 0 || len(filtered.Tasks) != 0 {
		t.Errorf("completed filter = %+v, want empty", filtered)
	}
}

func TestDispatchErrors(t *testing.T) {
	d, _ := newDispatcher(t)

	tests := map[string]struct {
		body     string
		wantCode int
	}{
		"parse error":      {body: `{"jsonrpc":`, wantCode: paytask.ErrorCodeJSONParse},
		"wrong version":    {body: `{"jsonrpc":"1.0","id":1,"method":"tasks/get"}`, wantCode: paytask.ErrorCodeInvalidRequest},
		"unknown method":   {body: `{"jsonrpc":"2.0","id":1,"method":"tasks/resubscribe"}`, wantCode: paytask.ErrorCodeMethodNotFound},
		"missing id param": {body: `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{}}`, wantCode: paytask.ErrorCodeInvalidParams},
		"bad params":       {body: `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{"id":5}}`, wantCode: paytask.ErrorCodeInvalidParams},
		"bad limit":        {body: `{"jsonrpc":"2.0","id":1,"method":"tasks/list","params":{"limit":500}}`, wantCode: paytask.ErrorCodeInvalidParams},
		"bad cursor":       {body: `{"jsonrpc":"2.0","id":1,"method":"tasks/list","params":{"cursor":"!!"}}`, wantCode: paytask.ErrorCodeInvalidParams},
		"unknown part":     {body: `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"messageId":"m","role":"user","parts":[{"kind":"file"}]}}}`, wantCode: paytask.ErrorCodeInvalidParams},
		"not found":        {body: `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{"id":"nope"}}`, wantCode: paytask.ErrorCodeTaskNotFound},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := d.Dispatch(t.Context(), payer, []byte(tt.body))
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			var resp jsonrpc2.Response
			if err := json.Unmarshal(out, &resp); err != nil {
				t.Fatalf("decode response %s: %v", out, err)
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("response = %s, want error code %d", out, tt.wantCode)
			}
		})
	}
}

func TestDispatchBatch(t *testing.T) {
	d, _ := newDispatcher(t)
	created := send(t, d, "send $5")

	body := fmt.Sprintf(`[
		{"jsonrpc":"2.0","id":"a","method":"tasks/get","params":{"id":%q}},
		{"jsonrpc":"2.0","method":"tasks/get","params":{"id":%q}},
		{"jsonrpc":"2.0","id":"b","method":"tasks/get","params":{"id":"missing"}},
		{"jsonrpc":"2.0","id":"c","method":"tasks/cancel","params":{"id":%q}}
	]`, created.ID, created.ID, created.ID)

	out, err := d.Dispatch(t.Context(), payer, []byte(body))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	var resps []jsonrpc2.Response
	if err := json.Unmarshal(out, &resps); err != nil {
		t.Fatalf("decode batch %s: %v", out, err)
	}
	if len(resps) != 3 {
		t.Fatalf("batch answered %d requests, want 3 (notification skipped)", len(resps))
	}
	type summary struct {
		ID   string
		Code int
	}
	var got []summary
	for _, r := range resps {
		s := summary{ID: string(r.ID)}
		if r.Error != nil {
			s.Code = r.Error.Code
		}
		got = append(got, s)
	}
	want := []summary{{`"a"`, 0}, {`"b"`, paytask.ErrorCodeTaskNotFound}, {`"c"`, 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("batch mismatch (-want +got):\n%s", diff)
	}

	notification := fmt.Sprintf(`{"jsonrpc":"2.0","method":"tasks/get","params":{"id":%q}}`, created.ID)
	out, err = d.Dispatch(t.Context(), payer, []byte(notification))
	if err != nil || out != nil {
		t.Errorf("Dispatch(notification) = %s, %v; want no answer", out, err)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"not found":   {err: paytask.NewTaskNotFoundError("x"), want: http.StatusNotFound},
		"terminal":    {err: paytask.NewTaskTerminalError("x", paytask.TaskStateCompleted), want: http.StatusConflict},
		"concurrent":  {err: paytask.NewConcurrentProcessingError("x"), want: http.StatusConflict},
		"transition":  {err: paytask.NewInvalidTransitionError("x", paytask.TaskStateSubmitted, paytask.TaskStateWorking), want: http.StatusUnprocessableEntity},
		"validation":  {err: paytask.NewValidationError("id", "empty"), want: http.StatusBadRequest},
		"unauth":      {err: paytask.NewUnauthenticatedError("no token"), want: http.StatusUnauthorized},
		"wrapped":     {err: fmt.Errorf("outer: %w", paytask.NewTaskNotFoundError("x")), want: http.StatusNotFound},
		"unclassfied": {err: fmt.Errorf("disk full"), want: http.StatusInternalServerError},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
