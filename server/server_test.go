// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/auth"
	"github.com/go-a2a/paytask/internal/jsonrpc2"
	"github.com/go-a2a/paytask/ledger"
	"github.com/go-a2a/paytask/server"
	"github.com/go-a2a/paytask/server/processor"
	"github.com/go-a2a/paytask/server/task"
)

const tenant = "t1"

type harness struct {
	url    string
	ledger *ledger.MemoryLedger
}

func newHarness(t *testing.T, opts ...server.Option) *harness {
	t.Helper()
	store := task.NewInMemoryTaskStore()
	l := ledger.NewMemoryLedger()
	p := processor.New(store, l)
	s, err := server.New(store, p, append([]server.Option{server.WithResolver(auth.HeaderResolver{})}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return &harness{url: ts.URL, ledger: l}
}

// do sends a request as agentID of the test tenant. An empty agentID acts
// for every agent of the tenant.
func (h *harness) do(t *testing.T, method, path, agentID, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, h.url+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set(auth.HeaderTenantID, tenant)
	if agentID != "" {
		req.Header.Set(auth.HeaderAgentID, agentID)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, b
}

// send creates a task on the payer address through message/send.
func (h *harness) send(t *testing.T, text, contextID string) *paytask.Task {
	t.Helper()
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"contextId":%q,"message":{"role":"user","parts":[{"kind":"text","text":%q}]}}}`, contextID, text)
	status, out := h.do(t, http.MethodPost, "/agents/payer", "", body)
	if status != http.StatusOK {
		t.Fatalf("message/send status = %d, body %s", status, out)
	}
	var resp jsonrpc2.Response
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("message/send error = %v", resp.Error)
	}
	var created paytask.Task
	if err := json.Unmarshal(resp.Result, &created); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return &created
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := sonic.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return v
}

type errorEnvelope struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		TaskID  string `json:"taskId"`
	} `json:"error"`
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz status = %d, want 200", resp.StatusCode)
	}
}

func TestAgentAddressAuth(t *testing.T) {
	h := newHarness(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"tasks/list"}`

	resp, err := http.Post(h.url+"/agents/payer", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	out, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", resp.StatusCode)
	}
	var rpcResp jsonrpc2.Response
	if err := json.Unmarshal(out, &rpcResp); err != nil {
		t.Fatalf("decode response %s: %v", out, err)
	}
	if rpcResp.Error == nil || rpcResp.Error.Code != paytask.ErrorCodeUnauthenticated {
		t.Errorf("anonymous error = %v, want code %d", rpcResp.Error, paytask.ErrorCodeUnauthenticated)
	}

	if status, _ := h.do(t, http.MethodPost, "/agents/payer", "payee", body); status != http.StatusUnauthorized {
		t.Errorf("caller bound to another agent status = %d, want 401", status)
	}
	if status, out := h.do(t, http.MethodPost, "/agents/payer", "payer", body); status != http.StatusOK {
		t.Errorf("bound caller status = %d, body %s", status, out)
	}

	notification := `{"jsonrpc":"2.0","method":"tasks/list"}`
	if status, out := h.do(t, http.MethodPost, "/agents/payer", "", notification); status != http.StatusNoContent || len(out) != 0 {
		t.Errorf("notification = %d %s, want 204 without body", status, out)
	}
}

func TestJWTAgentAddress(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	h := newHarness(t, server.WithResolver(auth.NewJWTResolver(secret)))
	token, err := auth.IssueToken(secret, auth.Caller{TenantID: tenant, AgentID: "payer", Subject: "svc"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := map[string]struct {
		header string
		want   int
	}{
		"valid token": {header: "Bearer " + token, want: http.StatusOK},
		"no token":    {want: http.StatusUnauthorized},
		"garbage":     {header: "Bearer garbage", want: http.StatusUnauthorized},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req, _ := http.NewRequestWithContext(t.Context(), http.MethodPost, h.url+"/agents/payer",
				bytes.NewBufferString(`{"jsonrpc":"2.0","id":"x","method":"tasks/list"}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("POST error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestApprovalFlowOverAdmin(t *testing.T) {
	h := newHarness(t)
	created := h.send(t, "Book a flight to São Paulo for 800 USDC", "trip")

	status, out := h.do(t, http.MethodPost, "/tasks/"+created.ID+"/process", "", "")
	if status != http.StatusOK {
		t.Fatalf("process status = %d, body %s", status, out)
	}
	first := decode[server.ProcessResponse](t, out)
	if first.Task.State != paytask.TaskStateInputRequired || first.Task.TransferID != "" {
		t.Fatalf("first process = state %s transfer %q, want input-required without transfer", first.Task.State, first.Task.TransferID)
	}

	status, out = h.do(t, http.MethodPost, "/tasks/"+created.ID+"/respond", "", `{"text":"Approved. Go ahead."}`)
	if status != http.StatusOK {
		t.Fatalf("respond status = %d, body %s", status, out)
	}
	if answered := decode[paytask.Task](t, out); answered.State != paytask.TaskStateWorking {
		t.Errorf("respond state = %s, want working", answered.State)
	}

	status, out = h.do(t, http.MethodPost, "/tasks/"+created.ID+"/process", "", "")
	if status != http.StatusOK {
		t.Fatalf("second process status = %d, body %s", status, out)
	}
	second := decode[server.ProcessResponse](t, out)
	if second.Task.State != paytask.TaskStateCompleted || second.Task.TransferID == "" {
		t.Fatalf("second process = state %s transfer %q, want completed with transfer", second.Task.State, second.Task.TransferID)
	}

	status, out = h.do(t, http.MethodPost, "/tasks/"+created.ID+"/process", "", "")
	if third := decode[server.ProcessResponse](t, out); status != http.StatusOK || !third.Noop {
		t.Errorf("third process = %d noop %v, want 200 noop", status, third.Noop)
	}
	if got := h.ledger.Calls(); got != 1 {
		t.Errorf("ledger calls = %d, want 1", got)
	}

	status, out = h.do(t, http.MethodPost, "/tasks/"+created.ID+"/cancel", "", "")
	if status != http.StatusConflict {
		t.Fatalf("cancel completed task status = %d, want 409", status)
	}
	if env := decode[errorEnvelope](t, out); env.Error.Kind != string(paytask.KindTaskTerminal) || env.Error.TaskID != created.ID {
		t.Errorf("cancel error = %+v", env.Error)
	}

	status, _ = h.do(t, http.MethodPost, "/tasks/"+created.ID+"/respond", "", `{}`)
	if status != http.StatusBadRequest {
		t.Errorf("respond without message status = %d, want 400", status)
	}
}

func TestAdminOmitsEmptyFields(t *testing.T) {
	h := newHarness(t)
	created := h.send(t, "hello", "")

	status, out := h.do(t, http.MethodPost, "/tasks/"+created.ID+"/process", "", "")
	if status != http.StatusOK {
		t.Fatalf("process status = %d, body %s", status, out)
	}
	if res := decode[server.ProcessResponse](t, out); res.Task.State != paytask.TaskStateFailed {
		t.Fatalf("process state = %s, want failed", res.Task.State)
	}
	for _, key := range []string{`"transferId"`, `"contextId"`, `"remoteAgentUrl"`, `"pendingReply"`} {
		if strings.Contains(string(out), key) {
			t.Errorf("process body has empty %s: %s", key, out)
		}
	}
}

func TestAdminErrors(t *testing.T) {
	h := newHarness(t)
	created := h.send(t, "send $5", "")

	tests := map[string]struct {
		method, path, agent, body string
		want                      int
	}{
		"unknown task":            {method: http.MethodPost, path: "/tasks/nope/process", want: http.StatusNotFound},
		"other agent's task":      {method: http.MethodPost, path: "/tasks/" + created.ID + "/cancel", agent: "payee", want: http.StatusNotFound},
		"respond to submitted":    {method: http.MethodPost, path: "/tasks/" + created.ID + "/respond", body: `{"text":"yes"}`, want: http.StatusUnprocessableEntity},
		"malformed respond body":  {method: http.MethodPost, path: "/tasks/" + created.ID + "/respond", body: `{"message":`, want: http.StatusBadRequest},
		"stats without agent":     {method: http.MethodGet, path: "/stats", want: http.StatusBadRequest},
		"stats for foreign agent": {method: http.MethodGet, path: "/stats?agentId=payer", agent: "payee", want: http.StatusUnauthorized},
		"batch without agent":     {method: http.MethodPost, path: "/process", body: `{}`, want: http.StatusBadRequest},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if status, out := h.do(t, tt.method, tt.path, tt.agent, tt.body); status != tt.want {
				t.Errorf("status = %d, want %d (body %s)", status, tt.want, out)
			}
		})
	}
}

func TestProcessAllAndStats(t *testing.T) {
	h := newHarness(t)
	for _, text := range []string{"send $5", "send $6", "hello there"} {
		h.send(t, text, "")
	}

	status, out := h.do(t, http.MethodPost, "/process", "", `{"agentId":"payer"}`)
	if status != http.StatusOK {
		t.Fatalf("POST /process status = %d, body %s", status, out)
	}
	batch := decode[server.ProcessAllResponse](t, out)
	if batch.Processed != 3 || batch.Skipped != 0 || batch.Failed != 0 || len(batch.Outcomes) != 3 {
		t.Errorf("batch = %+v, want 3 processed", batch)
	}

	status, out = h.do(t, http.MethodGet, "/stats?agentId=payer", "", "")
	if status != http.StatusOK {
		t.Fatalf("GET /stats status = %d, body %s", status, out)
	}
	stats := decode[server.StatsResponse](t, out)
	want := map[paytask.TaskState]int64{
		paytask.TaskStateSubmitted:     0,
		paytask.TaskStateWorking:       0,
		paytask.TaskStateInputRequired: 0,
		paytask.TaskStateCompleted:     2,
		paytask.TaskStateCanceled:      0,
		paytask.TaskStateFailed:        1,
		paytask.TaskStateRejected:      0,
	}
	if diff := cmp.Diff(want, stats.States); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if stats.Total != 3 {
		t.Errorf("stats total = %d, want 3", stats.Total)
	}
}

func TestSessions(t *testing.T) {
	h := newHarness(t)
	quote := h.send(t, "What is the rate for 100 USD to Brazil?", "trip")
	pay := h.send(t, "send 100 USD to Brazil", "trip")
	h.send(t, "send $5", "")

	status, out := h.do(t, http.MethodGet, "/sessions?agentId=payer", "", "")
	if status != http.StatusOK {
		t.Fatalf("GET /sessions status = %d, body %s", status, out)
	}
	list := decode[server.SessionsResponse](t, out)
	if len(list.Sessions) != 1 || list.Sessions[0].ContextID != "trip" || list.Sessions[0].TaskCount != 2 {
		t.Errorf("sessions = %+v, want one trip session with 2 tasks", list.Sessions)
	}

	status, out = h.do(t, http.MethodGet, "/sessions/trip", "", "")
	if status != http.StatusOK {
		t.Fatalf("GET /sessions/trip status = %d, body %s", status, out)
	}
	got := decode[server.SessionResponse](t, out)
	var ids, texts []string
	for _, s := range got.Tasks {
		ids = append(ids, s.ID)
	}
	for _, e := range got.Narrative {
		texts = append(texts, e.Text)
	}
	if diff := cmp.Diff([]string{quote.ID, pay.ID}, ids); diff != "" {
		t.Errorf("session tasks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"What is the rate for 100 USD to Brazil?", "send 100 USD to Brazil"}, texts); diff != "" {
		t.Errorf("narrative mismatch (-want +got):\n%s", diff)
	}

	status, out = h.do(t, http.MethodGet, "/sessions/trip", "payee", "")
	if hidden := decode[server.SessionResponse](t, out); status != http.StatusOK || len(hidden.Tasks) != 0 {
		t.Errorf("session for another agent = %d %+v, want no tasks", status, hidden.Tasks)
	}
}

func TestServeShutdown(t *testing.T) {
	store := task.NewInMemoryTaskStore()
	s, err := server.New(store, processor.New(store, ledger.NewMemoryLedger()), server.WithResolver(auth.HeaderResolver{DefaultTenant: tenant}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	store := task.NewInMemoryTaskStore()
	if _, err := server.New(nil, processor.New(store, ledger.NewMemoryLedger())); err == nil {
		t.Error("New(nil store) error = nil")
	}
	if _, err := server.New(store, nil); err == nil {
		t.Error("New(nil processor) error = nil")
	}
}
