// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc2

import (
	"errors"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
)

func TestDecodeRequests(t *testing.T) {
	tests := map[string]struct {
		in        string
		wantBatch bool
		wantLen   int
		wantCode  int
	}{
		"single":       {in: `{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{"id":"a"}}`, wantLen: 1},
		"padded":       {in: "\n  {\"jsonrpc\":\"2.0\",\"method\":\"tasks/list\"}  ", wantLen: 1},
		"batch":        {in: `[{"jsonrpc":"2.0","id":1,"method":"a"},{"jsonrpc":"2.0","method":"b"}]`, wantBatch: true, wantLen: 2},
		"batch slot":   {in: `[{"jsonrpc":"2.0","id":1,"method":"a"},42]`, wantBatch: true, wantLen: 2},
		"empty body":   {in: "  ", wantCode: ErrParse.Code},
		"empty batch":  {in: `[]`, wantBatch: true, wantCode: ErrInvalidRequest.Code},
		"broken json":  {in: `{"jsonrpc":`, wantCode: ErrParse.Code},
		"broken batch": {in: `[{"jsonrpc":"2.0"`, wantBatch: true, wantCode: ErrParse.Code},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			reqs, batch, err := DecodeRequests([]byte(tt.in))
			if batch != tt.wantBatch {
				t.Errorf("batch = %v, want %v", batch, tt.wantBatch)
			}
			if tt.wantCode != 0 {
				var rpcErr *Error
				if !errors.As(err, &rpcErr) || rpcErr.Code != tt.wantCode {
					t.Fatalf("DecodeRequests() error = %v, want code %d", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeRequests() error = %v", err)
			}
			if len(reqs) != tt.wantLen {
				t.Errorf("decoded %d requests, want %d", len(reqs), tt.wantLen)
			}
		})
	}
}

func TestRequestValidate(t *testing.T) {
	tests := map[string]struct {
		in      string
		wantErr bool
		notify  bool
	}{
		"number id":     {in: `{"jsonrpc":"2.0","id":7,"method":"m"}`},
		"string id":     {in: `{"jsonrpc":"2.0","id":"abc","method":"m"}`},
		"notification":  {in: `{"jsonrpc":"2.0","method":"m"}`, notify: true},
		"object id":     {in: `{"jsonrpc":"2.0","id":{},"method":"m"}`, wantErr: true},
		"wrong version": {in: `{"jsonrpc":"1.0","id":1,"method":"m"}`, wantErr: true},
		"no method":     {in: `{"jsonrpc":"2.0","id":1}`, wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			reqs, _, err := DecodeRequests([]byte(tt.in))
			if err != nil {
				t.Fatalf("DecodeRequests() error = %v", err)
			}
			req := reqs[0]
			if err := req.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if req.IsNotification() != tt.notify {
				t.Errorf("IsNotification() = %v, want %v", req.IsNotification(), tt.notify)
			}
		})
	}
}

func TestUnmarshalParams(t *testing.T) {
	type params struct {
		ID    string `json:"id"`
		Limit int    `json:"limit"`
	}
	for _, raw := range []string{"", "null", "{}"} {
		req := &Request{Params: []byte(raw)}
		var p params
		if err := req.UnmarshalParams(&p); err != nil {
			t.Errorf("UnmarshalParams(%q) error = %v", raw, err)
		}
	}

	req := &Request{Params: []byte(`{"id":"t-1","limit":5}`)}
	var p params
	if err := req.UnmarshalParams(&p); err != nil {
		t.Fatalf("UnmarshalParams() error = %v", err)
	}
	if diff := cmp.Diff(params{ID: "t-1", Limit: 5}, p); diff != "" {
		t.Errorf("UnmarshalParams() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewResponse(t *testing.T) {
	tests := map[string]struct {
		id       string
		result   any
		err      error
		wantID   string
		wantCode int
	}{
		"result":        {id: `"a"`, result: map[string]int{"total": 3}, wantID: `"a"`},
		"rpc error":     {id: `1`, err: NewError(-32001, "task not found"), wantID: `1`, wantCode: -32001},
		"plain error":   {id: `2`, err: errors.New("boom"), wantID: `2`, wantCode: ErrInternal.Code},
		"missing id":    {err: ErrParse, wantID: `null`, wantCode: ErrParse.Code},
		"unmarshalable": {id: `3`, result: make(chan int), wantID: `3`, wantCode: ErrInternal.Code},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp := NewResponse([]byte(tt.id), tt.result, tt.err)
			if string(resp.ID) != tt.wantID {
				t.Errorf("ID = %s, want %s", resp.ID, tt.wantID)
			}
			if tt.wantCode == 0 {
				if resp.Error != nil || len(resp.Result) == 0 {
					t.Errorf("response = %+v, want a result", resp)
				}
				return
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode || len(resp.Result) != 0 {
				t.Errorf("response = %+v, want error code %d", resp, tt.wantCode)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	b, err := Encode(NewResponse([]byte(`1`), map[string]string{"state": "working"}, nil))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := map[string]any{"jsonrpc": "2.0", "id": float64(1), "result": map[string]any{"state": "working"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
	}

	// The buffer goes back to the pool; earlier output must stay intact.
	if _, err := Encode(map[string]string{"other": "value"}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Errorf("first encoding changed after reuse: %v", err)
	}
}

func TestErrorWithData(t *testing.T) {
	e := ErrInvalidParams.WithData(map[string]any{"field": "limit"})
	if ErrInvalidParams.Data != nil {
		t.Error("WithData modified the shared error")
	}
	if e.Code != -32602 || e.Error() != "jsonrpc2: code -32602: invalid params" {
		t.Errorf("WithData() = %+v", e)
	}
}
