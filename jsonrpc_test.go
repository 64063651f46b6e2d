// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package paytask

import (
	"errors"
	"testing"

	"github.com/go-json-experiment/json"
)

func TestSendMessageParamsValidate(t *testing.T) {
	text := Parts{TextPart{Text: "send $5"}}

	tests := map[string]struct {
		params    SendMessageParams
		wantField string
	}{
		"new task":      {params: SendMessageParams{Message: Message{Parts: text}}},
		"existing task": {params: SendMessageParams{ID: "t-1", Message: Message{Role: RoleUser, Parts: text}}},
		"delegated":     {params: SendMessageParams{RemoteAgentURL: "https://agent.example.com/agents/payee", Message: Message{Parts: text}}},
		"agent role":    {params: SendMessageParams{Message: Message{Role: RoleAgent, Parts: text}}, wantField: "message.role"},
		"no parts":      {params: SendMessageParams{Message: Message{}}, wantField: "message.parts"},
		"relative url":  {params: SendMessageParams{RemoteAgentURL: "/agents/payee", Message: Message{Parts: text}}, wantField: "remoteAgentUrl"},
		"ftp url":       {params: SendMessageParams{RemoteAgentURL: "ftp://agent.example.com", Message: Message{Parts: text}}, wantField: "remoteAgentUrl"},
		"url on append": {params: SendMessageParams{ID: "t-1", RemoteAgentURL: "https://agent.example.com", Message: Message{Parts: text}}, wantField: "remoteAgentUrl"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				if tt.params.Message.Role != RoleUser {
					t.Errorf("role = %q, want defaulted to user", tt.params.Message.Role)
				}
				return
			}
			var e *Error
			if !errors.As(err, &e) || e.Kind != KindValidation || e.Field != tt.wantField {
				t.Errorf("Validate() error = %v, want validation error on %s", err, tt.wantField)
			}
		})
	}
}

func TestListTasksParamsValidate(t *testing.T) {
	p := ListTasksParams{}
	if err := p.Validate(); err != nil || p.Limit != DefaultListLimit {
		t.Errorf("Validate() = %v with limit %d, want default %d", err, p.Limit, DefaultListLimit)
	}

	for _, bad := range []ListTasksParams{
		{Limit: -1},
		{Limit: MaxListLimit + 1},
		{State: "paused"},
	} {
		if err := bad.Validate(); !errors.Is(err, ErrValidation) {
			t.Errorf("Validate(%+v) error = %v, want ValidationError", bad, err)
		}
	}

	ok := ListTasksParams{Limit: MaxListLimit, State: TaskStateInputRequired}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate(%+v) error = %v", ok, err)
	}
}

func TestQueryParamsValidate(t *testing.T) {
	if err := (&TaskQueryParams{}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("TaskQueryParams without id error = %v", err)
	}
	if err := (&TaskQueryParams{ID: "t", HistoryLength: -2}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("TaskQueryParams with negative history error = %v", err)
	}
	if err := (&TaskIDParams{}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("TaskIDParams without id error = %v", err)
	}
	if err := (&TaskIDParams{ID: "t"}).Validate(); err != nil {
		t.Errorf("TaskIDParams error = %v", err)
	}
}

func TestSendMessageParamsDecode(t *testing.T) {
	in := `{"id":"t-1","contextId":" trip ","message":{"messageId":"m-1","role":"user","parts":[{"kind":"text","text":"Approved"}]}}`

	var p SendMessageParams
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if p.ID != "t-1" || p.ContextID != "trip" || p.Message.ID != "m-1" || p.Message.Text() != "Approved" {
		t.Errorf("decoded params = %+v", p)
	}
}
