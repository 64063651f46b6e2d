// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent_execution holds the pluggable decision step of task
// processing: what the agent does with the latest user message.
package agent_execution

import (
	"errors"

	"github.com/go-a2a/paytask"
)

// RequestContext is everything a [Decider] may look at for one processing run.
type RequestContext struct {
	TenantID string
	Task     *paytask.Task

	// UserMessage is the latest user message of the task.
	UserMessage paytask.Message

	// PendingApproval is the payment_required request the user is answering,
	// or nil when the latest user message does not reply to one.
	PendingApproval *paytask.DataPart
}

// ErrNoUserMessage is returned by BuildRequestContext for a task without user input.
var ErrNoUserMessage = errors.New("task has no user message")

// BuildRequestContext extracts the decision inputs from a task and its history.
func BuildRequestContext(task *paytask.Task) (*RequestContext, error) {
	if task == nil {
		return nil, errors.New("task cannot be nil")
	}
	lastUser, lastAgent := -1, -1
	for i, m := range task.History {
		switch m.Role {
		case paytask.RoleUser:
			lastUser = i
		case paytask.RoleAgent:
			lastAgent = i
		}
	}
	if lastUser < 0 {
		return nil, ErrNoUserMessage
	}

	rc := &RequestContext{
		TenantID:    task.TenantID,
		Task:        task,
		UserMessage: task.History[lastUser],
	}

	// A reply only answers the approval request that directly precedes it.
	if lastAgent >= 0 && lastAgent < lastUser {
		if dp, ok := task.History[lastAgent].Parts.Data(paytask.DataTypePaymentRequired); ok {
			rc.PendingApproval = &dp
		}
	}
	return rc, nil
}
