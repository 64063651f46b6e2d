// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/server/task"
)

// Submit creates a task for agentID from a message/send call without an id.
// The task is returned in submitted state and is not processed.
func (p *Processor) Submit(ctx context.Context, tenantID, agentID string, params *paytask.SendMessageParams) (*paytask.Task, error) {
	ctx, span := p.start(ctx, "Submit", tenantID, params.ID)
	defer span.End()

	if err := params.Validate(); err != nil {
		recordError(span, err)
		return nil, err
	}
	if params.ID != "" {
		err := paytask.NewValidationError("id", "must be empty when creating a task")
		recordError(span, err)
		return nil, err
	}

	t := &paytask.Task{
		TenantID:  tenantID,
		ID:        uuid.NewString(),
		AgentID:   agentID,
		ContextID: params.ContextID,
		State:     paytask.TaskStateSubmitted,
		Direction: paytask.DirectionInbound,
		History:   []paytask.Message{params.Message},
	}
	if params.RemoteAgentURL != "" {
		t.Direction = paytask.DirectionOutbound
		t.RemoteAgentURL = params.RemoteAgentURL
	}

	created, err := p.store.Create(ctx, t)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	p.logger.InfoContext(ctx, "task created", "task_id", created.ID, "agent_id", agentID, "direction", created.Direction)
	return created, nil
}

// Append adds a message to an existing task for message/send with an id.
//
// A terminal task fails with TaskTerminal. A task waiting for input is
// answered as by [Processor.Respond]. Otherwise the message is appended and
// the state is left unchanged.
func (p *Processor) Append(ctx context.Context, tenantID, taskID string, msg paytask.Message) (*paytask.Task, error) {
	ctx, span := p.start(ctx, "Append", tenantID, taskID)
	defer span.End()

	unlock, err := p.locks.Lock(ctx, lockKey(tenantID, taskID))
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	defer unlock()

	t, err := p.store.Get(ctx, tenantID, taskID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	switch {
	case t.State.IsTerminal():
		err = paytask.NewTaskTerminalError(taskID, t.State)
	case t.State == paytask.TaskStateInputRequired:
		t, err = p.reply(ctx, t, msg)
	default:
		t, err = p.store.Update(ctx, tenantID, taskID, t.Version, task.Mutation{
			AppendMessages: []paytask.Message{msg},
		})
		err = conflict(taskID, err)
	}
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return t, nil
}

// Respond answers a task waiting in input-required. The message is appended
// as a user message and the task moves to working with a pending reply;
// the caller triggers [Processor.Process] separately.
//
// Respond waits for an in-flight run of the task to finish, bounded by ctx.
// It fails with TaskTerminal on a terminal task and InvalidTransition on any
// other state.
func (p *Processor) Respond(ctx context.Context, tenantID, taskID string, msg paytask.Message) (*paytask.Task, error) {
	ctx, span := p.start(ctx, "Respond", tenantID, taskID)
	defer span.End()

	unlock, err := p.locks.Lock(ctx, lockKey(tenantID, taskID))
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	defer unlock()

	t, err := p.store.Get(ctx, tenantID, taskID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	switch {
	case t.State.IsTerminal():
		err = paytask.NewTaskTerminalError(taskID, t.State)
	case t.State != paytask.TaskStateInputRequired:
		err = paytask.NewInvalidTransitionError(taskID, t.State, paytask.TaskStateWorking)
	default:
		t, err = p.reply(ctx, t, msg)
	}
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return t, nil
}

// reply records msg as the user's answer to t. The caller holds the lock.
func (p *Processor) reply(ctx context.Context, t *paytask.Task, msg paytask.Message) (*paytask.Task, error) {
	msg.Role = paytask.RoleUser
	pending := true
	status := ""
	updated, err := p.store.Update(ctx, t.TenantID, t.ID, t.Version, task.Mutation{
		State:          paytask.TaskStateWorking,
		StatusMessage:  &status,
		PendingReply:   &pending,
		AppendMessages: []paytask.Message{msg},
	})
	if err != nil {
		return nil, conflict(t.ID, err)
	}
	p.logger.InfoContext(ctx, "reply recorded", "task_id", t.ID)
	return updated, nil
}

// Cancel moves a non-terminal task to canceled. It waits for an in-flight
// run to finish first, so a run that completes the task wins and Cancel
// then fails with TaskTerminal.
func (p *Processor) Cancel(ctx context.Context, tenantID, taskID string) (*paytask.Task, error) {
	ctx, span := p.start(ctx, "Cancel", tenantID, taskID)
	defer span.End()

	unlock, err := p.locks.Lock(ctx, lockKey(tenantID, taskID))
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	defer unlock()

	t, err := p.store.Get(ctx, tenantID, taskID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if t.State.IsTerminal() {
		err := paytask.NewTaskTerminalError(taskID, t.State)
		recordError(span, err)
		return nil, err
	}

	status := "canceled by caller"
	pending := false
	t, err = p.store.Update(ctx, tenantID, taskID, t.Version, task.Mutation{
		State:         paytask.TaskStateCanceled,
		StatusMessage: &status,
		PendingReply:  &pending,
	})
	if err != nil {
		err = conflict(taskID, err)
		recordError(span, err)
		return nil, err
	}
	p.logger.InfoContext(ctx, "task canceled", "task_id", taskID)
	return t, nil
}

// RecoverStale ends the tenant's tasks left in working by an interrupted
// run: no pending reply, no run in flight in this process, and no update
// for longer than olderThan. A task whose transfer id was stored is
// completed, any other is failed. Recovered tasks are not retried. It
// returns the ids of the recovered tasks.
func (p *Processor) RecoverStale(ctx context.Context, tenantID string, olderThan time.Duration) ([]string, error) {
	ctx, span := p.start(ctx, "RecoverStale", tenantID, "")
	defer span.End()

	page, err := p.store.List(ctx, task.Query{
		TenantID:      tenantID,
		States:        []paytask.TaskState{paytask.TaskStateWorking},
		UpdatedBefore: p.now().Add(-olderThan),
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	var (
		recovered []string
		errs      []error
	)
	for _, t := range page.Tasks {
		if t.PendingReply {
			continue
		}
		unlock, ok := p.locks.TryLock(lockKey(tenantID, t.ID))
		if !ok {
			continue
		}
		m := staleMutation(t)
		_, err := p.store.Update(ctx, tenantID, t.ID, t.Version, m)
		unlock()

		switch {
		case errors.Is(err, task.ErrVersionConflict):
			// Another process moved it on.
		case err != nil:
			errs = append(errs, err)
		default:
			recovered = append(recovered, t.ID)
			p.logger.WarnContext(ctx, "stale task recovered", "task_id", t.ID, "state", m.State, "transfer_id", t.TransferID, "updated_at", t.UpdatedAt)
		}
	}
	if err := errors.Join(errs...); err != nil {
		recordError(span, err)
		return recovered, err
	}
	return recovered, nil
}

// staleMutation ends a stale task. Money already moved for a task carrying a
// transfer id, so it completes instead of failing.
func staleMutation(t *paytask.Task) task.Mutation {
	if t.TransferID != "" {
		status := StaleTransferStatusMessage
		return task.Mutation{
			State:          paytask.TaskStateCompleted,
			StatusMessage:  &status,
			AppendMessages: []paytask.Message{paytask.NewAgentTextMessage(fmt.Sprintf("Transfer %s was made; its receipt could not be recorded.", t.TransferID))},
		}
	}
	status := StaleStatusMessage
	return task.Mutation{
		State:         paytask.TaskStateFailed,
		StatusMessage: &status,
	}
}
