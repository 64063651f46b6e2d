// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/client"
	"github.com/go-a2a/paytask/server/agent_execution"
)

// delegate forwards the latest user message of an outbound task to its
// remote agent and maps the remote task state onto t.
func (p *Processor) delegate(ctx context.Context, t *paytask.Task) outcome {
	msg, ok := t.LatestUserMessage()
	if !ok {
		return failed(agent_execution.ActionNone, "task has no user message to delegate")
	}
	out := paytask.NewMessage(paytask.RoleUser, msg.Parts.Clone()...)
	out.Metadata = map[string]any{"origin_task_id": t.ID}

	params := &paytask.SendMessageParams{
		Message:   out,
		ContextID: t.ContextID,
		ID:        remoteTaskID(t),
	}

	opts := append([]client.Option{client.WithTimeout(p.delegationTimeout)}, p.clientOpts...)
	c := client.New(t.RemoteAgentURL, opts...)

	dctx, cancel := context.WithTimeout(ctx, p.delegationTimeout)
	defer cancel()
	remote, err := c.SendMessage(dctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(dctx.Err(), context.DeadlineExceeded) {
			e := paytask.NewUpstreamAgentTimeoutError(t.ID, t.RemoteAgentURL, err)
			p.logger.WarnContext(ctx, "delegation timed out", "task_id", t.ID, "remote_agent_url", t.RemoteAgentURL)
			return failed(agent_execution.ActionNone, fmt.Sprintf("%s: %s", paytask.KindUpstreamAgentTimeout, e.Message))
		}
		return failed(agent_execution.ActionNone, "delegation failed: "+err.Error())
	}

	data := func() map[string]any {
		return map[string]any{
			"remote_task_id":   remote.ID,
			"remote_state":     string(remote.State),
			"remote_agent_url": t.RemoteAgentURL,
		}
	}

	switch remote.State {
	case paytask.TaskStateInputRequired:
		text := "The remote agent needs more input."
		if reply, ok := remote.LatestAgentMessage(); ok && reply.Text() != "" {
			text = reply.Text()
		}
		return outcome{
			state:   paytask.TaskStateInputRequired,
			status:  "remote agent requires input",
			message: paytask.NewAgentDataMessage(text, paytask.DataTypeDelegation, data()),
		}
	case paytask.TaskStateFailed, paytask.TaskStateRejected, paytask.TaskStateCanceled:
		status := fmt.Sprintf("remote task %s ended %s", remote.ID, remote.State)
		if remote.StatusMessage != "" {
			status += ": " + remote.StatusMessage
		}
		m := paytask.NewAgentDataMessage(status, paytask.DataTypeDelegation, data())
		return outcome{state: paytask.TaskStateFailed, status: status, message: m}
	default:
		art := paytask.NewDataArtifact("delegation", paytask.DataTypeDelegation, data())
		text := fmt.Sprintf("Delegated to remote task %s (%s).", remote.ID, remote.State)
		return outcome{
			state:    paytask.TaskStateCompleted,
			message:  paytask.NewAgentDataMessage(text, paytask.DataTypeDelegation, data()),
			artifact: &art,
		}
	}
}

// remoteTaskID returns the remote task an earlier run of t delegated to, so
// that a reply continues the same remote task.
func remoteTaskID(t *paytask.Task) string {
	for i := len(t.History) - 1; i >= 0; i-- {
		m := t.History[i]
		if m.Role != paytask.RoleAgent {
			continue
		}
		if dp, ok := m.Parts.Data(paytask.DataTypeDelegation); ok {
			id, _ := dp.Data["remote_task_id"].(string)
			return id
		}
	}
	return ""
}
