// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package processor drives tasks through their lifecycle: it runs the
// single domain action of a task, accepts human replies, cancels tasks and
// processes an agent's backlog in batches.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/client"
	"github.com/go-a2a/paytask/internal/keylock"
	"github.com/go-a2a/paytask/ledger"
	"github.com/go-a2a/paytask/server/agent_execution"
	"github.com/go-a2a/paytask/server/task"
)

const (
	// DefaultThreshold is the approval threshold in minor units ($500.00).
	DefaultThreshold int64 = 50000

	// DefaultDelegationTimeout bounds one call to a remote agent.
	DefaultDelegationTimeout = 30 * time.Second

	// DefaultActionTimeout bounds the domain action of one run. The action
	// runs detached from the caller, so this is its only deadline.
	DefaultActionTimeout = 2 * time.Minute

	// recordAttempts is how often a transfer outcome is re-recorded on a
	// fresh version before falling back to the transfer id alone.
	recordAttempts = 3

	// StaleStatusMessage is the status of a task failed by RecoverStale.
	StaleStatusMessage = "processing interrupted; submit a new task"

	// StaleTransferStatusMessage is the status of a task completed by
	// RecoverStale because its transfer had been made.
	StaleTransferStatusMessage = "transfer made; processing interrupted before the receipt was recorded"
)

// Result is the outcome of one Process call.
type Result struct {
	// Task is the task after the run.
	Task *paytask.Task
	// Noop is set when the task was not eligible and nothing changed.
	Noop bool
	// Action is the domain action performed. It is empty for no-op and
	// delegated runs.
	Action agent_execution.ActionKind
}

// Processor runs tasks. It is safe for concurrent use; calls on one task
// are serialized by a per-task lock and the store's version check.
type Processor struct {
	store    task.TaskStore
	ledger   ledger.Ledger
	decider  agent_execution.Decider
	mandates ledger.Mandates
	locks    *keylock.Locker

	threshold         int64
	delegationTimeout time.Duration
	actionTimeout     time.Duration
	clientOpts        []client.Option

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// New creates a Processor backed by store and l.
func New(store task.TaskStore, l ledger.Ledger, opts ...Option) *Processor {
	p := &Processor{
		store:             store,
		ledger:            l,
		decider:           agent_execution.NewRuleDecider(),
		locks:             keylock.New(),
		threshold:         DefaultThreshold,
		delegationTimeout: DefaultDelegationTimeout,
		actionTimeout:     DefaultActionTimeout,
		logger:            slog.Default(),
		tracer:            otel.Tracer("github.com/go-a2a/paytask/server/processor"),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func lockKey(tenantID, taskID string) string {
	return tenantID + "\x00" + taskID
}

func (p *Processor) start(ctx context.Context, op, tenantID, taskID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "paytask.processor."+op,
		trace.WithAttributes(
			attribute.String("paytask.tenant_id", tenantID),
			attribute.String("paytask.task_id", taskID),
		))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// conflict maps a lost compare-and-swap to ConcurrentProcessing.
func conflict(taskID string, err error) error {
	if errors.Is(err, task.ErrVersionConflict) {
		e := paytask.NewConcurrentProcessingError(taskID)
		e.Err = err
		return e
	}
	return err
}

// Process runs the domain action of a task once.
//
// A task that is not submitted and has no unprocessed reply, or that is
// already settled, is returned unchanged with Result.Noop set. A second
// call while a run is in flight fails with ConcurrentProcessing. Failures
// of the action itself end the task in failed and are not returned.
func (p *Processor) Process(ctx context.Context, tenantID, taskID string) (*Result, error) {
	ctx, span := p.start(ctx, "Process", tenantID, taskID)
	defer span.End()

	unlock, ok := p.locks.TryLock(lockKey(tenantID, taskID))
	if !ok {
		err := paytask.NewConcurrentProcessingError(taskID)
		recordError(span, err)
		return nil, err
	}
	defer unlock()

	t, err := p.store.Get(ctx, tenantID, taskID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if t.IsSettled() || !t.Processable() {
		p.logger.DebugContext(ctx, "task not eligible for processing", "task_id", taskID, "state", t.State)
		return &Result{Task: t, Noop: true}, nil
	}

	pending := false
	t, err = p.store.Update(ctx, tenantID, taskID, t.Version, task.Mutation{
		State:        paytask.TaskStateWorking,
		PendingReply: &pending,
	})
	if err != nil {
		err = conflict(taskID, err)
		recordError(span, err)
		return nil, err
	}
	p.logger.InfoContext(ctx, "processing task", "task_id", taskID, "agent_id", t.AgentID)

	// Once the task is working, a caller going away must not abort a
	// transfer halfway through or leave its outcome unrecorded.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.actionTimeout)
	defer cancel()

	var out outcome
	if t.RemoteAgentURL != "" {
		out = p.delegate(actx, t)
	} else {
		out = p.execute(actx, t)
	}

	final, err := p.record(context.WithoutCancel(ctx), tenantID, taskID, t.Version, out)
	if err != nil {
		err = conflict(taskID, err)
		recordError(span, err)
		p.logger.ErrorContext(ctx, "recording task outcome", "task_id", taskID, "transfer_id", out.transferID, "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.String("paytask.state", string(final.State)))
	p.logger.InfoContext(ctx, "task processed",
		"task_id", taskID,
		"action", out.action,
		"state", final.State,
		"transfer_id", final.TransferID,
	)
	return &Result{Task: final, Action: out.action}, nil
}

// record stores the outcome of a run. When money moved, a failed write is
// retried on a freshly read version, and as a last resort the transfer id
// alone is stored so RecoverStale can complete the task later.
func (p *Processor) record(ctx context.Context, tenantID, taskID string, version int64, out outcome) (*paytask.Task, error) {
	m := out.mutation()
	final, err := p.store.Update(ctx, tenantID, taskID, version, m)
	if err == nil || out.transferID == "" {
		return final, err
	}
	p.logger.ErrorContext(ctx, "recording transfer outcome failed, retrying",
		"task_id", taskID, "transfer_id", out.transferID, "error", err)

	for range recordAttempts {
		cur, gerr := p.store.Get(ctx, tenantID, taskID)
		if gerr != nil {
			err = gerr
			continue
		}
		if cur.State.IsTerminal() {
			break
		}
		if final, err = p.store.Update(ctx, tenantID, taskID, cur.Version, m); err == nil {
			return final, nil
		}
	}

	cur, gerr := p.store.Get(ctx, tenantID, taskID)
	if gerr == nil && !cur.State.IsTerminal() && cur.TransferID == "" {
		if _, uerr := p.store.Update(ctx, tenantID, taskID, cur.Version, task.Mutation{TransferID: out.transferID}); uerr == nil {
			p.logger.ErrorContext(ctx, "stored transfer id without outcome",
				"task_id", taskID, "transfer_id", out.transferID)
			return nil, err
		}
	}
	p.logger.ErrorContext(ctx, "transfer id not stored",
		"task_id", taskID, "transfer_id", out.transferID, "error", err)
	return nil, err
}

// outcome is the single state change a run ends with.
type outcome struct {
	action     agent_execution.ActionKind
	state      paytask.TaskState
	status     string
	transferID string
	message    paytask.Message
	artifact   *paytask.Artifact
}

func (o outcome) mutation() task.Mutation {
	status := o.status
	m := task.Mutation{
		State:          o.state,
		StatusMessage:  &status,
		TransferID:     o.transferID,
		AppendMessages: []paytask.Message{o.message},
	}
	if o.artifact != nil {
		m.AppendArtifacts = []paytask.Artifact{*o.artifact}
	}
	return m
}

func failed(action agent_execution.ActionKind, status string) outcome {
	return outcome{
		action:  action,
		state:   paytask.TaskStateFailed,
		status:  status,
		message: paytask.NewAgentDataMessage(status, paytask.DataTypeError, map[string]any{"message": status}),
	}
}

func (p *Processor) execute(ctx context.Context, t *paytask.Task) outcome {
	rc, err := agent_execution.BuildRequestContext(t)
	if err != nil {
		return failed(agent_execution.ActionNone, err.Error())
	}
	action, err := p.decider.Decide(ctx, rc)
	if err != nil {
		return failed(agent_execution.ActionNone, "deciding action: "+err.Error())
	}

	switch action.Kind {
	case agent_execution.ActionQuote:
		return p.quote(ctx, action)
	case agent_execution.ActionTransfer:
		threshold, err := p.thresholdFor(ctx, t, action.Currency)
		if err != nil {
			return failed(action.Kind, "looking up mandate: "+err.Error())
		}
		if !action.Approved && action.Amount >= threshold {
			return paymentRequired(action, threshold)
		}
		return p.transfer(ctx, t, action)
	case agent_execution.ActionDecline:
		return outcome{
			action:  action.Kind,
			state:   paytask.TaskStateCompleted,
			status:  action.Reason,
			message: paytask.NewAgentTextMessage("Payment declined. No transfer was made."),
		}
	default:
		reason := action.Reason
		if reason == "" {
			reason = "no payment intent found in message"
		}
		return failed(agent_execution.ActionNone, reason)
	}
}

// thresholdFor returns the agent's mandate limit when one applies to
// currency, otherwise the configured threshold.
func (p *Processor) thresholdFor(ctx context.Context, t *paytask.Task, currency string) (int64, error) {
	if p.mandates == nil {
		return p.threshold, nil
	}
	m, ok, err := p.mandates.Lookup(ctx, t.TenantID, t.AgentID)
	if err != nil {
		return 0, err
	}
	if !ok || (m.Currency != "" && ledger.NormalizeCurrency(m.Currency) != ledger.NormalizeCurrency(currency)) {
		return p.threshold, nil
	}
	return m.Limit, nil
}

func (p *Processor) quote(ctx context.Context, a agent_execution.Action) outcome {
	q, err := p.ledger.Quote(ctx, ledger.QuoteRequest{
		Corridor: a.Corridor,
		Amount:   a.Amount,
		Currency: a.Currency,
	})
	if err != nil {
		return failed(a.Kind, "quote failed: "+err.Error())
	}

	data := func() map[string]any {
		return map[string]any{
			"quote_id":      q.ID,
			"corridor":      q.Corridor,
			"from_amount":   ledger.FormatAmount(q.FromAmount),
			"from_currency": q.FromCurrency,
			"to_amount":     ledger.FormatAmount(q.ToAmount),
			"to_currency":   q.ToCurrency,
			"fx_rate":       q.FXRate,
			"fees":          ledger.FormatAmount(q.Fees),
			"expires_at":    q.ExpiresAt.UTC().Format(time.RFC3339),
		}
	}
	text := fmt.Sprintf("%s %s converts to %s %s via %s.",
		ledger.FormatAmount(q.FromAmount), q.FromCurrency,
		ledger.FormatAmount(q.ToAmount), q.ToCurrency, q.Corridor)
	art := paytask.NewDataArtifact("quote", paytask.DataTypeQuote, data())
	return outcome{
		action:   a.Kind,
		state:    paytask.TaskStateCompleted,
		message:  paytask.NewAgentDataMessage(text, paytask.DataTypeQuote, data()),
		artifact: &art,
	}
}

func (p *Processor) transfer(ctx context.Context, t *paytask.Task, a agent_execution.Action) outcome {
	tr, err := p.ledger.Transfer(ctx, ledger.TransferRequest{
		IdempotencyKey: ledger.IdempotencyKey(t.TenantID, t.ID),
		TenantID:       t.TenantID,
		AgentID:        t.AgentID,
		Corridor:       a.Corridor,
		Amount:         a.Amount,
		Currency:       a.Currency,
		Recipient:      a.Recipient,
		Memo:           a.Memo,
		Metadata: map[string]string{
			"task_id":    t.ID,
			"context_id": t.ContextID,
		},
	})
	if err != nil {
		return failed(a.Kind, "transfer failed: "+err.Error())
	}

	data := func() map[string]any {
		return map[string]any{
			"transfer_id":  tr.ID,
			"status":       string(tr.Status),
			"amount":       ledger.FormatAmount(a.Amount),
			"amount_minor": a.Amount,
			"currency":     a.Currency,
			"corridor":     a.Corridor,
		}
	}
	text := fmt.Sprintf("Transfer of %s %s is %s (%s).", ledger.FormatAmount(a.Amount), a.Currency, tr.Status, tr.ID)
	art := paytask.NewDataArtifact("receipt", paytask.DataTypeTransfer, data())
	return outcome{
		action:     a.Kind,
		state:      paytask.TaskStateCompleted,
		transferID: tr.ID,
		message:    paytask.NewAgentDataMessage(text, paytask.DataTypeTransfer, data()),
		artifact:   &art,
	}
}

func paymentRequired(a agent_execution.Action, threshold int64) outcome {
	text := fmt.Sprintf("A payment of %s %s needs approval (threshold %s). Reply to approve or decline.",
		ledger.FormatAmount(a.Amount), a.Currency, ledger.FormatAmount(threshold))
	return outcome{
		action:  a.Kind,
		state:   paytask.TaskStateInputRequired,
		status:  "awaiting payment approval",
		message: paytask.NewAgentDataMessage(text, paytask.DataTypePaymentRequired, agent_execution.PaymentRequiredData(a, threshold)),
	}
}
