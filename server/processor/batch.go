// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/server/task"
)

// DefaultBatchWorkers is the number of tasks a batch processes at once.
const DefaultBatchWorkers = 4

// TaskError is the failure of one task in a batch.
type TaskError struct {
	TaskID string
	Err    error
}

// Error implements the error interface.
func (e TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e TaskError) Unwrap() error {
	return e.Err
}

// TaskOutcome is the result of one task in a batch.
type TaskOutcome struct {
	TaskID string
	State  paytask.TaskState
	Noop   bool
	Err    error
}

// BatchResult summarizes a ProcessAll call.
type BatchResult struct {
	// Processed counts the runs that changed their task.
	Processed int
	// Skipped counts the runs that found nothing to do.
	Skipped  int
	Outcomes []TaskOutcome
	Errors   []TaskError
}

// BatchCoordinator processes the backlog of an agent with a bounded number
// of workers.
type BatchCoordinator struct {
	processor *Processor
	workers   int
	logger    *slog.Logger
}

// BatchOption configures a [BatchCoordinator].
type BatchOption func(*BatchCoordinator)

// WithWorkers sets the number of tasks processed at once.
func WithWorkers(n int) BatchOption {
	return func(b *BatchCoordinator) {
		if n > 0 {
			b.workers = n
		}
	}
}

// NewBatchCoordinator creates a BatchCoordinator running tasks through p.
func NewBatchCoordinator(p *Processor, opts ...BatchOption) *BatchCoordinator {
	b := &BatchCoordinator{
		processor: p,
		workers:   DefaultBatchWorkers,
		logger:    p.logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ProcessAll processes every submitted task of the agent and every working
// task with an unprocessed reply. The error of one task is recorded in the
// result and never stops the others; only failing to enumerate the tasks
// returns an error.
func (b *BatchCoordinator) ProcessAll(ctx context.Context, tenantID, agentID string) (*BatchResult, error) {
	ctx, span := b.processor.tracer.Start(ctx, "paytask.processor.ProcessAll")
	defer span.End()
	span.SetAttributes(attribute.String("paytask.agent_id", agentID))

	page, err := b.processor.store.List(ctx, task.Query{
		TenantID: tenantID,
		AgentID:  agentID,
		States:   []paytask.TaskState{paytask.TaskStateSubmitted, paytask.TaskStateWorking},
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	var ids []string
	for _, t := range page.Tasks {
		if t.Processable() {
			ids = append(ids, t.ID)
		}
	}

	outcomes := make([]TaskOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, id := range ids {
		g.Go(func() error {
			out := TaskOutcome{TaskID: id}
			res, err := b.processor.Process(ctx, tenantID, id)
			if err != nil {
				out.Err = err
			} else {
				out.State = res.Task.State
				out.Noop = res.Noop
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{Outcomes: outcomes}
	for _, out := range outcomes {
		switch {
		case out.Err != nil:
			result.Errors = append(result.Errors, TaskError{TaskID: out.TaskID, Err: out.Err})
		case out.Noop:
			result.Skipped++
		default:
			result.Processed++
		}
	}

	span.SetAttributes(
		attribute.Int("paytask.batch.processed", result.Processed),
		attribute.Int("paytask.batch.errors", len(result.Errors)),
	)
	b.logger.InfoContext(ctx, "batch processed",
		"agent_id", agentID,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
	)
	return result, nil
}
