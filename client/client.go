// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the JSON-RPC client of a remote paytask agent. The
// engine uses it to delegate outbound tasks.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/paytask"
)

// Client talks to one agent address.
type Client struct {
	transport *Transport
	timeout   time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New creates a Client for the agent at url, e.g. https://host/agents/payer.
func New(url string, opts ...Option) *Client {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer("github.com/go-a2a/paytask/client")
	}

	t := NewTransport(url, o.HTTPClient, o.Interceptors...)
	if o.Headers != nil {
		t.SetHeaders(o.Headers)
	}
	return &Client{
		transport: t,
		timeout:   o.Timeout,
		logger:    o.Logger,
		tracer:    o.Tracer,
	}
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "paytask.client."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.method", method)),
	)
	defer span.End()

	if err := c.transport.Call(ctx, method, params, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.DebugContext(ctx, "remote call failed", "method", method, "error", err)
		return err
	}
	return nil
}

// SendMessage creates a remote task, or appends to one when params.ID is set.
func (c *Client) SendMessage(ctx context.Context, params *paytask.SendMessageParams) (*paytask.Task, error) {
	if params == nil {
		return nil, fmt.Errorf("params cannot be nil")
	}
	var task paytask.Task
	if err := c.call(ctx, paytask.MethodMessageSend, params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask retrieves a remote task with its history.
func (c *Client) GetTask(ctx context.Context, params *paytask.TaskQueryParams) (*paytask.Task, error) {
	var task paytask.Task
	if err := c.call(ctx, paytask.MethodTasksGet, params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks pages through remote task summaries.
func (c *Client) ListTasks(ctx context.Context, params *paytask.ListTasksParams) (*paytask.ListTasksResult, error) {
	var result paytask.ListTasksResult
	if err := c.call(ctx, paytask.MethodTasksList, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelTask cancels a remote task.
func (c *Client) CancelTask(ctx context.Context, id string) (*paytask.Task, error) {
	var task paytask.Task
	if err := c.call(ctx, paytask.MethodTasksCancel, &paytask.TaskIDParams{ID: id}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}
