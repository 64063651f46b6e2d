// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/internal/jsonrpc2"
)

// MethodHandler serves one JSON-RPC method.
type MethodHandler func(ctx context.Context, call CallContext, req *jsonrpc2.Request) (any, error)

// MethodRouter maps method names to handlers.
type MethodRouter struct {
	methods map[string]MethodHandler
}

// NewMethodRouter returns an empty MethodRouter.
func NewMethodRouter() *MethodRouter {
	return &MethodRouter{methods: make(map[string]MethodHandler)}
}

// RegisterMethod registers h for method, replacing any previous handler.
func (r *MethodRouter) RegisterMethod(method string, h MethodHandler) {
	r.methods[method] = h
}

// Lookup returns the handler of method.
func (r *MethodRouter) Lookup(method string) (MethodHandler, bool) {
	h, ok := r.methods[method]
	return h, ok
}

// Dispatcher adapts JSON-RPC 2.0 requests to a [RequestHandler]. Every
// failure is answered with an error envelope carrying a stable code.
type Dispatcher struct {
	handler RequestHandler
	router  *MethodRouter
	logger  *slog.Logger
	tracer  trace.Tracer
}

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher)

// WithLogger sets the [*slog.Logger] for the [Dispatcher].
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithTracer sets the [trace.Tracer] for the [Dispatcher].
func WithTracer(tracer trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// NewDispatcher creates a Dispatcher serving the methods of h.
func NewDispatcher(h RequestHandler, opts ...DispatcherOption) *Dispatcher {
	if h == nil {
		panic("request handler cannot be nil")
	}
	d := &Dispatcher{
		handler: h,
		router:  NewMethodRouter(),
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/go-a2a/paytask/server/handler"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.registerMethods()
	return d
}

func (d *Dispatcher) registerMethods() {
	d.router.RegisterMethod(paytask.MethodMessageSend, func(ctx context.Context, call CallContext, req *jsonrpc2.Request) (any, error) {
		params, err := decodeParams[paytask.SendMessageParams](req)
		if err != nil {
			return nil, err
		}
		return d.handler.OnSendMessage(ctx, call, params)
	})
	d.router.RegisterMethod(paytask.MethodTasksGet, func(ctx context.Context, call CallContext, req *jsonrpc2.Request) (any, error) {
		params, err := decodeParams[paytask.TaskQueryParams](req)
		if err != nil {
			return nil, err
		}
		return d.handler.OnGetTask(ctx, call, params)
	})
	d.router.RegisterMethod(paytask.MethodTasksList, func(ctx context.Context, call CallContext, req *jsonrpc2.Request) (any, error) {
		params, err := decodeParams[paytask.ListTasksParams](req)
		if err != nil {
			return nil, err
		}
		return d.handler.OnListTasks(ctx, call, params)
	})
	d.router.RegisterMethod(paytask.MethodTasksCancel, func(ctx context.Context, call CallContext, req *jsonrpc2.Request) (any, error) {
		params, err := decodeParams[paytask.TaskIDParams](req)
		if err != nil {
			return nil, err
		}
		return d.handler.OnCancelTask(ctx, call, params)
	})
}

// decodeParams decodes and validates the params of req.
func decodeParams[T any, P interface {
	*T
	Validate() error
}](req *jsonrpc2.Request) (P, error) {
	p := P(new(T))
	if err := req.UnmarshalParams(p); err != nil {
		return nil, jsonrpc2.ErrInvalidParams.WithData(err.Error())
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// HandleRequest serves one request. It returns nil for a notification.
func (d *Dispatcher) HandleRequest(ctx context.Context, call CallContext, req *jsonrpc2.Request) *jsonrpc2.Response {
	start := time.Now()

	if err := req.Validate(); err != nil {
		jsonrpc2.RecordCall(ctx, "", jsonrpc2.ErrInvalidRequest.Code, time.Since(start))
		return jsonrpc2.NewResponse(req.ID, nil, jsonrpc2.ErrInvalidRequest.WithData(err.Error()))
	}

	ctx, span := d.tracer.Start(ctx, "paytask.handler."+req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.method", req.Method),
			attribute.String("paytask.agent_id", call.AgentID),
		))
	defer span.End()

	var (
		result any
		err    error
	)
	if h, ok := d.router.Lookup(req.Method); ok {
		result, err = h(ctx, call, req)
	} else {
		err = jsonrpc2.ErrMethodNotFound.WithData(req.Method)
	}

	code := 0
	var rpcErr *jsonrpc2.Error
	if err != nil {
		rpcErr = ToRPCError(err)
		code = rpcErr.Code
		span.RecordError(err)
		span.SetStatus(codes.Error, rpcErr.Message)
		if code == jsonrpc2.ErrInternal.Code {
			d.logger.ErrorContext(ctx, "request failed", "method", req.Method, "agent_id", call.AgentID, "error", err)
		} else {
			d.logger.DebugContext(ctx, "request rejected", "method", req.Method, "code", code, "error", err)
		}
	}
	jsonrpc2.RecordCall(ctx, req.Method, code, time.Since(start))

	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return jsonrpc2.NewResponse(req.ID, nil, rpcErr)
	}
	return jsonrpc2.NewResponse(req.ID, result, nil)
}

// HandleBatch serves the requests of a batch in order. Notifications have
// no element in the answer.
func (d *Dispatcher) HandleBatch(ctx context.Context, call CallContext, reqs []*jsonrpc2.Request) []*jsonrpc2.Response {
	resps := make([]*jsonrpc2.Response, 0, len(reqs))
	for _, req := range reqs {
		if resp := d.HandleRequest(ctx, call, req); resp != nil {
			resps = append(resps, resp)
		}
	}
	return resps
}

// Dispatch decodes a request body, serves it and returns the encoded
// answer. It returns nil when the body held only notifications.
func (d *Dispatcher) Dispatch(ctx context.Context, call CallContext, body []byte) ([]byte, error) {
	reqs, batch, err := jsonrpc2.DecodeRequests(body)
	if err != nil {
		return jsonrpc2.Encode(jsonrpc2.NewResponse(nil, nil, err))
	}
	if !batch {
		resp := d.HandleRequest(ctx, call, reqs[0])
		if resp == nil {
			return nil, nil
		}
		return jsonrpc2.Encode(resp)
	}

	resps := d.HandleBatch(ctx, call, reqs)
	if len(resps) == 0 {
		return nil, nil
	}
	return jsonrpc2.Encode(resps)
}
