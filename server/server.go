// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the task engine over HTTP: one JSON-RPC address
// per agent and an administrative REST surface for operators.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/paytask/auth"
	"github.com/go-a2a/paytask/server/handler"
	"github.com/go-a2a/paytask/server/processor"
	"github.com/go-a2a/paytask/server/session"
	"github.com/go-a2a/paytask/server/task"
)

const (
	// DefaultMaxBodyBytes bounds the size of a request body.
	DefaultMaxBodyBytes int64 = 1 << 20

	// DefaultShutdownTimeout bounds the graceful shutdown of Serve.
	DefaultShutdownTimeout = 10 * time.Second
)

// Server serves the agent addresses and the admin surface.
type Server struct {
	store      task.TaskStore
	processor  *processor.Processor
	batch      *processor.BatchCoordinator
	sessions   *session.Context
	dispatcher *handler.Dispatcher
	resolver   auth.Resolver
	mux        *http.ServeMux

	batchOpts       []processor.BatchOption
	maxBodyBytes    int64
	shutdownTimeout time.Duration

	logger *slog.Logger
	tracer trace.Tracer
}

var _ http.Handler = (*Server)(nil)

// New creates a Server over store and p. Without [WithResolver] every
// request is rejected as unauthenticated.
func New(store task.TaskStore, p *processor.Processor, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("task store is required")
	}
	if p == nil {
		return nil, fmt.Errorf("processor is required")
	}

	s := &Server{
		store:           store,
		processor:       p,
		sessions:        session.New(store),
		mux:             http.NewServeMux(),
		maxBodyBytes:    DefaultMaxBodyBytes,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.Default(),
		tracer:          otel.Tracer("github.com/go-a2a/paytask/server"),
		resolver: auth.ResolverFunc(func(*http.Request) (auth.Caller, error) {
			return auth.Caller{}, errors.New("no resolver configured")
		}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.batch = processor.NewBatchCoordinator(p, s.batchOpts...)
	s.dispatcher = handler.NewDispatcher(handler.NewTaskHandler(store, p),
		handler.WithLogger(s.logger),
		handler.WithTracer(s.tracer),
	)
	s.registerHandlers()

	return s, nil
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.Handle("POST /agents/{agentID}", s.recoverer(s.authenticate(s.handleRPC, s.writeRPCAuthError)))

	s.mux.Handle("POST /tasks/{id}/process", s.admin(s.handleProcess))
	s.mux.Handle("POST /tasks/{id}/respond", s.admin(s.handleRespond))
	s.mux.Handle("POST /tasks/{id}/cancel", s.admin(s.handleCancel))
	s.mux.Handle("POST /process", s.admin(s.handleProcessAll))
	s.mux.Handle("GET /stats", s.admin(s.handleStats))
	s.mux.Handle("GET /sessions", s.admin(s.handleSessions))
	s.mux.Handle("GET /sessions/{contextID}", s.admin(s.handleSession))
}

// admin wraps an admin REST handler with recovery and authentication.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return s.recoverer(s.authenticate(h, s.writeError))
}

// handleRPC serves the JSON-RPC address of one agent.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentID")
	caller, _ := auth.CallerFrom(r.Context())
	if !caller.CanActFor(agentID) {
		s.writeRPCAuthError(w, r, fmt.Errorf("caller %q cannot act for agent %q", caller.Subject, agentID))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}

	out, err := s.dispatcher.Dispatch(r.Context(), handler.CallContext{TenantID: caller.TenantID, AgentID: agentID}, body)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "encode rpc response", "agent_id", agentID, "error", err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	if out == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(out); err != nil {
		s.logger.DebugContext(r.Context(), "write rpc response", "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Serve accepts connections on l until ctx is done, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()
	s.logger.InfoContext(ctx, "server listening", "addr", l.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	s.logger.InfoContext(ctx, "server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}
