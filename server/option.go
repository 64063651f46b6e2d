// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/paytask/auth"
	"github.com/go-a2a/paytask/server/processor"
)

// Option represents an option for configuring the [Server].
type Option func(*Server)

// WithResolver sets the [auth.Resolver] identifying callers.
func WithResolver(r auth.Resolver) Option {
	return func(s *Server) {
		s.resolver = r
	}
}

// WithBatchOptions configures the batch coordinator behind POST /process.
func WithBatchOptions(opts ...processor.BatchOption) Option {
	return func(s *Server) {
		s.batchOpts = append(s.batchOpts, opts...)
	}
}

// WithMaxBodyBytes bounds the size of request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithShutdownTimeout bounds the graceful shutdown of [Server.Serve].
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithLogger sets the [*slog.Logger] for the [Server].
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTracer sets the [trace.Tracer] for the [Server].
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}
