// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Options represents the configuration options for the [Client].
type Options struct {
	// HTTPClient is the HTTP client to use for requests.
	// If nil, a client with Timeout is created.
	HTTPClient *http.Client

	// Headers are additional HTTP headers to include in requests.
	Headers http.Header

	// Timeout bounds every call. If zero, no timeout is set.
	Timeout time.Duration

	// Interceptors wrap every HTTP round trip, the first one outermost.
	Interceptors []Interceptor

	Logger *slog.Logger
	Tracer trace.Tracer
}

// DefaultOptions returns the default client options.
func DefaultOptions() Options {
	return Options{
		Timeout: 30 * time.Second,
	}
}

// Option is a function that configures a Client.
type Option func(*Options)

// WithHTTPClient sets the HTTP client to use for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// WithTimeout sets the timeout applied to every call.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.Timeout = timeout
	}
}

// WithHeaders sets additional HTTP headers to include in requests.
func WithHeaders(headers http.Header) Option {
	return func(o *Options) {
		o.Headers = headers
	}
}

// WithBearerToken sets the Authorization header with a bearer token.
func WithBearerToken(token string) Option {
	return func(o *Options) {
		if o.Headers == nil {
			o.Headers = make(http.Header)
		}
		o.Headers.Set("Authorization", "Bearer "+token)
	}
}

// WithInterceptors appends interceptors to the round trip chain.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(o *Options) {
		o.Interceptors = append(o.Interceptors, interceptors...)
	}
}

// WithLogger sets the [*slog.Logger] for the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTracer sets the [trace.Tracer] for the [Client].
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) {
		o.Tracer = tracer
	}
}
