// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/paytask/client"
	"github.com/go-a2a/paytask/ledger"
	"github.com/go-a2a/paytask/server/agent_execution"
)

// Option represents an option for configuring the [Processor].
type Option func(*Processor)

// WithDecider sets the [agent_execution.Decider] choosing each run's action.
func WithDecider(d agent_execution.Decider) Option {
	return func(p *Processor) {
		p.decider = d
	}
}

// WithMandates sets the per-agent spending limits that replace the
// configured threshold.
func WithMandates(m ledger.Mandates) Option {
	return func(p *Processor) {
		p.mandates = m
	}
}

// WithThreshold sets the approval threshold in minor units. Transfers at or
// above it wait for approval.
func WithThreshold(minor int64) Option {
	return func(p *Processor) {
		p.threshold = minor
	}
}

// WithDelegationTimeout bounds each call to a remote agent.
func WithDelegationTimeout(d time.Duration) Option {
	return func(p *Processor) {
		p.delegationTimeout = d
	}
}

// WithActionTimeout bounds the domain action of a run: the decision, the
// ledger calls or the delegation.
func WithActionTimeout(d time.Duration) Option {
	return func(p *Processor) {
		p.actionTimeout = d
	}
}

// WithClientOptions sets the options of the clients used for delegation,
// e.g. credentials for remote agents.
func WithClientOptions(opts ...client.Option) Option {
	return func(p *Processor) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// WithLogger sets the [*slog.Logger] for the [Processor].
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithTracer sets the [trace.Tracer] for the [Processor].
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Processor) {
		p.tracer = tracer
	}
}

// WithClock sets the time source used by RecoverStale.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}
