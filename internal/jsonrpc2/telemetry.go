// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc2

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/go-a2a/paytask/internal/jsonrpc2"

var (
	startedCounter metric.Int64Counter
	errorCounter   metric.Int64Counter
	latency        metric.Float64Histogram
)

var metricOnce sync.Once

func newMetrics(m metric.Meter) {
	metricOnce.Do(func() {
		var err error

		startedCounter, err = m.Int64Counter("rpc.server.started",
			metric.WithDescription("Count of started RPCs"),
		)
		if err != nil {
			otel.Handle(err)
			startedCounter = noop.Int64Counter{}
		}

		errorCounter, err = m.Int64Counter("rpc.server.errors",
			metric.WithDescription("Count of RPCs answered with an error"),
		)
		if err != nil {
			otel.Handle(err)
			errorCounter = noop.Int64Counter{}
		}

		latency, err = m.Float64Histogram("rpc.server.duration",
			metric.WithDescription("Duration of RPCs"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			otel.Handle(err)
			latency = noop.Float64Histogram{}
		}
	})
}

// RecordCall records one finished RPC. code is 0 for a successful call.
func RecordCall(ctx context.Context, method string, code int, elapsed time.Duration) {
	newMetrics(otel.GetMeterProvider().Meter(meterName))

	attrs := metric.WithAttributes(
		attribute.String("rpc.method", method),
		attribute.Int("rpc.jsonrpc.error_code", code),
	)
	startedCounter.Add(ctx, 1, attrs)
	if code != 0 {
		errorCounter.Add(ctx, 1, attrs)
	}
	latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}
