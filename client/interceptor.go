// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// Interceptor wraps the HTTP round trip of a call.
type Interceptor func(ctx context.Context, req *http.Request, invoker Invoker) (*http.Response, error)

// Invoker represents the next handler in the interceptor chain.
type Invoker func(ctx context.Context, req *http.Request) (*http.Response, error)

// chainInterceptors chains interceptors so that the first one runs outermost.
func chainInterceptors(interceptors []Interceptor, invoker Invoker) Invoker {
	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor := interceptors[i]
		next := invoker
		invoker = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return interceptor(ctx, req, next)
		}
	}
	return invoker
}

// LoggingInterceptor logs every round trip at debug level.
func LoggingInterceptor(logger *slog.Logger) Interceptor {
	return func(ctx context.Context, req *http.Request, invoker Invoker) (*http.Response, error) {
		start := time.Now()
		resp, err := invoker(ctx, req)
		if err != nil {
			logger.DebugContext(ctx, "remote agent request failed", "url", req.URL.String(), "error", err)
			return nil, err
		}
		logger.DebugContext(ctx, "remote agent request", "url", req.URL.String(), "status", resp.StatusCode, "elapsed", time.Since(start))
		return resp, nil
	}
}

// UserAgentInterceptor sets the User-Agent header.
func UserAgentInterceptor(userAgent string) Interceptor {
	return func(ctx context.Context, req *http.Request, invoker Invoker) (*http.Response, error) {
		req.Header.Set("User-Agent", userAgent)
		return invoker(ctx, req)
	}
}

// RetryPolicy bounds the retries of [RetryInterceptor].
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy returns three attempts with exponential backoff from 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
	}
}

// RetryInterceptor retries calls the remote agent refused before doing any
// work: 429 and 503 answers. Other failures are returned as they are, since
// message/send is not idempotent.
func RetryInterceptor(policy RetryPolicy) Interceptor {
	return func(ctx context.Context, req *http.Request, invoker Invoker) (*http.Response, error) {
		attempts := max(policy.MaxAttempts, 1)
		for attempt := 0; ; attempt++ {
			r := req
			if attempt > 0 {
				if req.GetBody == nil {
					return nil, fmt.Errorf("request body cannot be replayed")
				}
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("replaying request body: %w", err)
				}
				r = req.Clone(ctx)
				r.Body = body
			}

			resp, err := invoker(ctx, r)
			if err != nil || !shouldRetry(resp.StatusCode) || attempt == attempts-1 {
				return resp, err
			}
			resp.Body.Close()

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateDelay(policy, attempt)):
			}
		}
	}
}

func shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable
}

func calculateDelay(policy RetryPolicy, attempt int) time.Duration {
	d := time.Duration(float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt)))
	if policy.MaxDelay > 0 {
		d = min(d, policy.MaxDelay)
	}
	return d
}
