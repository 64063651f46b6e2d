// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger is an in-process Ledger. It settles transfers immediately and
// deduplicates them by idempotency key.
type MemoryLedger struct {
	mu        sync.Mutex
	transfers map[string]*Transfer
	order     []string
	calls     int
	failNext  error
	rates     map[string]float64
	feeBasis  int64
	delay     time.Duration
}

var _ Ledger = (*MemoryLedger)(nil)

// MemoryOption configures a MemoryLedger.
type MemoryOption func(*MemoryLedger)

// WithRate sets the FX rate used to quote a corridor.
func WithRate(corridor string, rate float64) MemoryOption {
	return func(l *MemoryLedger) {
		l.rates[corridor] = rate
	}
}

// WithFeeBasisPoints sets the quoted fee in basis points of the amount.
func WithFeeBasisPoints(bps int64) MemoryOption {
	return func(l *MemoryLedger) {
		l.feeBasis = bps
	}
}

// WithLatency delays every Transfer call, honoring context cancellation.
func WithLatency(d time.Duration) MemoryOption {
	return func(l *MemoryLedger) {
		l.delay = d
	}
}

// NewMemoryLedger returns an empty MemoryLedger.
func NewMemoryLedger(opts ...MemoryOption) *MemoryLedger {
	l := &MemoryLedger{
		transfers: make(map[string]*Transfer),
		rates:     make(map[string]float64),
		feeBasis:  50,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FailNext makes the next Transfer call fail with err.
func (l *MemoryLedger) FailNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = err
}

// Quote implements [Ledger].
func (l *MemoryLedger) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	rate, ok := l.rates[req.Corridor]
	fee := req.Amount * l.feeBasis / 10000
	l.mu.Unlock()
	if !ok {
		rate = 1
	}

	return &Quote{
		ID:           "quote_" + uuid.NewString(),
		Corridor:     req.Corridor,
		FromAmount:   req.Amount,
		FromCurrency: NormalizeCurrency(req.Currency),
		ToAmount:     int64(float64(req.Amount-fee) * rate),
		ToCurrency:   NormalizeCurrency(req.Currency),
		FXRate:       rate,
		Fees:         fee,
		ExpiresAt:    time.Now().UTC().Add(5 * time.Minute),
	}, nil
}

// Transfer implements [Ledger].
func (l *MemoryLedger) Transfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if err := l.failNext; err != nil {
		l.failNext = nil
		return nil, fmt.Errorf("memory ledger: %w", err)
	}
	if tr, ok := l.transfers[req.IdempotencyKey]; ok {
		c := *tr
		return &c, nil
	}

	tr := &Transfer{
		ID:        "tr_" + uuid.NewString(),
		Status:    TransferStatusCompleted,
		Corridor:  req.Corridor,
		Amount:    req.Amount,
		Currency:  NormalizeCurrency(req.Currency),
		CreatedAt: time.Now().UTC(),
	}
	l.transfers[req.IdempotencyKey] = tr
	l.order = append(l.order, req.IdempotencyKey)
	c := *tr
	return &c, nil
}

// Transfers returns the distinct transfers performed, in order.
func (l *MemoryLedger) Transfers() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Transfer, len(l.order))
	for i, key := range l.order {
		out[i] = *l.transfers[key]
	}
	return out
}

// Calls returns how many times Transfer was invoked, including duplicates
// and injected failures.
func (l *MemoryLedger) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
