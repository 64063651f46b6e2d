// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger defines the money movement collaborator of the task engine
// and its implementations.
//
// Amounts are integer minor units (cents) of Currency.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Ledger quotes and performs transfers.
type Ledger interface {
	// Quote returns a read-only price for moving Amount through Corridor.
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)

	// Transfer moves money. Calls with the same IdempotencyKey return the
	// first transfer instead of moving money again.
	Transfer(ctx context.Context, req TransferRequest) (*Transfer, error)
}

// QuoteRequest asks for the price of a transfer.
type QuoteRequest struct {
	Corridor string
	Amount   int64
	Currency string
}

// Validate checks the request.
func (r *QuoteRequest) Validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if r.Currency == "" {
		return fmt.Errorf("currency cannot be empty")
	}
	return nil
}

// Quote is the price of a transfer.
type Quote struct {
	ID           string
	Corridor     string
	FromAmount   int64
	FromCurrency string
	ToAmount     int64
	ToCurrency   string
	FXRate       float64
	Fees         int64
	ExpiresAt    time.Time
}

// TransferRequest asks the ledger to move money.
type TransferRequest struct {
	IdempotencyKey string
	TenantID       string
	AgentID        string
	Corridor       string
	Amount         int64
	Currency       string
	// Recipient holds corridor specific recipient fields, such as a Pix key.
	Recipient map[string]any
	Memo      string
	Metadata  map[string]string
}

// Validate checks the request.
func (r *TransferRequest) Validate() error {
	if r.IdempotencyKey == "" {
		return fmt.Errorf("idempotency key cannot be empty")
	}
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if r.Currency == "" {
		return fmt.Errorf("currency cannot be empty")
	}
	return nil
}

// TransferStatus is the settlement state of a transfer.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
)

// Transfer is the record of a money movement. A pending transfer is
// settled by the rail later and already identifies the side effect.
type Transfer struct {
	ID        string
	Status    TransferStatus
	Corridor  string
	Amount    int64
	Currency  string
	CreatedAt time.Time
}

// ErrRejected is returned when the ledger refuses a transfer.
var ErrRejected = errors.New("transfer rejected")

// FormatAmount renders minor units as a decimal string, e.g. 80000 → "800.00".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// IdempotencyKey builds the transfer key of a tenant's task.
func IdempotencyKey(tenantID, taskID string) string {
	return tenantID + ":" + taskID
}

// NormalizeCurrency upper-cases a currency or asset code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
