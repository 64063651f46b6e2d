// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-a2a/paytask/ledger"
)

// ActionKind is the domain action chosen for a processing run.
type ActionKind string

const (
	// ActionNone means no intent was recognized. The task fails with Reason.
	ActionNone ActionKind = "none"
	// ActionQuote asks the ledger for a read-only quote.
	ActionQuote ActionKind = "quote"
	// ActionTransfer moves money, subject to the approval threshold.
	ActionTransfer ActionKind = "transfer"
	// ActionDecline closes the task after the user declined an approval request.
	ActionDecline ActionKind = "decline"
)

// Action is the single domain action of a processing run.
type Action struct {
	Kind ActionKind

	// Amount is in minor units of Currency.
	Amount    int64
	Currency  string
	Corridor  string
	Recipient map[string]any
	Memo      string

	// Approved is set when the user approved a payment_required request for
	// this exact transfer.
	Approved bool

	// Reason explains ActionNone and ActionDecline.
	Reason string
}

// Decider chooses the action for a task.
type Decider interface {
	Decide(ctx context.Context, rc *RequestContext) (Action, error)
}

// DeciderFunc adapts a function to [Decider].
type DeciderFunc func(ctx context.Context, rc *RequestContext) (Action, error)

// Decide implements [Decider].
func (f DeciderFunc) Decide(ctx context.Context, rc *RequestContext) (Action, error) {
	return f(ctx, rc)
}

// PaymentRequiredData encodes a transfer awaiting approval as a DataPart payload.
func PaymentRequiredData(a Action, threshold int64) map[string]any {
	data := map[string]any{
		"amount":       ledger.FormatAmount(a.Amount),
		"amount_minor": a.Amount,
		"currency":     a.Currency,
		"threshold":    ledger.FormatAmount(threshold),
	}
	if a.Corridor != "" {
		data["corridor"] = a.Corridor
	}
	if len(a.Recipient) > 0 {
		data["recipient"] = a.Recipient
	}
	if a.Memo != "" {
		data["memo"] = a.Memo
	}
	return data
}

// actionFromData reads a transfer from a payment_required or transfer payload.
func actionFromData(data map[string]any) (Action, error) {
	a := Action{Kind: ActionTransfer}

	var err error
	switch {
	case data["amount_minor"] != nil:
		a.Amount, err = minorFromValue(data["amount_minor"], false)
	case data["amount"] != nil:
		a.Amount, err = minorFromValue(data["amount"], true)
	default:
		err = fmt.Errorf("amount is missing")
	}
	if err != nil {
		return Action{}, err
	}
	if a.Amount <= 0 {
		return Action{}, fmt.Errorf("amount must be positive")
	}

	a.Currency, _ = data["currency"].(string)
	a.Currency = strings.ToUpper(a.Currency)
	if a.Currency == "" {
		return Action{}, fmt.Errorf("currency is missing")
	}
	a.Corridor, _ = data["corridor"].(string)
	a.Memo, _ = data["memo"].(string)
	if r, ok := data["recipient"].(map[string]any); ok {
		a.Recipient = r
	}
	return a, nil
}

// maxMajorFloat bounds float amounts to the range a float64 holds exactly.
const maxMajorFloat = 1 << 53

// minorFromValue converts a decoded JSON value to minor units. major
// reports whether v is expressed in major units.
func minorFromValue(v any, major bool) (int64, error) {
	scale := func(f float64) (int64, error) {
		if major {
			f *= 100
		}
		if math.IsNaN(f) || math.Abs(f) >= maxMajorFloat {
			return 0, fmt.Errorf("amount %v is out of range", v)
		}
		return int64(math.Round(f)), nil
	}
	switch n := v.(type) {
	case float64:
		return scale(n)
	case int:
		return scale(float64(n))
	case int64:
		if !major {
			return n, nil
		}
		if n > math.MaxInt64/100 || n < math.MinInt64/100 {
			return 0, fmt.Errorf("amount %d is out of range", n)
		}
		return n * 100, nil
	case string:
		if major {
			return ParseAmount(n)
		}
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported amount type %T", v)
	}
}

// ParseAmount parses a non-negative decimal amount such as "1,250.50" into
// minor units.
func ParseAmount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is out of range", s)
	}
	f, _ := strconv.ParseInt(frac, 10, 64)
	if w > (math.MaxInt64-f)/100 {
		return 0, fmt.Errorf("amount %q is out of range", s)
	}
	return w*100 + f, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
