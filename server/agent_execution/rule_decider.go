// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-a2a/paytask"
)

// RuleDecider is the default [Decider]. It recognizes structured transfer
// and quote data parts, amounts written in text ("800 USDC", "$500"), and
// approve or decline replies to a payment_required request.
type RuleDecider struct {
	// DefaultCurrency is used for amounts written with "$" or without a code.
	DefaultCurrency string
	// DefaultCorridor is used when the message names no known corridor.
	DefaultCorridor string
}

var _ Decider = (*RuleDecider)(nil)

// NewRuleDecider returns a RuleDecider with USD and the pix corridor as defaults.
func NewRuleDecider() *RuleDecider {
	return &RuleDecider{DefaultCurrency: "USD", DefaultCorridor: "pix"}
}

var (
	dollarAmount = regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d{1,2})?)`)
	codeAmount   = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d{1,2})?)\s*(usdc|usdt|usd|brl|mxn|eur|cop|ars)\b`)
	words        = regexp.MustCompile(`[\p{L}']+`)
)

var (
	approveWords = map[string]bool{
		"approve": true, "approved": true, "yes": true, "confirm": true,
		"confirmed": true, "proceed": true, "ok": true, "okay": true, "accept": true,
	}
	declineWords = map[string]bool{
		"decline": true, "declined": true, "no": true, "reject": true,
		"rejected": true, "deny": true, "denied": true, "stop": true, "don't": true,
	}
	quoteWords = map[string]bool{
		"quote": true, "rate": true, "price": true, "estimate": true, "cost": true, "fee": true, "fees": true,
	}
	transferWords = map[string]bool{
		"pay": true, "send": true, "transfer": true, "book": true, "buy": true,
		"purchase": true, "settle": true, "wire": true,
	}
	corridorWords = map[string]string{
		"pix": "pix", "brazil": "pix", "brasil": "pix", "paulo": "pix", "rio": "pix",
		"spei": "spei", "mexico": "spei", "méxico": "spei",
	}
)

// Decide implements [Decider].
func (d *RuleDecider) Decide(ctx context.Context, rc *RequestContext) (Action, error) {
	msg := rc.UserMessage
	text := msg.Parts.Text()
	tokens := tokenize(text)

	if rc.PendingApproval != nil {
		return d.decideReply(rc.PendingApproval, tokens, text)
	}

	if dp, ok := msg.Parts.Data(paytask.DataTypeTransfer); ok {
		a, err := actionFromData(dp.Data)
		if err != nil {
			return Action{Kind: ActionNone, Reason: "invalid transfer data: " + err.Error()}, nil
		}
		if a.Corridor == "" {
			a.Corridor = d.DefaultCorridor
		}
		if a.Memo == "" {
			a.Memo = text
		}
		return a, nil
	}
	if dp, ok := msg.Parts.Data(paytask.DataTypeQuote); ok {
		a, err := actionFromData(dp.Data)
		if err != nil {
			return Action{Kind: ActionNone, Reason: "invalid quote data: " + err.Error()}, nil
		}
		a.Kind = ActionQuote
		if a.Corridor == "" {
			a.Corridor = d.DefaultCorridor
		}
		return a, nil
	}

	amount, currency, found, err := d.findAmount(text)
	if err != nil {
		return Action{Kind: ActionNone, Reason: "invalid amount in message: " + err.Error()}, nil
	}
	isQuote := hasAny(tokens, quoteWords) || strings.Contains(strings.ToLower(text), "how much")
	switch {
	case isQuote && found:
		return Action{Kind: ActionQuote, Amount: amount, Currency: currency, Corridor: d.corridor(tokens)}, nil
	case isQuote:
		return Action{Kind: ActionNone, Reason: "quote request names no amount"}, nil
	case found && hasAny(tokens, transferWords):
		return Action{
			Kind:     ActionTransfer,
			Amount:   amount,
			Currency: currency,
			Corridor: d.corridor(tokens),
			Memo:     text,
		}, nil
	}
	return Action{Kind: ActionNone, Reason: "no payment intent found in message"}, nil
}

func (d *RuleDecider) decideReply(pending *paytask.DataPart, tokens []string, text string) (Action, error) {
	// Decline wins so that "no, don't proceed" is not read as approval.
	if hasAny(tokens, declineWords) {
		reason := "payment declined by user"
		if text != "" {
			reason += ": " + text
		}
		return Action{Kind: ActionDecline, Reason: reason}, nil
	}
	if !hasAny(tokens, approveWords) && !strings.Contains(strings.ToLower(text), "go ahead") {
		return Action{Kind: ActionNone, Reason: "reply neither approves nor declines the payment"}, nil
	}

	a, err := actionFromData(pending.Data)
	if err != nil {
		return Action{Kind: ActionNone, Reason: "invalid payment request: " + err.Error()}, nil
	}
	a.Approved = true
	if a.Corridor == "" {
		a.Corridor = d.DefaultCorridor
	}
	return a, nil
}

// findAmount returns the first amount written in text. An amount that is
// written but cannot be paid is an error rather than "not found".
func (d *RuleDecider) findAmount(text string) (int64, string, bool, error) {
	var raw, currency string
	if m := codeAmount.FindStringSubmatch(text); m != nil {
		raw, currency = m[1], strings.ToUpper(m[2])
	} else if m := dollarAmount.FindStringSubmatch(text); m != nil {
		raw, currency = m[1], d.DefaultCurrency
	} else {
		return 0, "", false, nil
	}
	amount, err := ParseAmount(raw)
	if err != nil {
		return 0, "", false, err
	}
	if amount <= 0 {
		return 0, "", false, fmt.Errorf("amount must be positive")
	}
	return amount, currency, true, nil
}

func (d *RuleDecider) corridor(tokens []string) string {
	for _, t := range tokens {
		if c, ok := corridorWords[t]; ok {
			return c
		}
	}
	return d.DefaultCorridor
}

func tokenize(text string) []string {
	return words.FindAllString(strings.ToLower(text), -1)
}

func hasAny(tokens []string, set map[string]bool) bool {
	for _, t := range tokens {
		if set[t] {
			return true
		}
	}
	return false
}
