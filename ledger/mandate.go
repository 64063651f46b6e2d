// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
)

// Mandate is a pre-authorized spending limit of an agent. Transfers of
// Currency strictly below Limit need no approval.
type Mandate struct {
	AgentID  string
	Limit    int64
	Currency string
}

// Mandates looks up the mandate of an agent.
type Mandates interface {
	Lookup(ctx context.Context, tenantID, agentID string) (Mandate, bool, error)
}

// StaticMandates is a fixed set of mandates keyed by agent ID, shared by
// every tenant.
type StaticMandates map[string]Mandate

var _ Mandates = StaticMandates(nil)

// Lookup implements [Mandates].
func (m StaticMandates) Lookup(ctx context.Context, tenantID, agentID string) (Mandate, bool, error) {
	mandate, ok := m[agentID]
	if ok && mandate.AgentID == "" {
		mandate.AgentID = agentID
	}
	return mandate, ok, nil
}
