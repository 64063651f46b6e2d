// Copyright 2025 The Go A2A Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package auth resolves the caller of a request to the tenant and agent it
// acts for. Every task operation is scoped to the resolved tenant.
package auth

import "context"

// User represents an authenticated or unauthenticated caller.
type User interface {
	// IsAuthenticated returns true if the user is authenticated, false otherwise.
	IsAuthenticated() bool

	// UserName returns the username of the user. For unauthenticated users,
	// this returns an empty string.
	UserName() string
}

// UnauthenticatedUser is the User of a request without credentials.
//
// UnauthenticatedUser is safe to use as a zero value and is immutable.
type UnauthenticatedUser struct{}

// IsAuthenticated always returns false for unauthenticated users.
func (u UnauthenticatedUser) IsAuthenticated() bool {
	return false
}

// UserName always returns an empty string for unauthenticated users.
func (u UnauthenticatedUser) UserName() string {
	return ""
}

// Caller is an authenticated tenant principal.
type Caller struct {
	// TenantID scopes every task the caller can see.
	TenantID string
	// AgentID restricts the caller to one agent when set.
	AgentID string
	// Subject names the principal, e.g. the token subject.
	Subject string
}

var _ User = Caller{}

// IsAuthenticated reports whether the caller carries a tenant.
func (c Caller) IsAuthenticated() bool {
	return c.TenantID != ""
}

// UserName returns the subject of the caller.
func (c Caller) UserName() string {
	return c.Subject
}

// CanActFor reports whether the caller may operate on agentID.
func (c Caller) CanActFor(agentID string) bool {
	return c.AgentID == "" || c.AgentID == agentID
}

type callerKey struct{}

// WithCaller returns a copy of ctx carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx by WithCaller.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.IsAuthenticated()
}

// UserFrom returns the caller of ctx as a User, or UnauthenticatedUser.
func UserFrom(ctx context.Context) User {
	if c, ok := CallerFrom(ctx); ok {
		return c
	}
	return UnauthenticatedUser{}
}
