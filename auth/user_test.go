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

package auth

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestUserInterface verifies that both user types implement the User interface.
func TestUserInterface(t *testing.T) {
	var _ User = UnauthenticatedUser{}
	var _ User = Caller{}
}

func TestUser_IsAuthenticated(t *testing.T) {
	tests := map[string]struct {
		user User
		want bool
	}{
		"unauthenticated zero value": {
			user: UnauthenticatedUser{},
			want: false,
		},
		"caller with tenant": {
			user: Caller{TenantID: "t1", Subject: "ops"},
			want: true,
		},
		"caller without tenant": {
			user: Caller{Subject: "ops"},
			want: false,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := tt.user.IsAuthenticated()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("IsAuthenticated() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCallerContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := CallerFrom(ctx); ok {
		t.Fatal("CallerFrom(empty) ok = true")
	}
	if got := UserFrom(ctx); got.IsAuthenticated() {
		t.Errorf("UserFrom(empty) = %#v, want unauthenticated", got)
	}

	want := Caller{TenantID: "t1", AgentID: "payer", Subject: "svc"}
	ctx = WithCaller(ctx, want)
	got, ok := CallerFrom(ctx)
	if !ok {
		t.Fatal("CallerFrom() ok = false")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CallerFrom() mismatch (-want +got):\n%s", diff)
	}
	if UserFrom(ctx).UserName() != "svc" {
		t.Errorf("UserName() = %q, want svc", UserFrom(ctx).UserName())
	}
}

func TestCaller_CanActFor(t *testing.T) {
	tests := map[string]struct {
		caller Caller
		agent  string
		want   bool
	}{
		"tenant wide":   {caller: Caller{TenantID: "t1"}, agent: "payer", want: true},
		"same agent":    {caller: Caller{TenantID: "t1", AgentID: "payer"}, agent: "payer", want: true},
		"another agent": {caller: Caller{TenantID: "t1", AgentID: "payer"}, agent: "payee", want: false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tt.caller.CanActFor(tt.agent); got != tt.want {
				t.Errorf("CanActFor(%q) = %v, want %v", tt.agent, got, tt.want)
			}
		})
	}
}
