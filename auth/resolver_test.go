// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/go-a2a/paytask"
)

func TestJWTResolver(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	valid, err := IssueToken(secret, Caller{TenantID: "t1", AgentID: "payer", Subject: "svc"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	expired, err := IssueToken(secret, Caller{TenantID: "t1"}, -time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	foreign, err := IssueToken([]byte("another-secret-another-secret-xx"), Caller{TenantID: "t1"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	noTenant, err := IssueToken(secret, Caller{Subject: "svc"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := map[string]struct {
		header  string
		want    Caller
		wantErr bool
	}{
		"valid":        {header: "Bearer " + valid, want: Caller{TenantID: "t1", AgentID: "payer", Subject: "svc"}},
		"lower scheme": {header: "bearer " + valid, want: Caller{TenantID: "t1", AgentID: "payer", Subject: "svc"}},
		"missing":      {header: "", wantErr: true},
		"basic":        {header: "Basic dXNlcjpwYXNz", wantErr: true},
		"expired":      {header: "Bearer " + expired, wantErr: true},
		"wrong key":    {header: "Bearer " + foreign, wantErr: true},
		"no tenant":    {header: "Bearer " + noTenant, wantErr: true},
		"not a jwt":    {header: "Bearer nope", wantErr: true},
	}

	r := NewJWTResolver(secret)
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/agents/payer", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := r.Resolve(req)
			if tt.wantErr {
				if !errors.Is(err, paytask.ErrUnauthenticated) {
					t.Fatalf("Resolve() error = %v, want Unauthenticated", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHeaderResolver(t *testing.T) {
	req := httptest.NewRequest("GET", "/stats", nil)
	if _, err := (HeaderResolver{}).Resolve(req); !errors.Is(err, paytask.ErrUnauthenticated) {
		t.Errorf("Resolve() without header error = %v, want Unauthenticated", err)
	}

	got, err := (HeaderResolver{DefaultTenant: "dev"}).Resolve(req)
	if err != nil || got.TenantID != "dev" {
		t.Errorf("Resolve() with default = %+v, %v", got, err)
	}

	req.Header.Set(HeaderTenantID, "t9")
	req.Header.Set(HeaderAgentID, "payer")
	got, err = (HeaderResolver{DefaultTenant: "dev"}).Resolve(req)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if diff := cmp.Diff(Caller{TenantID: "t9", AgentID: "payer", Subject: "t9"}, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}
