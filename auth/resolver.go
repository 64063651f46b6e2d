// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/go-a2a/paytask"
)

// Claim names read from tokens.
const (
	ClaimTenantID = "tenant_id"
	ClaimAgentID  = "agent_id"
)

// Header names read by HeaderResolver.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderAgentID  = "X-Agent-ID"
)

// Resolver authenticates an HTTP request. It returns an Unauthenticated
// error when the request carries no acceptable credentials.
type Resolver interface {
	Resolve(r *http.Request) (Caller, error)
}

// ResolverFunc adapts a function to [Resolver].
type ResolverFunc func(r *http.Request) (Caller, error)

// Resolve implements [Resolver].
func (f ResolverFunc) Resolve(r *http.Request) (Caller, error) {
	return f(r)
}

// JWTResolver authenticates HS256 bearer tokens carrying a tenant_id claim
// and optionally an agent_id claim.
type JWTResolver struct {
	secret []byte
	issuer string
	skew   time.Duration
}

var _ Resolver = (*JWTResolver)(nil)

// JWTOption configures a [JWTResolver].
type JWTOption func(*JWTResolver)

// WithIssuer requires tokens issued by iss.
func WithIssuer(iss string) JWTOption {
	return func(r *JWTResolver) {
		r.issuer = iss
	}
}

// WithAcceptableSkew tolerates clock differences when validating exp and nbf.
func WithAcceptableSkew(d time.Duration) JWTOption {
	return func(r *JWTResolver) {
		r.skew = d
	}
}

// NewJWTResolver creates a JWTResolver verifying signatures with secret.
func NewJWTResolver(secret []byte, opts ...JWTOption) *JWTResolver {
	r := &JWTResolver{secret: secret}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements [Resolver].
func (r *JWTResolver) Resolve(req *http.Request) (Caller, error) {
	raw, ok := bearerToken(req)
	if !ok {
		return Caller{}, paytask.NewUnauthenticatedError("missing bearer token")
	}
	return r.Parse(raw)
}

// Parse verifies a serialized token and returns its caller.
func (r *JWTResolver) Parse(raw string) (Caller, error) {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256(), r.secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(r.skew),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}
	tok, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		e := paytask.NewUnauthenticatedError("invalid token")
		e.Err = err
		return Caller{}, e
	}

	var c Caller
	if err := tok.Get(ClaimTenantID, &c.TenantID); err != nil || c.TenantID == "" {
		return Caller{}, paytask.NewUnauthenticatedError(fmt.Sprintf("token has no %s claim", ClaimTenantID))
	}
	// agent_id is optional.
	_ = tok.Get(ClaimAgentID, &c.AgentID)
	c.Subject, _ = tok.Subject()
	return c, nil
}

// TokenOption configures a token minted by IssueToken.
type TokenOption func(*jwt.Builder) *jwt.Builder

// WithTokenIssuer sets the iss claim.
func WithTokenIssuer(iss string) TokenOption {
	return func(b *jwt.Builder) *jwt.Builder {
		return b.Issuer(iss)
	}
}

// IssueToken signs a token for c valid for ttl. It is used by operators and
// tests to mint credentials for the JWTResolver sharing secret.
func IssueToken(secret []byte, c Caller, ttl time.Duration, opts ...TokenOption) (string, error) {
	now := time.Now()
	b := jwt.NewBuilder().
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(ClaimTenantID, c.TenantID)
	for _, opt := range opts {
		b = opt(b)
	}
	if c.Subject != "" {
		b = b.Subject(c.Subject)
	}
	if c.AgentID != "" {
		b = b.Claim(ClaimAgentID, c.AgentID)
	}
	tok, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("building token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return string(signed), nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// HeaderResolver trusts the X-Tenant-ID and X-Agent-ID headers. It is meant
// for deployments behind a gateway that already authenticated the caller,
// and for local development.
type HeaderResolver struct {
	// DefaultTenant is used when the request carries no tenant header.
	// Empty rejects such requests.
	DefaultTenant string
}

var _ Resolver = HeaderResolver{}

// Resolve implements [Resolver].
func (h HeaderResolver) Resolve(r *http.Request) (Caller, error) {
	tenant := r.Header.Get(HeaderTenantID)
	if tenant == "" {
		tenant = h.DefaultTenant
	}
	if tenant == "" {
		return Caller{}, paytask.NewUnauthenticatedError("missing " + HeaderTenantID + " header")
	}
	return Caller{
		TenantID: tenant,
		AgentID:  r.Header.Get(HeaderAgentID),
		Subject:  tenant,
	}, nil
}
