// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// DefaultUCPAgent is sent in the UCP-Agent header.
const DefaultUCPAgent = "paytask/2026-01-11"

// UCPClient is a Ledger backed by the UCP settlement HTTP API.
//
// A transfer acquires a settlement token and settles it with the idempotency
// key, so a retried transfer is deduplicated by the provider.
type UCPClient struct {
	baseURL    string
	apiKey     string
	agent      string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Ledger = (*UCPClient)(nil)

// UCPOption configures a UCPClient.
type UCPOption func(*UCPClient)

// WithHTTPClient sets the [*http.Client] for the [UCPClient].
func WithHTTPClient(httpClient *http.Client) UCPOption {
	return func(c *UCPClient) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sets the bearer API key.
func WithAPIKey(key string) UCPOption {
	return func(c *UCPClient) {
		c.apiKey = key
	}
}

// WithUCPAgent sets the UCP-Agent header value.
func WithUCPAgent(agent string) UCPOption {
	return func(c *UCPClient) {
		c.agent = agent
	}
}

// WithLogger sets the [*slog.Logger] for the [UCPClient].
func WithLogger(logger *slog.Logger) UCPOption {
	return func(c *UCPClient) {
		c.logger = logger
	}
}

// NewUCPClient returns a client of the UCP API at baseURL.
func NewUCPClient(baseURL string, opts ...UCPOption) (*UCPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid UCP base URL %q", baseURL)
	}

	c := &UCPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		agent:      DefaultUCPAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx answer of the UCP API.
type APIError struct {
	StatusCode int
	Body       string
}

// Error returns the error message.
func (e *APIError) Error() string {
	return fmt.Sprintf("ucp: status %d: %s", e.StatusCode, e.Body)
}

type ucpQuoteRequest struct {
	Corridor string  `json:"corridor"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type ucpQuote struct {
	ID           string    `json:"id"`
	FromAmount   float64   `json:"from_amount"`
	FromCurrency string    `json:"from_currency"`
	ToAmount     float64   `json:"to_amount"`
	ToCurrency   string    `json:"to_currency"`
	FXRate       float64   `json:"fx_rate"`
	Fees         float64   `json:"fees"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type ucpTokenRequest struct {
	Corridor  string            `json:"corridor"`
	Amount    float64           `json:"amount"`
	Currency  string            `json:"currency"`
	Recipient map[string]any    `json:"recipient"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type ucpToken struct {
	Token        string    `json:"token"`
	SettlementID string    `json:"settlement_id"`
	Quote        ucpQuote  `json:"quote"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type ucpSettleRequest struct {
	Token          string `json:"token"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Settlement is the UCP view of a settlement.
type Settlement struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	TransferID    string `json:"transfer_id,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Quote implements [Ledger].
func (c *UCPClient) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var q ucpQuote
	body := ucpQuoteRequest{Corridor: req.Corridor, Amount: toMajor(req.Amount), Currency: NormalizeCurrency(req.Currency)}
	if err := c.do(ctx, http.MethodPost, "/v1/ucp/quote", body, &q); err != nil {
		return nil, err
	}
	return q.toQuote(req.Corridor), nil
}

// Transfer implements [Ledger].
func (c *UCPClient) Transfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["idempotency_key"] = req.IdempotencyKey
	if req.Memo != "" {
		metadata["memo"] = req.Memo
	}

	var tok ucpToken
	tokenReq := ucpTokenRequest{
		Corridor:  req.Corridor,
		Amount:    toMajor(req.Amount),
		Currency:  NormalizeCurrency(req.Currency),
		Recipient: req.Recipient,
		Metadata:  metadata,
	}
	if err := c.do(ctx, http.MethodPost, "/v1/ucp/tokens", tokenReq, &tok); err != nil {
		return nil, fmt.Errorf("acquire settlement token: %w", err)
	}

	var st Settlement
	settleReq := ucpSettleRequest{Token: tok.Token, IdempotencyKey: req.IdempotencyKey}
	if err := c.do(ctx, http.MethodPost, "/v1/ucp/settle", settleReq, &st); err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}
	if st.ID == "" {
		st.ID = tok.SettlementID
	}

	c.logger.InfoContext(ctx, "ucp settlement submitted",
		"settlement_id", st.ID,
		"status", st.Status,
		"corridor", req.Corridor,
	)

	tr := &Transfer{
		ID:        st.ID,
		Corridor:  req.Corridor,
		Amount:    req.Amount,
		Currency:  NormalizeCurrency(req.Currency),
		CreatedAt: time.Now().UTC(),
	}
	if st.TransferID != "" {
		tr.ID = st.TransferID
	}
	switch TransferStatus(st.Status) {
	case TransferStatusCompleted:
		tr.Status = TransferStatusCompleted
	case TransferStatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrRejected, st.FailureReason)
	default:
		tr.Status = TransferStatusPending
	}
	if tr.ID == "" {
		return nil, fmt.Errorf("ucp: settlement response carries no id")
	}
	return tr, nil
}

// Settlement returns the current status of a settlement.
func (c *UCPClient) Settlement(ctx context.Context, id string) (*Settlement, error) {
	var st Settlement
	if err := c.do(ctx, http.MethodGet, "/v1/ucp/settlements/"+url.PathEscape(id), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *UCPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := sonic.ConfigFastest.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("UCP-Agent", c.agent)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending HTTP request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return &APIError{StatusCode: httpResp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}

	if err := sonic.ConfigFastest.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (q *ucpQuote) toQuote(corridor string) *Quote {
	return &Quote{
		ID:           q.ID,
		Corridor:     corridor,
		FromAmount:   toMinor(q.FromAmount),
		FromCurrency: q.FromCurrency,
		ToAmount:     toMinor(q.ToAmount),
		ToCurrency:   q.ToCurrency,
		FXRate:       q.FXRate,
		Fees:         toMinor(q.Fees),
		ExpiresAt:    q.ExpiresAt,
	}
}

func toMajor(minor int64) float64 {
	return float64(minor) / 100
}

func toMinor(major float64) int64 {
	return int64(math.Round(major * 100))
}
