// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/go-a2a/paytask/internal/jsonrpc2"
)

// Transport handles JSON-RPC communication with one agent address.
type Transport struct {
	url        string
	httpClient *http.Client
	headers    http.Header
	invoke     Invoker
	nextID     atomic.Int64
}

// NewTransport creates a new Transport posting to url. Interceptors wrap
// every round trip, the first one outermost.
func NewTransport(url string, httpClient *http.Client, interceptors ...Interceptor) *Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	t := &Transport{
		url:        url,
		httpClient: httpClient,
		headers:    make(http.Header),
	}
	t.invoke = chainInterceptors(interceptors, func(_ context.Context, req *http.Request) (*http.Response, error) {
		return t.httpClient.Do(req)
	})
	return t
}

// SetHeaders sets the headers to include in requests.
func (t *Transport) SetHeaders(headers http.Header) {
	t.headers = headers.Clone()
}

// Call sends a JSON-RPC request and decodes its result into result.
// A JSON-RPC error answer is returned as [*RPCError].
func (t *Transport) Call(ctx context.Context, method string, params, result any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}
	req := jsonrpc2.Request{
		JSONRPC: jsonrpc2.Version,
		ID:      jsontext.Value(strconv.FormatInt(t.nextID.Add(1), 10)),
		Method:  method,
		Params:  rawParams,
	}
	data, err := jsonrpc2.Encode(&req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range t.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	httpResp, err := t.invoke(ctx, httpReq)
	if err != nil {
		return fmt.Errorf("sending HTTP request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return &HTTPError{StatusCode: httpResp.StatusCode, Body: string(bodyBytes)}
	}

	var resp jsonrpc2.Response
	if err := json.UnmarshalRead(httpResp.Body, &resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	return nil
}
