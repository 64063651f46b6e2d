// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/bytedance/sonic"
	"github.com/go-json-experiment/json"

	"github.com/go-a2a/paytask"
	"github.com/go-a2a/paytask/auth"
	"github.com/go-a2a/paytask/internal/jsonrpc2"
	"github.com/go-a2a/paytask/server/handler"
)

// errorWriter answers a request that failed before reaching its handler.
type errorWriter func(w http.ResponseWriter, r *http.Request, err error)

// authenticate resolves the caller of every request and stores it in the
// request context. Requests without a valid identity are answered by onErr.
func (s *Server) authenticate(next http.HandlerFunc, onErr errorWriter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.resolver.Resolve(r)
		if err == nil && !caller.IsAuthenticated() {
			err = errors.New("caller has no tenant")
		}
		if err != nil {
			onErr(w, r, unauthenticated(err))
			return
		}
		next(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
	})
}

// recoverer turns a panicking handler into a 500 answer.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.ErrorContext(r.Context(), "handler panic", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func unauthenticated(err error) error {
	if paytask.KindOf(err) == paytask.KindUnauthenticated {
		return err
	}
	return paytask.NewUnauthenticatedError(err.Error())
}

// writeRPCAuthError answers an agent address with a JSON-RPC error envelope.
func (s *Server) writeRPCAuthError(w http.ResponseWriter, r *http.Request, err error) {
	out, encErr := jsonrpc2.Encode(jsonrpc2.NewResponse(nil, nil, handler.ToRPCError(unauthenticated(err))))
	if encErr != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write(out)
}

// errorBody is the REST error representation.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	TaskID  string `json:"taskId,omitempty"`
	Field   string `json:"field,omitempty"`
}

// writeError answers an admin request with the status of err.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := handler.HTTPStatus(err)
	body := errorBody{Kind: "Internal", Message: "internal error"}

	var e *paytask.Error
	switch {
	case errors.As(err, &e):
		body = errorBody{Kind: string(e.Kind), Message: e.Message, TaskID: e.TaskID, Field: e.Field}
	case status == http.StatusBadRequest:
		body = errorBody{Kind: string(paytask.KindValidation), Message: err.Error()}
	}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "admin request failed",
			"method", r.Method, "path", r.URL.Path, "user", auth.UserFrom(r.Context()).UserName(), "error", err)
	}
	s.writeJSON(w, r, status, map[string]errorBody{"error": body})
}

// writeJSON encodes v with the same codec as the agent address, so that
// omitzero fields and custom part encodings match on both surfaces.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, v); err != nil {
		s.logger.DebugContext(r.Context(), "write response", "error", err)
	}
}

// decodeBody decodes the JSON request body into v.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := sonic.ConfigDefault.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return paytask.NewValidationError("body", "%v", fmt.Errorf("decode request body: %w", err))
	}
	return nil
}
