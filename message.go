// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package paytask

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is one append-only history entry of a Task.
//
// Seq is assigned by the store when the message is appended and defines the
// history order; it is never rewritten.
type Message struct {
	ID        string         `json:"messageId"`
	TaskID    string         `json:"taskId,omitzero"`
	Seq       int64          `json:"seq,omitzero"`
	Role      Role           `json:"role"`
	Parts     Parts          `json:"parts"`
	Metadata  map[string]any `json:"metadata,omitzero"`
	CreatedAt time.Time      `json:"createdAt,omitzero"`
}

// Validate ensures the Message is well formed.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	switch m.Role {
	case RoleUser, RoleAgent:
	default:
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	if err := m.Parts.Validate(); err != nil {
		return fmt.Errorf("message parts: %w", err)
	}
	return nil
}

// Text returns the concatenated text parts of the message.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	return m.Parts.Text()
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	m.Parts = m.Parts.Clone()
	m.Metadata = cloneMap(m.Metadata)
	return m
}

// NewMessage creates a message with a fresh ID and creation time.
func NewMessage(role Role, parts ...Part) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Parts:     Parts(parts),
		CreatedAt: time.Now().UTC(),
	}
}

// NewUserTextMessage creates a user message holding a single text part.
func NewUserTextMessage(text string) Message {
	return NewMessage(RoleUser, TextPart{Text: text})
}

// NewAgentTextMessage creates an agent message holding a single text part.
func NewAgentTextMessage(text string) Message {
	return NewMessage(RoleAgent, TextPart{Text: text})
}

// NewAgentDataMessage creates an agent message with an explanatory text part
// followed by a data part.
func NewAgentDataMessage(text, typ string, data map[string]any) Message {
	parts := make([]Part, 0, 2)
	if text != "" {
		parts = append(parts, TextPart{Text: text})
	}
	parts = append(parts, DataPart{Type: typ, Data: data})
	return NewMessage(RoleAgent, parts...)
}
