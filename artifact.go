// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package paytask

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Artifact is a durable output of a task, such as a transfer receipt.
type Artifact struct {
	ID        string         `json:"artifactId"`
	TaskID    string         `json:"taskId,omitzero"`
	Label     string         `json:"label"`
	MIMEType  string         `json:"mimeType"`
	Parts     Parts          `json:"parts"`
	Metadata  map[string]any `json:"metadata,omitzero"`
	CreatedAt time.Time      `json:"createdAt,omitzero"`
}

// Validate ensures the Artifact is well formed.
func (a *Artifact) Validate() error {
	if a == nil {
		return fmt.Errorf("artifact cannot be nil")
	}
	if a.Label == "" {
		return fmt.Errorf("artifact label cannot be empty")
	}
	if err := a.Parts.Validate(); err != nil {
		return fmt.Errorf("artifact parts: %w", err)
	}
	return nil
}

// Clone returns a deep copy of a.
func (a Artifact) Clone() Artifact {
	a.Parts = a.Parts.Clone()
	a.Metadata = cloneMap(a.Metadata)
	return a
}

// NewDataArtifact creates a JSON artifact holding one data part.
func NewDataArtifact(label, typ string, data map[string]any) Artifact {
	return Artifact{
		ID:        uuid.NewString(),
		Label:     label,
		MIMEType:  "application/json",
		Parts:     Parts{DataPart{Type: typ, Data: data}},
		CreatedAt: time.Now().UTC(),
	}
}
