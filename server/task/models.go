// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/paytask"
)

// PartsJSON provides JSON serialization for [paytask.Parts] in database columns.
type PartsJSON struct {
	paytask.Parts
}

// Value implements the driver.Valuer interface for database storage.
func (p PartsJSON) Value() (driver.Value, error) {
	if p.Parts == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p.Parts)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database retrieval.
func (p *PartsJSON) Scan(value any) error {
	b, err := scanBytes(value, "PartsJSON")
	if err != nil || b == nil {
		*p = PartsJSON{}
		return err
	}

	var parts paytask.Parts
	if err := json.Unmarshal(b, &parts); err != nil {
		return fmt.Errorf("cannot unmarshal PartsJSON: %w", err)
	}
	p.Parts = parts
	return nil
}

// MetadataJSON provides JSON serialization for metadata maps in database columns.
type MetadataJSON map[string]any

// Value implements the driver.Valuer interface for database storage.
func (m MetadataJSON) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database retrieval.
func (m *MetadataJSON) Scan(value any) error {
	b, err := scanBytes(value, "MetadataJSON")
	if err != nil || b == nil {
		*m = nil
		return err
	}

	var meta map[string]any
	if err := json.Unmarshal(b, &meta); err != nil {
		return fmt.Errorf("cannot unmarshal MetadataJSON: %w", err)
	}
	*m = meta
	return nil
}

func scanBytes(value any, typ string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot scan %T into %s", value, typ)
	}
}

// TaskModel is the task row.
type TaskModel struct {
	TenantID       string `gorm:"primaryKey;size:64"`
	ID             string `gorm:"primaryKey;size:64"`
	Seq            int64  `gorm:"not null;uniqueIndex"`
	AgentID        string `gorm:"size:128;not null;index:idx_tasks_agent_state,priority:1"`
	ContextID      string `gorm:"size:128;index"`
	State          string `gorm:"size:32;not null;index:idx_tasks_agent_state,priority:2"`
	StatusMessage  string
	Direction      string `gorm:"size:16;not null"`
	RemoteAgentURL string
	TransferID     string `gorm:"size:128"`
	PendingReply   bool   `gorm:"not null;default:false"`
	Version        int64  `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the table name for the TaskModel.
func (TaskModel) TableName() string {
	return "tasks"
}

// MessageModel is one history entry of a task.
type MessageModel struct {
	TenantID  string       `gorm:"primaryKey;size:64"`
	TaskID    string       `gorm:"primaryKey;size:64"`
	Seq       int64        `gorm:"primaryKey"`
	ID        string       `gorm:"size:64;not null"`
	Role      string       `gorm:"size:16;not null"`
	Parts     PartsJSON    `gorm:"type:text;not null"`
	Metadata  MetadataJSON `gorm:"type:text"`
	CreatedAt time.Time
}

// TableName returns the table name for the MessageModel.
func (MessageModel) TableName() string {
	return "task_messages"
}

// ArtifactModel is one artifact of a task.
type ArtifactModel struct {
	TenantID  string       `gorm:"primaryKey;size:64"`
	TaskID    string       `gorm:"primaryKey;size:64"`
	ID        string       `gorm:"primaryKey;size:64"`
	Seq       int64        `gorm:"not null"`
	Label     string       `gorm:"size:128;not null"`
	MIMEType  string       `gorm:"size:128"`
	Parts     PartsJSON    `gorm:"type:text;not null"`
	Metadata  MetadataJSON `gorm:"type:text"`
	CreatedAt time.Time
}

// TableName returns the table name for the ArtifactModel.
func (ArtifactModel) TableName() string {
	return "task_artifacts"
}

// NewTaskModelFromTask converts the row fields of a task.
func NewTaskModelFromTask(t *paytask.Task) *TaskModel {
	return &TaskModel{
		TenantID:       t.TenantID,
		ID:             t.ID,
		Seq:            t.Seq,
		AgentID:        t.AgentID,
		ContextID:      t.ContextID,
		State:          string(t.State),
		StatusMessage:  t.StatusMessage,
		Direction:      string(t.Direction),
		RemoteAgentURL: t.RemoteAgentURL,
		TransferID:     t.TransferID,
		PendingReply:   t.PendingReply,
		Version:        t.Version,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// ToTask converts the row back to a task without history or artifacts.
func (m *TaskModel) ToTask() *paytask.Task {
	return &paytask.Task{
		TenantID:       m.TenantID,
		ID:             m.ID,
		Seq:            m.Seq,
		AgentID:        m.AgentID,
		ContextID:      m.ContextID,
		State:          paytask.TaskState(m.State),
		StatusMessage:  m.StatusMessage,
		Direction:      paytask.Direction(m.Direction),
		RemoteAgentURL: m.RemoteAgentURL,
		TransferID:     m.TransferID,
		PendingReply:   m.PendingReply,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

// updates returns the mutable columns of the row.
func (m *TaskModel) updates() map[string]any {
	return map[string]any{
		"state":          m.State,
		"status_message": m.StatusMessage,
		"transfer_id":    m.TransferID,
		"pending_reply":  m.PendingReply,
		"version":        m.Version,
		"updated_at":     m.UpdatedAt,
	}
}

// NewMessageModel converts a stored message of a tenant's task.
func NewMessageModel(tenantID string, msg paytask.Message) *MessageModel {
	return &MessageModel{
		TenantID:  tenantID,
		TaskID:    msg.TaskID,
		Seq:       msg.Seq,
		ID:        msg.ID,
		Role:      string(msg.Role),
		Parts:     PartsJSON{msg.Parts},
		Metadata:  MetadataJSON(msg.Metadata),
		CreatedAt: msg.CreatedAt,
	}
}

// ToMessage converts the row back to a message.
func (m *MessageModel) ToMessage() paytask.Message {
	return paytask.Message{
		ID:        m.ID,
		TaskID:    m.TaskID,
		Seq:       m.Seq,
		Role:      paytask.Role(m.Role),
		Parts:     m.Parts.Parts,
		Metadata:  map[string]any(m.Metadata),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

// NewArtifactModel converts a stored artifact of a tenant's task. seq orders
// the artifacts of the task.
func NewArtifactModel(tenantID string, seq int64, a paytask.Artifact) *ArtifactModel {
	return &ArtifactModel{
		TenantID:  tenantID,
		TaskID:    a.TaskID,
		ID:        a.ID,
		Seq:       seq,
		Label:     a.Label,
		MIMEType:  a.MIMEType,
		Parts:     PartsJSON{a.Parts},
		Metadata:  MetadataJSON(a.Metadata),
		CreatedAt: a.CreatedAt,
	}
}

// ToArtifact converts the row back to an artifact.
func (m *ArtifactModel) ToArtifact() paytask.Artifact {
	return paytask.Artifact{
		ID:        m.ID,
		TaskID:    m.TaskID,
		Label:     m.Label,
		MIMEType:  m.MIMEType,
		Parts:     m.Parts.Parts,
		Metadata:  map[string]any(m.Metadata),
		CreatedAt: m.CreatedAt.UTC(),
	}
}
