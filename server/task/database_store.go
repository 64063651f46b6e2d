// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/go-a2a/paytask"
)

// DatabaseTaskStore is a database implementation of TaskStore using GORM.
//
// Tasks, messages and artifacts live in separate tables. Update runs the
// version-guarded row update and the appends in one transaction.
type DatabaseTaskStore struct {
	db          *gorm.DB
	createTable bool
	now         func() time.Time
}

var _ TaskStore = (*DatabaseTaskStore)(nil)

// DatabaseTaskStoreConfig holds configuration for DatabaseTaskStore.
type DatabaseTaskStoreConfig struct {
	DB          *gorm.DB
	CreateTable bool // Whether Initialize migrates the schema
}

// NewDatabaseTaskStore creates a new DatabaseTaskStore.
func NewDatabaseTaskStore(config DatabaseTaskStoreConfig) (*DatabaseTaskStore, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}

	return &DatabaseTaskStore{
		db:          config.DB,
		createTable: config.CreateTable,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create stores a new task with its initial history.
func (s *DatabaseTaskStore) Create(ctx context.Context, task *paytask.Task) (*paytask.Task, error) {
	if task == nil {
		return nil, fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return nil, NewTaskValidationError(task.ID, err)
	}

	now := s.now()
	stored := task.Clone()
	history, err := prepareMessages(task.ID, 0, stored.History, now)
	if err != nil {
		return nil, err
	}
	artifacts, err := prepareArtifacts(task.ID, stored.Artifacts, now)
	if err != nil {
		return nil, err
	}
	stored.History = history
	stored.Artifacts = artifacts
	stored.Version = 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = stored.CreatedAt

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&TaskModel{}).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
			return err
		}
		stored.Seq = maxSeq + 1

		if err := tx.Create(NewTaskModelFromTask(stored)).Error; err != nil {
			return err
		}
		return s.insertChildren(tx, stored.TenantID, 0, history, artifacts)
	})
	if err != nil {
		return nil, NewTaskStoreError("create", task.ID, err)
	}
	return stored, nil
}

func (s *DatabaseTaskStore) insertChildren(tx *gorm.DB, tenantID string, artifactBase int64, msgs []paytask.Message, arts []paytask.Artifact) error {
	if len(msgs) > 0 {
		rows := make([]*MessageModel, len(msgs))
		for i, m := range msgs {
			rows[i] = NewMessageModel(tenantID, m)
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	if len(arts) > 0 {
		rows := make([]*ArtifactModel, len(arts))
		for i, a := range arts {
			rows[i] = NewArtifactModel(tenantID, artifactBase+int64(i)+1, a)
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a task with its history and artifacts.
func (s *DatabaseTaskStore) Get(ctx context.Context, tenantID, taskID string) (*paytask.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}

	var task *paytask.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = s.load(tx, tenantID, taskID)
		return err
	})
	if err != nil {
		return nil, s.wrap("get", taskID, err)
	}
	return task, nil
}

// load reads the task row and its children inside tx.
func (s *DatabaseTaskStore) load(tx *gorm.DB, tenantID, taskID string) (*paytask.Task, error) {
	var model TaskModel
	if err := tx.Where("tenant_id = ? AND id = ?", tenantID, taskID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, paytask.NewTaskNotFoundError(taskID)
		}
		return nil, err
	}
	task := model.ToTask()

	var msgs []MessageModel
	if err := tx.Where("tenant_id = ? AND task_id = ?", tenantID, taskID).Order("seq").Find(&msgs).Error; err != nil {
		return nil, err
	}
	task.History = make([]paytask.Message, len(msgs))
	for i := range msgs {
		task.History[i] = msgs[i].ToMessage()
	}

	var arts []ArtifactModel
	if err := tx.Where("tenant_id = ? AND task_id = ?", tenantID, taskID).Order("seq").Find(&arts).Error; err != nil {
		return nil, err
	}
	if len(arts) > 0 {
		task.Artifacts = make([]paytask.Artifact, len(arts))
		for i := range arts {
			task.Artifacts[i] = arts[i].ToArtifact()
		}
	}
	return task, nil
}

// Update applies m when the stored version equals expectedVersion.
func (s *DatabaseTaskStore) Update(ctx context.Context, tenantID, taskID string, expectedVersion int64, m Mutation) (*paytask.Task, error) {
	var updated *paytask.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.load(tx, tenantID, taskID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return NewVersionConflictError(taskID, expectedVersion, current.Version)
		}

		now := s.now()
		next := current.Clone()
		if err := applyMutation(next, m, now); err != nil {
			return err
		}
		msgs, err := prepareMessages(taskID, len(current.History), m.AppendMessages, now)
		if err != nil {
			return err
		}
		arts, err := prepareArtifacts(taskID, m.AppendArtifacts, now)
		if err != nil {
			return err
		}

		result := tx.Model(&TaskModel{}).
			Where("tenant_id = ? AND id = ? AND version = ?", tenantID, taskID, expectedVersion).
			Updates(NewTaskModelFromTask(next).updates())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewVersionConflictError(taskID, expectedVersion, -1)
		}
		if err := s.insertChildren(tx, tenantID, int64(len(current.Artifacts)), msgs, arts); err != nil {
			return err
		}

		next.History = append(next.History, msgs...)
		next.Artifacts = append(next.Artifacts, arts...)
		updated = next
		return nil
	})
	if err != nil {
		return nil, s.wrap("update", taskID, err)
	}
	return updated, nil
}

// List returns matching tasks ordered by creation sequence.
func (s *DatabaseTaskStore) List(ctx context.Context, q Query) (*Page, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&TaskModel{})
		if q.TenantID != "" {
			db = db.Where("tenant_id = ?", q.TenantID)
		}
		if q.AgentID != "" {
			db = db.Where("agent_id = ?", q.AgentID)
		}
		if q.ContextID != "" {
			db = db.Where("context_id = ?", q.ContextID)
		}
		if len(q.States) > 0 {
			states := make([]string, len(q.States))
			for i, st := range q.States {
				states[i] = string(st)
			}
			db = db.Where("state IN ?", states)
		}
		if !q.UpdatedBefore.IsZero() {
			db = db.Where("updated_at < ?", q.UpdatedBefore)
		}
		return db
	}

	page := &Page{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(filter).Count(&page.Total).Error; err != nil {
			return err
		}
		if q.AfterSeq > 0 {
			if err := tx.Scopes(filter).Where("seq <= ?", q.AfterSeq).Count(&page.Skipped).Error; err != nil {
				return err
			}
		}

		db := tx.Scopes(filter).Where("seq > ?", q.AfterSeq).Order("seq")
		if q.Limit > 0 {
			db = db.Limit(q.Limit + 1)
		}
		var models []TaskModel
		if err := db.Find(&models).Error; err != nil {
			return err
		}
		if q.Limit > 0 && len(models) > q.Limit {
			page.HasMore = true
			models = models[:q.Limit]
		}
		page.Tasks = make([]*paytask.Task, len(models))
		for i := range models {
			page.Tasks[i] = models[i].ToTask()
		}
		return nil
	})
	if err != nil {
		return nil, NewTaskStoreError("list", "", err)
	}
	return page, nil
}

// Stats counts the tasks of an agent per state.
func (s *DatabaseTaskStore) Stats(ctx context.Context, tenantID, agentID string) (map[paytask.TaskState]int64, error) {
	var rows []struct {
		State string
		Count int64
	}
	db := s.db.WithContext(ctx).Model(&TaskModel{}).Where("tenant_id = ?", tenantID)
	if agentID != "" {
		db = db.Where("agent_id = ?", agentID)
	}
	if err := db.Select("state, COUNT(*) AS count").Group("state").Scan(&rows).Error; err != nil {
		return nil, NewTaskStoreError("stats", "", err)
	}

	stats := make(map[paytask.TaskState]int64, len(rows))
	for _, r := range rows {
		stats[paytask.TaskState(r.State)] = r.Count
	}
	return stats, nil
}

// Delete removes a task with its messages and artifacts.
func (s *DatabaseTaskStore) Delete(ctx context.Context, tenantID, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("tenant_id = ? AND id = ?", tenantID, taskID).Delete(&TaskModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return paytask.NewTaskNotFoundError(taskID)
		}
		if err := tx.Where("tenant_id = ? AND task_id = ?", tenantID, taskID).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		return tx.Where("tenant_id = ? AND task_id = ?", tenantID, taskID).Delete(&ArtifactModel{}).Error
	})
	return s.wrap("delete", taskID, err)
}

// Initialize prepares the database for use.
func (s *DatabaseTaskStore) Initialize(ctx context.Context) error {
	if !s.createTable {
		return nil
	}
	if err := s.db.WithContext(ctx).AutoMigrate(&TaskModel{}, &MessageModel{}, &ArtifactModel{}); err != nil {
		return NewTaskStoreError("initialize", "", err)
	}
	return nil
}

// Close closes the underlying database connection pool.
func (s *DatabaseTaskStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return NewTaskStoreError("close", "", err)
	}
	return sqlDB.Close()
}

// wrap keeps engine and compare-and-swap errors intact and wraps backend failures.
func (s *DatabaseTaskStore) wrap(op, taskID string, err error) error {
	if err == nil {
		return nil
	}
	var engineErr *paytask.Error
	if errors.As(err, &engineErr) || errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrTransferAlreadySet) {
		return err
	}
	var verr TaskValidationError
	if errors.As(err, &verr) {
		return err
	}
	return NewTaskStoreError(op, taskID, err)
}
