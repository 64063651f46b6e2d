// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-a2a/paytask"
)

// InMemoryTaskStore is an in-memory implementation of TaskStore.
// Task data is lost when the server process stops.
// All operations are thread-safe using sync.RWMutex; readers get deep copies.
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[taskKey]*paytask.Task
	seq   int64
	now   func() time.Time
}

type taskKey struct {
	tenantID string
	taskID   string
}

var _ TaskStore = (*InMemoryTaskStore)(nil)

// NewInMemoryTaskStore creates a new InMemoryTaskStore.
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks: make(map[taskKey]*paytask.Task),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new task with its initial history.
func (s *InMemoryTaskStore) Create(ctx context.Context, task *paytask.Task) (*paytask.Task, error) {
	if task == nil {
		return nil, fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return nil, NewTaskValidationError(task.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey{task.TenantID, task.ID}
	if _, exists := s.tasks[key]; exists {
		return nil, NewTaskStoreError("create", task.ID, fmt.Errorf("task already exists"))
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
	s.seq++
	stored.Seq = s.seq
	stored.Version = 1
	stored.History = history
	stored.Artifacts = artifacts
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = stored.CreatedAt

	s.tasks[key] = stored
	return stored.Clone(), nil
}

// Get retrieves a task with its history and artifacts.
func (s *InMemoryTaskStore) Get(ctx context.Context, tenantID, taskID string) (*paytask.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[taskKey{tenantID, taskID}]
	if !exists {
		return nil, paytask.NewTaskNotFoundError(taskID)
	}
	return task.Clone(), nil
}

// Update applies m when the stored version equals expectedVersion.
func (s *InMemoryTaskStore) Update(ctx context.Context, tenantID, taskID string, expectedVersion int64, m Mutation) (*paytask.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey{tenantID, taskID}
	current, exists := s.tasks[key]
	if !exists {
		return nil, paytask.NewTaskNotFoundError(taskID)
	}
	if current.Version != expectedVersion {
		return nil, NewVersionConflictError(taskID, expectedVersion, current.Version)
	}

	now := s.now()
	next := current.Clone()
	if err := applyMutation(next, m, now); err != nil {
		return nil, err
	}
	msgs, err := prepareMessages(taskID, len(next.History), m.AppendMessages, now)
	if err != nil {
		return nil, err
	}
	arts, err := prepareArtifacts(taskID, m.AppendArtifacts, now)
	if err != nil {
		return nil, err
	}
	next.History = append(next.History, msgs...)
	next.Artifacts = append(next.Artifacts, arts...)

	// Swap the whole record so concurrent readers see either version.
	s.tasks[key] = next
	return next.Clone(), nil
}

// List returns matching tasks ordered by creation sequence.
func (s *InMemoryTaskStore) List(ctx context.Context, q Query) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*paytask.Task
	for _, task := range s.tasks {
		if q.matches(task) {
			matched = append(matched, task)
		}
	}
	slices.SortFunc(matched, func(a, b *paytask.Task) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	page := &Page{Total: int64(len(matched))}
	for _, task := range matched {
		if task.Seq <= q.AfterSeq {
			page.Skipped++
			continue
		}
		if q.Limit > 0 && len(page.Tasks) == q.Limit {
			page.HasMore = true
			break
		}
		row := task.Clone()
		row.History = nil
		row.Artifacts = nil
		page.Tasks = append(page.Tasks, row)
	}
	return page, nil
}

// Stats counts the tasks of an agent per state.
func (s *InMemoryTaskStore) Stats(ctx context.Context, tenantID, agentID string) (map[paytask.TaskState]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[paytask.TaskState]int64)
	for _, task := range s.tasks {
		if task.TenantID != tenantID || (agentID != "" && task.AgentID != agentID) {
			continue
		}
		stats[task.State]++
	}
	return stats, nil
}

// Delete removes a task with its messages and artifacts.
func (s *InMemoryTaskStore) Delete(ctx context.Context, tenantID, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey{tenantID, taskID}
	if _, exists := s.tasks[key]; !exists {
		return paytask.NewTaskNotFoundError(taskID)
	}
	delete(s.tasks, key)
	return nil
}

// Initialize prepares the in-memory storage for use.
func (s *InMemoryTaskStore) Initialize(ctx context.Context) error {
	return nil
}

// Close cleanly shuts down the in-memory storage.
func (s *InMemoryTaskStore) Close(ctx context.Context) error {
	s.Clear()
	return nil
}

// Clear removes all tasks from the in-memory storage.
// This is useful for testing purposes.
func (s *InMemoryTaskStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[taskKey]*paytask.Task)
}

// Size returns the current number of tasks in the in-memory storage.
func (s *InMemoryTaskStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tasks)
}
