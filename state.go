// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package paytask

// transitions is the only place that defines which state changes are legal.
// Terminal states have no entry.
var transitions = map[TaskState]map[TaskState]struct{}{
	TaskStateSubmitted: {
		TaskStateWorking:  {},
		TaskStateCanceled: {},
	},
	TaskStateWorking: {
		TaskStateCompleted:     {},
		TaskStateInputRequired: {},
		TaskStateFailed:        {},
		TaskStateCanceled:      {},
	},
	TaskStateInputRequired: {
		TaskStateWorking:  {},
		TaskStateCanceled: {},
	},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to TaskState) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Transition validates a state change for the task identified by taskID and
// returns the state to apply. It never mutates anything.
//
// A move out of a terminal state fails with [ErrTaskTerminal]; any other
// illegal move fails with [ErrInvalidTransition].
func Transition(taskID string, from, to TaskState) (TaskState, error) {
	if !from.Valid() || !to.Valid() {
		return from, NewInvalidTransitionError(taskID, from, to)
	}
	if from.IsTerminal() {
		return from, NewTaskTerminalError(taskID, from)
	}
	if !CanTransition(from, to) {
		return from, NewInvalidTransitionError(taskID, from, to)
	}
	return to, nil
}

// Apply validates the change to state to and, on success, sets it on t.
func (t *Task) Apply(to TaskState) error {
	next, err := Transition(t.ID, t.State, to)
	if err != nil {
		return err
	}
	t.State = next
	return nil
}
