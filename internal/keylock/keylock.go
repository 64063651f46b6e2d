// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package keylock provides a mutex keyed by string.
package keylock

import (
	"context"
	"sync"
)

// Locker hands out one exclusive lock per key. Entries are dropped once no
// goroutine holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

func (l *Locker) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *Locker) unlocker(key string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}
}

// TryLock acquires the lock for key without waiting. ok is false when the
// lock is held by someone else.
func (l *Locker) TryLock(key string) (unlock func(), ok bool) {
	e := l.acquire(key)
	select {
	case e.ch <- struct{}{}:
		return l.unlocker(key, e), true
	default:
		l.release(key, e)
		return nil, false
	}
}

// Lock waits for the lock of key until ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (unlock func(), err error) {
	e := l.acquire(key)
	select {
	case e.ch <- struct{}{}:
		return l.unlocker(key, e), nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

// Held reports whether the lock of key is currently held.
func (l *Locker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	return ok && len(e.ch) > 0
}
