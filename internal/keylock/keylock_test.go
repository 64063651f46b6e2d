// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package keylock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTryLock(t *testing.T) {
	l := New()

	unlock, ok := l.TryLock("a")
	if !ok {
		t.Fatal("first TryLock should succeed")
	}
	if _, ok := l.TryLock("a"); ok {
		t.Fatal("second TryLock on a held key should fail")
	}
	if u, ok := l.TryLock("b"); !ok {
		t.Fatal("TryLock on another key should succeed")
	} else {
		u()
	}
	if !l.Held("a") {
		t.Error("Held(a) = false, want true")
	}

	unlock()
	unlock() // second call is a no-op

	if l.Held("a") {
		t.Error("Held(a) = true after unlock")
	}
	if _, ok := l.TryLock("a"); !ok {
		t.Fatal("TryLock after unlock should succeed")
	}
}

func TestLockWaits(t *testing.T) {
	l := New()
	unlock, _ := l.TryLock("k")

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(context.Background(), "k")
		if err != nil {
			t.Errorf("Lock() error = %v", err)
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("Lock returned while the key was held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Lock did not return after unlock")
	}
}

func TestLockContextDone(t *testing.T) {
	l := New()
	unlock, _ := l.TryLock("k")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Lock() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestMutualExclusion(t *testing.T) {
	l := New()
	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "shared")
			if err != nil {
				t.Error(err)
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if got := maxSeen.Load(); got != 1 {
		t.Fatalf("max goroutines inside the lock = %d, want 1", got)
	}
	if len(l.locks) != 0 {
		t.Fatalf("locks map has %d entries after all unlocks, want 0", len(l.locks))
	}
}
