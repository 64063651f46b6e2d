// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package pool provides generic type pooling, and provides [*bytes.Buffer] pooling objects.
package pool

import (
	"bytes"
	"sync"
)

// Pool is a generics wrapper around [sync.Pool] to provide strongly-typed object pooling.
type Pool[T any] struct {
	p sync.Pool
}

// Reseter is implemented by pooled values that must be cleared before reuse.
type Reseter interface {
	Reset()
}

// New returns a new [Pool] for T, and will use fn to construct new T's when the pool is empty.
func New[T any](fn func() T) *Pool[T] {
	return &Pool[T]{
		p: sync.Pool{
			New: func() any {
				return fn()
			},
		},
	}
}

// Get gets a T from the pool, or creates a new one if the pool is empty.
func (p *Pool[T]) Get() T {
	return p.p.Get().(T)
}

// Put returns x into the pool.
func (p *Pool[T]) Put(x T) {
	if xx, ok := any(x).(Reseter); ok {
		xx.Reset()
	}
	p.p.Put(x)
}

// maxPooledBuffer keeps oversized buffers from pinning memory.
const maxPooledBuffer = 1 << 20

// Bytes provides the [*bytes.Buffer] pooling objects used by the codecs.
var Bytes = &bufferPool{p: New(func() *bytes.Buffer {
	return &bytes.Buffer{}
})}

type bufferPool struct {
	p *Pool[*bytes.Buffer]
}

// Get returns an empty buffer.
func (b *bufferPool) Get() *bytes.Buffer {
	return b.p.Get()
}

// Put returns buf to the pool unless it grew beyond the pooling limit.
func (b *bufferPool) Put(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	b.p.Put(buf)
}
