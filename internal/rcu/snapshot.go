package rcu

import (
	"sync/atomic"
)

// Snapshot is a lock-free container for read-mostly shared state. Readers
// load the current snapshot without locking; writers publish a freshly
// allocated replacement with an atomic pointer swap. Readers always observe
// a consistent snapshot.
type Snapshot[T any] struct {
	ptr atomic.Pointer[T]
}

// NewSnapshot creates a snapshot container holding init.
func NewSnapshot[T any](init *T) *Snapshot[T] {
	s := &Snapshot[T]{}
	s.ptr.Store(init)
	return s
}

// Load returns the current snapshot. The pointee must be treated as
// immutable by readers.
func (s *Snapshot[T]) Load() *T {
	return s.ptr.Load()
}

// Replace publishes next as the current snapshot. The caller must hand over
// a newly allocated value and not modify it afterwards.
func (s *Snapshot[T]) Replace(next *T) {
	s.ptr.Store(next)
}
