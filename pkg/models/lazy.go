// Package models holds the process-wide captioning and speech handles.
//
// Each handle is built on first use and reused by every request afterwards.
// There is no eviction or reload: a handle lives until the process exits.
package models

import (
	"sync"
	"sync/atomic"
)

// Lazy is a value constructed at most once, on the first Get.
// The constructor's error is sticky: later calls return the same error
// without retrying.
type Lazy[T any] struct {
	once   sync.Once
	build  func() (T, error)
	value  T
	err    error
	loaded atomic.Bool
}

// NewLazy returns a handle that runs build on first use.
func NewLazy[T any](build func() (T, error)) *Lazy[T] {
	return &Lazy[T]{build: build}
}

// Ready returns a handle that already holds v.
func Ready[T any](v T) *Lazy[T] {
	return NewLazy(func() (T, error) { return v, nil })
}

// Get returns the value, building it if needed. Safe for concurrent use.
func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		l.value, l.err = l.build()
		l.loaded.Store(true)
	})
	return l.value, l.err
}

// Loaded reports whether the constructor has run. It never triggers construction.
func (l *Lazy[T]) Loaded() bool {
	return l.loaded.Load()
}
