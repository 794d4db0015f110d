/*
Copyright 2026 The rescache Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package memoize wraps a pure function A -> B with an LRU-bounded cache.
// It is built directly on lrustore.Store, the same capacity-eviction
// primitive diskcache uses, with a KeyFunc[A] playing the role
// github.com/fluxcd/pkg/cache's KeyFunc[T] plays for Cache[T]: mapping an
// argument to the string key the underlying store indexes on.
package memoize

import (
	"sync"

	"github.com/brightcache/rescache/lrustore"
)

// KeyFunc derives the cache key for an argument. It must be deterministic:
// equal arguments (by whatever equality the caller cares about) must yield
// equal keys.
type KeyFunc[A any] func(arg A) string

// entry wraps a memoized result with the size it counts against capacity.
type entry[B any] struct {
	value B
	size  uint64
}

func (e entry[B]) Size() uint64 { return e.size }

// sizeFunc computes the capacity cost of a memoized result, given the
// argument that produced it and the result itself. The three supported
// variants (size-from-result, size-from-key, unit size) are all expressible
// as a sizeFunc that looks at only one of its two arguments.
type sizeFunc[A any, B any] func(arg A, result B) uint64

// Option configures a Func at construction time.
type Option[A any, B any] func(*config[A, B])

type config[A any, B any] struct {
	size sizeFunc[A, B]
}

// WithSizeFromResult sizes each entry by inspecting the memoized result.
func WithSizeFromResult[A any, B any](f func(result B) uint64) Option[A, B] {
	return func(c *config[A, B]) {
		c.size = func(_ A, result B) uint64 { return f(result) }
	}
}

// WithSizeFromKey sizes each entry by inspecting the argument that produced
// it, ignoring the result. Useful when B is expensive to measure but A
// (e.g. a byte-length key) already implies the cost.
func WithSizeFromKey[A any, B any](f func(arg A) uint64) Option[A, B] {
	return func(c *config[A, B]) {
		c.size = func(arg A, _ B) uint64 { return f(arg) }
	}
}

// WithUnitSize counts every entry as one unit of capacity, turning
// capacity into a plain item-count limit. This is the default.
func WithUnitSize[A any, B any]() Option[A, B] {
	return func(c *config[A, B]) {
		c.size = func(A, B) uint64 { return 1 }
	}
}

// Func memoizes a pure function of A, bounding total entry size to a fixed
// capacity via LRU eviction. The lock protecting the cache is held only
// across the lookup-then-insert critical section, never across a call to
// the wrapped function, so two concurrent misses on the same key may both
// invoke fn; the second call's result simply overwrites the first's cache
// entry.
type Func[A any, B any] struct {
	fn      func(arg A) B
	keyFunc KeyFunc[A]
	size    sizeFunc[A, B]

	mu    sync.Mutex
	store *lrustore.Store[entry[B]]
}

// New returns a Func wrapping fn with a cache bounded to capacity (in the
// unit implied by the chosen size option; item count for WithUnitSize).
func New[A any, B any](fn func(arg A) B, capacity uint64, keyFunc KeyFunc[A], opts ...Option[A, B]) *Func[A, B] {
	c := config[A, B]{size: func(A, B) uint64 { return 1 }}
	for _, opt := range opts {
		opt(&c)
	}
	return &Func[A, B]{
		fn:      fn,
		keyFunc: keyFunc,
		size:    c.size,
		store:   lrustore.New[entry[B]](capacity),
	}
}

// Call returns fn(arg), from cache if present, otherwise by invoking fn and
// caching the result before returning it.
func (m *Func[A, B]) Call(arg A) B {
	key := m.keyFunc(arg)

	m.mu.Lock()
	if e, ok := m.store.Value(key); ok {
		m.mu.Unlock()
		return e.value
	}
	m.mu.Unlock()

	result := m.fn(arg)

	m.mu.Lock()
	m.store.Add(key, entry[B]{value: result, size: m.size(arg, result)})
	m.mu.Unlock()

	return result
}

// Len returns the number of memoized entries currently held.
func (m *Func[A, B]) Len() int {
	return m.store.Len()
}

// TotalSize returns the sum of entry sizes currently counted against
// capacity.
func (m *Func[A, B]) TotalSize() uint64 {
	return m.store.TotalSize()
}
