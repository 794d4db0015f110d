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

// Package lrustore bounds the total size of an orderedmap.Map to a
// maxCapacity, evicting least-recently-used entries as needed. It is the
// same capacity-enforcement idea as github.com/fluxcd/pkg/cache's LRU[T],
// rewritten against orderedmap.Map instead of container/list, and against
// an explicit string key plus a Sized value instead of a KeyFunc[T].
package lrustore

import (
	"sync"

	"github.com/brightcache/rescache/orderedmap"
)

// Sized is implemented by values stored in a Store; Size is expressed in
// the same unit as the Store's maxCapacity (conventionally bytes).
type Sized interface {
	Size() uint64
}

// Store bounds Σ value.Size() <= maxCapacity using true LRU eviction. A zero
// Store is not usable; construct with New.
type Store[V Sized] struct {
	mu          sync.Mutex
	items       *orderedmap.Map[string, V]
	maxCapacity uint64
	total       uint64
}

// New returns a Store with the given maxCapacity. A maxCapacity of 0 means
// every Add immediately evicts everything except the entry just inserted
// (which is retained alone, oversized, per the single-entry override).
func New[V Sized](maxCapacity uint64) *Store[V] {
	return &Store[V]{
		items:       orderedmap.New[string, V](),
		maxCapacity: maxCapacity,
	}
}

// Add inserts or updates key with value, then evicts least-recently-used
// entries (never the key just inserted) while Σ sizes exceeds maxCapacity
// and the store holds at least two entries. A single entry that itself
// exceeds maxCapacity is retained alone. Returns evicted keys in eviction
// order (LRU-first); nil if nothing was evicted.
func (s *Store[V]) Add(key string, value V) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, replaced := s.items.Insert(key, value); replaced {
		s.total -= old.Size()
	}
	s.total += value.Size()

	var evicted []string
	for s.total > s.maxCapacity && s.items.Len() >= 2 {
		k, v, ok := s.items.PopLRU()
		if !ok {
			break
		}
		s.total -= v.Size()
		evicted = append(evicted, k)
	}
	return evicted
}

// Value looks up key. On a hit, the entry is touched to the MRU end (a read
// counts as an access for LRU purposes). On a miss, (zero, false) is
// returned and nothing is touched.
func (s *Store[V]) Value(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	s.items.Touch(key)
	return v, true
}

// Peek looks up key without touching LRU order. Used by callers (such as
// diskcache's ResourceURL) that must not count an access as a use, per the
// spec's open question on resource_url order-sensitivity.
func (s *Store[V]) Peek(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Get(key)
}

// Remove unconditionally removes key, returning its value if present.
func (s *Store[V]) Remove(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Remove(key)
	if ok {
		s.total -= v.Size()
	}
	return v, ok
}

// Len returns the number of entries currently stored.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Len()
}

// TotalSize returns Σ value.Size() across all stored entries.
func (s *Store[V]) TotalSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Snapshot returns all (key, value) pairs ordered from LRU to MRU, without
// touching any of them. Used by diskcache to serialise the index.
func (s *Store[V]) Snapshot() []Entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	pairs := s.items.All()
	out := make([]Entry[V], len(pairs))
	for i, p := range pairs {
		out[i] = Entry[V]{Key: p.Key, Value: p.Value}
	}
	return out
}

// Entry is one (key, value) pair, as returned by Snapshot.
type Entry[V Sized] struct {
	Key   string
	Value V
}
