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

// Package orderedmap provides a generic insertion/touch-ordered map backed by
// a doubly linked list of nodes plus a hash index, the way
// github.com/fluxcd/pkg/cache implements its LRU node chain. Unlike that
// cache, which derives string keys from stored objects via a KeyFunc, Map
// takes explicit comparable keys of any type.
package orderedmap

import "fmt"

// node is an element of the doubly linked list. head and tail are permanent
// sentinel nodes that are never indexed; "LRU end" is head.next, "MRU end" is
// tail.prev.
type node[K comparable, V any] struct {
	key   K
	value V
	prev  *node[K, V]
	next  *node[K, V]
}

// Map is a mapping from K to V that also exposes traversal in
// insertion/touch order. Keys are unique; inserting an existing key updates
// the value and moves the key to the most-recently-used end. Map holds no
// lock and is not safe for concurrent use; its caller (lrustore.Store)
// serialises access.
type Map[K comparable, V any] struct {
	index map[K]*node[K, V]
	head  *node[K, V]
	tail  *node[K, V]
}

// New returns an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	m := &Map[K, V]{index: make(map[K]*node[K, V])}
	m.head = &node[K, V]{}
	m.tail = &node[K, V]{}
	m.head.next = m.tail
	m.tail.prev = m.head
	return m
}

// NewFromSlice builds a Map from a preordered sequence of (k,v) pairs: the
// first item becomes the LRU (oldest) end, the last becomes the MRU end.
func NewFromSlice[K comparable, V any](pairs []Pair[K, V]) *Map[K, V] {
	m := New[K, V]()
	for _, p := range pairs {
		m.Insert(p.Key, p.Value)
	}
	return m
}

// Pair is one (key, value) entry, used by NewFromSlice and All.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

func (m *Map[K, V]) link(n *node[K, V]) {
	prev := m.tail.prev
	prev.next = n
	n.prev = prev
	n.next = m.tail
	m.tail.prev = n
}

func (m *Map[K, V]) unlink(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

// Insert adds or updates k. If k was already present, its value is replaced,
// the key is moved to the MRU end, and the previous value is returned. If k
// is new, it is appended at the MRU end and (zero, false) is returned.
func (m *Map[K, V]) Insert(k K, v V) (prev V, replaced bool) {
	if n, ok := m.index[k]; ok {
		prev = n.value
		n.value = v
		m.unlink(n)
		m.link(n)
		return prev, true
	}
	n := &node[K, V]{key: k, value: v}
	m.index[k] = n
	m.link(n)
	var zero V
	return zero, false
}

// Get looks up k without reordering. Reordering on read is not automatic;
// callers that need LRU semantics call Touch explicitly.
func (m *Map[K, V]) Get(k K) (V, bool) {
	n, ok := m.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	return n.value, true
}

// Touch moves k to the MRU end if present; it is a no-op otherwise.
func (m *Map[K, V]) Touch(k K) {
	n, ok := m.index[k]
	if !ok {
		return
	}
	m.unlink(n)
	m.link(n)
}

// Remove unlinks k and returns its value, or (zero, false) if absent.
func (m *Map[K, V]) Remove(k K) (V, bool) {
	n, ok := m.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	m.unlink(n)
	delete(m.index, k)
	return n.value, true
}

// PopLRU removes and returns the oldest (LRU, head-most) entry.
func (m *Map[K, V]) PopLRU() (k K, v V, ok bool) {
	n := m.head.next
	if n == m.tail {
		return k, v, false
	}
	m.unlink(n)
	delete(m.index, n.key)
	return n.key, n.value, true
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return len(m.index)
}

// IsEmpty reports whether the map holds no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return len(m.index) == 0
}

// All returns a finite snapshot of (key, value) pairs ordered from LRU to
// MRU. It is a snapshot, not a live iterator: mutating the Map after calling
// All does not affect the returned slice and does not invalidate it.
func (m *Map[K, V]) All() []Pair[K, V] {
	out := make([]Pair[K, V], 0, len(m.index))
	for n := m.head.next; n != m.tail; n = n.next {
		out = append(out, Pair[K, V]{Key: n.key, Value: n.value})
	}
	return out
}

// checkInvariants verifies |list| == |index| and that every indexed key is
// reachable exactly once by walking from head. It is an unexported method
// that tests call directly rather than gated behind a build tag, since this
// module has no separate debug-build story (see DESIGN.md).
func (m *Map[K, V]) checkInvariants() error {
	seen := make(map[K]struct{}, len(m.index))
	count := 0
	for n := m.head.next; n != m.tail; n = n.next {
		if _, dup := seen[n.key]; dup {
			return fmt.Errorf("orderedmap: key %v appears twice in list", n.key)
		}
		seen[n.key] = struct{}{}
		count++
	}
	if count != len(m.index) {
		return fmt.Errorf("orderedmap: list length %d != index length %d", count, len(m.index))
	}
	for k := range m.index {
		if _, ok := seen[k]; !ok {
			return fmt.Errorf("orderedmap: indexed key %v not reachable from list", k)
		}
	}
	return nil
}
