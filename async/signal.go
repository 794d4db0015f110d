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

package async

import "sync"

// Signal is a multi-shot observer: each subscriber receives all values
// emitted after they attached, with an explicit cancellation handle.
// Unlike Future, a Signal has no notion of completion — Emit may be
// called any number of times.
type Signal[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(T)
}

// NewSignal returns a Signal with no subscribers.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{subs: make(map[uint64]func(T))}
}

// Emit delivers value to every subscriber currently attached, in
// unspecified order. Subscribers attached or cancelled concurrently with
// Emit never see a value emitted before they attached or after they
// cancelled.
func (s *Signal[T]) Emit(value T) {
	s.mu.Lock()
	cbs := make([]func(T), 0, len(s.subs))
	for _, cb := range s.subs {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(value)
	}
}

// Subscription is the cancellation handle returned by Subscribe.
type Subscription[T any] struct {
	signal *Signal[T]
	id     uint64
}

// Cancel detaches the subscriber; it is idempotent and safe to call more
// than once.
func (sub *Subscription[T]) Cancel() {
	sub.signal.mu.Lock()
	defer sub.signal.mu.Unlock()
	delete(sub.signal.subs, sub.id)
}

// Subscribe attaches cb to receive every value emitted from now on. The
// returned Subscription detaches cb when cancelled.
func (s *Signal[T]) Subscribe(cb func(T)) *Subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = cb
	return &Subscription[T]{signal: s, id: id}
}
