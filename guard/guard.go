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

// Package guard implements a "submitter context" assertion: every method on
// Cache, Coordinator, Task and NetworkOperation documents that a given instance's
// public methods must be called from one submitter at a time. There is no
// separate debug build mode here, so the assertion is compiled in
// unconditionally as a cheap, always-on trylock rather than gated behind a
// build tag (see DESIGN.md).
package guard

import (
	"fmt"
	"sync/atomic"
)

// Submitter is a non-reentrant, non-blocking lock: Enter panics if another
// goroutine is already inside the guarded section, instead of blocking.
// Ordinary mutexes enforce mutual exclusion by waiting; this is meant to
// catch a contract violation (two submitter-context calls overlapping in
// time) as loudly and immediately as a failed assertion would.
type Submitter struct {
	held atomic.Bool
}

// Enter marks the guarded section as entered and returns a function that
// must be deferred to mark it as exited. It panics if the section was
// already entered.
func (s *Submitter) Enter(what string) func() {
	if !s.held.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("rescache: %s called concurrently from more than one submitter context", what))
	}
	return func() { s.held.Store(false) }
}
