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

// Package async provides a small set of concurrency handles, each a
// distinct concrete type rather than a shared inheritance hierarchy: a
// one-shot Future, a multi-shot Signal, and the deferred-cancel CancelToken
// state machine.
package async

import "sync"

// Cancellable is implemented by anything a CancelToken or a Coordinator
// caller can cancel — the network fetch handle returned by request.Fetcher,
// for instance.
type Cancellable interface {
	Cancel()
}

type tokenState int

const (
	tokenPending tokenState = iota
	tokenAttached
	tokenCancelled
)

// CancelToken is a cancellation handle with two phases: created with no
// underlying work attached, then later attached to a Cancellable.
// Cancelling before attachment latches the intent; attaching afterwards
// immediately cancels the newly attached work. Transitions are monotone:
// tokenAttached can move to tokenCancelled, but nothing ever moves
// backward, and Cancel is idempotent.
type CancelToken struct {
	mu    sync.Mutex
	state tokenState
	work  Cancellable
}

// NewCancelToken returns a token in the "no underlying work" phase.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Attach records work as the token's underlying cancellable. If the token
// was already cancelled, work.Cancel() is invoked immediately and
// synchronously, before Attach returns.
func (t *CancelToken) Attach(work Cancellable) {
	t.mu.Lock()
	switch t.state {
	case tokenCancelled:
		t.mu.Unlock()
		work.Cancel()
		return
	default:
		t.state = tokenAttached
		t.work = work
		t.mu.Unlock()
	}
}

// Cancel latches the token as cancelled. If work is already attached, its
// Cancel method is invoked. Calling Cancel more than once has the same
// effect as calling it once.
func (t *CancelToken) Cancel() {
	t.mu.Lock()
	if t.state == tokenCancelled {
		t.mu.Unlock()
		return
	}
	work := t.work
	t.work = nil
	t.state = tokenCancelled
	t.mu.Unlock()

	if work != nil {
		work.Cancel()
	}
}

// Cancelled reports whether the token has been cancelled.
func (t *CancelToken) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == tokenCancelled
}
