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

// Package netop implements a retrying network task and a thin resource
// operation built on top of it.
//
// Modelled on fluxcd/pkg/http/fetch.ArchiveFetcher's use of
// github.com/hashicorp/go-retryablehttp for the transport attempt, but
// restructured: ArchiveFetcher lets retryablehttp.Client own the whole
// retry loop (fixed RetryMax/backoff, no externally triggerable retry).
// Here the retry decision lives in a pluggable NetworkErrorHandlingStrategy
// (strategy.go) and Task issues one *http.Request per attempt directly,
// reusing only retryablehttp.FromRequest (body-rewindable request
// construction) and retryablehttp.DefaultBackoff as building blocks.
package netop

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/brightcache/rescache/guard"
	"github.com/brightcache/rescache/rcerrors"
)

type taskState int

const (
	stateCreated taskState = iota
	stateRunning
	stateRetrying
	stateSucceeded
	stateFailed
	stateCancelled
)

func (s taskState) terminal() bool {
	return s == stateSucceeded || s == stateFailed || s == stateCancelled
}

// TaskOption configures a Task at construction time.
type TaskOption func(*Task)

// WithHTTPClient overrides the *http.Client used for each attempt. The
// default is http.DefaultClient.
func WithHTTPClient(client *http.Client) TaskOption {
	return func(t *Task) { t.client = client }
}

// WithOnRetry registers a callback invoked just before each retried
// attempt, used by NetworkOperation to surface its optional
// LifecycleDelegate.OnRetry hook.
func WithOnRetry(fn func()) TaskOption {
	return func(t *Task) { t.onRetry = fn }
}

// ErrorInferrer interprets a completed HTTP response (the request having
// already succeeded at the transport level) as either a successful result
// or an error. The default, defaultErrorInferrer, treats any status >= 400
// as failure.
type ErrorInferrer func(resp *http.Response, data []byte) error

// WithErrorInferrer overrides the response-to-error interpretation used
// after a successful transport round trip, in place of the default
// status >= 400 rule.
func WithErrorInferrer(fn ErrorInferrer) TaskOption {
	return func(t *Task) { t.errorInferrer = fn }
}

// defaultErrorInferrer is the canonical inferrer: any HTTP status >= 400 is
// failure, carrying the status in the resulting error.
func defaultErrorInferrer(resp *http.Response, data []byte) error {
	if resp.StatusCode >= 400 {
		return rcerrors.WrapHTTP(resp.StatusCode, fmt.Errorf("http status %d", resp.StatusCode))
	}
	return nil
}

// Task drives a request through Created -> Running -> (Retrying ->
// Running)* -> Terminal, where the retry decision at each failure is
// delegated to a NetworkErrorHandlingStrategy.
//
// The task owns the strategy; the strategy is given the task only through
// the narrow RetryDelegate interface (SetDelegate), and the task nulls out
// both its own strategy reference and the strategy's delegate on any
// terminal transition, breaking the reference cycle between them.
type Task struct {
	req           *http.Request
	strategy      NetworkErrorHandlingStrategy
	client        *http.Client
	onRetry       func()
	errorInferrer ErrorInferrer
	submit        guard.Submitter

	mu     sync.Mutex
	state  taskState
	cb     func([]byte, error)
	cancel context.CancelFunc
	self   *Task // self-retention while running/retrying; nil once terminal
}

// NewTask prepares a Task for req, to be driven by strategy. Resume starts
// the first attempt.
func NewTask(req *http.Request, strategy NetworkErrorHandlingStrategy, opts ...TaskOption) *Task {
	t := &Task{
		req:           req,
		strategy:      strategy,
		client:        http.DefaultClient,
		errorInferrer: defaultErrorInferrer,
	}
	for _, opt := range opts {
		opt(t)
	}
	strategy.SetDelegate(t)
	return t
}

// Resume starts the first attempt and arranges for cb to be invoked exactly
// once, on the terminal outcome (success or non-retryable failure). Calling
// Resume more than once has no effect.
func (t *Task) Resume(cb func(data []byte, err error)) {
	release := t.submit.Enter("Task.Resume")
	defer release()

	t.mu.Lock()
	if t.state != stateCreated {
		t.mu.Unlock()
		return
	}
	t.state = stateRunning
	t.cb = cb
	t.self = t
	t.mu.Unlock()

	t.attempt()
}

// Cancel is idempotent: it transitions the task to Terminal:Cancelled,
// aborts the in-flight attempt (if any) via context cancellation, breaks
// the strategy<->task back-reference, and releases the self-retention. The
// completion callback is never invoked after Cancel.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.state.terminal() {
		t.mu.Unlock()
		return
	}
	t.state = stateCancelled
	cancel := t.cancel
	t.breakCycleLocked()
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// PerformRetry implements RetryDelegate: the strategy calls this once it
// has decided the task should retry (e.g. after a backoff timer fires).
func (t *Task) PerformRetry() {
	t.mu.Lock()
	if t.state != stateRetrying {
		t.mu.Unlock()
		return
	}
	t.state = stateRunning
	t.mu.Unlock()

	if t.onRetry != nil {
		t.onRetry()
	}
	t.attempt()
}

// breakCycleLocked must be called with t.mu held. It nulls the task's own
// strategy reference, detaches the strategy's back-reference to the task,
// and drops the self-retention — done together so neither object can
// observe a half-broken cycle.
func (t *Task) breakCycleLocked() {
	if t.strategy != nil {
		t.strategy.SetDelegate(nil)
	}
	t.strategy = nil
	t.self = nil
}

func (t *Task) attempt() {
	rreq, err := retryablehttp.FromRequest(t.req)
	if err != nil {
		t.finish(stateFailed, nil, rcerrors.Wrap(rcerrors.TransportError, err))
		return
	}

	ctx, cancel := context.WithCancel(t.req.Context())
	t.mu.Lock()
	if t.state.terminal() {
		t.mu.Unlock()
		cancel()
		return
	}
	t.cancel = cancel
	t.mu.Unlock()

	resp, err := t.client.Do(rreq.WithContext(ctx).Request)
	if err != nil {
		t.handleFailure(rcerrors.Wrap(rcerrors.TransportError, err))
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.handleFailure(rcerrors.Wrap(rcerrors.TransportError, err))
		return
	}

	if err := t.errorInferrer(resp, data); err != nil {
		t.handleFailure(err)
		return
	}
	t.finish(stateSucceeded, data, nil)
}

func (t *Task) handleFailure(err error) {
	t.mu.Lock()
	if t.state.terminal() {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	disposition := t.strategy.Policy(err, t.req.URL.String())
	if disposition == Completed {
		t.finish(stateFailed, nil, err)
		return
	}

	t.mu.Lock()
	if !t.state.terminal() {
		t.state = stateRetrying
	}
	t.mu.Unlock()
}

func (t *Task) finish(state taskState, data []byte, err error) {
	t.mu.Lock()
	if t.state.terminal() {
		t.mu.Unlock()
		return
	}
	t.state = state
	cb := t.cb
	t.breakCycleLocked()
	t.mu.Unlock()

	if cb != nil {
		cb(data, err)
	}
}
