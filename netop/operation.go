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

package netop

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/brightcache/rescache/guard"
	"github.com/brightcache/rescache/rcerrors"
)

type operationState int

const (
	opReady operationState = iota
	opExecuting
	opFinished
)

// LifecycleDelegate receives a callback before each retry of an in-flight
// NetworkOperation.
type LifecycleDelegate interface {
	OnRetry()
}

// OperationOption configures a NetworkOperation at construction time.
type OperationOption[T any] func(*NetworkOperation[T])

// WithUserAgent sets the User-Agent header injected at send time. The
// default is "rescache/netop".
func WithUserAgent[T any](ua string) OperationOption[T] {
	return func(o *NetworkOperation[T]) { o.userAgent = ua }
}

// WithLifecycleDelegate registers a delegate notified before each retry.
func WithLifecycleDelegate[T any](d LifecycleDelegate) OperationOption[T] {
	return func(o *NetworkOperation[T]) { o.delegate = d }
}

// WithOperationHTTPClient overrides the *http.Client used to issue
// requests for this operation.
func WithOperationHTTPClient[T any](client *http.Client) OperationOption[T] {
	return func(o *NetworkOperation[T]) { o.client = client }
}

// WithParsePool runs the resource's Parser on pool instead of inline on the
// goroutine the network response arrived on.
func WithParsePool[T any](pool *ParsePool) OperationOption[T] {
	return func(o *NetworkOperation[T]) { o.parsePool = pool }
}

// NetworkOperation is a thin higher-layer wrapper around Resource[T] and
// Task: it wraps a Resource[T] with a retry strategy and injects a
// User-Agent header at send time (asserting the resource does not already
// carry one), and exposes Ready/Executing/Finished lifecycle plus a typed
// Result.
type NetworkOperation[T any] struct {
	resource  Resource[T]
	strategy  NetworkErrorHandlingStrategy
	userAgent string
	delegate  LifecycleDelegate
	client    *http.Client
	parsePool *ParsePool
	submit    guard.Submitter

	mu       sync.Mutex
	state    operationState
	task     *Task
	result   *T
	resultMu sync.Mutex
}

// NewOperation returns a NetworkOperation in the Ready state.
func NewOperation[T any](resource Resource[T], strategy NetworkErrorHandlingStrategy, opts ...OperationOption[T]) *NetworkOperation[T] {
	o := &NetworkOperation[T]{
		resource:  resource,
		strategy:  strategy,
		userAgent: "rescache/netop",
		client:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// IsExecuting reports whether the operation has been sent but has not yet
// reached Finished.
func (o *NetworkOperation[T]) IsExecuting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == opExecuting
}

// IsFinished reports whether the operation has completed (successfully,
// with an error, or via cancellation).
func (o *NetworkOperation[T]) IsFinished() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == opFinished
}

// Result returns the parsed value, if the operation finished successfully.
// A cancelled operation never populates Result, even if the underlying
// response had already arrived.
func (o *NetworkOperation[T]) Result() (T, bool) {
	o.resultMu.Lock()
	defer o.resultMu.Unlock()
	if o.result == nil {
		var zero T
		return zero, false
	}
	return *o.result, true
}

// Send builds the request, injects the User-Agent header (asserting the
// resource did not already set one), and drives it through a Task. cb is
// invoked at most once, never after Cancel.
func (o *NetworkOperation[T]) Send(cb func(T, error)) {
	release := o.submit.Enter("NetworkOperation.Send")
	defer release()

	o.mu.Lock()
	if o.state != opReady {
		o.mu.Unlock()
		return
	}
	o.state = opExecuting
	o.mu.Unlock()

	req, err := o.resource.buildRequest()
	if err != nil {
		o.finish(cb, rcerrors.Wrap(rcerrors.FailedToCreateResource, err))
		return
	}
	if req.Header.Get("User-Agent") != "" {
		panic(fmt.Sprintf("netop: resource for %s already carries a User-Agent header", req.URL))
	}
	req.Header.Set("User-Agent", o.userAgent)

	var taskOpts []TaskOption
	taskOpts = append(taskOpts, WithHTTPClient(o.client))
	if o.delegate != nil {
		taskOpts = append(taskOpts, WithOnRetry(o.delegate.OnRetry))
	}
	task := NewTask(req, o.strategy, taskOpts...)
	o.mu.Lock()
	o.task = task
	o.mu.Unlock()

	task.Resume(func(data []byte, err error) {
		if err != nil {
			o.finish(cb, err)
			return
		}
		if o.parsePool != nil {
			o.parsePool.Submit(func() { o.parseAndFinish(cb, data) })
			return
		}
		o.parseAndFinish(cb, data)
	})
}

func (o *NetworkOperation[T]) parseAndFinish(cb func(T, error), data []byte) {
	value, perr := o.resource.Parser(data)
	if perr != nil {
		o.finish(cb, rcerrors.Wrap(rcerrors.ParseError, perr))
		return
	}
	o.mu.Lock()
	if o.state == opFinished {
		o.mu.Unlock()
		return
	}
	o.state = opFinished
	o.resultMu.Lock()
	o.result = &value
	o.resultMu.Unlock()
	o.mu.Unlock()

	if cb != nil {
		cb(value, nil)
	}
}

func (o *NetworkOperation[T]) finish(cb func(T, error), err error) {
	o.mu.Lock()
	if o.state == opFinished {
		o.mu.Unlock()
		return
	}
	o.state = opFinished
	o.mu.Unlock()

	if cb == nil {
		return
	}
	value, _ := o.Result()
	cb(value, err)
}

// Cancel aborts the operation. If it has not yet finished, the completion
// callback passed to Send is never invoked, and Result never becomes
// populated, even if the network response had already arrived by the time
// Cancel runs.
func (o *NetworkOperation[T]) Cancel() {
	o.mu.Lock()
	if o.state == opFinished {
		o.mu.Unlock()
		return
	}
	o.state = opFinished
	task := o.task
	o.mu.Unlock()

	if task != nil {
		task.Cancel()
	}
}
