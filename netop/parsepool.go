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

import "golang.org/x/sync/errgroup"

// ParsePool is a shared worker pool for response parsing: a small
// fixed-size pool built on golang.org/x/sync/errgroup.Group.SetLimit,
// letting NetworkOperation.Send hand Resource[T].Parser off the goroutine a
// network response arrived on instead of running it inline.
type ParsePool struct {
	group *errgroup.Group
}

// NewParsePool returns a ParsePool that runs at most size submissions
// concurrently.
func NewParsePool(size int) *ParsePool {
	g := new(errgroup.Group)
	g.SetLimit(size)
	return &ParsePool{group: g}
}

// Submit schedules fn to run on the pool, blocking the caller only if the
// pool is already at its concurrency limit.
func (p *ParsePool) Submit(fn func()) {
	p.group.Go(func() error {
		fn()
		return nil
	})
}

// Wait blocks until every submission so far has completed. Used by tests;
// production callers do not need deterministic drain since each
// submission delivers its own result via callback.
func (p *ParsePool) Wait() {
	_ = p.group.Wait()
}
