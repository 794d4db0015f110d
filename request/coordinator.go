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

// Package request implements a cache-aware request coordinator: read-through
// cache lookup, with an on-miss network fetch and optional write-back, wired
// to a cancellable async.CancelToken.
//
// It follows the get-or-fetch shape of
// github.com/fluxcd/pkg/cache/token.go's TokenCache.GetOrSet (check cache,
// call a fetch function on miss, store the result), adapted from that
// method's synchronous, context.Context-blocking form to a callback-based,
// cancellable one.
package request

import (
	"github.com/go-logr/logr"

	"github.com/brightcache/rescache/async"
	"github.com/brightcache/rescache/diskcache"
	"github.com/brightcache/rescache/guard"
	"github.com/brightcache/rescache/logging"
	"github.com/brightcache/rescache/rcerrors"
)

// Source tags where a Result's bytes came from.
type Source int

const (
	SourceCache Source = iota
	SourceNetwork
)

func (s Source) String() string {
	if s == SourceCache {
		return "cache"
	}
	return "network"
}

// Result is the value a Coordinator.Get callback is fulfilled with on
// success.
type Result struct {
	Bytes  []byte
	Source Source
}

// Cache is the subset of diskcache.Cache the coordinator depends on,
// expressed as an interface so tests can substitute a fake.
type Cache interface {
	Retrieve(key string, cb func([]byte, error))
	Store(key string, data []byte, cb func(error))
	ResourceURL(key string) (string, bool)
}

// Fetcher performs the on-miss network fetch. Fetch must return a
// Cancellable immediately, before the fetch completes, so the coordinator
// can attach it to a CancelToken created before the fetch started.
type Fetcher interface {
	Fetch(url string, cb func([]byte, error)) async.Cancellable
}

// KeyBuilder derives a CacheKey from a URL. A Coordinator built by New uses
// diskcache.DeriveKey unless WithKeyBuilder overrides it.
type KeyBuilder func(url string) string

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithKeyBuilder overrides the default CacheKey derivation.
func WithKeyBuilder(kb KeyBuilder) Option {
	return func(c *Coordinator) { c.keyBuilder = kb }
}

// WithWaitForCacheWrite controls whether a network-sourced Get waits for
// the write-back store to complete before fulfilling its token. The
// default is false: fulfil immediately, store fire-and-forget.
func WithWaitForCacheWrite(wait bool) Option {
	return func(c *Coordinator) { c.waitForCacheWrite = wait }
}

// WithLogger sets the logger used for events with no caller to report to.
func WithLogger(log logr.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// Coordinator turns a URL into bytes plus a source tag, trying the cache
// before falling back to the network. It does not single-flight concurrent
// Gets for the same URL; that is left as an optional enhancement for
// callers that need it.
type Coordinator struct {
	cache             Cache
	fetcher           Fetcher
	keyBuilder        KeyBuilder
	waitForCacheWrite bool
	log               logr.Logger
	submit            guard.Submitter
}

// New returns a Coordinator layered over cache and fetcher.
func New(cache Cache, fetcher Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		cache:      cache,
		fetcher:    fetcher,
		keyBuilder: diskcache.DeriveKey,
		log:        logging.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get computes the key, creates a CancelToken in the unattached phase and
// returns it immediately, then tries the cache; on a miss, it starts a
// network fetch, attaches its cancel handle to the token, and on success
// stores the bytes back (respecting waitForCacheWrite) before fulfilling
// the token.
//
// cb is invoked at most once: either with a Result on success, or with a
// non-nil error. It is never invoked if the token was cancelled first.
func (c *Coordinator) Get(url string, cb func(Result, error)) *async.CancelToken {
	release := c.submit.Enter("Coordinator.Get")
	defer release()

	key := c.keyBuilder(url)
	token := async.NewCancelToken()

	deliver := func(res Result, err error) {
		if token.Cancelled() {
			return
		}
		cb(res, err)
	}

	c.cache.Retrieve(key, func(data []byte, err error) {
		if err == nil {
			deliver(Result{Bytes: data, Source: SourceCache}, nil)
			return
		}

		if token.Cancelled() {
			return
		}

		work := c.fetcher.Fetch(url, func(data []byte, err error) {
			if err != nil {
				deliver(Result{}, err)
				return
			}

			if !c.waitForCacheWrite {
				deliver(Result{Bytes: data, Source: SourceNetwork}, nil)
				c.cache.Store(key, data, func(err error) {
					if err != nil {
						c.log.Error(err, "failed to write back cache entry after network fetch", "key", key)
					}
				})
				return
			}

			c.cache.Store(key, data, func(err error) {
				if err != nil {
					deliver(Result{}, rcerrors.Wrap(rcerrors.IOError, err))
					return
				}
				deliver(Result{Bytes: data, Source: SourceNetwork}, nil)
			})
		})
		token.Attach(work)
	})

	return token
}

// GetLocalResourceURL delegates to the underlying cache's ResourceURL,
// returning a local path for url without touching the network.
func (c *Coordinator) GetLocalResourceURL(url string) (string, bool) {
	return c.cache.ResourceURL(c.keyBuilder(url))
}
