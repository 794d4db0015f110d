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

// Package diskcache implements a content-addressed, size-bounded disk
// cache: entries are indexed in memory (bounded by lrustore.Store), lazily
// materialised from an on-disk index the first time the cache is touched,
// and persisted back to disk as entries are added or evicted.
//
// It follows github.com/fluxcd/pkg/cache.Cache's split between an in-memory
// index and on-disk payloads, the same Persist/recovery shape, and the same
// self-instrumenting metrics (metrics.go). Unlike that Cache, whose Set/Get
// run synchronously under a sync.RWMutex, Retrieve and Store here hand
// their work to an ioQueue and return immediately, delivering results via
// callback — see ioqueue.go and DESIGN.md.
package diskcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brightcache/rescache/guard"
	"github.com/brightcache/rescache/logging"
	"github.com/brightcache/rescache/lrustore"
	"github.com/brightcache/rescache/rcerrors"
)

const indexFileName = "index"

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithMetricsRegisterer enables Prometheus instrumentation, registering the
// cache's metrics with reg. Without this option the cache collects no
// metrics (newMetrics(nil) is a nil *metrics, and every recording method
// tolerates a nil receiver).
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *Cache) { c.metrics = newMetrics(reg) }
}

// WithLogger sets the logger used for events that have no caller to report
// to directly — chiefly IndexCorruption recovery and index-rewrite
// failures. Neither rolls back in-memory state or propagates to the
// Retrieve/Store caller; see DESIGN.md.
func WithLogger(log logr.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// Cache is a disk-backed, size-bounded, LRU cache of byte blobs keyed by an
// opaque string (see DeriveKey for the conventional key derivation from a
// URL). The zero value is not usable; construct with New.
//
// Retrieve and Store must be called from one submitter at a time: submit
// panics if two such calls overlap, rather than letting them race. The work
// they enqueue runs serially on the I/O executor.
type Cache struct {
	root     string
	io       *ioQueue
	metrics  *metrics
	log      logr.Logger
	submit   guard.Submitter
	storage  *lrustore.Store[content]
	mu       sync.Mutex // guards loaded, independent of storage's own mutex
	loaded   bool
}

// New returns a Cache rooted at dir with the given byte capacity. dir need
// not exist yet: it is created on the first Store, and a Retrieve issued
// before any Store simply reports KeyNotFound without creating it.
func New(dir string, capacity uint64, opts ...Option) *Cache {
	c := &Cache{
		root:    dir,
		storage: lrustore.New[content](capacity),
		log:     logging.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.io = newIOQueue()
	return c
}

// Close stops the cache's I/O executor, waiting for already-submitted work
// to finish. A Cache must not be used after Close returns.
func (c *Cache) Close() {
	c.io.close()
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.root, entryFileName(key))
}

func (c *Cache) indexPath() string {
	return filepath.Join(c.root, indexFileName)
}

// ensureLoaded lazily populates c.storage from the on-disk index, exactly
// once. It must be called from within the I/O executor (ioQueue.run), never
// concurrently with itself.
//
// A missing index file (first run, or a Retrieve before any Store ever
// created the directory) is treated as an empty cache, same as a
// zero-length one. A present-but-unparseable index is recovered from by
// discarding it and starting empty, recording one IndexCorruption event via
// the logger — it is never returned to the caller, since recovering
// silently is the whole point of tolerating corruption.
func (c *Cache) ensureLoaded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return
	}
	c.loaded = true

	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Error(err, "failed to read cache index, starting empty", "path", c.indexPath())
		}
		return
	}

	records, err := decodeRecords(data)
	if err != nil {
		c.metrics.recordEvent("index_corruption")
		c.log.Error(rcerrors.Wrap(rcerrors.IndexCorruption, err), "cache index is corrupted, discarding it")
		return
	}

	for _, r := range records {
		if evicted := c.storage.Add(r.Key, notLoaded(r.Size)); len(evicted) > 0 {
			c.unlinkEntries(evicted)
		}
	}
	c.metrics.setItems(c.storage.Len())
}

// rewriteIndex serialises the current in-memory index to disk, atomically
// (temp file + rename), following fluxcd/pkg/cache.Cache.Persist. A failure
// here is logged and otherwise swallowed: an index-write failure does not
// roll back the Add/Remove that was just applied in memory, and is not
// surfaced to the Retrieve/Store caller — a correctness risk flagged, not
// fixed, here; see DESIGN.md.
func (c *Cache) rewriteIndex() {
	snapshot := c.storage.Snapshot()
	records := make([]record, 0, len(snapshot))
	for _, e := range snapshot {
		records = append(records, record{Key: e.Key, Size: e.Value.Size()})
	}

	data, err := encodeRecords(records)
	if err != nil {
		c.log.Error(err, "failed to encode cache index")
		return
	}

	if err := writeFileAtomic(c.indexPath(), data); err != nil {
		c.log.Error(err, "failed to persist cache index", "path", c.indexPath())
	}
}

// writeFileAtomic writes data to path by writing to a sibling temp file and
// renaming it over path, so a crash mid-write never leaves a truncated or
// half-written index behind.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// unlinkEntries removes the backing files for keys evicted from c.storage.
// A file already gone is not an error (another process, or a prior partial
// run, may have removed it); any other failure is logged and otherwise
// ignored, since eviction of the in-memory record has already happened and
// cannot be rolled back.
func (c *Cache) unlinkEntries(keys []string) {
	c.metrics.recordEviction(len(keys))
	for _, key := range keys {
		if err := os.Remove(c.entryPath(key)); err != nil && !os.IsNotExist(err) {
			c.log.Error(err, "failed to remove evicted cache entry", "key", key)
		}
	}
}

// Retrieve looks up key and delivers the cached bytes to cb, asynchronously,
// on the cache's I/O executor. cb is always called exactly once.
//
// Behaviour:
//   - A key absent from the index reports rcerrors.KeyNotFound.
//   - A key present and already loaded returns its bytes directly from
//     memory. The lookup still touches the entry's LRU position, so the
//     on-disk index is rewritten to keep its order in sync, even though no
//     entry content file is read or written.
//   - A key present but not loaded is read from disk, promoted to loaded in
//     the index (which may itself trigger eviction of other entries), and
//     the index is rewritten to reflect the promotion.
//   - If that disk read fails (e.g. the backing file was deleted outside
//     the cache), Retrieve reports rcerrors.IOError and leaves the index
//     entirely unchanged — no eviction, no promotion, no rewrite — so a
//     transient external failure does not corrupt LRU bookkeeping for an
//     entry that may still be valid.
func (c *Cache) Retrieve(key string, cb func(data []byte, err error)) {
	release := c.submit.Enter("Cache.Retrieve")
	defer release()

	c.io.submit(func() {
		c.ensureLoaded()

		got, ok := c.storage.Peek(key)
		if !ok {
			c.metrics.recordEvent(eventMiss)
			cb(nil, rcerrors.New(rcerrors.KeyNotFound))
			return
		}

		if got.isLoaded() {
			c.storage.Value(key) // touch: a hit counts as an access
			c.metrics.setItems(c.storage.Len())
			c.rewriteIndex()
			c.metrics.recordEvent(eventHit)
			cb(got.bytes, nil)
			return
		}

		data, err := os.ReadFile(c.entryPath(key))
		if err != nil {
			c.metrics.recordEvent(eventMiss)
			cb(nil, rcerrors.Wrap(rcerrors.IOError, err))
			return
		}

		if evicted := c.storage.Add(key, loaded(data)); len(evicted) > 0 {
			c.unlinkEntries(evicted)
		}
		c.metrics.setItems(c.storage.Len())
		c.rewriteIndex()

		c.metrics.recordEvent(eventHit)
		cb(data, nil)
	})
}

// Store writes data under key: it creates the cache directory if this is
// the first write ever made to it, writes the entry file, inserts the
// loaded entry into the in-memory index (evicting least-recently-used
// entries as needed to respect capacity), rewrites the on-disk index, and
// then invokes cb exactly once with the outcome.
func (c *Cache) Store(key string, data []byte, cb func(err error)) {
	release := c.submit.Enter("Cache.Store")
	defer release()

	c.io.submit(func() {
		c.ensureLoaded()

		if err := os.MkdirAll(c.root, 0o755); err != nil {
			cb(rcerrors.Wrap(rcerrors.IOError, err))
			return
		}

		if err := os.WriteFile(c.entryPath(key), data, 0o644); err != nil {
			cb(rcerrors.Wrap(rcerrors.IOError, err))
			return
		}

		if evicted := c.storage.Add(key, loaded(data)); len(evicted) > 0 {
			c.unlinkEntries(evicted)
		}
		c.metrics.setItems(c.storage.Len())
		c.rewriteIndex()

		cb(nil)
	})
}

// ResourceURL returns a file:// path to key's backing file if key is
// currently indexed, without loading its bytes or touching LRU order. It
// is synchronous and does not count as an access: it exists for callers
// (such as a resource parser or a static file server) that need a stable
// filesystem path rather than the bytes themselves, and must not perturb
// eviction order just by being asked.
//
// ResourceURL does not run on the I/O executor: it is documented as
// synchronous, and a plain os.Stat of the computed path is enough to answer
// "does this file currently exist" without needing to serialise with
// concurrent Store/Retrieve work the way a content read or index rewrite
// does.
func (c *Cache) ResourceURL(key string) (string, bool) {
	if _, ok := c.storage.Peek(key); !ok {
		return "", false
	}
	path := c.entryPath(key)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return fmt.Sprintf("file://%s", path), true
}
