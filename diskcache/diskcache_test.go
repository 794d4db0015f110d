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

package diskcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/brightcache/rescache/rcerrors"
)

// await blocks until a Retrieve/Store callback has fired, or fails the test
// after a generous timeout — every Cache method here delivers its result on
// the I/O executor, not inline.
func await(t *testing.T, fn func(done func())) {
	t.Helper()
	ch := make(chan struct{})
	fn(func() { close(ch) })
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func Test_Cache_ReadThroughHit(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()

	c := New(dir, 1<<20)
	defer c.Close()

	await(t, func(done func()) {
		c.Store("k", []byte("hello"), func(err error) {
			g.Expect(err).NotTo(HaveOccurred())
			done()
		})
	})

	// Open a fresh Cache over the directory (index plus entry file) the first
	// Cache left behind, the way a prior process run would have, to exercise
	// the lazy-load path.
	c2 := New(dir, 1<<20)
	defer c2.Close()

	await(t, func(done func()) {
		c2.Retrieve("k", func(data []byte, err error) {
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(data).To(Equal([]byte("hello")))
			done()
		})
	})

	// A second retrieve must not need to touch the file again; we can't
	// observe "no read" directly, but we can assert the content is
	// unchanged even after removing read access conceptually — simplest
	// proxy: the bytes still come back identical from the now-loaded entry.
	await(t, func(done func()) {
		c2.Retrieve("k", func(data []byte, err error) {
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(data).To(Equal([]byte("hello")))
			done()
		})
	})
}

func Test_Cache_AlreadyLoadedHitRewritesIndexOrder(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()

	c := New(dir, 1<<20)
	defer c.Close()

	await(t, func(done func()) {
		c.Store("a", []byte("aaa"), func(err error) {
			g.Expect(err).NotTo(HaveOccurred())
			done()
		})
	})
	await(t, func(done func()) {
		c.Store("b", []byte("bbb"), func(err error) {
			g.Expect(err).NotTo(HaveOccurred())
			done()
		})
	})

	// Both entries are already loaded in memory (Store leaves them loaded),
	// so retrieving "a" exercises the already-loaded hit branch, not the
	// lazy-load-from-disk one.
	await(t, func(done func()) {
		c.Retrieve("a", func(data []byte, err error) {
			g.Expect(err).NotTo(HaveOccurred())
			done()
		})
	})

	// The hit must have touched "a"'s LRU position and rewritten the index
	// to reflect it: "b" (untouched since its Store) is now least recently
	// used and "a" most recently used.
	raw, err := os.ReadFile(filepath.Join(dir, indexFileName))
	g.Expect(err).NotTo(HaveOccurred())
	records, err := decodeRecords(raw)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(records).To(Equal([]record{
		{Key: "b", Size: uint64(len("bbb"))},
		{Key: "a", Size: uint64(len("aaa"))},
	}))
}

func Test_Cache_CorruptedIndexRecovery(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()

	g.Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(dir, indexFileName), []byte("not json"), 0o644)).To(Succeed())

	c := New(dir, 1<<20)
	defer c.Close()

	await(t, func(done func()) {
		c.Retrieve("missing", func(data []byte, err error) {
			g.Expect(err).To(HaveOccurred())
			g.Expect(rcerrors.Is(err, rcerrors.KeyNotFound)).To(BeTrue())
			done()
		})
	})

	await(t, func(done func()) {
		c.Store("fresh", []byte("payload"), func(err error) {
			g.Expect(err).NotTo(HaveOccurred())
			done()
		})
	})

	raw, err := os.ReadFile(filepath.Join(dir, indexFileName))
	g.Expect(err).NotTo(HaveOccurred())
	records, err := decodeRecords(raw)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(records).To(Equal([]record{{Key: "fresh", Size: uint64(len("payload"))}}))
}

func Test_Cache_MissingDirectory_FirstRetrieveDoesNotCreateIt(t *testing.T) {
	g := NewWithT(t)
	dir := filepath.Join(t.TempDir(), "does-not-exist-yet")

	c := New(dir, 1<<20)
	defer c.Close()

	await(t, func(done func()) {
		c.Retrieve("k", func(data []byte, err error) {
			g.Expect(rcerrors.Is(err, rcerrors.KeyNotFound)).To(BeTrue())
			done()
		})
	})

	_, statErr := os.Stat(dir)
	g.Expect(os.IsNotExist(statErr)).To(BeTrue())
}

func Test_Cache_MissingDirectory_FirstStoreCreatesIt(t *testing.T) {
	g := NewWithT(t)
	dir := filepath.Join(t.TempDir(), "does-not-exist-yet")

	c := New(dir, 1<<20)
	defer c.Close()

	await(t, func(done func()) {
		c.Store("k", []byte("v"), func(err error) {
			g.Expect(err).NotTo(HaveOccurred())
			done()
		})
	})

	info, statErr := os.Stat(dir)
	g.Expect(statErr).NotTo(HaveOccurred())
	g.Expect(info.IsDir()).To(BeTrue())
}

func Test_Cache_ExternallyDeletedFile_ReportsIOErrorAndLeavesIndexUnchanged(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()

	c := New(dir, 1<<20)
	defer c.Close()

	await(t, func(done func()) {
		c.Store("k", []byte("v"), func(err error) {
			g.Expect(err).NotTo(HaveOccurred())
			done()
		})
	})

	// Force the entry back to "not loaded" by reopening over the same
	// directory, then delete the backing file out from under it before the
	// first read.
	c2 := New(dir, 1<<20)
	defer c2.Close()
	g.Expect(os.Remove(c2.entryPath("k"))).To(Succeed())

	await(t, func(done func()) {
		c2.Retrieve("k", func(data []byte, err error) {
			g.Expect(rcerrors.Is(err, rcerrors.IOError)).To(BeTrue())
			done()
		})
	})

	// The index on disk must be untouched: the key is still present,
	// because the failed read must not have triggered a rewrite.
	raw, err := os.ReadFile(filepath.Join(dir, indexFileName))
	g.Expect(err).NotTo(HaveOccurred())
	records, err := decodeRecords(raw)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(records).To(Equal([]record{{Key: "k", Size: uint64(len("v"))}}))
}

func Test_Cache_ResourceURL_SynchronousAndDoesNotTouchOrder(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()

	c := New(dir, 1<<20)
	defer c.Close()

	_, ok := c.ResourceURL("absent")
	g.Expect(ok).To(BeFalse())

	await(t, func(done func()) {
		c.Store("k", []byte("v"), func(err error) {
			g.Expect(err).NotTo(HaveOccurred())
			done()
		})
	})

	await(t, func(done func()) {
		c.Store("other", []byte("w"), func(err error) {
			g.Expect(err).NotTo(HaveOccurred())
			done()
		})
	})

	url, ok := c.ResourceURL("k")
	g.Expect(ok).To(BeTrue())
	g.Expect(url).To(HavePrefix("file://"))
	g.Expect(url).To(HaveSuffix(entryFileName("k")))

	// "k" is still least recently used: ResourceURL did not touch it.
	g.Expect(c.storage.Snapshot()[0].Key).To(Equal("k"))
}

func Test_Cache_EmptyIndexFileIsTreatedAsEmpty(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()

	g.Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(dir, indexFileName), []byte{}, 0o644)).To(Succeed())

	c := New(dir, 1<<20)
	defer c.Close()

	await(t, func(done func()) {
		c.Retrieve("k", func(data []byte, err error) {
			g.Expect(rcerrors.Is(err, rcerrors.KeyNotFound)).To(BeTrue())
			done()
		})
	})
}

func Test_Cache_EvictionUnlinksBackingFile(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()

	c := New(dir, 10)
	defer c.Close()

	await(t, func(done func()) {
		c.Store("a", make([]byte, 6), func(err error) {
			g.Expect(err).NotTo(HaveOccurred())
			done()
		})
	})
	await(t, func(done func()) {
		c.Store("b", make([]byte, 6), func(err error) {
			g.Expect(err).NotTo(HaveOccurred())
			done()
		})
	})

	_, err := os.Stat(c.entryPath("a"))
	g.Expect(os.IsNotExist(err)).To(BeTrue())

	await(t, func(done func()) {
		c.Retrieve("a", func(data []byte, err error) {
			g.Expect(rcerrors.Is(err, rcerrors.KeyNotFound)).To(BeTrue())
			done()
		})
	})
}
