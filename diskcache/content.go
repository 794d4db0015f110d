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

// content is an entry's in-memory state: an entry known to the index is
// either notLoaded (bytes live on disk only, size known) or loaded (bytes
// resident in memory, and also on disk). It implements lrustore.Sized so a
// lrustore.Store[content] can bound the cache by byte size regardless of
// which variant an entry is currently in.
type content struct {
	size  uint64
	bytes []byte // nil unless loaded
}

func notLoaded(size uint64) content {
	return content{size: size}
}

func loaded(bytes []byte) content {
	if bytes == nil {
		bytes = []byte{}
	}
	return content{size: uint64(len(bytes)), bytes: bytes}
}

// Size returns the stored byte count, regardless of variant.
func (c content) Size() uint64 {
	return c.size
}

// isLoaded reports whether bytes are resident in memory.
func (c content) isLoaded() bool {
	return c.bytes != nil
}
