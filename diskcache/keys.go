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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// DeriveKey is the default cache-key derivation: take the last path
// component of rawURL, split it into stem and extension, compute a stable
// hash of the full URL string, and produce "<stem>-<hex-hash>[.<ext>]". If
// rawURL has no path component, the hex hash alone is returned. The hash is
// crypto/sha256 of the raw URL bytes, truncated to 16 hex characters —
// deterministic and platform-independent, with no locale-dependent casing
// and no floating point.
//
// sha256 is used directly from the standard library rather than an
// ecosystem hashing package: fluxcd/pkg/http/fetch.ArchiveFetcher computes
// its own content checksums with crypto/sha256 for the same reason (a
// fixed, well-known, non-cryptographically-sensitive digest of bytes the
// caller already controls); see DESIGN.md.
func DeriveKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	hexHash := hex.EncodeToString(sum[:])[:16]

	last := lastPathComponent(rawURL)
	if last == "" {
		return hexHash
	}

	stem, ext := splitStemExt(last)
	if ext == "" {
		return fmt.Sprintf("%s-%s", stem, hexHash)
	}
	return fmt.Sprintf("%s-%s.%s", stem, hexHash, ext)
}

// lastPathComponent returns the final non-empty segment of the URL's path,
// ignoring scheme/host/query/fragment. It works directly on the raw string
// rather than net/url.Parse so that a malformed or relative "URL" (which
// callers may legitimately pass, since key derivation operates on the raw
// URL string rather than a parsed structure) still yields a deterministic
// key instead of an error.
func lastPathComponent(rawURL string) string {
	s := rawURL
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		// Drop the host; what follows its first "/" is the path.
		if j := strings.Index(s, "/"); j >= 0 {
			s = s[j:]
		} else {
			s = ""
		}
	}
	s = strings.TrimRight(s, "/")
	if s == "" {
		return ""
	}
	return path.Base(s)
}

// splitStemExt splits name into a stem and an extension (without the dot).
// A leading-dot-only name (e.g. ".bashrc") has no extension, matching the
// common convention that a name is either hidden or has a suffix, not both.
func splitStemExt(name string) (stem, ext string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_.~"

var isUnreserved [256]bool

func init() {
	for _, c := range []byte(unreserved) {
		isUnreserved[c] = true
	}
}

// encodeKey percent-encodes key so it is safe as a single filesystem path
// component, escaping every byte outside the RFC3986 unreserved set
// (A-Z a-z 0-9 - _ . ~). It is deterministic; reversibility is not
// required.
//
// net/url's escapers (PathEscape, QueryEscape) each leave a different,
// wider set of characters unescaped (PathEscape keeps "/", QueryEscape
// turns " " into "+", etc.) because they target URL components, not
// filesystem names, so neither produces the exact unreserved-only encoding
// needed here; a small dedicated escaper is used instead (see DESIGN.md).
func encodeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isUnreserved[c] {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// entryFileName returns the on-disk file name for key: "file_<enc(key)>".
func entryFileName(key string) string {
	return "file_" + encodeKey(key)
}
