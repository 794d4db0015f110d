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

// Package rcerrors is the shared error taxonomy for diskcache, request and
// netop. It is the same Reason + wrapped-Err envelope as
// github.com/fluxcd/pkg/cache's CacheError, with the Kind/NamespacedName
// fields of github.com/fluxcd/pkg/runtime/errors's tagged error structs
// dropped, since this domain has no resource-kind/namespaced-name concept —
// a cache entry is identified by a single opaque key.
package rcerrors

import (
	"errors"
	"fmt"
)

// Reason names one of this package's error kinds. It is a distinct
// comparable value (not a plain string) so that errors.Is can match on
// Reason alone, the way CacheErrorReason does in fluxcd/pkg/cache.
type Reason struct {
	reason string
	msg    string
}

// Error satisfies the error interface so a bare Reason can be compared with
// errors.Is against an *Error's Reason field.
func (r Reason) Error() string { return r.msg }

// String returns the short machine-readable name of the reason.
func (r Reason) String() string { return r.reason }

var (
	// KeyNotFound: the cache has no record of this key.
	KeyNotFound = Reason{"KeyNotFound", "key not found"}
	// IOError: a filesystem operation failed.
	IOError = Reason{"IOError", "i/o error"}
	// IndexCorruption: the index file was unreadable; recovered by treating
	// it as empty. Reported via the logger, never returned to a caller.
	IndexCorruption = Reason{"IndexCorruption", "index corrupted"}
	// TransportError: the network layer failed before producing an HTTP
	// response.
	TransportError = Reason{"TransportError", "transport error"}
	// HTTPError: the server produced a non-success status.
	HTTPError = Reason{"HTTPError", "http error"}
	// ParseError: the resource parser rejected the response body.
	ParseError = Reason{"ParseError", "parse error"}
	// FailedToCreateResource: the resource factory returned nothing at send
	// time.
	FailedToCreateResource = Reason{"FailedToCreateResource", "failed to create resource"}
	// Cancelled: the operation was cancelled before producing a result.
	Cancelled = Reason{"Cancelled", "cancelled"}
)

// Error wraps a Reason with the underlying cause, if any.
type Error struct {
	Reason Reason
	Err    error
	// Status carries the HTTP status code for Reason == HTTPError; zero for
	// all other reasons.
	Status int
}

// New returns an *Error with no wrapped cause.
func New(reason Reason) *Error {
	return &Error{Reason: reason}
}

// Wrap returns an *Error wrapping err under reason. If err is nil, Wrap
// returns nil.
func Wrap(reason Reason, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Reason: reason, Err: err}
}

// WrapHTTP returns an *Error for HTTPError carrying the response status.
func WrapHTTP(status int, err error) *Error {
	return &Error{Reason: HTTPError, Err: err, Status: status}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason.Error(), e.Err.Error())
}

// Is reports whether target equals e.Reason or matches the wrapped Err,
// mirroring CacheError.Is so callers can write errors.Is(err, rcerrors.KeyNotFound).
func (e *Error) Is(target error) bool {
	if r, ok := target.(Reason); ok {
		return e.Reason == r
	}
	return errors.Is(e.Err, target)
}

// Unwrap returns the wrapped cause, or nil.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err carries the given Reason, whether as the Reason of
// an *Error or directly (err == Reason).
func Is(err error, reason Reason) bool {
	return errors.Is(err, reason)
}
