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
	"bytes"
	"fmt"
	"net/http"
	"net/url"
)

// Resource[T] describes a request to issue plus how to parse its response
// body into T: path + method + query params + headers + body + parser.
type Resource[T any] struct {
	BaseURL string
	Path    string
	Method  string
	Params  map[string]string
	Headers http.Header
	Body    []byte
	Parser  func([]byte) (T, error)
}

// buildRequest turns a Resource into an *http.Request, erroring via
// rcerrors.FailedToCreateResource semantics if the resource cannot produce
// one.
func (r Resource[T]) buildRequest() (*http.Request, error) {
	if r.Parser == nil {
		return nil, fmt.Errorf("resource has no parser")
	}

	u, err := url.Parse(r.BaseURL + r.Path)
	if err != nil {
		return nil, err
	}
	if len(r.Params) > 0 {
		q := u.Query()
		for k, v := range r.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequest(method, u.String(), bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	for k, values := range r.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}
