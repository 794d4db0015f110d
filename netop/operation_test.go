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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func Test_NetworkOperation_SuccessParsesAndSetsResult(t *testing.T) {
	g := NewWithT(t)

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("7"))
	}))
	defer srv.Close()

	resource := Resource[int]{
		BaseURL: srv.URL,
		Path:    "/n",
		Parser: func(data []byte) (int, error) {
			return len(data), nil
		},
	}
	strategy := &manualStrategy{disposition: func(error) Disposition { return Completed }}
	op := NewOperation[int](resource, strategy, WithUserAgent[int]("rescache-test/1.0"))

	var got int
	done := make(chan struct{})
	op.Send(func(v int, err error) {
		g.Expect(err).NotTo(HaveOccurred())
		got = v
		close(done)
	})

	<-done
	g.Expect(got).To(Equal(1))
	g.Expect(gotUA).To(Equal("rescache-test/1.0"))
	g.Expect(op.IsFinished()).To(BeTrue())

	value, ok := op.Result()
	g.Expect(ok).To(BeTrue())
	g.Expect(value).To(Equal(1))
}

func Test_NetworkOperation_ParserErrorSurfacedAsParseError(t *testing.T) {
	g := NewWithT(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not-a-number"))
	}))
	defer srv.Close()

	resource := Resource[int]{
		BaseURL: srv.URL,
		Parser: func(data []byte) (int, error) {
			return 0, &parseErr{}
		},
	}
	strategy := &manualStrategy{disposition: func(error) Disposition { return Completed }}
	op := NewOperation[int](resource, strategy)

	var gotErr error
	done := make(chan struct{})
	op.Send(func(v int, err error) {
		gotErr = err
		close(done)
	})

	<-done
	g.Expect(gotErr).To(HaveOccurred())
	_, ok := op.Result()
	g.Expect(ok).To(BeFalse())
}

type parseErr struct{}

func (*parseErr) Error() string { return "bad parse" }

func Test_NetworkOperation_CancelPreventsResultAndCallback(t *testing.T) {
	g := NewWithT(t)

	requestReceived := make(chan struct{})
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(requestReceived)
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	resource := Resource[int]{
		BaseURL: srv.URL,
		Parser:  func(data []byte) (int, error) { return len(data), nil },
	}
	strategy := &manualStrategy{disposition: func(error) Disposition { return Completed }}
	op := NewOperation[int](resource, strategy)

	called := false
	sendDone := make(chan struct{})
	go func() {
		op.Send(func(int, error) { called = true })
		close(sendDone)
	}()

	<-requestReceived
	op.Cancel()
	<-sendDone

	g.Expect(called).To(BeFalse())
	_, ok := op.Result()
	g.Expect(ok).To(BeFalse())
}

func Test_NetworkOperation_WithParsePool(t *testing.T) {
	g := NewWithT(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("abc"))
	}))
	defer srv.Close()

	pool := NewParsePool(2)
	resource := Resource[string]{
		BaseURL: srv.URL,
		Parser: func(data []byte) (string, error) {
			return strings.ToUpper(string(data)), nil
		},
	}
	strategy := &manualStrategy{disposition: func(error) Disposition { return Completed }}
	op := NewOperation[string](resource, strategy, WithParsePool[string](pool))

	var got string
	done := make(chan struct{})
	op.Send(func(v string, err error) {
		g.Expect(err).NotTo(HaveOccurred())
		got = v
		close(done)
	})

	<-done
	pool.Wait()
	g.Expect(got).To(Equal("ABC"))
}

func Test_NetworkOperation_LifecycleDelegateOnRetry(t *testing.T) {
	g := NewWithT(t)

	var retries int
	attempt := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		if attempt == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resource := Resource[string]{
		BaseURL: srv.URL,
		Parser:  func(data []byte) (string, error) { return string(data), nil },
	}

	strategy := &manualStrategy{}
	strategy.disposition = func(error) Disposition { return WaitForRetry }

	delegate := delegateFunc(func() { retries++ })
	op := NewOperation[string](resource, strategy, WithLifecycleDelegate[string](delegate))

	done := make(chan struct{})
	op.Send(func(v string, err error) { close(done) })

	g.Eventually(func() int { return attempt }, time.Second).Should(Equal(1))
	strategy.delegate.PerformRetry()
	<-done

	g.Expect(retries).To(Equal(1))
}

type delegateFunc func()

func (f delegateFunc) OnRetry() { f() }
