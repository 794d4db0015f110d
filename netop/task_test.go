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
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

// manualStrategy lets a test drive the WaitForRetry -> PerformRetry
// transition explicitly instead of waiting on a real timer.
type manualStrategy struct {
	disposition func(err error) Disposition
	delegate    RetryDelegate
}

func (s *manualStrategy) Policy(err error, url string) Disposition {
	return s.disposition(err)
}
func (s *manualStrategy) SetDelegate(d RetryDelegate) { s.delegate = d }

func Test_Task_SuccessOnFirstAttempt(t *testing.T) {
	g := NewWithT(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	strategy := &manualStrategy{disposition: func(error) Disposition { return Completed }}
	task := NewTask(req, strategy)

	var data []byte
	var err error
	done := make(chan struct{})
	task.Resume(func(d []byte, e error) { data, err = d, e; close(done) })

	<-done
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(Equal("ok"))
}

// Retry-then-success: a transport failure on the first attempt is retried,
// and the callback fires exactly once with the eventual result.
func Test_Task_RetryThenSuccess(t *testing.T) {
	g := NewWithT(t)

	var attempt int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempt, 1) == 1 {
			// Close the connection early to force a transport error on the
			// first attempt.
			hj, ok := w.(http.Hijacker)
			if !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.Write([]byte("second try"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	strategy := &manualStrategy{}
	strategy.disposition = func(err error) Disposition { return WaitForRetry }
	task := NewTask(req, strategy)

	var calls int32
	var data []byte
	var resultErr error
	done := make(chan struct{})
	task.Resume(func(d []byte, e error) {
		atomic.AddInt32(&calls, 1)
		data, resultErr = d, e
		close(done)
	})

	// The first attempt fails and the strategy says WaitForRetry; nothing
	// has been delivered yet. Trigger the retry manually.
	g.Eventually(func() int32 { return atomic.LoadInt32(&attempt) }, time.Second).Should(Equal(int32(1)))
	strategy.delegate.PerformRetry()

	<-done
	g.Expect(resultErr).NotTo(HaveOccurred())
	g.Expect(string(data)).To(Equal("second try"))
	g.Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
}

func Test_Task_NonRetryableHTTPError(t *testing.T) {
	g := NewWithT(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	strategy := NewStatusBasedStrategy(3, time.Millisecond, 10*time.Millisecond)
	task := NewTask(req, strategy)

	var resultErr error
	done := make(chan struct{})
	task.Resume(func(d []byte, e error) { resultErr = e; close(done) })

	<-done
	g.Expect(resultErr).To(HaveOccurred())
}

// A custom ErrorInferrer replaces the default status >= 400 rule entirely:
// here a 404 is treated as a successful empty result instead of failure.
func Test_Task_WithErrorInferrer_OverridesDefaultStatusRule(t *testing.T) {
	g := NewWithT(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	strategy := &manualStrategy{disposition: func(error) Disposition { return Completed }}
	treatNotFoundAsSuccess := func(resp *http.Response, data []byte) error {
		if resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return defaultErrorInferrer(resp, data)
	}
	task := NewTask(req, strategy, WithErrorInferrer(treatNotFoundAsSuccess))

	var data []byte
	var resultErr error
	done := make(chan struct{})
	task.Resume(func(d []byte, e error) { data, resultErr = d, e; close(done) })

	<-done
	g.Expect(resultErr).NotTo(HaveOccurred())
	g.Expect(data).To(BeEmpty())
}

func Test_Task_CancelPreventsCallback(t *testing.T) {
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

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	strategy := &manualStrategy{disposition: func(error) Disposition { return Completed }}
	task := NewTask(req, strategy)

	called := false
	resumeDone := make(chan struct{})
	go func() {
		task.Resume(func([]byte, error) { called = true })
		close(resumeDone)
	}()

	<-requestReceived
	task.Cancel()
	task.Cancel() // idempotent

	<-resumeDone
	g.Expect(called).To(BeFalse())
}
