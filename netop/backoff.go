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
	"math/rand"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/pflag"
)

// jitterFunc modifies a duration with jitter; adapted from
// fluxcd/pkg/runtime/jitter.Duration/Percent. The ctrl.Result-shaping half
// of that package (jitter.Interval's RequeueAfterResult) jitters Kubernetes
// reconciler requeue results, which have no counterpart here, so only the
// bare Duration-jitter function survives, folded directly into this package
// instead of kept as a separate runtime/jitter dependency (see DESIGN.md).
// jitter.Interval's pflag-bound half of the API does have a counterpart
// here, though: JitterOptions below.
type jitterFunc func(time.Duration) time.Duration

const (
	flagMaxRetries = "retry-max-retries"
	flagMinWait    = "retry-min-wait"
	flagMaxWait    = "retry-max-wait"
	flagJitter     = "retry-jitter-percent"
)

// JitterOptions is the pflag-bindable configuration for a
// StatusBasedStrategy, mirroring fluxcd/pkg/runtime/jitter.Interval.BindFlags.
type JitterOptions struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
	Jitter     float64
}

// BindFlags binds JitterOptions fields to fs.
func (o *JitterOptions) BindFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.MaxRetries, flagMaxRetries, 4,
		"Maximum number of retries for a retryable network failure.")
	fs.DurationVar(&o.MinWait, flagMinWait, 500*time.Millisecond,
		"Minimum wait before a retried attempt.")
	fs.DurationVar(&o.MaxWait, flagMaxWait, 30*time.Second,
		"Maximum wait before a retried attempt.")
	fs.Float64Var(&o.Jitter, flagJitter, 0.1,
		"Jitter applied to the backoff wait, as a fraction in [0, 1).")
}

// percentJitter returns a jitterFunc that modifies a duration by a random
// percentage in [-p, p], sign chosen at random each call. p outside (0, 1)
// disables jitter.
func percentJitter(p float64, r *rand.Rand) jitterFunc {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if p <= 0 || p >= 1 {
		return func(d time.Duration) time.Duration { return d }
	}
	return func(d time.Duration) time.Duration {
		randomP := p * (2*r.Float64() - 1)
		return time.Duration(float64(d) * (1 + randomP))
	}
}

// backoffCurve computes the delay before attemptNum's retry, reusing
// retryablehttp.DefaultBackoff's exponential curve rather than
// reimplementing it, then applying jitter on top.
func backoffCurve(min, max time.Duration, attemptNum int, jitter jitterFunc) time.Duration {
	d := retryablehttp.DefaultBackoff(min, max, attemptNum, nil)
	if jitter == nil {
		return d
	}
	return jitter(d)
}
