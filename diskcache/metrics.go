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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	eventHit  = "cache_hit"
	eventMiss = "cache_miss"
)

// metrics mirrors the shape of fluxcd/pkg/cache's cacheMetrics: a
// self-instrumenting cache that stays a no-op when no Registerer is
// supplied (every recordX helper below tolerates a nil *metrics).
type metrics struct {
	events    *prometheus.CounterVec
	items     prometheus.Gauge
	evictions prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	return &metrics{
		events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rescache_diskcache_events_total",
			Help: "Total number of disk cache retrieval events, partitioned by cache_hit/cache_miss.",
		}, []string{"event_type"}),
		items: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rescache_diskcache_items",
			Help: "Current number of entries held by the disk cache index.",
		}),
		evictions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rescache_diskcache_evictions_total",
			Help: "Total number of entries evicted from the disk cache.",
		}),
	}
}

func (m *metrics) recordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

func (m *metrics) setItems(n int) {
	if m == nil {
		return
	}
	m.items.Set(float64(n))
}

func (m *metrics) recordEviction(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}
