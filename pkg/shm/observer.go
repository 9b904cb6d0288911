/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Observer is notified synchronously of manager lifecycle events.
// Implementations must not call back into the Manager.
type Observer interface {
	BackingCreated(BackingInfo)
	BackingReleased(BackingInfo)
	ViewMapped(ViewInfo)
	ViewUnmapped(ViewInfo)
	MapFailed(op string, err error)
	UnmapWarned(*UnmapWarning)
}

type observers []Observer

func (o observers) BackingCreated(b BackingInfo) {
	for _, ob := range o {
		ob.BackingCreated(b)
	}
}

func (o observers) BackingReleased(b BackingInfo) {
	for _, ob := range o {
		ob.BackingReleased(b)
	}
}

func (o observers) ViewMapped(v ViewInfo) {
	for _, ob := range o {
		ob.ViewMapped(v)
	}
}

func (o observers) ViewUnmapped(v ViewInfo) {
	for _, ob := range o {
		ob.ViewUnmapped(v)
	}
}

func (o observers) MapFailed(op string, err error) {
	for _, ob := range o {
		ob.MapFailed(op, err)
	}
}

func (o observers) UnmapWarned(w *UnmapWarning) {
	for _, ob := range o {
		ob.UnmapWarned(w)
	}
}

const metricsNamespace = "shm_alias"

type metrics struct {
	backingsActive prometheus.Gauge
	backingBytes   prometheus.Gauge
	viewsActive    *prometheus.GaugeVec
	viewBytes      prometheus.Gauge
	mapsTotal      *prometheus.CounterVec
	unmapWarnings  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		backingsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "backings_active",
			Help:      "Backing objects whose handle is still open.",
		}),
		backingBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "backing_bytes",
			Help:      "Total length of open backing objects.",
		}),
		viewsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "views_active",
			Help:      "Mapped views by placement.",
		}, []string{"placement"}),
		viewBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "view_bytes",
			Help:      "Total length of mapped views.",
		}),
		mapsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "map_operations_total",
			Help:      "Map requests by operation and result.",
		}, []string{"op", "result"}),
		unmapWarnings: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unmap_warnings_total",
			Help:      "Unmap requests the host refused.",
		}),
	}
}

func placement(pinned bool) string {
	if pinned {
		return "fixed"
	}
	return "system"
}

func (m *metrics) BackingCreated(b BackingInfo) {
	m.backingsActive.Inc()
	m.backingBytes.Add(float64(b.Length))
}

func (m *metrics) BackingReleased(b BackingInfo) {
	m.backingsActive.Dec()
	m.backingBytes.Sub(float64(b.Length))
}

func (m *metrics) ViewMapped(v ViewInfo) {
	m.viewsActive.WithLabelValues(placement(v.Pinned)).Inc()
	m.viewBytes.Add(float64(v.Length))
	op := "map_view"
	if v.Pinned {
		op = "map_view_at"
	}
	m.mapsTotal.WithLabelValues(op, "ok").Inc()
}

func (m *metrics) ViewUnmapped(v ViewInfo) {
	m.viewsActive.WithLabelValues(placement(v.Pinned)).Dec()
	m.viewBytes.Sub(float64(v.Length))
}

func (m *metrics) MapFailed(op string, _ error) {
	m.mapsTotal.WithLabelValues(op, "error").Inc()
}

func (m *metrics) UnmapWarned(*UnmapWarning) {
	m.unmapWarnings.Inc()
}
