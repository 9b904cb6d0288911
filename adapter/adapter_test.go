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

package adapter

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/srediag/shm-alias/pkg/shm"
)

type recordingMeter struct {
	noop.Meter
	totals map[string]int64
}

func (m *recordingMeter) Int64UpDownCounter(name string, _ ...metric.Int64UpDownCounterOption) (metric.Int64UpDownCounter, error) {
	return &recordingUpDownCounter{name: name, totals: m.totals}, nil
}

func (m *recordingMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return &recordingCounter{name: name, totals: m.totals}, nil
}

type recordingUpDownCounter struct {
	noop.Int64UpDownCounter
	name   string
	totals map[string]int64
}

func (c *recordingUpDownCounter) Add(_ context.Context, n int64, _ ...metric.AddOption) {
	c.totals[c.name] += n
}

type recordingCounter struct {
	noop.Int64Counter
	name   string
	totals map[string]int64
}

func (c *recordingCounter) Add(_ context.Context, n int64, _ ...metric.AddOption) {
	c.totals[c.name] += n
}

type fakeHealth struct {
	verifyErr, err error
}

func (f *fakeHealth) Verify() error { return f.verifyErr }
func (f *fakeHealth) Err() error { return f.err }

type AdapterTestSuite struct {
	suite.Suite
}

func (s *AdapterTestSuite) TestOTelObserver() {
	meter := &recordingMeter{totals: map[string]int64{}}
	o, err := NewOTelObserver(meter)
	s.Require().NoError(err)

	o.BackingCreated(shm.BackingInfo{ID: "b1", Length: 8192})
	o.ViewMapped(shm.ViewInfo{ID: "v1", Length: 8192})
	o.ViewMapped(shm.ViewInfo{ID: "v2", Length: 4096, Pinned: true})
	o.ViewUnmapped(shm.ViewInfo{ID: "v2", Length: 4096, Pinned: true})
	o.MapFailed("map_view_at", errors.New("boom"))
	o.UnmapWarned(&shm.UnmapWarning{View: "v3"})

	s.Equal(map[string]int64{
		"shm.backings.active": 1,
		"shm.views.active":    1,
		"shm.views.bytes":     8192,
		"shm.map.failures":    1,
		"shm.unmap.warnings":  1,
	}, meter.totals)

	o.BackingReleased(shm.BackingInfo{ID: "b1"})
	s.Equal(int64(0), meter.totals["shm.backings.active"])
}

func (s *AdapterTestSuite) TestOTelObserverWithNoopMeter() {
	o, err := NewOTelObserver(noop.NewMeterProvider().Meter("test"))
	s.Require().NoError(err)
	s.NotPanics(func() { o.ViewMapped(shm.ViewInfo{Length: 1}) })
}

func (s *AdapterTestSuite) TestAuditObserver() {
	var buf bytes.Buffer
	a := NewAuditObserver(log.NewLogfmtLogger(&buf))
	a.ViewMapped(shm.ViewInfo{ID: "v2", Backing: "b1", Pinned: true, Host: "v1"})
	a.UnmapWarned(&shm.UnmapWarning{View: "v2", Err: errors.New("refused")})

	out := buf.String()
	s.Contains(out, "component=audit")
	s.Contains(out, "event=view_mapped")
	s.Contains(out, "pinned=true host=v1")
	s.Contains(out, "event=unmap_warning view=v2")
	s.Contains(out, "err=refused")
}

func (s *AdapterTestSuite) probe(h http.Handler, path string) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func (s *AdapterTestSuite) TestHealthHandler() {
	f := &fakeHealth{}
	h := NewHealthHandler(f, nil)
	s.Equal(http.StatusOK, s.probe(h, "/live"))
	s.Equal(http.StatusOK, s.probe(h, "/ready"))

	f.verifyErr = errors.New("view v1 not mapped")
	s.Equal(http.StatusServiceUnavailable, s.probe(h, "/live"))
	s.Equal(http.StatusServiceUnavailable, s.probe(h, "/ready"))

	f.verifyErr = nil
	f.err = shm.ErrClosed
	s.Equal(http.StatusOK, s.probe(h, "/live"))
	s.Equal(http.StatusServiceUnavailable, s.probe(h, "/ready"))
}

func (s *AdapterTestSuite) TestHealthHandlerExportsMetrics() {
	reg := prometheus.NewRegistry()
	h := NewHealthHandler(&fakeHealth{}, reg)
	s.Equal(http.StatusOK, s.probe(h, "/ready"))

	families, err := reg.Gather()
	s.Require().NoError(err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	s.Contains(names, "shm_alias_healthcheck_status")
}

func TestAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(AdapterTestSuite))
}
