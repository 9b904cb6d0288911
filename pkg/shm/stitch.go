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
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Stitched is a contiguous view assembled from several backing extents.
type Stitched struct {
	m     *Manager
	Host  *View
	Parts []*View
}

// Bytes returns the assembled memory: each extent follows the previous one.
func (s *Stitched) Bytes() []byte { return s.Host.Bytes() }

// Len is the sum of the extent lengths.
func (s *Stitched) Len() int { return s.Host.Len() }

// Unmap releases the parts and then the host.
func (s *Stitched) Unmap() {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.unmap()
}

func (s *Stitched) unmap() {
	for i := len(s.Parts) - 1; i >= 0; i-- {
		s.m.unmapView(s.Parts[i])
	}
	s.m.unmapView(s.Host)
}

// Stitch maps extents of b so that they appear back to back in one address range.
//
// A host view as long as all extents together is mapped first. When the first extent
// can be extended in place it becomes the start of the host; every other extent is then
// pinned at its position in the host. Every extent but the last must therefore be a
// whole number of pages long, and pinned extents must start on a page boundary.
func (m *Manager) Stitch(ctx context.Context, b *Backing, extents ...Extent) (st *Stitched, err error) {
	_, span := m.tracer.Start(ctx, "shm.Stitch", trace.WithAttributes(attribute.Int("extents", len(extents))))
	defer func() { endSpan(span, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	st, err = m.stitch(b, extents)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("host", st.Host.id), attribute.Int("length", st.Len()))
	return st, nil
}

func (m *Manager) stitch(b *Backing, extents []Extent) (*Stitched, error) {
	if b == nil {
		return nil, &MapError{Op: "stitch", Err: errNilArgument}
	}
	if len(extents) == 0 {
		return nil, &RangeError{Op: "stitch", Limit: b.length, Reason: "no extents"}
	}

	total := 0
	for _, e := range extents {
		if e.Length <= 0 || e.Offset < 0 || e.Offset > b.length-e.Length {
			return nil, &RangeError{Op: "stitch", Offset: e.Offset, Length: e.Length, Limit: b.length, Reason: "outside the backing"}
		}
		total += e.Length
	}

	hostOffset, pinned := extents[0].Offset, extents[1:]
	rel := extents[0].Length
	switch {
	case total <= b.length-extents[0].Offset:
	case total <= b.length:
		hostOffset, pinned, rel = 0, extents, 0
	default:
		return nil, &RangeError{Op: "stitch", Length: total, Limit: b.length,
			Reason: fmt.Sprintf("%d extents need %d bytes", len(extents), total)}
	}

	host, err := m.mapView(b, hostOffset, total)
	if err != nil {
		m.obs.MapFailed("map_view", err)
		return nil, err
	}
	st := &Stitched{m: m, Host: host}
	for _, e := range pinned {
		part, err := m.mapViewAt(host, rel, b, e.Offset, e.Length)
		if err != nil {
			m.obs.MapFailed("map_view_at", err)
			for i := len(st.Parts) - 1; i >= 0; i-- {
				m.unmapView(st.Parts[i])
			}
			m.unmapView(host)
			return nil, fmt.Errorf("stitch extent at %d: %w", e.Offset, err)
		}
		st.Parts = append(st.Parts, part)
		rel += e.Length
	}
	return st, nil
}
