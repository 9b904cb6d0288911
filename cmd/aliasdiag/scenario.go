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

package main

import (
	"context"
	"fmt"

	"github.com/srediag/shm-alias/internal/pattern"
	"github.com/srediag/shm-alias/pkg/shm"
)

const (
	patternAB = 0xab
	patternC  = 0x0c
)

// scenario is one backing laid out as A, B, C with a view of all of it and a
// stitched view of A followed by C.
type scenario struct {
	layout  *shm.Layout
	backing *shm.Backing
	abc     *shm.View
	ac      *shm.Stitched
}

// observation is what two probes of a view read.
type observation [2]byte

func (o observation) String() string {
	return fmt.Sprintf("%02x, %02x", o[0], o[1])
}

func newScenario(ctx context.Context, m *shm.Manager, layout *shm.Layout) (*scenario, error) {
	b, err := m.CreateBacking(ctx, layout.Total())
	if err != nil {
		return nil, err
	}
	abc, err := m.MapView(ctx, b, 0, layout.Total())
	if err != nil {
		return nil, err
	}
	extents, err := layout.Extents("A", "C")
	if err != nil {
		return nil, err
	}
	ac, err := m.Stitch(ctx, b, extents...)
	if err != nil {
		return nil, err
	}
	// Every view is in place; the mappings outlive the handle.
	if err := m.ReleaseBacking(b); err != nil {
		return nil, err
	}
	return &scenario{layout: layout, backing: b, abc: abc, ac: ac}, nil
}

// exercise writes through one view and reads through the other, both ways.
// sm4 is what the stitched view sees at A and C after writing through the full view;
// sm0 is what the full view sees at A and C after writing through the stitched view.
func (s *scenario) exercise(f *pattern.Filler) (sm4, sm0 observation, err error) {
	a, _ := s.layout.Extent("A")
	c, _ := s.layout.Extent("C")
	abc, ac := s.abc.Bytes(), s.ac.Bytes()

	if err := f.Fill(abc[:c.Offset], patternAB); err != nil {
		return sm4, sm0, err
	}
	if err := f.Fill(abc[c.Offset:c.End()], patternC); err != nil {
		return sm4, sm0, err
	}
	sm4 = observation{ac[0], ac[a.Length]}
	if err := f.Check(ac[:a.Length], patternAB); err != nil {
		return sm4, sm0, fmt.Errorf("stitched view, segment A: %w", err)
	}
	if err := f.Check(ac[a.Length:], patternC); err != nil {
		return sm4, sm0, fmt.Errorf("stitched view, segment C: %w", err)
	}

	if err := f.Fill(ac, patternC); err != nil {
		return sm4, sm0, err
	}
	sm0 = observation{abc[a.Offset], abc[c.Offset]}
	if err := f.Check(abc[a.Offset:a.End()], patternC); err != nil {
		return sm4, sm0, fmt.Errorf("full view, segment A: %w", err)
	}
	if err := f.Check(abc[c.Offset:c.End()], patternC); err != nil {
		return sm4, sm0, fmt.Errorf("full view, segment C: %w", err)
	}
	return sm4, sm0, nil
}
