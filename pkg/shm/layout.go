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
	"errors"
	"fmt"
)

// Segment is a named part of a backing, sized in bytes.
type Segment struct {
	Name string
	Size int
}

// Extent is a byte range of a backing.
type Extent struct {
	Offset int
	Length int
}

// End is the backing offset just past the extent.
func (e Extent) End() int { return e.Offset + e.Length }

// Layout places segments back to back from offset 0.
type Layout struct {
	segments []Segment
	offsets  map[string]int
	total    int
}

// NewLayout lays out segments in order. Names must be unique and sizes positive.
func NewLayout(segments ...Segment) (*Layout, error) {
	if len(segments) == 0 {
		return nil, errors.New("layout needs at least one segment")
	}
	l := &Layout{
		segments: make([]Segment, 0, len(segments)),
		offsets:  make(map[string]int, len(segments)),
	}
	for _, seg := range segments {
		if seg.Size <= 0 {
			return nil, fmt.Errorf("segment %q: size must be positive, got %d", seg.Name, seg.Size)
		}
		if _, dup := l.offsets[seg.Name]; dup {
			return nil, fmt.Errorf("segment %q declared twice", seg.Name)
		}
		if l.total > int(^uint(0)>>1)-seg.Size {
			return nil, fmt.Errorf("segment %q: layout size overflows", seg.Name)
		}
		l.offsets[seg.Name] = l.total
		l.segments = append(l.segments, seg)
		l.total += seg.Size
	}
	return l, nil
}

// Total is the backing length the layout needs.
func (l *Layout) Total() int { return l.total }

// Segments returns the segments in layout order.
func (l *Layout) Segments() []Segment {
	out := make([]Segment, len(l.segments))
	copy(out, l.segments)
	return out
}

// Extent returns where the named segment lives in the backing.
func (l *Layout) Extent(name string) (Extent, error) {
	off, ok := l.offsets[name]
	if !ok {
		return Extent{}, fmt.Errorf("no segment named %q", name)
	}
	for _, seg := range l.segments {
		if seg.Name == name {
			return Extent{Offset: off, Length: seg.Size}, nil
		}
	}
	return Extent{}, fmt.Errorf("no segment named %q", name)
}

// Extents returns the extents of names, in the order given.
func (l *Layout) Extents(names ...string) ([]Extent, error) {
	out := make([]Extent, 0, len(names))
	for _, name := range names {
		e, err := l.Extent(name)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
