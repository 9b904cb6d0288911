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
	"sync/atomic"
	"unsafe"
)

// View is a virtual address range backed by a byte range of a Backing.
//
// A view owns its reserved span: the page-rounded address range it was mapped into.
// Views pinned inside that span with MapViewAt take over their part of it until they
// are unmapped.
type View struct {
	id      string
	backing *Backing
	ptr     unsafe.Pointer
	base    Addr
	length  int
	offset  int

	spanPtr   unsafe.Pointer
	span      Span
	mapOffset int

	pinned bool
	hostID string

	// Guarded by the Manager's lock.
	host     *View
	children []*View
	grafts   []segment

	unmapped atomic.Bool
	rel      *release
}

// ViewInfo is a point-in-time description of a View.
type ViewInfo struct {
	ID      string
	Backing string
	Base    Addr
	Length  int
	Offset  int
	Span    Span
	Pinned  bool
	Host    string
	Mapped  bool
}

// ID identifies the view within its Manager.
func (v *View) ID() string { return v.id }

// Backing is the object the view maps.
func (v *View) Backing() *Backing { return v.backing }

// Base is the address of the first byte of the view.
func (v *View) Base() Addr { return v.base }

// Len is the view length in bytes.
func (v *View) Len() int { return v.length }

// Offset is the backing offset of the first byte of the view.
func (v *View) Offset() int { return v.offset }

// Span is the page-rounded address range reserved by the view.
func (v *View) Span() Span { return v.span }

// Pinned reports whether the view was placed with MapViewAt.
func (v *View) Pinned() bool { return v.pinned }

// Mapped reports whether the view has not been unmapped yet.
func (v *View) Mapped() bool { return !v.unmapped.Load() }

// Bytes returns the mapped memory, or nil once the view is unmapped.
// The slice must not be used after UnmapView.
func (v *View) Bytes() []byte {
	if v.unmapped.Load() {
		return nil
	}
	return unsafe.Slice((*byte)(v.ptr), v.length)
}

// Info snapshots the view.
func (v *View) Info() ViewInfo {
	return ViewInfo{
		ID:      v.id,
		Backing: v.backing.id,
		Base:    v.base,
		Length:  v.length,
		Offset:  v.offset,
		Span:    v.span,
		Pinned:  v.pinned,
		Host:    v.hostID,
		Mapped:  v.Mapped(),
	}
}

// segment is a part of the address space and the backing offset it maps.
type segment struct {
	Span
	offset int
}

// cut returns the part of s inside [from, to), keeping offsets consistent.
func (s segment) cut(from, to Addr) (segment, bool) {
	if from < s.Base {
		from = s.Base
	}
	if to > s.End() {
		to = s.End()
	}
	if from >= to {
		return segment{}, false
	}
	return segment{Span: Span{Base: from, Len: int(to - from)}, offset: s.offset + int(from-s.Base)}, true
}

// overlay replaces the part of segs covered by top with top.
func overlay(segs []segment, top segment) []segment {
	out := make([]segment, 0, len(segs)+2)
	inserted := false
	for _, s := range segs {
		if left, ok := s.cut(s.Base, top.Base); ok {
			out = append(out, left)
		}
		if !inserted && s.Overlaps(top.Span) {
			out = append(out, top)
			inserted = true
		}
		if right, ok := s.cut(top.End(), s.End()); ok {
			out = append(out, right)
		}
	}
	return out
}

// layout describes what each part of the view's span maps, pinned views and
// grafts left by released pinned views included.
func (v *View) layout() []segment {
	segs := []segment{{Span: v.span, offset: v.mapOffset}}
	for _, g := range v.grafts {
		segs = overlay(segs, g)
	}
	for _, c := range v.children {
		for _, s := range c.layout() {
			segs = overlay(segs, s)
		}
	}
	return segs
}

func removeView(views []*View, v *View) []*View {
	for i, c := range views {
		if c == v {
			return append(views[:i], views[i+1:]...)
		}
	}
	return views
}
