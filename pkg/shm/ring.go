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
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-kit/log/level"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	internalshm "github.com/srediag/shm-alias/internal/shm"
)

// EntryType tags the payload of a ring entry.
type EntryType uint64

const (
	// EntrySimple carries one uint64.
	EntrySimple EntryType = iota
	// EntryDouble carries two uint64 values.
	EntryDouble
)

// EntryHeaderSize is the size of the (type, size) header in front of every payload.
const EntryHeaderSize = 16

const (
	entryAlign    = 8
	cursorWrite   = 0
	cursorRead    = 8
	cursorRelease = 16
)

var (
	// ErrRingFull is returned by Push when the unreleased entries leave too little room.
	ErrRingFull = errors.New("shm: ring full")
	// ErrRingEmpty is returned by Read and Pop when every entry was read.
	ErrRingEmpty = errors.New("shm: ring empty")
)

// CorruptEntryError reports an entry header that cannot describe a valid entry.
type CorruptEntryError struct {
	Pos  uint64
	Size uint64
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("shm: ring entry at %d claims %d payload bytes", e.Pos, e.Size)
}

// Entry is one typed record of a Ring. A Payload returned by Read aliases ring
// memory and stays valid until Release.
type Entry struct {
	Type    EntryType
	Payload []byte
}

// Values decodes the payload as native-endian uint64 words.
func (e Entry) Values() []uint64 {
	vals := make([]uint64, len(e.Payload)/8)
	for i := range vals {
		vals[i] = binary.NativeEndian.Uint64(e.Payload[i*8:])
	}
	return vals
}

// Ring is a circular buffer of typed entries in a shared backing.
//
// The first page of the backing holds the write, read and release cursors. The data
// area is mapped twice back to back, so an entry that runs past the end of the data
// area continues at its start and is read and written as one contiguous slice.
// Cursors only grow; an entry lives at cursor modulo Capacity.
//
// A Ring has one producer and one consumer, possibly in different goroutines or in
// different processes sharing the backing.
type Ring struct {
	m        *Manager
	backing  *Backing
	owner    bool
	ctrl     *View
	mirror   *Stitched
	capacity int
	data     []byte
	cursors  unsafe.Pointer
}

// CreateRing allocates a backing for a ring of capacity data bytes, a positive multiple
// of the page size, and maps it. Closing the ring releases the backing.
//
// The backing reserves twice the capacity so the mirror can be laid out in place; the
// upper half is shadowed by the second mapping and never touched.
func (m *Manager) CreateRing(ctx context.Context, capacity int) (r *Ring, err error) {
	_, span := m.tracer.Start(ctx, "shm.CreateRing", trace.WithAttributes(attribute.Int("capacity", capacity)))
	defer func() { endSpan(span, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if capacity <= 0 || capacity%m.pageSize != 0 {
		return nil, &RangeError{Op: "create_ring", Length: capacity, Limit: m.pageSize,
			Reason: "capacity must be a positive multiple of the page size"}
	}
	b, err := m.createBacking(m.pageSize + 2*capacity)
	if err != nil {
		return nil, err
	}
	r, err = m.attachRing(b)
	if err != nil {
		if rerr := b.rel.run(); rerr != nil {
			level.Warn(m.logger).Log("msg", "release ring backing failed", "backing", b.id, "err", rerr)
		}
		return nil, err
	}
	r.owner = true
	span.SetAttributes(attribute.String("backing", b.id))
	return r, nil
}

// AttachRing maps the ring held by b, created by CreateRing, at new addresses.
// Both rings share cursors and data.
func (m *Manager) AttachRing(ctx context.Context, b *Backing) (r *Ring, err error) {
	_, span := m.tracer.Start(ctx, "shm.AttachRing")
	defer func() { endSpan(span, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.attachRing(b)
}

func (m *Manager) attachRing(b *Backing) (*Ring, error) {
	if b == nil {
		return nil, &MapError{Op: "attach_ring", Err: errNilArgument}
	}
	data := b.length - m.pageSize
	if data <= 0 || data%(2*m.pageSize) != 0 {
		return nil, &RangeError{Op: "attach_ring", Length: b.length, Limit: m.pageSize,
			Reason: "backing does not hold a cursor page and a mirrored data area"}
	}
	capacity := data / 2

	ctrl, err := m.mapView(b, 0, m.pageSize)
	if err != nil {
		m.obs.MapFailed("map_view", err)
		return nil, err
	}
	area := Extent{Offset: m.pageSize, Length: capacity}
	mirror, err := m.stitch(b, []Extent{area, area})
	if err != nil {
		m.unmapView(ctrl)
		return nil, err
	}
	r := &Ring{
		m:        m,
		backing:  b,
		ctrl:     ctrl,
		mirror:   mirror,
		capacity: capacity,
		data:     mirror.Bytes(),
		cursors:  ctrl.ptr,
	}
	level.Debug(m.logger).Log("msg", "ring mapped", "backing", b.id, "capacity", capacity,
		"cursors", ctrl.base, "data", mirror.Host.base)
	return r, nil
}

// Backing returns the backing holding the ring, for AttachRing.
func (r *Ring) Backing() *Backing { return r.backing }

// Capacity is the size of the data area in bytes, headers included.
func (r *Ring) Capacity() int { return r.capacity }

func (r *Ring) load(cursor int) uint64 {
	return internalshm.AtomicLoadUint64(unsafe.Add(r.cursors, cursor))
}

func (r *Ring) store(cursor int, val uint64) {
	internalshm.AtomicStoreUint64(unsafe.Add(r.cursors, cursor), val)
}

// Len is the number of bytes pushed but not read yet.
func (r *Ring) Len() int { return int(r.load(cursorWrite) - r.load(cursorRead)) }

// Free is the number of bytes Push can still use, headers and padding included.
func (r *Ring) Free() int {
	return r.capacity - int(r.load(cursorWrite)-r.load(cursorRelease))
}

func entrySize(payload int) int {
	return EntryHeaderSize + roundUp(payload, entryAlign)
}

// Push appends an entry of type typ. Payloads are padded to 8 bytes.
func (r *Ring) Push(typ EntryType, payload []byte) error {
	need := entrySize(len(payload))
	if need > r.capacity {
		return &RangeError{Op: "ring_push", Length: len(payload), Limit: r.capacity - EntryHeaderSize,
			Reason: "entry does not fit in the ring"}
	}
	w := r.load(cursorWrite)
	if need > r.capacity-int(w-r.load(cursorRelease)) {
		return ErrRingFull
	}
	pos := int(w % uint64(r.capacity))
	entry := r.data[pos : pos+need]
	binary.NativeEndian.PutUint64(entry[0:], uint64(typ))
	binary.NativeEndian.PutUint64(entry[8:], uint64(len(payload)))
	copy(entry[EntryHeaderSize:], payload)
	r.store(cursorWrite, w+uint64(need))
	return nil
}

// PushValues appends an entry whose payload is vals in native byte order.
func (r *Ring) PushValues(typ EntryType, vals ...uint64) error {
	payload := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.NativeEndian.PutUint64(payload[i*8:], v)
	}
	return r.Push(typ, payload)
}

// Read returns the oldest unread entry without freeing its space.
func (r *Ring) Read() (Entry, error) {
	rd, w := r.load(cursorRead), r.load(cursorWrite)
	if rd == w {
		return Entry{}, ErrRingEmpty
	}
	pos := int(rd % uint64(r.capacity))
	typ := binary.NativeEndian.Uint64(r.data[pos:])
	size := binary.NativeEndian.Uint64(r.data[pos+8:])
	if size > uint64(r.capacity-EntryHeaderSize) || rd+uint64(entrySize(int(size))) > w {
		return Entry{}, &CorruptEntryError{Pos: rd, Size: size}
	}
	start := pos + EntryHeaderSize
	e := Entry{Type: EntryType(typ), Payload: r.data[start : start+int(size) : start+int(size)]}
	r.store(cursorRead, rd+uint64(entrySize(int(size))))
	return e, nil
}

// Release frees the space of every entry read so far.
func (r *Ring) Release() {
	for {
		rel, rd := r.load(cursorRelease), r.load(cursorRead)
		if rel >= rd || internalshm.AtomicCompareAndSwapUint64(unsafe.Add(r.cursors, cursorRelease), rel, rd) {
			return
		}
	}
}

// Pop reads the oldest entry, copies its payload and releases it.
func (r *Ring) Pop() (Entry, error) {
	e, err := r.Read()
	if err != nil {
		return Entry{}, err
	}
	e.Payload = append([]byte(nil), e.Payload...)
	r.Release()
	return e, nil
}

// Close unmaps the ring. A ring made by CreateRing also releases its backing.
func (r *Ring) Close() error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.mirror.unmap()
	r.m.unmapView(r.ctrl)
	if r.owner {
		return r.backing.rel.run()
	}
	return nil
}
