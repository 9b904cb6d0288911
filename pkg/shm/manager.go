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
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"unsafe"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/srediag/shm-alias/internal/health"
	internalshm "github.com/srediag/shm-alias/internal/shm"
)

const tracerName = "github.com/srediag/shm-alias/pkg/shm"

var errNilArgument = errors.New("nil view or backing")

// Manager owns backing objects and the views mapped onto them.
//
// Every operation is a direct blocking system call. Operations are serialized,
// but the memory behind views is shared without any synchronization: writes through
// one view are visible through every view aliasing the same backing bytes.
type Manager struct {
	mu       sync.Mutex
	config   *Config
	sys      internalshm.Syscalls
	logger   log.Logger
	tracer   trace.Tracer
	obs      observers
	pageSize int

	backings cmap.ConcurrentMap[string, *Backing]
	views    cmap.ConcurrentMap[string, *View]
	releases *releaseStack
	nextID   uint64
	closed   bool
}

// NewManager returns a Manager using the host's shared memory facilities.
// A nil config means DefaultConfig().
func NewManager(config *Config) (*Manager, error) {
	return newManager(config, internalshm.Host())
}

func newManager(config *Config, sys internalshm.Syscalls) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	m := &Manager{
		config:   config,
		sys:      sys,
		logger:   config.Logger,
		tracer:   config.Tracer,
		pageSize: internalshm.PageSize(),
		backings: cmap.New[*Backing](),
		views:    cmap.New[*View](),
		releases: newReleaseStack(),
	}
	if m.logger == nil {
		m.logger = NewLogger(os.Stderr)
	}
	if m.tracer == nil {
		m.tracer = noop.NewTracerProvider().Tracer(tracerName)
	}
	if config.Registerer != nil {
		m.obs = append(m.obs, newMetrics(config.Registerer))
	}
	m.obs = append(m.obs, config.Observers...)
	return m, nil
}

// PageSize is the alignment required for pinned addresses and offsets.
func (m *Manager) PageSize() int { return m.pageSize }

// Err returns ErrClosed once Close was called.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (m *Manager) newID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s%d", prefix, m.nextID)
}

// CreateBacking allocates a shareable object of exactly length bytes and removes
// its name from the global namespace, leaving only the returned handle.
func (m *Manager) CreateBacking(ctx context.Context, length int) (b *Backing, err error) {
	_, span := m.tracer.Start(ctx, "shm.CreateBacking", trace.WithAttributes(
		attribute.Int("length", length),
		attribute.String("type", m.config.MemMapType.String()),
	))
	defer func() { endSpan(span, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.createBacking(length)
}

func (m *Manager) createBacking(length int) (*Backing, error) {
	typ := m.config.MemMapType
	id := m.newID("b")
	name := fmt.Sprintf("%s-%d-%s", m.config.Name, os.Getpid(), id)
	fail := func(op string, err error) error {
		return &AllocationError{Op: op, Name: name, Length: length, Err: err}
	}

	if length <= 0 {
		return nil, fail("size", fmt.Errorf("length must be positive, got %d", length))
	}
	if m.config.CheckCapacity {
		avail, err := internalshm.Available(typ)
		if err != nil {
			level.Debug(m.logger).Log("msg", "capacity check skipped", "type", typ, "err", err)
		} else if uint64(length) > avail {
			return nil, fail("reserve", fmt.Errorf("%w: want %d, available %d", ErrNoCapacity, length, avail))
		}
	}

	fd, err := m.sys.AllocShared(name, typ)
	if err != nil {
		return nil, fail("open", err)
	}
	if err := m.sys.Truncate(fd, int64(length)); err != nil {
		m.abandon(fd, name, typ)
		return nil, fail("truncate", err)
	}
	if err := m.sys.UnlinkName(name, typ); err != nil {
		m.closeQuietly(fd, name)
		return nil, fail("unlink", err)
	}

	b := &Backing{id: id, name: name, typ: typ, length: length, fd: fd}
	b.rel = m.releases.push("backing "+id, func() error { return m.releaseBacking(b) })
	m.backings.Set(id, b)
	m.obs.BackingCreated(b.Info())
	level.Debug(m.logger).Log("msg", "backing created", "backing", id, "name", name, "type", typ, "length", length)
	return b, nil
}

func (m *Manager) abandon(fd int, name string, typ MemMapType) {
	m.closeQuietly(fd, name)
	if err := m.sys.UnlinkName(name, typ); err != nil {
		level.Warn(m.logger).Log("msg", "unlink abandoned backing failed", "name", name, "err", err)
	}
}

func (m *Manager) closeQuietly(fd int, name string) {
	if err := m.sys.Close(fd); err != nil {
		level.Warn(m.logger).Log("msg", "close abandoned backing failed", "name", name, "fd", fd, "err", err)
	}
}

// ReleaseBacking closes the backing's handle. Views already mapped stay valid;
// no new view can be mapped from it. Releasing twice is a no-op.
func (m *Manager) ReleaseBacking(b *Backing) error {
	if b == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return b.rel.run()
}

func (m *Manager) releaseBacking(b *Backing) error {
	b.released.Store(true)
	err := m.sys.Close(b.fd)
	if b.refs.Load() == 0 {
		m.backings.Remove(b.id)
	}
	m.obs.BackingReleased(b.Info())
	if err != nil {
		level.Warn(m.logger).Log("msg", "close backing failed", "backing", b.id, "fd", b.fd, "err", err)
		return fmt.Errorf("release backing %s: %w", b.id, err)
	}
	level.Debug(m.logger).Log("msg", "backing released", "backing", b.id, "refs", b.refs.Load())
	return nil
}

// MapView maps [offset, offset+length) of b at an address chosen by the host.
func (m *Manager) MapView(ctx context.Context, b *Backing, offset, length int) (v *View, err error) {
	_, span := m.tracer.Start(ctx, "shm.MapView", trace.WithAttributes(
		attribute.Int("offset", offset),
		attribute.Int("length", length),
	))
	defer func() { endSpan(span, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, err = m.mapView(b, offset, length)
	if err != nil {
		m.obs.MapFailed("map_view", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("view", v.id), attribute.String("base", v.base.String()))
	return v, nil
}

func (m *Manager) mapView(b *Backing, offset, length int) (*View, error) {
	const op = "map_view"
	if b == nil {
		return nil, &MapError{Op: op, Err: errNilArgument}
	}
	if offset < 0 || length <= 0 || offset > b.length-length {
		return nil, &RangeError{Op: op, Offset: offset, Length: length, Limit: b.length, Reason: "outside the backing"}
	}
	if b.released.Load() {
		return nil, &MapError{Op: op, Err: ErrReleased}
	}

	aligned := roundDown(offset, m.pageSize)
	delta := offset - aligned
	ptr, err := m.sys.Map(b.fd, int64(aligned), uintptr(delta+length), nil, false)
	if err != nil {
		return nil, &MapError{Op: op, Err: err}
	}
	return m.newView(b, ptr, aligned, delta, length, nil), nil
}

// MapViewAt maps [backingOffset, backingOffset+length) of b at exactly host.Base()+rel,
// replacing the part of host that was mapped there.
//
// The target range, page-rounded, must lie inside the span reserved by host, host must
// map the same backing, and both the target and backingOffset must be page aligned.
// A target overlapping a view already pinned into host is rejected; pin against that
// view instead.
func (m *Manager) MapViewAt(ctx context.Context, host *View, rel int, b *Backing, backingOffset, length int) (v *View, err error) {
	_, span := m.tracer.Start(ctx, "shm.MapViewAt", trace.WithAttributes(
		attribute.Int("relative_offset", rel),
		attribute.Int("backing_offset", backingOffset),
		attribute.Int("length", length),
	))
	defer func() { endSpan(span, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, err = m.mapViewAt(host, rel, b, backingOffset, length)
	if err != nil {
		m.obs.MapFailed("map_view_at", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("view", v.id), attribute.String("base", v.base.String()))
	return v, nil
}

// DeriveFixedTarget returns the address host.Base()+rel after checking that a view of
// length bytes placed there stays inside host's reserved span and clear of the views
// already pinned into it.
func (m *Manager) DeriveFixedTarget(host *View, rel, length int) (Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, _, err := m.deriveFixedTarget(host, rel, length)
	return target, err
}

func (m *Manager) deriveFixedTarget(host *View, rel, length int) (Addr, Span, error) {
	const op = "map_view_at"
	if host == nil {
		return 0, Span{}, &RangeError{Op: op, Offset: rel, Length: length, Reason: errNilArgument.Error()}
	}
	limit := host.span.Len
	fail := func(reason string) (Addr, Span, error) {
		return 0, Span{}, &RangeError{Op: op, Offset: rel, Length: length, Limit: limit, Reason: reason}
	}
	if !host.Mapped() {
		return fail("view " + host.id + " is unmapped")
	}
	if length <= 0 {
		return fail("length must be positive")
	}
	target, err := host.base.Add(rel)
	if err != nil {
		return fail(err.Error())
	}
	if !target.Aligned(m.pageSize) {
		return fail(fmt.Sprintf("target %s is not page aligned", target))
	}
	if uintptr(roundUp(length, m.pageSize)) > ^uintptr(0)-uintptr(target) {
		return fail(errAddrOverflow.Error())
	}
	want := Span{Base: target, Len: roundUp(length, m.pageSize)}
	if !host.span.Contains(want) {
		return fail(fmt.Sprintf("%s is outside %s reserved by view %s", want, host.span, host.id))
	}
	for _, c := range host.children {
		if c.span.Overlaps(want) {
			return fail(fmt.Sprintf("%s overlaps view %s pinned at %s", want, c.id, c.span))
		}
	}
	return target, want, nil
}

func (m *Manager) mapViewAt(host *View, rel int, b *Backing, backingOffset, length int) (*View, error) {
	const op = "map_view_at"
	if host == nil || b == nil {
		return nil, &RangeError{Op: op, Offset: rel, Length: length, Reason: errNilArgument.Error()}
	}
	if host.backing != b {
		return nil, &RangeError{Op: op, Offset: rel, Length: length, Limit: host.span.Len,
			Reason: fmt.Sprintf("view %s maps backing %s, not %s", host.id, host.backing.id, b.id)}
	}
	if backingOffset < 0 || length <= 0 || backingOffset > b.length-length {
		return nil, &RangeError{Op: op, Offset: backingOffset, Length: length, Limit: b.length, Reason: "outside the backing"}
	}
	if backingOffset%m.pageSize != 0 {
		return nil, &RangeError{Op: op, Offset: backingOffset, Length: length, Limit: b.length, Reason: "backing offset is not page aligned"}
	}
	target, want, err := m.deriveFixedTarget(host, rel, length)
	if err != nil {
		return nil, err
	}
	if b.released.Load() {
		return nil, &MapError{Op: op, Fixed: true, Want: target, Err: ErrReleased}
	}

	hint := unsafe.Add(host.spanPtr, int(target-host.span.Base))
	ptr, err := m.sys.Map(b.fd, int64(backingOffset), uintptr(length), hint, true)
	if err != nil {
		return nil, &MapError{Op: op, Fixed: true, Want: target, Err: err}
	}
	if ptr != hint {
		got := Addr(uintptr(ptr))
		if uerr := m.sys.Unmap(ptr, uintptr(want.Len)); uerr != nil {
			w := &UnmapWarning{View: "stray", Span: Span{Base: got, Len: want.Len}, Err: uerr}
			level.Warn(m.logger).Log("msg", "unmap stray fixed mapping failed", "err", w)
			m.obs.UnmapWarned(w)
		}
		return nil, &MapError{Op: op, Fixed: true, Want: target, Got: got}
	}

	v := m.newView(b, ptr, backingOffset, 0, length, host)
	host.children = append(host.children, v)
	return v, nil
}

func (m *Manager) newView(b *Backing, spanPtr unsafe.Pointer, mapOffset, delta, length int, host *View) *View {
	base := Addr(uintptr(spanPtr))
	v := &View{
		id:        m.newID("v"),
		backing:   b,
		ptr:       unsafe.Add(spanPtr, delta),
		base:      base + Addr(delta),
		length:    length,
		offset:    mapOffset + delta,
		spanPtr:   spanPtr,
		span:      Span{Base: base, Len: roundUp(delta+length, m.pageSize)},
		mapOffset: mapOffset,
		pinned:    host != nil,
		host:      host,
	}
	if host != nil {
		v.hostID = host.id
	}
	v.rel = m.releases.push("view "+v.id, func() error {
		m.unmapView(v)
		return nil
	})
	b.refs.Add(1)
	m.views.Set(v.id, v)
	m.obs.ViewMapped(v.Info())
	level.Debug(m.logger).Log("msg", "view mapped", "view", v.id, "backing", b.id, "base", v.base,
		"offset", v.offset, "length", length, "pinned", v.pinned, "host", v.hostID)
	return v
}

// UnmapView releases v. It is a no-op for a view already unmapped and never fails:
// host errors are logged and reported to observers as UnmapWarning.
//
// A pinned view whose host is still mapped hands its address range back to the host,
// which keeps seeing the bytes the pinned view mapped. Views pinned inside v survive it.
func (m *Manager) UnmapView(v *View) {
	if v == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmapView(v)
}

func (m *Manager) unmapView(v *View) {
	if !v.unmapped.CompareAndSwap(false, true) {
		return
	}
	if v.rel != nil {
		v.rel.cancel()
	}

	if owner := v.host; owner != nil && owner.Mapped() {
		owner.children = removeView(owner.children, v)
		owner.grafts = append(owner.grafts, v.layout()...)
		for _, c := range v.children {
			c.host = owner
			c.hostID = owner.id
			owner.children = append(owner.children, c)
		}
		level.Debug(m.logger).Log("msg", "view returned to host", "view", v.id, "host", owner.id)
	} else {
		holes := make([]Span, 0, len(v.children))
		for _, c := range v.children {
			holes = append(holes, c.span)
			c.host = nil
		}
		for _, seg := range v.span.subtract(holes) {
			ptr := unsafe.Add(v.spanPtr, int(seg.Base-v.span.Base))
			if err := m.sys.Unmap(ptr, uintptr(seg.Len)); err != nil {
				w := &UnmapWarning{View: v.id, Span: seg, Err: err}
				level.Warn(m.logger).Log("msg", "unmap failed", "err", w)
				m.obs.UnmapWarned(w)
			}
		}
		level.Debug(m.logger).Log("msg", "view unmapped", "view", v.id, "span", v.span, "survivors", len(v.children))
	}
	v.host = nil
	v.children = nil
	v.grafts = nil

	m.views.Remove(v.id)
	b := v.backing
	if b.refs.Add(-1) == 0 && b.released.Load() {
		m.backings.Remove(b.id)
	}
	m.obs.ViewUnmapped(v.Info())
}

// Views returns the live views ordered by base address.
func (m *Manager) Views() []ViewInfo {
	out := make([]ViewInfo, 0, m.views.Count())
	for _, v := range m.views.Items() {
		out = append(out, v.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base < out[j].Base
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Backings returns the backings still referenced by a handle or a live view.
func (m *Manager) Backings() []BackingInfo {
	out := make([]BackingInfo, 0, m.backings.Count())
	for _, b := range m.backings.Items() {
		out = append(out, b.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Verify checks every live view against the process memory map: each page must be
// mapped shared and writable, at the backing offset the view expects there.
func (m *Manager) Verify() error {
	m.mu.Lock()
	var segs []health.Segment
	for _, v := range m.views.Items() {
		if v.host != nil {
			continue
		}
		for _, s := range v.layout() {
			segs = append(segs, health.Segment{
				Name:    v.id,
				Backing: v.backing.id,
				Start:   uintptr(s.Base),
				End:     uintptr(s.End()),
				Offset:  uint64(s.offset),
			})
		}
	}
	m.mu.Unlock()
	return health.Verify(segs)
}

// Close unmaps every view and releases every backing still outstanding, most
// recently created first. Only backing close errors are returned.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	err := m.releases.drain()
	level.Debug(m.logger).Log("msg", "manager closed", "err", err)
	return err
}
