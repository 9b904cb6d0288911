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

import "sync/atomic"

// Backing is a fixed-length shareable memory object. Its name is removed from any
// global namespace as soon as it is sized, so only the handle can reach it.
type Backing struct {
	id       string
	name     string
	typ      MemMapType
	length   int
	fd       int
	refs     atomic.Int32
	released atomic.Bool
	rel      *release
}

// BackingInfo is a point-in-time description of a Backing.
type BackingInfo struct {
	ID       string
	Name     string
	Type     MemMapType
	Length   int
	Refs     int
	Released bool
}

// ID identifies the backing within its Manager.
func (b *Backing) ID() string { return b.id }

// Name is the name the object was created under; it is no longer reachable by it.
func (b *Backing) Name() string { return b.name }

// Len is the fixed length in bytes.
func (b *Backing) Len() int { return b.length }

// Type is the kind of host object.
func (b *Backing) Type() MemMapType { return b.typ }

// Refs is the number of live views mapping this backing.
func (b *Backing) Refs() int { return int(b.refs.Load()) }

// Released reports whether the handle was closed. Existing views stay valid.
func (b *Backing) Released() bool { return b.released.Load() }

// Info snapshots the backing.
func (b *Backing) Info() BackingInfo {
	return BackingInfo{
		ID:       b.id,
		Name:     b.name,
		Type:     b.typ,
		Length:   b.length,
		Refs:     b.Refs(),
		Released: b.Released(),
	}
}
