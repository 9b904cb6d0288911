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

// Package shm maps one shared memory object into several, possibly overlapping,
// views of the same process.
//
// A Backing is an anonymous shareable object of fixed length. A View maps a byte range
// of it at an address chosen by the host; MapViewAt replaces part of an existing view
// with a different range of the same backing, pinned at an exact address. Writes through
// any view are visible through every other view of the same bytes, so two separated
// parts of a backing can be made to look contiguous:
//
//	m, err := shm.NewManager(shm.DefaultConfig())
//	// ...
//	defer m.Close()
//
//	layout, _ := shm.NewLayout(
//	  shm.Segment{Name: "A", Size: 64 << 10},
//	  shm.Segment{Name: "B", Size: 204 << 10},
//	  shm.Segment{Name: "C", Size: 4 << 10},
//	)
//	b, err := m.CreateBacking(ctx, layout.Total())
//	ac, err := layout.Extents("A", "C")
//	st, err := m.Stitch(ctx, b, ac...)
//	// st.Bytes() is A immediately followed by C.
//
// Ring builds a circular buffer of typed entries on the same trick: its data area is
// mapped twice back to back, so entries that wrap around are still contiguous.
//
// Views and backings registered with a Manager are released by Close, most recent
// first, unless they were released explicitly before. The package is Linux only;
// other platforms get ErrUnsupported.
package shm
