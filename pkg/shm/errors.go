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

	internalshm "github.com/srediag/shm-alias/internal/shm"
)

var (
	// ErrReleased is returned when mapping from a backing whose handle was released.
	ErrReleased = errors.New("shm: backing handle released")
	// ErrClosed is returned by every operation on a closed Manager.
	ErrClosed = errors.New("shm: manager closed")
	// ErrNoCapacity is returned when the host cannot hold the requested backing length.
	ErrNoCapacity = errors.New("shm: not enough shared memory left")
	// ErrUnsupported is returned on platforms without shared mapping support.
	ErrUnsupported = internalshm.ErrUnsupported
)

// AllocationError reports a backing object that could not be created or sized.
type AllocationError struct {
	Op     string
	Name   string
	Length int
	Err    error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("shm: allocate %q (%d bytes): %s: %v", e.Name, e.Length, e.Op, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// RangeError reports a byte range or address range that is invalid for the backing
// length or for the address span reserved by a view. No mapping is attempted.
type RangeError struct {
	Op     string
	Offset int
	Length int
	Limit  int
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("shm: %s: range [%d, +%d) limit %d: %s", e.Op, e.Offset, e.Length, e.Limit, e.Reason)
}

// MapError reports a mapping the host declined, or a fixed mapping that did not
// land on the requested address.
type MapError struct {
	Op    string
	Fixed bool
	Want  Addr
	Got   Addr
	Err   error
}

func (e *MapError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("shm: %s: fixed mapping placed at %s, want %s", e.Op, e.Got, e.Want)
	}
	if e.Fixed {
		return fmt.Sprintf("shm: %s at %s: %v", e.Op, e.Want, e.Err)
	}
	return fmt.Sprintf("shm: %s: %v", e.Op, e.Err)
}

func (e *MapError) Unwrap() error { return e.Err }

// UnmapWarning reports a release the host refused. It is logged and observed,
// never returned: cleanup always runs to completion.
type UnmapWarning struct {
	View string
	Span Span
	Err  error
}

func (w *UnmapWarning) Error() string {
	return fmt.Sprintf("shm: unmap view %s %s: %v", w.View, w.Span, w.Err)
}

func (w *UnmapWarning) Unwrap() error { return w.Err }
