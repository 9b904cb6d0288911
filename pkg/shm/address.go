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

var errAddrOverflow = errors.New("address arithmetic overflows")

// Addr is a virtual address in the current process. It is only used for
// arithmetic and reporting; memory is reached through View.Bytes.
type Addr uintptr

// Add returns a+off, failing on negative offsets and wrap-around.
func (a Addr) Add(off int) (Addr, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if uintptr(off) > ^uintptr(0)-uintptr(a) {
		return 0, errAddrOverflow
	}
	return a + Addr(off), nil
}

// Aligned reports whether a is a multiple of align, which must be a power of two.
func (a Addr) Aligned(align int) bool {
	return uintptr(a)&uintptr(align-1) == 0
}

func (a Addr) String() string {
	return fmt.Sprintf("0x%x", uintptr(a))
}

// Span is the half-open address range [Base, Base+Len).
type Span struct {
	Base Addr
	Len  int
}

// End is the first address past the span.
func (s Span) End() Addr {
	return s.Base + Addr(s.Len)
}

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool {
	return o.Base >= s.Base && o.End() <= s.End() && o.End() >= o.Base
}

// Overlaps reports whether s and o share at least one address.
func (s Span) Overlaps(o Span) bool {
	return s.Len > 0 && o.Len > 0 && s.Base < o.End() && o.Base < s.End()
}

func (s Span) String() string {
	return fmt.Sprintf("[%s, %s)", s.Base, s.End())
}

// subtract returns the parts of s not covered by any of holes, in address order.
// holes must lie inside s and must not overlap each other.
func (s Span) subtract(holes []Span) []Span {
	sorted := make([]Span, len(holes))
	copy(sorted, holes)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Base < sorted[j-1].Base; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	var out []Span
	cur := s.Base
	for _, h := range sorted {
		if h.Base > cur {
			out = append(out, Span{Base: cur, Len: int(h.Base - cur)})
		}
		if h.End() > cur {
			cur = h.End()
		}
	}
	if cur < s.End() {
		out = append(out, Span{Base: cur, Len: int(s.End() - cur)})
	}
	return out
}

func roundUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

func roundDown(n, align int) int {
	return n &^ (align - 1)
}
