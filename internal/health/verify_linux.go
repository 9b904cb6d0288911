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

//go:build linux

package health

import (
	"errors"
	"fmt"
	"sort"

	"github.com/prometheus/procfs"

	"github.com/srediag/shm-alias/internal/shm"
)

// Verify checks segs against the current process mappings.
func Verify(segs []Segment) error {
	mappings, err := shm.ReadMappings()
	if err != nil {
		return err
	}
	return VerifyAgainst(segs, mappings)
}

// VerifyAgainst checks segs against mappings, which must be sorted by address.
// A segment may span several mappings since the kernel splits and merges them freely.
// All segments of one backing must resolve to the same object.
func VerifyAgainst(segs []Segment, mappings []*procfs.ProcMap) error {
	type object struct {
		dev   uint64
		inode uint64
	}
	objects := make(map[string]object)
	var errs []error
	for _, seg := range segs {
		addr := seg.Start
		for addr < seg.End {
			i := sort.Search(len(mappings), func(i int) bool { return mappings[i].EndAddr > addr })
			if i == len(mappings) || mappings[i].StartAddr > addr {
				errs = append(errs, &CoverageError{Segment: seg, Addr: addr, Reason: "not mapped"})
				break
			}
			m := mappings[i]
			if p := m.Perms; p == nil || !p.Shared || !p.Read || !p.Write {
				errs = append(errs, &CoverageError{Segment: seg, Addr: addr, Reason: "not a shared read-write mapping"})
				break
			}
			want := seg.Offset + uint64(addr-seg.Start)
			if got := uint64(m.Offset) + uint64(addr-m.StartAddr); got != want {
				errs = append(errs, &CoverageError{Segment: seg, Addr: addr,
					Reason: fmt.Sprintf("maps offset 0x%x, want 0x%x", got, want)})
				break
			}
			obj := object{dev: m.Dev, inode: m.Inode}
			if seen, ok := objects[seg.Backing]; !ok {
				objects[seg.Backing] = obj
			} else if seen != obj {
				errs = append(errs, &CoverageError{Segment: seg, Addr: addr,
					Reason: fmt.Sprintf("maps inode %d, other views of %s map inode %d", obj.inode, seg.Backing, seen.inode)})
				break
			}
			addr = min(m.EndAddr, seg.End)
		}
	}
	return errors.Join(errs...)
}
