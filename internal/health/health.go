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

// Package health checks that the address ranges a region manager believes it
// mapped are really mapped that way, according to the process memory map.
package health

import "fmt"

// Segment is an address range expected to map a backing at Offset.
type Segment struct {
	Name    string
	Backing string
	Start   uintptr
	End     uintptr
	Offset  uint64
}

// CoverageError reports the first address of a segment that is not mapped as expected.
type CoverageError struct {
	Segment Segment
	Addr    uintptr
	Reason  string
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("%s [0x%x, 0x%x): at 0x%x: %s", e.Segment.Name, e.Segment.Start, e.Segment.End, e.Addr, e.Reason)
}
