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
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Available reports how many bytes an object of the given type can still take.
// /dev/shm files are bounded by the tmpfs mount, memfd objects by available memory.
func Available(typ MemMapType) (uint64, error) {
	switch typ {
	case MemMapTypeDevShmFile:
		usage, err := disk.Usage(DevShmDir)
		if err != nil {
			return 0, fmt.Errorf("statfs %s: %w", DevShmDir, err)
		}
		return usage.Free, nil
	case MemMapTypeMemFd:
		vm, err := mem.VirtualMemory()
		if err != nil {
			return 0, fmt.Errorf("virtual memory: %w", err)
		}
		return vm.Available, nil
	}
	return 0, fmt.Errorf("available: unknown backing type %d", typ)
}
