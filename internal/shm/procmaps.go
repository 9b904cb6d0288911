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

package shm

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// ReadMappings returns the mappings of the current process in address order.
func ReadMappings() ([]*procfs.ProcMap, error) {
	return ReadMappingsAt(procfs.DefaultMountPoint, 0)
}

// ReadMappingsAt reads the mappings of pid from a proc filesystem mounted at
// mountPoint. A zero pid means the calling process.
func ReadMappingsAt(mountPoint string, pid int) ([]*procfs.ProcMap, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", mountPoint, err)
	}
	var p procfs.Proc
	if pid == 0 {
		p, err = fs.Self()
	} else {
		p, err = fs.Proc(pid)
	}
	if err != nil {
		return nil, fmt.Errorf("open process %d under %s: %w", pid, mountPoint, err)
	}
	mappings, err := p.ProcMaps()
	if err != nil {
		return nil, fmt.Errorf("read maps of process %d: %w", p.PID, err)
	}
	return mappings, nil
}

// Covers reports whether [start, end) lies inside m.
func Covers(m *procfs.ProcMap, start, end uintptr) bool {
	return start >= m.StartAddr && end <= m.EndAddr
}
