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

//go:build !linux

package shm

import (
	"os"
	"unsafe"
)

// DevShmDir is where MemMapTypeDevShmFile objects are created.
const DevShmDir = "/dev/shm"

var pageSize = os.Getpagesize()

// TODO: port to shm_open/mmap on darwin and the BSDs, and to CreateFileMapping/MapViewOfFile3 on windows.
type host struct{}

func (host) AllocShared(string, MemMapType) (int, error) { return -1, ErrUnsupported }

func (host) UnlinkName(string, MemMapType) error { return ErrUnsupported }

func (host) Truncate(int, int64) error { return ErrUnsupported }

func (host) Map(int, int64, uintptr, unsafe.Pointer, bool) (unsafe.Pointer, error) {
	return nil, ErrUnsupported
}

func (host) Unmap(unsafe.Pointer, uintptr) error { return ErrUnsupported }

func (host) Close(int) error { return ErrUnsupported }
