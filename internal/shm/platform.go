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

// Package shm contains the platform-specific boundary used by the aliasing region manager:
// creating shareable memory objects and placing shared mappings of them.
package shm

import (
	"errors"
	"unsafe"
)

// MemMapType selects how a backing object is created.
type MemMapType uint8

const (
	// MemMapTypeMemFd creates the object with memfd_create. It never appears in any
	// namespace, so there is nothing to unlink.
	MemMapTypeMemFd MemMapType = iota
	// MemMapTypeDevShmFile creates a file under /dev/shm and unlinks it once sized.
	MemMapTypeDevShmFile
)

func (t MemMapType) String() string {
	switch t {
	case MemMapTypeMemFd:
		return "memfd"
	case MemMapTypeDevShmFile:
		return "devshm"
	default:
		return "unknown"
	}
}

// ParseMemMapType is the inverse of MemMapType.String.
func ParseMemMapType(s string) (MemMapType, error) {
	switch s {
	case "memfd", "":
		return MemMapTypeMemFd, nil
	case "devshm":
		return MemMapTypeDevShmFile, nil
	}
	return 0, errors.New("unknown backing type " + s)
}

// ErrUnsupported is returned by every call on platforms without shared mapping support.
var ErrUnsupported = errors.New("shared memory aliasing is not supported on this platform")

// Syscalls is the host virtual-memory and shared-object boundary.
//
// Map places length bytes of fd starting at offset. With fixed set the mapping must land
// exactly at hint, replacing whatever was mapped there; otherwise hint may be nil.
type Syscalls interface {
	AllocShared(name string, typ MemMapType) (fd int, err error)
	UnlinkName(name string, typ MemMapType) error
	Truncate(fd int, length int64) error
	Map(fd int, offset int64, length uintptr, hint unsafe.Pointer, fixed bool) (unsafe.Pointer, error)
	Unmap(addr unsafe.Pointer, length uintptr) error
	Close(fd int) error
}

// Host returns the Syscalls implementation of the running platform.
func Host() Syscalls {
	return host{}
}

// PageSize is the host page size in bytes.
func PageSize() int {
	return pageSize
}
