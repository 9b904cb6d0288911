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
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevShmDir is where MemMapTypeDevShmFile objects are created.
const DevShmDir = "/dev/shm"

var pageSize = unix.Getpagesize()

type host struct{}

func (host) AllocShared(name string, typ MemMapType) (int, error) {
	switch typ {
	case MemMapTypeMemFd:
		fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
		if err != nil {
			return -1, os.NewSyscallError("memfd_create", err)
		}
		return fd, nil
	case MemMapTypeDevShmFile:
		fd, err := unix.Open(filepath.Join(DevShmDir, name), unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, 0600)
		if err != nil {
			return -1, fmt.Errorf("open %s: %w", filepath.Join(DevShmDir, name), err)
		}
		return fd, nil
	}
	return -1, fmt.Errorf("alloc: unknown backing type %d", typ)
}

func (host) UnlinkName(name string, typ MemMapType) error {
	if typ != MemMapTypeDevShmFile {
		return nil
	}
	if err := unix.Unlink(filepath.Join(DevShmDir, name)); err != nil {
		return fmt.Errorf("unlink %s: %w", filepath.Join(DevShmDir, name), err)
	}
	return nil
}

func (host) Truncate(fd int, length int64) error {
	if err := unix.Ftruncate(fd, length); err != nil {
		return os.NewSyscallError("ftruncate", err)
	}
	return nil
}

func (host) Map(fd int, offset int64, length uintptr, hint unsafe.Pointer, fixed bool) (unsafe.Pointer, error) {
	flags := unix.MAP_SHARED
	if fixed {
		flags |= unix.MAP_FIXED
	}
	addr, err := unix.MmapPtr(fd, offset, hint, length, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}
	return addr, nil
}

func (host) Unmap(addr unsafe.Pointer, length uintptr) error {
	if err := unix.MunmapPtr(addr, length); err != nil {
		return os.NewSyscallError("munmap", err)
	}
	return nil
}

func (host) Close(fd int) error {
	if err := unix.Close(fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}
