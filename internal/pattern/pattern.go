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

// Package pattern writes and checks single-byte patterns over large mapped regions.
package pattern

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// ChunkSize is the unit of work handed to one worker.
const ChunkSize = 64 << 10

// MismatchError reports the lowest offset that does not hold the expected byte.
type MismatchError struct {
	Offset int
	Want   byte
	Got    byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("offset %d: got %#02x, want %#02x", e.Offset, e.Got, e.Want)
}

// Filler fills and checks regions chunk by chunk on a bounded worker pool.
type Filler struct {
	pool *ants.Pool
}

// New returns a Filler with the given number of workers, or GOMAXPROCS when workers <= 0.
func New(workers int) (*Filler, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("pattern: create pool: %w", err)
	}
	return &Filler{pool: pool}, nil
}

// Release stops the workers.
func (f *Filler) Release() {
	f.pool.Release()
}

func (f *Filler) each(n int, fn func(lo, hi int)) error {
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += ChunkSize {
		hi := min(lo+ChunkSize, n)
		wg.Add(1)
		if err := f.pool.Submit(func() {
			defer wg.Done()
			fn(lo, hi)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("pattern: submit chunk at %d: %w", lo, err)
		}
	}
	wg.Wait()
	return nil
}

// Fill sets every byte of dst to value.
func (f *Filler) Fill(dst []byte, value byte) error {
	return f.each(len(dst), func(lo, hi int) {
		chunk := dst[lo:hi]
		chunk[0] = value
		for n := 1; n < len(chunk); n *= 2 {
			copy(chunk[n:], chunk[:n])
		}
	})
}

// Check verifies that every byte of src is value and returns a *MismatchError
// for the lowest offset that is not.
func (f *Filler) Check(src []byte, value byte) error {
	var (
		mu    sync.Mutex
		first = -1
	)
	err := f.each(len(src), func(lo, hi int) {
		for j, c := range src[lo:hi] {
			if c != value {
				mu.Lock()
				if first < 0 || lo+j < first {
					first = lo + j
				}
				mu.Unlock()
				return
			}
		}
	})
	if err != nil {
		return err
	}
	if first >= 0 {
		return &MismatchError{Offset: first, Want: value, Got: src[first]}
	}
	return nil
}
