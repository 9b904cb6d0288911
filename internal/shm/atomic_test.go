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
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestAtomicHelpers(t *testing.T) {
	words := make([]uint64, 2)
	addr := unsafe.Pointer(&words[1])

	AtomicStoreUint64(addr, 42)
	assert.Equal(t, uint64(42), AtomicLoadUint64(addr))
	assert.False(t, AtomicCompareAndSwapUint64(addr, 41, 7))
	assert.True(t, AtomicCompareAndSwapUint64(addr, 42, 7))
	assert.Equal(t, []uint64{0, 7}, words)
}
