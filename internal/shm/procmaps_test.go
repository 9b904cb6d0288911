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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMaps = `55d0c4a00000-55d0c4a21000 r--p 00000000 08:01 1311755                    /usr/bin/cat
7f2a1c000000-7f2a1c044000 rw-s 00000000 00:01 2048                       /memfd:alias (deleted)
7f2a1c100000-7f2a1c101000 rw-s 00043000 00:19 77                         /dev/shm/alias-1-1 (deleted)
7ffd5e3f0000-7ffd5e411000 rw-p 00000000 00:00 0                          [stack]
`

func writeProc(t *testing.T, pid, maps string) string {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, pid), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, pid, "maps"), []byte(maps), 0o644))
	return root
}

func TestReadMappingsAt(t *testing.T) {
	mappings, err := ReadMappingsAt(writeProc(t, "42", sampleMaps), 42)
	require.NoError(t, err)
	require.Len(t, mappings, 4)

	m := mappings[1]
	assert.Equal(t, uintptr(0x7f2a1c000000), m.StartAddr)
	assert.Equal(t, uintptr(0x7f2a1c044000), m.EndAddr)
	assert.True(t, m.Perms.Read)
	assert.True(t, m.Perms.Write)
	assert.True(t, m.Perms.Shared)
	assert.False(t, m.Perms.Private)
	assert.Equal(t, uint64(2048), m.Inode)
	assert.Equal(t, "/memfd:alias (deleted)", m.Pathname)

	assert.Equal(t, int64(0x43000), mappings[2].Offset)
	assert.NotEqual(t, m.Dev, mappings[2].Dev)
	assert.True(t, mappings[3].Perms.Private)
	assert.Equal(t, "[stack]", mappings[3].Pathname)

	assert.True(t, Covers(m, 0x7f2a1c001000, 0x7f2a1c002000))
	assert.False(t, Covers(m, 0x7f2a1c040000, 0x7f2a1c045000))
}

func TestReadMappingsAtErrors(t *testing.T) {
	_, err := ReadMappingsAt(writeProc(t, "42", sampleMaps), 43)
	assert.Error(t, err)

	for name, input := range map[string]string{
		"short":  "7f2a1c000000-7f2a1c044000 rw-s 00000000\n",
		"range":  "7f2a1c000000 rw-s 00000000 00:01 2048\n",
		"start":  "zz-7f2a1c044000 rw-s 00000000 00:01 2048\n",
		"offset": "7f2a1c000000-7f2a1c044000 rw-s xyz 00:01 2048\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadMappingsAt(writeProc(t, "7", input), 7)
			assert.Error(t, err)
		})
	}
}
