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
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srediag/shm-alias/internal/shm"
)

const sampleMaps = `7f0000000000-7f0000011000 rw-s 00000000 00:01 4242 /memfd:shm-alias (deleted)
7f0000011000-7f0000012000 rw-s 00044000 00:01 4242 /memfd:shm-alias (deleted)
7f0000012000-7f0000044000 rw-s 00012000 00:01 4242 /memfd:shm-alias (deleted)
7f0000050000-7f0000051000 rw-p 00000000 00:00 0
7f0000060000-7f0000061000 r--s 00000000 00:01 4242 /memfd:shm-alias (deleted)
7f0000070000-7f0000071000 rw-s 00000000 00:01 9999 /memfd:other (deleted)
`

type VerifyTestSuite struct {
	suite.Suite
	mappings []*procfs.ProcMap
}

func (s *VerifyTestSuite) SetupSuite() {
	root := s.T().TempDir()
	s.Require().NoError(os.Mkdir(filepath.Join(root, "1"), 0o755))
	s.Require().NoError(os.WriteFile(filepath.Join(root, "1", "maps"), []byte(sampleMaps), 0o644))
	m, err := shm.ReadMappingsAt(root, 1)
	s.Require().NoError(err)
	s.mappings = m
}

func (s *VerifyTestSuite) TestSegmentsAcrossSplitMappings() {
	segs := []Segment{
		{Name: "v1", Backing: "b1", Start: 0x7f0000000000, End: 0x7f0000011000, Offset: 0},
		{Name: "v1", Backing: "b1", Start: 0x7f0000011000, End: 0x7f0000012000, Offset: 0x44000},
		{Name: "v1", Backing: "b1", Start: 0x7f0000012000, End: 0x7f0000044000, Offset: 0x12000},
	}
	s.NoError(VerifyAgainst(segs, s.mappings))

	// A segment starting in the middle of a mapping.
	s.NoError(VerifyAgainst([]Segment{
		{Name: "v2", Backing: "b1", Start: 0x7f0000020000, End: 0x7f0000030000, Offset: 0x20000},
	}, s.mappings))
}

func (s *VerifyTestSuite) TestWrongOffset() {
	err := VerifyAgainst([]Segment{
		{Name: "v1", Backing: "b1", Start: 0x7f0000000000, End: 0x7f0000012000, Offset: 0},
	}, s.mappings)
	var cerr *CoverageError
	s.Require().True(errors.As(err, &cerr))
	s.Equal(uintptr(0x7f0000011000), cerr.Addr)
	s.Contains(cerr.Reason, "want 0x11000")
}

func (s *VerifyTestSuite) TestUnmappedAndPrivate() {
	err := VerifyAgainst([]Segment{
		{Name: "gap", Backing: "b1", Start: 0x7f0000044000, End: 0x7f0000045000},
		{Name: "private", Backing: "b1", Start: 0x7f0000050000, End: 0x7f0000051000},
		{Name: "readonly", Backing: "b1", Start: 0x7f0000060000, End: 0x7f0000061000},
	}, s.mappings)
	s.Require().Error(err)
	s.Contains(err.Error(), "gap")
	s.Contains(err.Error(), "not mapped")
	s.Contains(err.Error(), "private")
	s.Contains(err.Error(), "readonly")
	s.Contains(err.Error(), "not a shared read-write mapping")
}

func (s *VerifyTestSuite) TestBackingMustResolveToOneObject() {
	err := VerifyAgainst([]Segment{
		{Name: "v1", Backing: "b1", Start: 0x7f0000000000, End: 0x7f0000001000},
		{Name: "v2", Backing: "b1", Start: 0x7f0000070000, End: 0x7f0000071000},
	}, s.mappings)
	s.Require().Error(err)
	s.Contains(err.Error(), "inode 9999")
}

func TestVerifyTestSuite(t *testing.T) {
	suite.Run(t, new(VerifyTestSuite))
}

func TestVerifyEmpty(t *testing.T) {
	require.NoError(t, VerifyAgainst(nil, nil))
}
