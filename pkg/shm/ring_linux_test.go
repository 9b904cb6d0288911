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
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/suite"

	internalshm "github.com/srediag/shm-alias/internal/shm"
)

type RingTestSuite struct {
	suite.Suite
	ctx context.Context
	m   *Manager
	ps  int
}

func (s *RingTestSuite) SetupTest() {
	s.ctx = context.Background()
	config := DefaultConfig()
	config.Logger = log.NewNopLogger()
	m, err := newManager(config, internalshm.Host())
	s.Require().NoError(err)
	s.m = m
	s.ps = m.PageSize()
}

func (s *RingTestSuite) TearDownTest() {
	s.Require().NoError(s.m.Close())
}

func (s *RingTestSuite) TestTypedEntriesInOrder() {
	r, err := s.m.CreateRing(s.ctx, s.ps)
	s.Require().NoError(err)
	defer func() { s.Require().NoError(r.Close()) }()

	s.Require().NoError(r.PushValues(EntrySimple, 420))
	s.Require().NoError(r.PushValues(EntryDouble, 21, 37))
	s.Require().NoError(r.PushValues(EntrySimple, 69))
	s.Equal(3*EntryHeaderSize+4*8, r.Len())

	for _, want := range []struct {
		typ  EntryType
		vals []uint64
	}{
		{EntrySimple, []uint64{420}},
		{EntryDouble, []uint64{21, 37}},
		{EntrySimple, []uint64{69}},
	} {
		e, err := r.Pop()
		s.Require().NoError(err)
		s.Equal(want.typ, e.Type)
		s.Equal(want.vals, e.Values())
	}
	_, err = r.Pop()
	s.ErrorIs(err, ErrRingEmpty)
	s.Equal(r.Capacity(), r.Free())
}

func (s *RingTestSuite) TestEntryWrappingTheEndIsContiguous() {
	r, err := s.m.CreateRing(s.ctx, s.ps)
	s.Require().NoError(err)
	defer func() { s.Require().NoError(r.Close()) }()

	// Leaves the write cursor 16 bytes short of the end of the data area.
	filler := make([]byte, s.ps-2*EntryHeaderSize)
	s.Require().NoError(r.Push(EntrySimple, filler))
	_, err = r.Pop()
	s.Require().NoError(err)

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	s.Require().NoError(r.Push(EntryDouble, payload))

	// The header sits at the end of the area and the payload at its start.
	s.Equal(uint64(EntryDouble), binary.NativeEndian.Uint64(r.data[s.ps-EntryHeaderSize:]))
	s.Equal(payload[:10], r.data[:10])
	s.True(bytes.Equal(r.data[:s.ps], r.data[s.ps:]))

	e, err := r.Read()
	s.Require().NoError(err)
	s.Equal(EntryDouble, e.Type)
	s.Equal(payload, e.Payload)
	s.Less(r.Free(), r.Capacity())
	r.Release()
	s.Equal(r.Capacity(), r.Free())
	s.NoError(s.m.Verify())
}

func (s *RingTestSuite) TestFullUntilReleased() {
	r, err := s.m.CreateRing(s.ctx, s.ps)
	s.Require().NoError(err)
	defer func() { s.Require().NoError(r.Close()) }()

	n := 0
	for {
		err := r.PushValues(EntrySimple, uint64(n))
		if err != nil {
			s.Require().ErrorIs(err, ErrRingFull)
			break
		}
		n++
	}
	s.Equal(s.ps/(EntryHeaderSize+8), n)
	s.Less(r.Free(), EntryHeaderSize+8)

	e, err := r.Read()
	s.Require().NoError(err)
	s.Equal([]uint64{0}, e.Values())
	s.ErrorIs(r.PushValues(EntrySimple, 99), ErrRingFull)

	r.Release()
	s.Require().NoError(r.PushValues(EntrySimple, 99))
	for i := 1; i < n; i++ {
		e, err := r.Pop()
		s.Require().NoError(err)
		s.Equal([]uint64{uint64(i)}, e.Values())
	}
	e, err = r.Pop()
	s.Require().NoError(err)
	s.Equal([]uint64{99}, e.Values())
}

func (s *RingTestSuite) TestOversizedEntry() {
	r, err := s.m.CreateRing(s.ctx, s.ps)
	s.Require().NoError(err)
	defer func() { s.Require().NoError(r.Close()) }()

	var rerr *RangeError
	s.ErrorAs(r.Push(EntrySimple, make([]byte, s.ps)), &rerr)
	s.NoError(r.Push(EntrySimple, make([]byte, s.ps-EntryHeaderSize)))
}

func (s *RingTestSuite) TestCorruptHeader() {
	r, err := s.m.CreateRing(s.ctx, s.ps)
	s.Require().NoError(err)
	defer func() { s.Require().NoError(r.Close()) }()

	s.Require().NoError(r.PushValues(EntrySimple, 1))
	binary.NativeEndian.PutUint64(r.data[8:], uint64(s.ps))
	_, err = r.Read()
	var cerr *CorruptEntryError
	s.Require().ErrorAs(err, &cerr)
	s.Equal(uint64(s.ps), cerr.Size)
}

func (s *RingTestSuite) TestAttachedRingSharesEntries() {
	producer, err := s.m.CreateRing(s.ctx, 2*s.ps)
	s.Require().NoError(err)
	consumer, err := s.m.AttachRing(s.ctx, producer.Backing())
	s.Require().NoError(err)
	s.NotEqual(producer.mirror.Host.Base(), consumer.mirror.Host.Base())

	s.Require().NoError(producer.PushValues(EntryDouble, 21, 37))
	e, err := consumer.Pop()
	s.Require().NoError(err)
	s.Equal([]uint64{21, 37}, e.Values())
	s.Equal(producer.Capacity(), producer.Free())
	s.NoError(s.m.Verify())

	s.Require().NoError(consumer.Close())
	s.False(producer.Backing().Released())
	s.Require().NoError(producer.Close())
	s.True(producer.Backing().Released())
	s.Empty(s.m.Views())
	s.Empty(s.m.Backings())
}

func (s *RingTestSuite) TestInvalidCapacityAndBacking() {
	var rerr *RangeError
	_, err := s.m.CreateRing(s.ctx, s.ps+1)
	s.ErrorAs(err, &rerr)
	_, err = s.m.CreateRing(s.ctx, 0)
	s.ErrorAs(err, &rerr)

	b, err := s.m.CreateBacking(s.ctx, 2*s.ps)
	s.Require().NoError(err)
	_, err = s.m.AttachRing(s.ctx, b)
	s.ErrorAs(err, &rerr)
	s.Empty(s.m.Views())
}

func TestRingTestSuite(t *testing.T) {
	suite.Run(t, new(RingTestSuite))
}
