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
	"errors"
	"fmt"

	"github.com/Workiva/go-datastructures/queue"
)

// release is a cleanup registered when a resource is acquired. It runs at most once,
// either explicitly or when the owning releaseStack drains.
type release struct {
	stack *releaseStack
	seq   uint64
	name  string
	fn    func() error
	done  bool
}

// Compare orders the most recently registered release first.
func (r *release) Compare(other queue.Item) int {
	o := other.(*release)
	switch {
	case r.seq > o.seq:
		return -1
	case r.seq < o.seq:
		return 1
	}
	return 0
}

func (r *release) run() error {
	if r.done {
		return nil
	}
	r.cancel()
	return r.fn()
}

// cancel marks r done without running it and forgets it.
func (r *release) cancel() {
	r.done = true
	delete(r.stack.pending, r.seq)
}

// releaseStack holds only the releases that have not run yet. It is not safe for
// concurrent use; the Manager serializes access.
type releaseStack struct {
	pending map[uint64]*release
	seq     uint64
}

func newReleaseStack() *releaseStack {
	return &releaseStack{pending: make(map[uint64]*release)}
}

func (s *releaseStack) push(name string, fn func() error) *release {
	s.seq++
	r := &release{stack: s, seq: s.seq, name: name, fn: fn}
	s.pending[r.seq] = r
	return r
}

func (s *releaseStack) len() int { return len(s.pending) }

// drain runs every outstanding release, most recent first.
func (s *releaseStack) drain() error {
	q := queue.NewPriorityQueue(len(s.pending), false)
	for _, r := range s.pending {
		if err := q.Put(r); err != nil {
			return fmt.Errorf("queue release %s: %w", r.name, err)
		}
	}
	defer q.Dispose()

	var errs []error
	for !q.Empty() {
		items, err := q.Get(1)
		if err != nil {
			errs = append(errs, err)
			break
		}
		for _, item := range items {
			if err := item.(*release).run(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
