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

// Package api defines the contracts a shared memory region manager offers its callers.
package api

import (
	"context"

	"github.com/srediag/shm-alias/pkg/shm"
)

// RegionManager creates backing objects and maps aliasing views of them.
type RegionManager interface {
	Health

	CreateBacking(ctx context.Context, length int) (*shm.Backing, error)
	ReleaseBacking(b *shm.Backing) error
	MapView(ctx context.Context, b *shm.Backing, offset, length int) (*shm.View, error)
	MapViewAt(ctx context.Context, host *shm.View, rel int, b *shm.Backing, backingOffset, length int) (*shm.View, error)
	UnmapView(v *shm.View)
	Stitch(ctx context.Context, b *shm.Backing, extents ...shm.Extent) (*shm.Stitched, error)
	Views() []shm.ViewInfo
	Backings() []shm.BackingInfo
	Close() error
}

var _ RegionManager = (*shm.Manager)(nil)
