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

package adapter

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/srediag/shm-alias/pkg/shm"
)

// AuditObserver logs every lifecycle event at info level.
type AuditObserver struct {
	logger log.Logger
}

var _ shm.Observer = (*AuditObserver)(nil)

// NewAuditObserver returns an observer logging to logger under component=audit.
func NewAuditObserver(logger log.Logger) *AuditObserver {
	return &AuditObserver{logger: log.With(logger, "component", "audit")}
}

func (a *AuditObserver) BackingCreated(b shm.BackingInfo) {
	level.Info(a.logger).Log("event", "backing_created", "backing", b.ID, "name", b.Name, "type", b.Type, "length", b.Length)
}

func (a *AuditObserver) BackingReleased(b shm.BackingInfo) {
	level.Info(a.logger).Log("event", "backing_released", "backing", b.ID, "refs", b.Refs)
}

func (a *AuditObserver) ViewMapped(v shm.ViewInfo) {
	level.Info(a.logger).Log("event", "view_mapped", "view", v.ID, "backing", v.Backing, "base", v.Base,
		"offset", v.Offset, "length", v.Length, "pinned", v.Pinned, "host", v.Host)
}

func (a *AuditObserver) ViewUnmapped(v shm.ViewInfo) {
	level.Info(a.logger).Log("event", "view_unmapped", "view", v.ID, "backing", v.Backing)
}

func (a *AuditObserver) MapFailed(op string, err error) {
	level.Info(a.logger).Log("event", "map_failed", "op", op, "err", err)
}

func (a *AuditObserver) UnmapWarned(w *shm.UnmapWarning) {
	level.Info(a.logger).Log("event", "unmap_warning", "view", w.View, "span", w.Span, "err", w.Err)
}
