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

// Package adapter connects a region manager to external monitoring systems.
package adapter

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/srediag/shm-alias/pkg/shm"
)

// OTelObserver records manager lifecycle events as OpenTelemetry instruments.
type OTelObserver struct {
	backings metric.Int64UpDownCounter
	bytes    metric.Int64UpDownCounter
	views    metric.Int64UpDownCounter
	failures metric.Int64Counter
	warnings metric.Int64Counter
}

var _ shm.Observer = (*OTelObserver)(nil)

// NewOTelObserver creates the instruments on meter.
func NewOTelObserver(meter metric.Meter) (*OTelObserver, error) {
	var (
		o    OTelObserver
		err  error
		errs []error
	)
	o.backings, err = meter.Int64UpDownCounter("shm.backings.active",
		metric.WithDescription("Backing objects whose handle is still open."))
	errs = append(errs, err)
	o.bytes, err = meter.Int64UpDownCounter("shm.views.bytes",
		metric.WithDescription("Total length of mapped views."), metric.WithUnit("By"))
	errs = append(errs, err)
	o.views, err = meter.Int64UpDownCounter("shm.views.active",
		metric.WithDescription("Mapped views by placement."))
	errs = append(errs, err)
	o.failures, err = meter.Int64Counter("shm.map.failures",
		metric.WithDescription("Map requests that failed, by operation."))
	errs = append(errs, err)
	o.warnings, err = meter.Int64Counter("shm.unmap.warnings",
		metric.WithDescription("Unmap requests the host refused."))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &o, nil
}

func placement(pinned bool) metric.AddOption {
	p := "system"
	if pinned {
		p = "fixed"
	}
	return metric.WithAttributes(attribute.String("placement", p))
}

func (o *OTelObserver) BackingCreated(shm.BackingInfo) {
	o.backings.Add(context.Background(), 1)
}

func (o *OTelObserver) BackingReleased(shm.BackingInfo) {
	o.backings.Add(context.Background(), -1)
}

func (o *OTelObserver) ViewMapped(v shm.ViewInfo) {
	ctx := context.Background()
	o.views.Add(ctx, 1, placement(v.Pinned))
	o.bytes.Add(ctx, int64(v.Length))
}

func (o *OTelObserver) ViewUnmapped(v shm.ViewInfo) {
	ctx := context.Background()
	o.views.Add(ctx, -1, placement(v.Pinned))
	o.bytes.Add(ctx, -int64(v.Length))
}

func (o *OTelObserver) MapFailed(op string, _ error) {
	o.failures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
}

func (o *OTelObserver) UnmapWarned(*shm.UnmapWarning) {
	o.warnings.Add(context.Background(), 1)
}
