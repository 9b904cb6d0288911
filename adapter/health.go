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
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/shm-alias/api"
)

// VerifyTimeout bounds one liveness probe.
const VerifyTimeout = 2 * time.Second

// NewHealthHandler serves /live, which fails when a view is no longer mapped as
// recorded, and /ready, which fails once the manager is closed. With a non-nil
// registerer the check results are exported as prometheus gauges too.
func NewHealthHandler(h api.Health, reg prometheus.Registerer) healthcheck.Handler {
	var handler healthcheck.Handler
	if reg != nil {
		handler = healthcheck.NewMetricsHandler(reg, "shm_alias")
	} else {
		handler = healthcheck.NewHandler()
	}
	handler.AddLivenessCheck("mappings", healthcheck.Timeout(h.Verify, VerifyTimeout))
	handler.AddReadinessCheck("manager", h.Err)
	return handler
}
