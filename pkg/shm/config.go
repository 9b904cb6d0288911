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
	"strings"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	internalshm "github.com/srediag/shm-alias/internal/shm"
)

// MemMapType selects how backing objects are created.
type MemMapType = internalshm.MemMapType

const (
	// MemMapTypeMemFd backs objects with memfd_create(2).
	MemMapTypeMemFd = internalshm.MemMapTypeMemFd
	// MemMapTypeDevShmFile backs objects with a /dev/shm file unlinked right after sizing.
	MemMapTypeDevShmFile = internalshm.MemMapTypeDevShmFile
)

// ParseMemMapType parses "memfd" or "devshm".
func ParseMemMapType(s string) (MemMapType, error) {
	return internalshm.ParseMemMapType(s)
}

// memfd_create(2) accepts names up to 249 bytes; leave room for the pid and sequence suffix.
const maxNameLen = 200

const defaultName = "shm-alias"

// Config is used to tune the Manager.
type Config struct {
	// Name prefixes every backing object name.
	Name string
	// MemMapType selects memfd or /dev/shm backings.
	MemMapType MemMapType
	// CheckCapacity rejects backings larger than the host reports as available.
	CheckCapacity bool
	// Logger defaults to NewLogger(os.Stderr).
	Logger log.Logger
	// Registerer receives the manager's prometheus collectors when set.
	Registerer prometheus.Registerer
	// Tracer defaults to a noop tracer.
	Tracer trace.Tracer
	// Observers are notified of every lifecycle event, after the built-in metrics.
	Observers []Observer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:          defaultName,
		MemMapType:    MemMapTypeMemFd,
		CheckCapacity: true,
	}
}

// VerifyConfig is used to verify the sanity of configuration.
func VerifyConfig(config *Config) error {
	if config == nil {
		return errors.New("config is nil")
	}
	if config.Name == "" {
		return errors.New("Name must not be empty")
	}
	if len(config.Name) > maxNameLen {
		return fmt.Errorf("Name must be at most %d bytes, got %d", maxNameLen, len(config.Name))
	}
	if strings.ContainsAny(config.Name, "/\x00") {
		return fmt.Errorf("Name %q must not contain '/' or NUL", config.Name)
	}
	switch config.MemMapType {
	case MemMapTypeMemFd, MemMapTypeDevShmFile:
	default:
		return fmt.Errorf("unknown MemMapType %d", config.MemMapType)
	}
	return nil
}
