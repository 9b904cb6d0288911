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

package main

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/c2h5oh/datasize"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/srediag/shm-alias/adapter"
	"github.com/srediag/shm-alias/pkg/shm"
)

const maxSegment = 1 << 40

// sizeValue parses sizes such as 64KB or 1.5MB into a datasize.ByteSize.
type sizeValue struct {
	v *datasize.ByteSize
}

func (s sizeValue) Set(text string) error {
	return s.v.UnmarshalText([]byte(text))
}

func (s sizeValue) String() string {
	return s.v.HumanReadable()
}

func sizeFlag(f *kingpin.FlagClause) *datasize.ByteSize {
	v := new(datasize.ByteSize)
	f.SetValue(sizeValue{v: v})
	return v
}

// managerFlags are shared by every command that builds a Manager.
type managerFlags struct {
	a, b, c *datasize.ByteSize
	backing *string
	name    *string
	workers *int
	audit   *bool
}

func addManagerFlags(cmd *kingpin.CmdClause) *managerFlags {
	return &managerFlags{
		a:       sizeFlag(cmd.Flag("a", "Size of segment A, kept at the start of the stitched view.").Default("64KB")),
		b:       sizeFlag(cmd.Flag("b", "Size of segment B, left out of the stitched view.").Default("204KB")),
		c:       sizeFlag(cmd.Flag("c", "Size of segment C, pinned right after A.").Default("4KB")),
		backing: cmd.Flag("backing", "Backing object type.").Default("memfd").Enum("memfd", "devshm"),
		name:    cmd.Flag("name", "Prefix of backing object names.").Default("aliasdiag").String(),
		workers: cmd.Flag("workers", "Pattern workers, 0 for GOMAXPROCS.").Default("0").Int(),
		audit:   cmd.Flag("audit", "Log every view and backing lifecycle event.").Bool(),
	}
}

func (f *managerFlags) layout() (*shm.Layout, error) {
	segs := make([]shm.Segment, 0, 3)
	for _, s := range []struct {
		name string
		size *datasize.ByteSize
	}{{"A", f.a}, {"B", f.b}, {"C", f.c}} {
		if s.size.Bytes() > maxSegment {
			return nil, fmt.Errorf("segment %s: %s is too large", s.name, s.size.HumanReadable())
		}
		segs = append(segs, shm.Segment{Name: s.name, Size: int(s.size.Bytes())})
	}
	return shm.NewLayout(segs...)
}

func (f *managerFlags) config(logger log.Logger, reg prometheus.Registerer) (*shm.Config, error) {
	typ, err := shm.ParseMemMapType(*f.backing)
	if err != nil {
		return nil, err
	}
	config := shm.DefaultConfig()
	config.Name = *f.name
	config.MemMapType = typ
	config.Logger = logger
	config.Registerer = reg
	config.Tracer = otel.Tracer("github.com/srediag/shm-alias/cmd/aliasdiag")

	o, err := adapter.NewOTelObserver(otel.GetMeterProvider().Meter("github.com/srediag/shm-alias/cmd/aliasdiag"))
	if err != nil {
		return nil, err
	}
	config.Observers = append(config.Observers, o)
	if *f.audit {
		config.Observers = append(config.Observers, adapter.NewAuditObserver(logger))
	}
	return config, shm.VerifyConfig(config)
}
