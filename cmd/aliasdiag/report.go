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
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/valyala/bytebufferpool"

	"github.com/srediag/shm-alias/pkg/shm"
)

func placement(v shm.ViewInfo) string {
	if v.Pinned {
		return "fixed in " + v.Host
	}
	return "system"
}

// renderReport formats backings and views as aligned tables.
func renderReport(backings []shm.BackingInfo, views []shm.ViewInfo) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	w := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BACKING\tTYPE\tSIZE\tVIEWS\tRELEASED")
	for _, b := range backings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", b.ID, b.Type, humanize.IBytes(uint64(b.Length)), b.Refs, b.Released)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "VIEW\tBACKING\tBASE\tOFFSET\tSIZE\tPLACEMENT")
	for _, v := range views {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", v.ID, v.Backing, v.Base,
			humanize.IBytes(uint64(v.Offset)), humanize.IBytes(uint64(v.Length)), placement(v))
	}
	_ = w.Flush()
	return buf.String()
}
