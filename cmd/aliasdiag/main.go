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

// Command aliasdiag maps one shared memory object into aliasing views, stitches two
// separated segments of it into one contiguous view and reports what each view sees.
package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/srediag/shm-alias/pkg/shm"
)

func main() {
	app := kingpin.New("aliasdiag", "Shared memory aliasing diagnostics.")
	logLevel := app.Flag("log.level", "Log level: debug, info, warn, error or none.").
		Envar(shm.LogLevelEnv).Default("warn").Enum("debug", "info", "warn", "error", "none")
	app.PreAction(func(*kingpin.ParseContext) error {
		return shm.SetLogLevel(*logLevel)
	})

	addRunCommand(app)
	addServeCommand(app)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
