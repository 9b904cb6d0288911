/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
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
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// LogLevelEnv overrides the default log level of loggers built by NewLogger.
const LogLevelEnv = "ALIASSHM_LOG_LEVEL"

var (
	logLevelMu sync.RWMutex
	logLevel   = "warn"
)

func init() {
	if v := os.Getenv(LogLevelEnv); v != "" {
		if _, err := levelOption(v); err == nil {
			logLevel = strings.ToLower(v)
		}
	}
}

// SetLogLevel changes the level used by loggers created afterwards.
// Valid levels are debug, info, warn, error and none; the default is warn.
func SetLogLevel(l string) error {
	if _, err := levelOption(l); err != nil {
		return err
	}
	logLevelMu.Lock()
	logLevel = strings.ToLower(l)
	logLevelMu.Unlock()
	return nil
}

func levelOption(l string) (level.Option, error) {
	switch strings.ToLower(l) {
	case "debug":
		return level.AllowDebug(), nil
	case "info":
		return level.AllowInfo(), nil
	case "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	case "none":
		return level.AllowNone(), nil
	}
	return nil, fmt.Errorf("unknown log level %q", l)
}

// NewLogger returns a logfmt logger writing to out, filtered at the current level.
func NewLogger(out io.Writer) log.Logger {
	if out == nil {
		out = os.Stderr
	}
	logLevelMu.RLock()
	opt, _ := levelOption(logLevel)
	logLevelMu.RUnlock()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(out))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	return level.NewFilter(logger, opt)
}
