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
	"strings"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, VerifyConfig(c))
	assert.Equal(t, MemMapTypeMemFd, c.MemMapType)
	assert.True(t, c.CheckCapacity)
}

func TestVerifyConfig(t *testing.T) {
	assert.Error(t, VerifyConfig(nil))

	for name, mutate := range map[string]func(*Config){
		"empty name":   func(c *Config) { c.Name = "" },
		"long name":    func(c *Config) { c.Name = strings.Repeat("x", maxNameLen+1) },
		"slash":        func(c *Config) { c.Name = "a/b" },
		"nul":          func(c *Config) { c.Name = "a\x00b" },
		"unknown type": func(c *Config) { c.MemMapType = MemMapType(9) },
	} {
		c := DefaultConfig()
		mutate(c)
		assert.Error(t, VerifyConfig(c), name)
	}

	c := DefaultConfig()
	c.MemMapType = MemMapTypeDevShmFile
	assert.NoError(t, VerifyConfig(c))
}

func TestSetLogLevel(t *testing.T) {
	defer func() { require.NoError(t, SetLogLevel("warn")) }()

	assert.Error(t, SetLogLevel("verbose"))
	require.NoError(t, SetLogLevel("info"))

	var out strings.Builder
	logger := NewLogger(&out)
	require.NoError(t, level.Debug(logger).Log("msg", "hidden"))
	require.NoError(t, level.Info(logger).Log("msg", "shown"))
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "msg=shown")
}
