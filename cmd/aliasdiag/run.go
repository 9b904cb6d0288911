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
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/srediag/shm-alias/internal/pattern"
	"github.com/srediag/shm-alias/pkg/shm"
)

// runCommand sets the scenario up once, prints what each view sees and exits
// non-zero when a view does not alias the bytes it should.
type runCommand struct {
	flags *managerFlags
}

func (cmd *runCommand) run(*kingpin.ParseContext) error {
	ctx := context.Background()
	logger := shm.NewLogger(os.Stderr)

	layout, err := cmd.flags.layout()
	if err != nil {
		return err
	}
	config, err := cmd.flags.config(logger, nil)
	if err != nil {
		return err
	}
	m, err := shm.NewManager(config)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	f, err := pattern.New(*cmd.flags.workers)
	if err != nil {
		return err
	}
	defer f.Release()

	sc, err := newScenario(ctx, m, layout)
	if err != nil {
		return fmt.Errorf("set up views: %w", err)
	}
	sm4, sm0, err := sc.exercise(f)
	fmt.Print(renderReport(m.Backings(), m.Views()))
	fmt.Println()
	fmt.Printf("sm4: %s\n", sm4)
	fmt.Printf("sm0: %s\n", sm0)
	if err != nil {
		return fmt.Errorf("views do not alias: %w", err)
	}
	if err := m.Verify(); err != nil {
		return fmt.Errorf("verify mappings: %w", err)
	}
	return nil
}

func addRunCommand(app *kingpin.Application) {
	cmd := &runCommand{}
	run := app.Command("run", "Stitch A and C of an A, B, C backing and check what each view sees.").Default().Action(cmd.run)
	cmd.flags = addManagerFlags(run)
}
