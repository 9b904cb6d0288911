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
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/srediag/shm-alias/adapter"
	"github.com/srediag/shm-alias/internal/pattern"
	"github.com/srediag/shm-alias/pkg/shm"
)

const shutdownTimeout = 5 * time.Second

// serveCommand keeps the scenario mapped and exposes metrics and health probes
// until interrupted.
type serveCommand struct {
	flags  *managerFlags
	listen *string
}

func (cmd *serveCommand) run(*kingpin.ParseContext) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := shm.NewLogger(os.Stderr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	layout, err := cmd.flags.layout()
	if err != nil {
		return err
	}
	config, err := cmd.flags.config(logger, reg)
	if err != nil {
		return err
	}
	m, err := shm.NewManager(config)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			level.Warn(logger).Log("msg", "close manager", "err", err)
		}
	}()

	f, err := pattern.New(*cmd.flags.workers)
	if err != nil {
		return err
	}
	defer f.Release()

	sc, err := newScenario(ctx, m, layout)
	if err != nil {
		return fmt.Errorf("set up views: %w", err)
	}
	if _, _, err := sc.exercise(f); err != nil {
		return fmt.Errorf("views do not alias: %w", err)
	}

	health := adapter.NewHealthHandler(m, reg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/live", health)
	mux.Handle("/ready", health)
	srv := &http.Server{Addr: *cmd.listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	level.Info(logger).Log("msg", "serving", "addr", *cmd.listen, "views", len(m.Views()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	level.Info(logger).Log("msg", "stopped")
	return nil
}

func addServeCommand(app *kingpin.Application) {
	cmd := &serveCommand{}
	serve := app.Command("serve", "Keep the views mapped and serve /metrics, /live and /ready.").Action(cmd.run)
	cmd.flags = addManagerFlags(serve)
	cmd.listen = serve.Flag("listen", "Address to serve on.").Default(":9464").String()
}
