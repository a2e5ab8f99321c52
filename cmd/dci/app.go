// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/jllopis/dci/examples/bank"
	"github.com/jllopis/dci/pkg/config"
	"github.com/jllopis/dci/pkg/dispatch"
	"github.com/jllopis/dci/pkg/interaction"
	"github.com/jllopis/dci/pkg/journal"
	"github.com/jllopis/dci/pkg/telemetry"
)

// app is the runtime assembled from configuration: logger, telemetry,
// registry with the bank providers, dispatcher, journal and runner.
type app struct {
	cfg        *config.Config
	level      *slog.LevelVar
	logger     *slog.Logger
	registry   *dispatch.Registry
	dispatcher *dispatch.Dispatcher
	store      journal.Store
	runner     *interaction.Runner

	closers []func(context.Context) error
}

func newApp(cfg *config.Config, logOutput io.Writer) (*app, error) {
	a := &app{cfg: cfg, level: new(slog.LevelVar)}
	a.level.Set(telemetry.ParseLevel(cfg.Log.Level))
	a.logger = telemetry.ConfigureSlog(logOutput, a.level, cfg.Log.Format)

	var metrics *telemetry.DispatchMetrics
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitWithConfig(cfg.Telemetry.ServiceName, version, telemetry.Config{
			Exporter:     cfg.Telemetry.Exporter,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(ctx context.Context) error { return shutdown(ctx) })

		metrics, err = telemetry.NewDispatchMetrics(context.Background())
		if err != nil {
			_ = a.Close(context.Background())
			return nil, err
		}
	}

	a.registry = dispatch.NewRegistry()
	if err := bank.Register(a.registry); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	a.dispatcher = dispatch.New(a.registry,
		dispatch.WithCache(cfg.Dispatch.Cache),
		dispatch.WithLogger(telemetry.Component(a.logger, "dispatcher")),
		dispatch.WithMetrics(metrics),
	)

	switch cfg.Journal.Driver {
	case "memory":
		a.store = journal.NewMemoryStore()
	case "sqlite":
		store, err := journal.OpenSQLite(cfg.Journal.DSN)
		if err != nil {
			_ = a.Close(context.Background())
			return nil, err
		}
		a.store = store
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
	}

	opts := []interaction.RunnerOption{
		interaction.WithRunnerLogger(telemetry.Component(a.logger, "interaction")),
		interaction.WithRunnerMetrics(metrics),
		interaction.WithParticipantLocks(cfg.Interaction.LockParticipants),
	}
	if a.store != nil {
		recorder := journal.NewResilientRecorder(a.store, cfg.Journal.Retries, cfg.Journal.BreakerThreshold)
		opts = append(opts, interaction.WithJournal(recorder))
	}
	a.runner = interaction.NewRunner(opts...)
	return a, nil
}

// Close releases resources in reverse acquisition order.
func (a *app) Close(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
