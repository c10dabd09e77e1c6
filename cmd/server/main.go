// Skillcast - Workforce Skill Demand Forecasting
// Copyright 2026 Skillcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/skillcast/skillcast

// Package main is the entry point for the Skillcast server.
//
// Skillcast forecasts workforce skill demand: it joins job roles,
// skills, market trends and economic indicators into scoring contexts,
// classifies each role/skill pair into a demand level with either a
// deterministic rules engine or a trained model artifact, derives
// training-investment recommendations, and records every run in an
// append-only ledger.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML file,
//     SKILLCAST_ environment variables)
//  2. Logging: zerolog, JSON by default
//  3. Reference data store: Badger (persistent) or memory, optionally
//     seeded from a JSON file
//  4. Run ledger: DuckDB (persistent) or memory
//  5. Model artifact registry and wrapper (when the ML engine is enabled)
//  6. Prediction engine
//  7. Supervisor tree: HTTP API layer plus async worker layer
//
// # One-shot mode
//
// Passing -recalculate N runs a single forecast for horizon N years and
// exits without starting the server:
//
//	skillcast -recalculate 3
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP listener
// drains in-flight requests, the worker router closes its
// subscriptions, and both stores are closed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skillcast/skillcast/internal/api"
	"github.com/skillcast/skillcast/internal/artifact"
	"github.com/skillcast/skillcast/internal/config"
	"github.com/skillcast/skillcast/internal/forecast"
	"github.com/skillcast/skillcast/internal/ledger"
	"github.com/skillcast/skillcast/internal/logging"
	"github.com/skillcast/skillcast/internal/refdata"
	"github.com/skillcast/skillcast/internal/supervisor"
	"github.com/skillcast/skillcast/internal/worker"
)

// runLedger is a run store that owns resources needing shutdown.
type runLedger interface {
	forecast.RunStore
	Close() error
}

func main() {
	recalcHorizon := flag.Int("recalculate", 0,
		"run one forecast for the given horizon in years, print the summary, and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Logging)

	if err := run(cfg, *recalcHorizon); err != nil {
		logging.Fatal().Err(err).Msg("Skillcast exited with error")
	}
}

func run(cfg *config.Config, recalcHorizon int) error {
	logging.Info().
		Str("ledger_backend", cfg.Ledger.Backend).
		Str("refdata_backend", cfg.RefData.Backend).
		Bool("model_enabled", cfg.Forecast.Model.Enabled).
		Bool("worker_enabled", cfg.Worker.Enabled).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refStore, err := openRefDataStore(cfg.RefData)
	if err != nil {
		return fmt.Errorf("open reference data store: %w", err)
	}
	defer closeStore("refdata", refStore.Close)

	if cfg.RefData.SeedFile != "" {
		seed, err := refdata.LoadSeedFile(cfg.RefData.SeedFile)
		if err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
		if err := seed.Apply(ctx, refStore); err != nil {
			return fmt.Errorf("apply seed data: %w", err)
		}
		logging.Info().Str("path", cfg.RefData.SeedFile).Msg("Reference data seeded")
	}

	runStore, err := openRunStore(ctx, cfg.Ledger)
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	defer closeStore("ledger", runStore.Close)

	var (
		artifacts *artifact.Store
		model     *forecast.ModelWrapper
	)
	if cfg.Forecast.Model.Enabled {
		artifacts, err = artifact.NewStore(cfg.Forecast.Model.Dir)
		if err != nil {
			return fmt.Errorf("open artifact registry: %w", err)
		}
		model = forecast.NewModelWrapper(artifacts, cfg.Forecast.Model, logging.Logger())
		logging.Info().Str("dir", cfg.Forecast.Model.Dir).Msg("Model artifact registry opened")
	}

	resolver := refdata.NewResolver(refStore, logging.Logger())
	engine, err := forecast.NewEngine(cfg.Forecast, resolver, runStore, model, logging.Logger())
	if err != nil {
		return fmt.Errorf("create prediction engine: %w", err)
	}

	if recalcHorizon > 0 {
		return runOnce(ctx, engine, recalcHorizon)
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	var runner *worker.Runner
	if cfg.Worker.Enabled {
		runner, err = worker.NewRunner(cfg.Worker.Runner, engine, logging.Logger())
		if err != nil {
			return fmt.Errorf("create worker: %w", err)
		}
		tree.AddWorkerService(runner)
	}

	// api.Enqueuer is an interface; a typed-nil *worker.Runner must not
	// leak into it when the worker is disabled.
	var enqueuer api.Enqueuer
	if runner != nil {
		enqueuer = runner
	}
	handler, err := api.NewHandler(engine, runStore, enqueuer, model, artifacts, logging.Logger())
	if err != nil {
		return fmt.Errorf("create api handler: %w", err)
	}
	server := api.NewServer(cfg.Server, api.NewRouter(handler, cfg.API))
	tree.AddAPIService(server)

	logging.Info().Str("addr", server.Addr()).Msg("Starting Skillcast")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Skillcast stopped")
	return nil
}

// runOnce executes a single recalculation for CLI usage.
func runOnce(ctx context.Context, engine *forecast.Engine, horizonYears int) error {
	summary, err := engine.Recalculate(ctx, horizonYears, "cli")
	if err != nil {
		return fmt.Errorf("recalculate horizon %d: %w", horizonYears, err)
	}
	logging.Info().
		Str("run_id", summary.RunID).
		Str("engine", summary.EngineUsed).
		Int("predictions", summary.TotalPredictions).
		Int("recommendations", summary.TotalRecommendations).
		Int("skipped", summary.SkippedContexts).
		Msg("Forecast run complete")
	fmt.Fprintf(os.Stdout, "run %s: %d predictions, %d recommendations (%s)\n",
		summary.RunID, summary.TotalPredictions, summary.TotalRecommendations, summary.EngineUsed)
	return nil
}

func openRefDataStore(cfg config.RefDataConfig) (refdata.Store, error) {
	switch cfg.Backend {
	case "badger":
		return refdata.NewBadgerStore(cfg.Dir)
	case "memory":
		return refdata.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown refdata backend %q", cfg.Backend)
	}
}

func openRunStore(ctx context.Context, cfg config.DatabaseConfig) (runLedger, error) {
	switch cfg.Backend {
	case "duckdb":
		return ledger.OpenDuckDB(ctx, cfg.Path)
	case "memory":
		return ledger.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func closeStore(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logging.Error().Err(err).Str("store", name).Msg("Error closing store")
	}
}
