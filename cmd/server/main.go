// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

// Package main is the entry point for the Barhound server.
//
// Barhound turns weekly bar inventory snapshots into ranked, explainable
// restock recommendations and learns from operator feedback over time.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, optional YAML file, environment
//     variables (Koanf v2)
//  2. Logging: zerolog with JSON or console output
//  3. Store: SQLite database for runs, actions, and preferences
//  4. Agent: the recommendation pipeline service
//  5. HTTP server: REST API plus health and metrics endpoints
//
// Shutdown is graceful on SIGINT and SIGTERM: the server stops accepting
// connections, waits for in-flight requests up to the configured timeout,
// then closes the store.
//
// Example usage:
//
//	export DATABASE_PATH=/data/barhound.db
//	export PORT=8080
//	export LOG_LEVEL=info
//	./barhound
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/barhound/barhound/internal/agent"
	"github.com/barhound/barhound/internal/api"
	"github.com/barhound/barhound/internal/config"
	"github.com/barhound/barhound/internal/logging"
	"github.com/barhound/barhound/internal/metrics"
	"github.com/barhound/barhound/internal/store"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("database", cfg.Database.Path).
		Msg("starting barhound")

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("closing store")
		}
	}()

	m := metrics.New()
	svc := agent.New(st, agent.Options{
		Metrics: m,
		Workers: cfg.Agent.Workers,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewServer(svc, st, m, cfg).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	logging.Info().Msg("shutdown complete")
	return nil
}
