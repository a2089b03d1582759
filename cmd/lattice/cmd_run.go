// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianLattice/services/lattice/config"
	"github.com/AleutianAI/AleutianLattice/services/lattice/events"
	"github.com/AleutianAI/AleutianLattice/services/lattice/sim"
	"github.com/AleutianAI/AleutianLattice/services/lattice/telemetry"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// runRun is the CLI handler for the "lattice run" command.
//
// It loads the run document, wires the snapshot store, telemetry, and
// event sink, then drives a runner to completion. SIGINT and SIGTERM
// request a stop at the next step boundary; a second signal cancels
// immediately.
//
// # Exit Codes
//
//   - 0: Run reached a terminal state cleanly
//   - 2: Run aborted or could not be configured
func runRun(cmd *cobra.Command, args []string) {
	doc, source, err := loadDocument()
	if err != nil {
		OutputError(runJSON, "Failed to load run document", err)
		os.Exit(CLIExitError)
	}
	if applyRunOverrides(cmd, &doc) {
		if err := doc.Validate(); err != nil {
			OutputError(runJSON, "Invalid run overrides", err)
			os.Exit(CLIExitError)
		}
	}

	logger := newLogger(&doc, "lattice")
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := telemetry.Init(ctx, telemetryConfig(doc.Telemetry))
	if err != nil {
		logger.Warn("telemetry init failed, continuing without exporters", "error", err)
	} else {
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}

	store, err := openSnapStore(doc.Store)
	if err != nil {
		OutputError(runJSON, "Failed to open snapshot store", err)
		os.Exit(CLIExitError)
	}
	defer store.Close()

	comp, err := sim.BuildComponents(&doc)
	if err != nil {
		OutputError(runJSON, "Failed to build simulation components", err)
		os.Exit(CLIExitError)
	}

	emitter := events.NewEmitter()
	runner, err := sim.NewRunner(comp, doc.Run,
		sim.WithSnapshotStore(store),
		sim.WithEventSink(emitter),
		sim.WithLogger(logger.Slog()),
	)
	if err != nil {
		OutputError(runJSON, "Failed to configure runner", err)
		os.Exit(CLIExitError)
	}

	// Live progress on an interactive terminal. The emitter dispatches
	// handlers synchronously from the step loop, so the line is always
	// current when the summary prints.
	showProgress := isTerminal(os.Stderr) && !doc.Logging.Quiet && !runJSON
	if showProgress {
		emitter.Subscribe(func(ev *events.Event) {
			data, ok := ev.Data.(events.StepCompletedData)
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "\rstep %d/%d  score %.4f  nrci %.4f  active %d ",
				data.StepNumber, doc.Run.MaxSteps, data.Score, data.NRCI, data.ActiveCells)
		}, events.TypeStepCompleted)
	}

	stopMetrics := startMetricsEndpoint(doc, logger.Slog(), runner)
	defer stopMetrics()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	go func() {
		select {
		case <-quit:
			logger.Info("interrupt received, stopping at the next step boundary")
			runner.Stop()
		case <-ctx.Done():
			return
		}
		select {
		case <-quit:
			logger.Warn("second interrupt, cancelling the run")
			cancel()
		case <-ctx.Done():
		}
	}()

	res, err := runner.Run(ctx)
	if showProgress {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		OutputError(runJSON, "Run failed", err)
		os.Exit(CLIExitError)
	}

	if runJSON {
		summary := RunSummaryResult{
			RunID:            res.RunID,
			State:            res.State.String(),
			TotalSteps:       res.TotalSteps,
			FinalScore:       res.FinalScore,
			FinalNRCI:        res.FinalNRCI,
			FinalSnapshotKey: res.FinalSnapshotKey,
			PersistFailures:  res.PersistFailures,
			DurationMs:       res.Duration.Milliseconds(),
			Reason:           res.Reason,
		}
		if err := OutputJSON(summary, false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		os.Exit(CLIExitSuccess)
	}

	fmt.Println("--- Run Summary ---")
	fmt.Printf("Run ID:        %s\n", res.RunID)
	fmt.Printf("Document:      %s\n", source)
	fmt.Printf("State:         %s\n", res.State)
	fmt.Printf("Steps:         %d\n", res.TotalSteps)
	fmt.Printf("Score:         %.6f\n", res.FinalScore)
	fmt.Printf("NRCI:          %.6f\n", res.FinalNRCI)
	if res.FinalSnapshotKey != "" {
		fmt.Printf("Snapshot:      %s\n", res.FinalSnapshotKey)
	}
	if res.PersistFailures > 0 {
		fmt.Printf("Persist fails: %d\n", res.PersistFailures)
	}
	fmt.Printf("Duration:      %s\n", res.Duration.Round(time.Millisecond))
	fmt.Printf("Reason:        %s\n", res.Reason)
	fmt.Println("-------------------")
}

// applyRunOverrides folds explicitly set run flags into the document
// and reports whether anything changed. Only flags the user actually
// set override, so zero values stay expressible in documents.
func applyRunOverrides(cmd *cobra.Command, doc *config.Document) bool {
	flags := cmd.Flags()
	changed := false
	if flags.Changed("max-steps") {
		doc.Run.MaxSteps = runMaxSteps
		changed = true
	}
	if flags.Changed("score-threshold") {
		doc.Run.ScoreThreshold = runThreshold
		changed = true
	}
	if flags.Changed("persist-every") {
		doc.Run.PersistEvery = runPersistEvery
		changed = true
	}
	if flags.Changed("steps-per-second") {
		doc.Run.StepsPerSecond = runRate
		changed = true
	}
	if flags.Changed("workers") {
		doc.Run.MaxWorkers = runWorkers
		changed = true
	}
	return changed
}

// startMetricsEndpoint serves the Prometheus scrape endpoint and
// registers the coherence gauges when the document enables prometheus
// metrics. The returned func stops the server and releases the gauges;
// it is a no-op when nothing was started.
func startMetricsEndpoint(doc config.Document, logger *slog.Logger, runner *sim.Runner) func() {
	if doc.Telemetry.Metrics != "prometheus" {
		return func() {}
	}

	var reg metric.Registration
	meter := otel.Meter("lattice.cli")
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		logger.Warn("metrics setup failed", "error", err)
	} else {
		reg, err = metrics.RegisterCoherenceGauges(meter, runner.LastScore, runner.LastNRCI)
		if err != nil {
			logger.Warn("coherence gauge registration failed", "error", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())
	srv := &http.Server{
		Addr:              runMetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", runMetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	return func() {
		if reg != nil {
			if err := reg.Unregister(); err != nil {
				logger.Warn("gauge unregistration failed", "error", err)
			}
		}
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
}
