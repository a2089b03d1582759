// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianLattice/services/lattice/coherence"
	"github.com/AleutianAI/AleutianLattice/services/lattice/config"
	"github.com/AleutianAI/AleutianLattice/services/lattice/constraint"
	"github.com/AleutianAI/AleutianLattice/services/lattice/events"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
	"github.com/AleutianAI/AleutianLattice/services/lattice/snapstore"
	"github.com/AleutianAI/AleutianLattice/services/lattice/telemetry"
)

// Runner executes the step loop over one set of kernel components.
//
// Description:
//
//	A Runner is single-use: it starts Idle, runs once, and ends in a
//	terminal state. The step loop is the only writer to the grid store
//	while the run is live. Progress is reported through the event sink,
//	package metrics, and the returned RunResult.
//
// Thread Safety:
//
//	Run must be called once. State, LastScore, LastNRCI, and Stop are
//	safe from any goroutine at any time.
type Runner struct {
	comp Components
	cfg  config.RunConfig

	runID   string
	snaps   snapstore.Store
	sink    events.Sink
	logger  *slog.Logger
	limiter *rate.Limiter

	mu        sync.RWMutex
	state     RunState
	lastScore float64
	lastNRCI  float64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Option configures a Runner.
type Option func(*Runner)

// WithSnapshotStore enables snapshot persistence. Without a store the
// runner skips the persist phase entirely.
func WithSnapshotStore(store snapstore.Store) Option {
	return func(r *Runner) {
		r.snaps = store
	}
}

// WithEventSink replaces the default emitter. Tests pass a MockEmitter
// here to capture the event stream.
func WithEventSink(sink events.Sink) Option {
	return func(r *Runner) {
		r.sink = sink
	}
}

// WithLogger sets the structured logger. The runner binds its run ID to
// every record, and trace identifiers once the run span is live.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// NewRunner validates the components and run configuration and returns
// an Idle runner.
//
// Inputs:
//   - comp: The kernel stages; all fields required.
//   - cfg: Stepping and termination settings.
//   - opts: Optional overrides.
//
// Outputs:
//   - *Runner: The Idle runner.
//   - error: ErrNilComponent or ErrBadRunConfig.
func NewRunner(comp Components, cfg config.RunConfig, opts ...Option) (*Runner, error) {
	if err := comp.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxSteps < 1 {
		return nil, fmt.Errorf("%w: max steps %d", ErrBadRunConfig, cfg.MaxSteps)
	}
	if cfg.ScoreThreshold < 0 || cfg.ScoreThreshold > 1 {
		return nil, fmt.Errorf("%w: score threshold %g outside [0,1]", ErrBadRunConfig, cfg.ScoreThreshold)
	}
	if cfg.PersistEvery < 0 {
		return nil, fmt.Errorf("%w: persist cadence %d", ErrBadRunConfig, cfg.PersistEvery)
	}
	if cfg.StepsPerSecond < 0 {
		return nil, fmt.Errorf("%w: steps per second %g", ErrBadRunConfig, cfg.StepsPerSecond)
	}

	r := &Runner{
		comp:   comp,
		cfg:    cfg,
		state:  StateIdle,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("run_id", r.runID)
	if r.sink == nil {
		r.sink = events.NewEmitter(events.WithRunID(r.runID))
	}
	if cfg.StepsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.StepsPerSecond), 1)
	}
	return r, nil
}

// RunID returns the run identifier.
func (r *Runner) RunID() string {
	return r.runID
}

// State returns the current lifecycle state.
func (r *Runner) State() RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// LastScore returns the coherence score of the most recently committed
// step, or zero before the first commit. Cheap enough for metric gauge
// callbacks.
func (r *Runner) LastScore() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastScore
}

// LastNRCI returns the NRCI of the most recently committed step.
func (r *Runner) LastNRCI() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastNRCI
}

// Stop requests termination at the next step boundary.
//
// Safe from any goroutine and idempotent. An in-flight step always
// finishes and commits; the loop then exits with state Completed. Stop
// after termination is a no-op.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

// stopRequested reports whether Stop has been called.
func (r *Runner) stopRequested() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

// setScores records the latest committed scores for gauge callbacks.
func (r *Runner) setScores(score, nrci float64) {
	r.mu.Lock()
	r.lastScore = score
	r.lastNRCI = nrci
	r.mu.Unlock()
}

// transition validates and applies a lifecycle change, then reports it.
func (r *Runner) transition(to RunState, reason string) error {
	r.mu.Lock()
	from := r.state
	if !CanTransition(from, to) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	r.state = to
	r.mu.Unlock()

	r.logger.Info("run state changed",
		"from", from.String(),
		"to", to.String(),
		"reason", reason)
	r.sink.Emit(events.TypeStateChanged, events.StateChangedData{
		FromState: from.String(),
		ToState:   to.String(),
		Reason:    reason,
	})
	return nil
}

// Run executes steps until a termination condition holds.
//
// Description:
//
//	The loop checks stop requests, context cancellation, and the step
//	budget at each boundary, then paces, then runs one full step. Steps
//	themselves are never interrupted: the step context carries values
//	but not cancellation, so a cancel mid-step commits the in-flight
//	step and exits at the next boundary with state Completed. The only
//	error return from a live loop is a rejected commit, which aborts
//	the run with ErrCommitOutOfRange in the chain.
//
// Inputs:
//   - ctx: Controls boundary cancellation and carries trace context.
//
// Outputs:
//   - *RunResult: The outcome, present for both terminal states.
//   - error: Nil for Completed. ErrInvalidTransition when the runner
//     already ran, or the fatal step error for Aborted.
//
// Thread Safety: Run must be called at most once per Runner.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := r.transition(StateRunning, "run started"); err != nil {
		return nil, err
	}

	ctx, span := startRunSpan(ctx, r.runID, r.cfg.MaxSteps)
	defer span.End()
	r.logger = telemetry.LoggerWithTrace(ctx, r.logger)
	start := time.Now()

	r.logger.Info("run started",
		"dims", r.comp.Store.Dims(),
		"seeded_cells", r.comp.Store.Len(),
		"max_steps", r.cfg.MaxSteps,
		"score_threshold", r.cfg.ScoreThreshold)
	r.sink.Emit(events.TypeRunStarted, events.RunStartedData{
		Dims:         r.comp.Store.Dims(),
		Neighborhood: fmt.Sprintf("%d-offset", r.comp.Evaluator.Shape().Len()),
		MaxSteps:     r.cfg.MaxSteps,
		SeededCells:  r.comp.Store.Len(),
	})

	var pers *persister
	if r.snaps != nil {
		pers = newPersister(r.snaps, r.sink, r.logger)
	}

	// Warm starts resume step numbering from the restored snapshot.
	base := r.comp.Store.Step()
	records := make([]StepRecord, 0, r.cfg.MaxSteps)
	var (
		reason string
		fatal  error
	)

loop:
	for {
		switch {
		case ctx.Err() != nil:
			reason = "context cancelled"
			break loop
		case r.stopRequested():
			reason = "stop requested"
			break loop
		case len(records) >= r.cfg.MaxSteps:
			reason = "step budget exhausted"
			break loop
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				reason = "context cancelled"
				break
			}
		}

		idx := base + uint64(len(records)) + 1
		// Steps are all-or-nothing: the step context drops cancellation
		// so the in-flight step always reaches commit.
		rec, err := r.runStep(context.WithoutCancel(ctx), idx, pers)
		if err != nil {
			fatal = err
			break
		}
		records = append(records, rec)
		r.setScores(rec.Score, rec.NRCI)
		recordStepMetrics(ctx, rec)

		if r.cfg.ScoreThreshold > 0 && rec.Score >= r.cfg.ScoreThreshold {
			reason = "score threshold reached"
			break
		}
	}

	if fatal != nil {
		return r.finishAborted(ctx, span, pers, records, start, fatal)
	}
	return r.finishCompleted(ctx, span, pers, records, start, reason)
}

// runStep executes one full step: evaluate, constrain, correct, commit,
// score, report.
func (r *Runner) runStep(ctx context.Context, idx uint64, pers *persister) (StepRecord, error) {
	ctx, span := startStepSpan(ctx, idx)
	defer span.End()
	start := time.Now()

	r.sink.SetStep(int(idx))

	view := r.comp.Store.Snapshot()
	active := r.comp.Evaluator.ActiveSet(view)

	cands, err := r.comp.Evaluator.EvaluateAll(ctx, view, active)
	if err != nil {
		telemetry.RecordError(span, err)
		return StepRecord{}, fmt.Errorf("step %d: %w", idx, err)
	}

	results, viols, err := r.comp.Checker.Apply(ctx, view, cands)
	if err != nil {
		telemetry.RecordError(span, err)
		return StepRecord{}, fmt.Errorf("step %d: %w", idx, err)
	}

	words, skips, err := r.comp.Correction.CorrectAll(ctx, results)
	if err != nil {
		telemetry.RecordError(span, err)
		return StepRecord{}, fmt.Errorf("step %d: %w", idx, err)
	}

	if err := r.comp.Store.Commit(idx, words); err != nil {
		err = fmt.Errorf("step %d: %w: %w", idx, ErrCommitOutOfRange, err)
		telemetry.RecordError(span, err)
		return StepRecord{}, err
	}

	committed := r.comp.Store.Snapshot()
	rec := StepRecord{
		Step:            idx,
		Score:           r.comp.Scorer.Score(committed, r.comp.Reference),
		NRCI:            coherence.NRCI(committed, r.comp.Reference),
		ActiveCells:     len(active),
		Holds:           len(viols),
		CorrectionSkips: len(skips),
	}
	for _, res := range results {
		switch res.Repair {
		case constraint.RepairAxis:
			rec.AxisRepairs++
		case constraint.RepairActivation:
			rec.ActivationRepairs++
		}
	}
	for c, w := range words {
		if w != view.Get(c) {
			rec.ChangedCells++
		}
	}

	for _, v := range viols {
		r.sink.Emit(events.TypeConstraintUnsatisfied, events.ConstraintUnsatisfiedData{
			Coord:      v.Coord,
			StepNumber: int(idx),
			Magnitude:  v.Magnitude,
			Activation: v.Activation,
		})
	}
	for _, sk := range skips {
		r.sink.Emit(events.TypeCorrectionSkipped, events.CorrectionSkippedData{
			Coord:      sk.Coord,
			Stage:      sk.Stage,
			Reason:     sk.Reason,
			StepNumber: int(idx),
		})
	}

	if pers != nil && r.onCadence(idx) {
		blob := grid.EncodeSnapshot(committed)
		key := snapstore.KeyFor(blob)
		rec.SnapshotKey = key.String()
		pers.enqueue(persistJob{step: idx, key: key, blob: blob, cells: committed.Len()})
	}

	rec.Duration = time.Since(start)
	setStepSpanResult(span, rec)
	r.sink.Emit(events.TypeStepCompleted, events.StepCompletedData{
		StepNumber:        int(idx),
		Duration:          rec.Duration,
		ActiveCells:       rec.ActiveCells,
		ChangedCells:      rec.ChangedCells,
		AxisRepairs:       rec.AxisRepairs,
		ActivationRepairs: rec.ActivationRepairs,
		Holds:             rec.Holds,
		CorrectionSkips:   rec.CorrectionSkips,
		Score:             rec.Score,
		NRCI:              rec.NRCI,
	})
	r.logger.Debug("step committed",
		"step", idx,
		"active_cells", rec.ActiveCells,
		"changed_cells", rec.ChangedCells,
		"holds", rec.Holds,
		"score", rec.Score)
	return rec, nil
}

// onCadence reports whether a step index falls on the persist cadence.
func (r *Runner) onCadence(idx uint64) bool {
	return r.cfg.PersistEvery > 0 && idx%uint64(r.cfg.PersistEvery) == 0
}

// persistFinal enqueues the final committed state unless the cadence
// already covered it. With PersistEvery zero this is the only write of
// the run.
func (r *Runner) persistFinal(pers *persister, records []StepRecord) {
	if pers == nil {
		return
	}
	if n := len(records); n > 0 && records[n-1].SnapshotKey != "" {
		return
	}
	snap := r.comp.Store.Snapshot()
	blob := grid.EncodeSnapshot(snap)
	key := snapstore.KeyFor(blob)
	if n := len(records); n > 0 {
		records[n-1].SnapshotKey = key.String()
	}
	pers.enqueue(persistJob{step: snap.Step(), key: key, blob: blob, cells: snap.Len()})
}

// finishCompleted drains persistence, transitions to Completed, and
// builds the result.
func (r *Runner) finishCompleted(ctx context.Context, span trace.Span, pers *persister, records []StepRecord, start time.Time, reason string) (*RunResult, error) {
	r.persistFinal(pers, records)
	if pers != nil {
		pers.close()
	}

	if err := r.transition(StateCompleted, reason); err != nil {
		return nil, err
	}

	res := r.buildResult(StateCompleted, records, reason, pers, time.Since(start))
	r.setScores(res.FinalScore, res.FinalNRCI)

	r.sink.Emit(events.TypeRunCompleted, events.RunCompletedData{
		FinalState:    res.State.String(),
		TotalSteps:    res.TotalSteps,
		TotalDuration: res.Duration,
		FinalScore:    res.FinalScore,
		FinalNRCI:     res.FinalNRCI,
		Reason:        reason,
	})
	recordRunMetrics(ctx, "completed", res.Duration)
	telemetry.SetSpanOK(span)
	r.logger.Info("run completed",
		"steps", res.TotalSteps,
		"final_score", res.FinalScore,
		"final_nrci", res.FinalNRCI,
		"duration", res.Duration,
		"reason", reason)
	return res, nil
}

// finishAborted drains persistence, transitions to Aborted, and returns
// the fatal error alongside the partial result.
func (r *Runner) finishAborted(ctx context.Context, span trace.Span, pers *persister, records []StepRecord, start time.Time, fatal error) (*RunResult, error) {
	if pers != nil {
		pers.close()
	}

	reason := "commit rejected an out-of-range cell"
	if err := r.transition(StateAborted, reason); err != nil {
		return nil, err
	}

	res := r.buildResult(StateAborted, records, reason, pers, time.Since(start))

	r.sink.Emit(events.TypeRunCompleted, events.RunCompletedData{
		FinalState:    res.State.String(),
		TotalSteps:    res.TotalSteps,
		TotalDuration: res.Duration,
		FinalScore:    res.FinalScore,
		FinalNRCI:     res.FinalNRCI,
		Reason:        reason,
		Error:         fatal.Error(),
	})
	recordRunMetrics(ctx, "aborted", res.Duration)
	telemetry.RecordError(span, fatal)
	r.logger.Error("run aborted",
		"steps", res.TotalSteps,
		"error", fatal)
	return res, fatal
}

// buildResult assembles the RunResult for a terminal state. With no
// committed steps the final scores are computed from the current grid,
// which is the seeded or restored state.
func (r *Runner) buildResult(state RunState, records []StepRecord, reason string, pers *persister, duration time.Duration) *RunResult {
	res := &RunResult{
		RunID:      r.runID,
		State:      state,
		Steps:      records,
		TotalSteps: len(records),
		Duration:   duration,
		Reason:     reason,
	}
	if n := len(records); n > 0 {
		res.FinalScore = records[n-1].Score
		res.FinalNRCI = records[n-1].NRCI
	} else {
		view := r.comp.Store.Snapshot()
		res.FinalScore = r.comp.Scorer.Score(view, r.comp.Reference)
		res.FinalNRCI = coherence.NRCI(view, r.comp.Reference)
	}
	if pers != nil {
		res.PersistFailures = pers.failureCount()
		if key := pers.lastPersistedKey(); key != "" {
			res.FinalSnapshotKey = key.String()
		}
	}
	return res
}
