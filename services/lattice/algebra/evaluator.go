// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package algebra

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

const (
	// parallelThreshold is the minimum active-set size before parallel
	// evaluation is used. Below this, goroutine overhead exceeds the
	// benefit of parallelism.
	parallelThreshold = 32

	// maxParallelWorkers caps the worker pool size regardless of CPU
	// count. Evaluation is memory-bound on the snapshot map, so more
	// workers than this yields diminishing returns.
	maxParallelWorkers = 8

	// workerStackBuf is the stack capture size for panic reports.
	workerStackBuf = 4096
)

var evalTracer = otel.Tracer("lattice.algebra")

// Candidate is the proposed post-step state of one cell, computed by
// EvaluateCell from the pre-step snapshot. The operator sums are kept
// alongside the layers for diagnostics and event payloads.
type Candidate struct {
	Coord        grid.Coordinate
	Layers       codec.Layers
	Resonance    float64
	Entanglement float64
}

// Word encodes the candidate layers into a packed word. Saturation in
// the evaluator keeps every field in range, so an error here indicates
// a candidate that did not come from EvaluateCell.
func (c Candidate) Word() (codec.Word, error) {
	return codec.Encode(c.Layers)
}

// Evaluator applies the interaction operators to cells of a snapshot.
//
// Thread Safety: an Evaluator is immutable after construction and safe
// for concurrent use.
type Evaluator struct {
	shape      *grid.Shape
	offsets    []grid.Offset
	params     Params
	maxWorkers int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMaxWorkers overrides the parallel worker cap. Zero or negative
// restores the default.
func WithMaxWorkers(n int) Option {
	return func(e *Evaluator) {
		e.maxWorkers = n
	}
}

// NewEvaluator builds an Evaluator for the given neighborhood shape and
// operator parameters.
//
// Description:
//
//	Weight tables are validated against the shape's offset count and
//	relaxation rates against [0,1]. The shape and parameter slices are
//	held by reference; callers must not mutate them afterward.
//
// Inputs:
//   - shape: Neighborhood shape; weight tables index its offsets.
//   - params: Operator weights and relaxation rates.
//   - opts: Optional overrides.
//
// Outputs:
//   - *Evaluator: The configured evaluator.
//   - error: ErrNilShape, ErrWeightCount, or ErrParamRange.
func NewEvaluator(shape *grid.Shape, params Params, opts ...Option) (*Evaluator, error) {
	if err := params.validate(shape); err != nil {
		return nil, err
	}
	e := &Evaluator{
		shape:   shape,
		offsets: shape.Offsets(),
		params:  params,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Shape returns the neighborhood shape the evaluator was built with.
func (e *Evaluator) Shape() *grid.Shape {
	return e.shape
}

// Params returns the operator parameters.
func (e *Evaluator) Params() Params {
	return e.params
}

// ActiveSet returns the cells that can change state this step: every
// occupied coordinate plus every neighbor of an occupied coordinate,
// deduplicated and sorted lexicographically. Cells outside this set
// have no occupied neighbors and therefore zero operator drive.
func (e *Evaluator) ActiveSet(view *grid.Snapshot) []grid.Coordinate {
	occupied := view.Coords()
	seen := make(map[grid.Coordinate]struct{}, len(occupied)*(1+len(e.offsets)))
	for _, c := range occupied {
		seen[c] = struct{}{}
		for _, o := range e.offsets {
			seen[c.Add(o)] = struct{}{}
		}
	}
	active := make([]grid.Coordinate, 0, len(seen))
	for c := range seen {
		active = append(active, c)
	}
	slices.SortFunc(active, grid.Coordinate.Compare)
	return active
}

// EvaluateCell computes the candidate state for a single cell.
//
// Description:
//
//	Reads the cell and its neighbors from the pre-step snapshot only,
//	folds the resonance and entanglement terms in shape declaration
//	order, applies the relaxation terms, and saturates each layer back
//	into range. The result depends only on the snapshot contents, so
//	repeated calls and calls from different goroutines are
//	bit-identical.
//
// Inputs:
//   - view: Pre-step snapshot to read from.
//   - c: Cell coordinate to evaluate.
//
// Outputs:
//   - Candidate: Proposed post-step state for c.
func (e *Evaluator) EvaluateCell(view *grid.Snapshot, c grid.Coordinate) Candidate {
	w := view.Get(c)
	cur := codec.Decode(w)

	var resSum, entSum float64
	for i, o := range e.offsets {
		n := codec.Decode(view.Get(c.Add(o)))
		resSum += ResonanceTerm(e.params.ResonanceWeights[i], cur.Activation, n.Activation)
		entSum += EntanglementTerm(e.params.EntanglementWeights[i], cur.Information, n.Information)
	}

	// Ground cells change only under non-zero operator drive. Relaxation
	// alone must not generate state out of vacuum.
	if w.IsGround() && resSum == 0 && entSum == 0 {
		return Candidate{Coord: c}
	}

	next := codec.Layers{
		Reality: Saturate(float64(cur.Reality) +
			e.params.RealizationRate*(float64(cur.Activation)-float64(cur.Reality))),
		Information: Saturate(float64(cur.Information) + entSum),
		Activation:  Saturate(float64(cur.Activation) + resSum),
		Potential: Saturate(float64(cur.Potential) +
			e.params.PotentialRecovery*(float64(codec.MaxLayerValue-cur.Activation)-float64(cur.Potential))),
	}
	return Candidate{Coord: c, Layers: next, Resonance: resSum, Entanglement: entSum}
}

// EvaluateAll evaluates every listed cell against the snapshot.
//
// Description:
//
//	Small batches run sequentially; larger ones fan out over a bounded
//	worker pool. Because EvaluateCell reads only the immutable
//	snapshot, the candidate map is bit-identical in both modes. The
//	cell list must be duplicate-free; ActiveSet satisfies this.
//
// Inputs:
//   - ctx: Cancellation context checked per cell.
//   - view: Pre-step snapshot to read from.
//   - cells: Duplicate-free coordinates to evaluate.
//
// Outputs:
//   - map[grid.Coordinate]Candidate: One candidate per requested cell.
//   - error: The context error when cancelled, or ErrIncomplete when a
//     worker failed to produce a candidate. No partial map is returned.
func (e *Evaluator) EvaluateAll(ctx context.Context, view *grid.Snapshot, cells []grid.Coordinate) (map[grid.Coordinate]Candidate, error) {
	ctx, span := evalTracer.Start(ctx, "algebra.evaluate_all",
		trace.WithAttributes(
			attribute.Int("cells.count", len(cells)),
		))
	defer span.End()

	workers := e.workerCount(len(cells))
	if len(cells) <= parallelThreshold || workers <= 1 {
		span.SetAttributes(attribute.String("mode", "sequential"))
		return e.evaluateSequential(ctx, view, cells)
	}

	span.SetAttributes(
		attribute.String("mode", "parallel"),
		attribute.Int("workers", workers),
	)
	slog.Debug("evaluating cells in parallel",
		"cells", len(cells),
		"workers", workers)
	return e.evaluateParallel(ctx, view, cells, workers)
}

// workerCount returns the pool size for n cells, bounded by CPU count
// and the configured cap.
func (e *Evaluator) workerCount(n int) int {
	limit := e.maxWorkers
	if limit <= 0 {
		limit = maxParallelWorkers
	}
	return min(n, min(runtime.NumCPU(), limit))
}

func (e *Evaluator) evaluateSequential(ctx context.Context, view *grid.Snapshot, cells []grid.Coordinate) (map[grid.Coordinate]Candidate, error) {
	result := make(map[grid.Coordinate]Candidate, len(cells))
	for _, c := range cells {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluate: %w", err)
		}
		result[c] = e.EvaluateCell(view, c)
	}
	return result, nil
}

func (e *Evaluator) evaluateParallel(ctx context.Context, view *grid.Snapshot, cells []grid.Coordinate, workers int) (map[grid.Coordinate]Candidate, error) {
	// Per-worker result buffers avoid lock contention on a shared map.
	// Each worker appends only to its own slice; merge happens after the
	// pool drains.
	locals := make([][]Candidate, workers)
	for i := range locals {
		locals[i] = make([]Candidate, 0, len(cells)/workers+1)
	}

	workChan := make(chan grid.Coordinate, min(len(cells), 256))
	var wg sync.WaitGroup

	for workerID := 0; workerID < workers; workerID++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for c := range workChan {
				// Keep draining after cancellation so the feeder never
				// blocks on a full channel.
				if ctx.Err() != nil {
					continue
				}
				if cand, ok := e.safeEvaluate(view, c, id); ok {
					locals[id] = append(locals[id], cand)
				}
			}
		}(workerID)
	}

	for _, c := range cells {
		workChan <- c
	}
	close(workChan)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	result := make(map[grid.Coordinate]Candidate, len(cells))
	for _, batch := range locals {
		for _, cand := range batch {
			result[cand.Coord] = cand
		}
	}
	if len(result) != len(cells) {
		return nil, fmt.Errorf("%w: %d of %d cells evaluated",
			ErrIncomplete, len(result), len(cells))
	}
	return result, nil
}

// safeEvaluate wraps EvaluateCell with panic recovery so a single bad
// cell cannot take down the worker pool. A recovered panic surfaces as
// a missing candidate, which EvaluateAll reports as ErrIncomplete.
func (e *Evaluator) safeEvaluate(view *grid.Snapshot, c grid.Coordinate, workerID int) (cand Candidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, workerStackBuf)
			n := runtime.Stack(buf, false)
			slog.Error("panic evaluating cell",
				"coord", c.String(),
				"worker_id", workerID,
				"panic", r,
				"stack", string(buf[:n]))
			ok = false
		}
	}()
	return e.EvaluateCell(view, c), true
}
