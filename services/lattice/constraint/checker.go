// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package constraint

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianLattice/services/lattice/algebra"
	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

const (
	// parallelThreshold is the minimum candidate count before the
	// constraint pass fans out over workers.
	parallelThreshold = 32

	// maxParallelWorkers caps the worker pool size.
	maxParallelWorkers = 8

	// workerStackBuf is the stack capture size for panic reports.
	workerStackBuf = 4096
)

var applyTracer = otel.Tracer("lattice.constraint")

// RepairKind labels the outcome of the balance check for one cell.
type RepairKind string

const (
	// RepairNone means the candidate already satisfied the predicate.
	RepairNone RepairKind = "none"

	// RepairAxis means the residual was absorbed into one axis of the
	// triad record. The candidate word is unchanged.
	RepairAxis RepairKind = "axis"

	// RepairActivation means the candidate's activation field was moved
	// onto the axis sum.
	RepairActivation RepairKind = "activation"

	// RepairHold means the cell was unrepairable and keeps its pre-step
	// word.
	RepairHold RepairKind = "hold"
)

// String returns the repair kind for logs and events.
func (k RepairKind) String() string {
	return string(k)
}

// Result is the constraint outcome for one cell: the candidate after
// any repair, the triad record the correction layer consumes, and how
// the outcome was reached.
type Result struct {
	Cand   algebra.Candidate
	Axes   [AxisCount]int32
	Repair RepairKind

	// Axis is the repaired axis index for RepairAxis outcomes, -1
	// otherwise.
	Axis int
}

// Violation reports an unrepairable cell. The step continues; the
// scheduler surfaces violations as events.
type Violation struct {
	Coord      grid.Coordinate
	Magnitude  int32
	Axes       [AxisCount]int32
	Activation uint8
}

// Checker applies the triad balance predicate and repair policy.
//
// Thread Safety: a Checker is immutable after construction and safe for
// concurrent use.
type Checker struct {
	shape      *grid.Shape
	offsets    []grid.Offset
	triad      Triad
	axisOf     []int
	faceW      []float64
	groupLen   [AxisCount]int
	maxWorkers int
}

// Option configures a Checker.
type Option func(*Checker)

// WithMaxWorkers overrides the parallel worker cap. Zero or negative
// restores the default.
func WithMaxWorkers(n int) Option {
	return func(c *Checker) {
		c.maxWorkers = n
	}
}

// NewChecker validates the triad against the shape and precomputes the
// per-offset axis assignment and face weights.
func NewChecker(shape *grid.Shape, triad Triad, opts ...Option) (*Checker, error) {
	if err := triad.validate(shape); err != nil {
		return nil, err
	}
	c := &Checker{
		shape:   shape,
		offsets: shape.Offsets(),
		triad:   triad,
		axisOf:  make([]int, shape.Len()),
		faceW:   make([]float64, shape.Len()),
	}
	for axis, group := range triad.AxisGroups {
		c.groupLen[axis] = len(group)
		for _, idx := range group {
			c.axisOf[idx] = axis
			c.faceW[idx] = triad.FaceWeights[2*axis+faceIndex(c.offsets[idx])]
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Triad returns the checker's configuration.
func (c *Checker) Triad() Triad {
	return c.triad
}

// AxisValues derives the three axis values for a cell from its
// neighbors' candidate activations.
//
// Description:
//
//	Each neighbor contributes its candidate activation, scaled by its
//	face weight, to the raw aggregate of its axis group. Raw values
//	are averaged per group, coupled through the pair matrix, and
//	rounded half away from zero. Neighbors without a candidate read as
//	ground; such coordinates are outside the active set and stay
//	ground this step.
//
// Inputs:
//   - cands: Candidate map for the step.
//   - at: Cell whose axes are derived.
//
// Outputs:
//   - [AxisCount]int32: The derived axis values.
func (c *Checker) AxisValues(cands map[grid.Coordinate]algebra.Candidate, at grid.Coordinate) [AxisCount]int32 {
	var rawSum [AxisCount]float64
	for i, o := range c.offsets {
		cand, ok := cands[at.Add(o)]
		if !ok {
			continue
		}
		rawSum[c.axisOf[i]] += c.faceW[i] * float64(cand.Layers.Activation)
	}

	var raw [AxisCount]float64
	for k := 0; k < AxisCount; k++ {
		if c.groupLen[k] > 0 {
			raw[k] = rawSum[k] / float64(c.groupLen[k])
		}
	}

	var axes [AxisCount]int32
	for k := 0; k < AxisCount; k++ {
		var coupled float64
		for j := 0; j < AxisCount; j++ {
			coupled += c.triad.PairWeights[k][j] * raw[j]
		}
		axes[k] = int32(math.Round(coupled))
	}
	return axes
}

// Apply checks and repairs every candidate against the balance
// predicate.
//
// Description:
//
//	Small candidate sets run sequentially; larger ones fan out over a
//	bounded worker pool. Per-cell outcomes depend only on the
//	immutable candidate map and pre-step snapshot, so both modes are
//	bit-identical. Violations are sorted by coordinate.
//
// Inputs:
//   - ctx: Cancellation context checked per cell.
//   - view: Pre-step snapshot, read for held cells.
//   - cands: Candidate map from operator evaluation.
//
// Outputs:
//   - map[grid.Coordinate]Result: One result per candidate.
//   - []Violation: Unrepairable cells in coordinate order.
//   - error: The context error when cancelled, or ErrIncomplete.
func (c *Checker) Apply(ctx context.Context, view *grid.Snapshot, cands map[grid.Coordinate]algebra.Candidate) (map[grid.Coordinate]Result, []Violation, error) {
	ctx, span := applyTracer.Start(ctx, "constraint.apply",
		trace.WithAttributes(
			attribute.Int("cells.count", len(cands)),
		))
	defer span.End()

	coords := make([]grid.Coordinate, 0, len(cands))
	for coord := range cands {
		coords = append(coords, coord)
	}
	slices.SortFunc(coords, grid.Coordinate.Compare)

	workers := c.workerCount(len(coords))
	var (
		results map[grid.Coordinate]Result
		viols   []Violation
		err     error
	)
	if len(coords) <= parallelThreshold || workers <= 1 {
		span.SetAttributes(attribute.String("mode", "sequential"))
		results, viols, err = c.applySequential(ctx, view, cands, coords)
	} else {
		span.SetAttributes(
			attribute.String("mode", "parallel"),
			attribute.Int("workers", workers),
		)
		results, viols, err = c.applyParallel(ctx, view, cands, coords, workers)
	}
	if err != nil {
		return nil, nil, err
	}

	slices.SortFunc(viols, func(a, b Violation) int {
		return a.Coord.Compare(b.Coord)
	})
	span.SetAttributes(attribute.Int("violations.count", len(viols)))
	if len(viols) > 0 {
		slog.Debug("constraint violations held",
			"count", len(viols),
			"cells", len(coords))
	}
	return results, viols, nil
}

// applyCell runs the predicate and repair policy for one cell.
func (c *Checker) applyCell(view *grid.Snapshot, cands map[grid.Coordinate]algebra.Candidate, coord grid.Coordinate) (Result, *Violation) {
	cand := cands[coord]
	cand.Coord = coord
	axes := c.AxisValues(cands, coord)
	sum := axes[0] + axes[1] + axes[2]
	act := int32(cand.Layers.Activation)
	delta := act - sum

	if abs32(delta) <= int32(c.triad.Tolerance) {
		return Result{Cand: cand, Axes: axes, Repair: RepairNone, Axis: -1}, nil
	}

	// Axis-record repair: smallest magnitude first, lowest index on
	// ties. The adjusted axis absorbs the whole residual.
	order := [AxisCount]int{0, 1, 2}
	slices.SortStableFunc(order[:], func(a, b int) int {
		am, bm := abs32(axes[a]), abs32(axes[b])
		switch {
		case am < bm:
			return -1
		case am > bm:
			return 1
		default:
			return a - b
		}
	})
	for _, k := range order {
		adjusted := axes[k] + delta
		if abs32(adjusted) <= c.triad.AxisBound {
			axes[k] = adjusted
			return Result{Cand: cand, Axes: axes, Repair: RepairAxis, Axis: k}, nil
		}
	}

	// Activation repair: move the field onto the clamped axis sum when
	// the shift is allowed and the predicate holds afterward.
	target := sum
	if target < 0 {
		target = 0
	}
	if target > codec.MaxLayerValue {
		target = codec.MaxLayerValue
	}
	if abs32(act-target) <= int32(c.triad.MaxActivationShift) &&
		abs32(sum-target) <= int32(c.triad.Tolerance) {
		cand.Layers.Activation = uint8(target)
		return Result{Cand: cand, Axes: axes, Repair: RepairActivation, Axis: -1}, nil
	}

	// Unrepairable: hold the pre-step word.
	held := algebra.Candidate{Coord: coord, Layers: codec.Decode(view.Get(coord))}
	return Result{Cand: held, Axes: axes, Repair: RepairHold, Axis: -1}, &Violation{
		Coord:      coord,
		Magnitude:  abs32(delta),
		Axes:       axes,
		Activation: cand.Layers.Activation,
	}
}

// workerCount returns the pool size for n cells, bounded by CPU count
// and the configured cap.
func (c *Checker) workerCount(n int) int {
	limit := c.maxWorkers
	if limit <= 0 {
		limit = maxParallelWorkers
	}
	return min(n, min(runtime.NumCPU(), limit))
}

func (c *Checker) applySequential(ctx context.Context, view *grid.Snapshot, cands map[grid.Coordinate]algebra.Candidate, coords []grid.Coordinate) (map[grid.Coordinate]Result, []Violation, error) {
	results := make(map[grid.Coordinate]Result, len(coords))
	var viols []Violation
	for _, coord := range coords {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("constraint: %w", err)
		}
		res, viol := c.applyCell(view, cands, coord)
		results[coord] = res
		if viol != nil {
			viols = append(viols, *viol)
		}
	}
	return results, viols, nil
}

// localOutcome is one worker's private result buffer.
type localOutcome struct {
	results []Result
	viols   []Violation
}

func (c *Checker) applyParallel(ctx context.Context, view *grid.Snapshot, cands map[grid.Coordinate]algebra.Candidate, coords []grid.Coordinate, workers int) (map[grid.Coordinate]Result, []Violation, error) {
	locals := make([]localOutcome, workers)
	for i := range locals {
		locals[i].results = make([]Result, 0, len(coords)/workers+1)
	}

	workChan := make(chan grid.Coordinate, min(len(coords), 256))
	var wg sync.WaitGroup

	for workerID := 0; workerID < workers; workerID++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for coord := range workChan {
				// Keep draining after cancellation so the feeder never
				// blocks on a full channel.
				if ctx.Err() != nil {
					continue
				}
				res, viol, ok := c.safeApply(view, cands, coord, id)
				if !ok {
					continue
				}
				locals[id].results = append(locals[id].results, res)
				if viol != nil {
					locals[id].viols = append(locals[id].viols, *viol)
				}
			}
		}(workerID)
	}

	for _, coord := range coords {
		workChan <- coord
	}
	close(workChan)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("constraint: %w", err)
	}

	results := make(map[grid.Coordinate]Result, len(coords))
	var viols []Violation
	for _, local := range locals {
		for _, res := range local.results {
			results[res.Cand.Coord] = res
		}
		viols = append(viols, local.viols...)
	}
	if len(results) != len(coords) {
		return nil, nil, fmt.Errorf("%w: %d of %d cells checked",
			ErrIncomplete, len(results), len(coords))
	}
	return results, viols, nil
}

// safeApply wraps applyCell with panic recovery so one bad cell cannot
// take down the pool. A recovered panic surfaces as ErrIncomplete.
func (c *Checker) safeApply(view *grid.Snapshot, cands map[grid.Coordinate]algebra.Candidate, coord grid.Coordinate, workerID int) (res Result, viol *Violation, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, workerStackBuf)
			n := runtime.Stack(buf, false)
			slog.Error("panic in constraint worker",
				"coord", coord.String(),
				"worker_id", workerID,
				"panic", r,
				"stack", string(buf[:n]))
			ok = false
		}
	}()
	res, viol = c.applyCell(view, cands, coord)
	return res, viol, true
}

// abs32 returns the absolute value of a 32-bit integer.
func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
