// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package correction

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/constraint"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

var correctTracer = otel.Tracer("lattice.correction")

// Skip reports one stage skipped for one cell.
type Skip struct {
	Coord  grid.Coordinate
	Stage  string
	Reason string
}

// Pipeline runs an ordered list of correction stages with masked
// outputs.
//
// Thread Safety: a Pipeline is immutable after construction and safe
// for concurrent use.
type Pipeline struct {
	shape   *grid.Shape
	offsets []grid.Offset
	stages  []Stage
	masks   []uint32
}

// NewPipeline validates the stage list and builds a pipeline. An empty
// list is valid and leaves every cell untouched.
//
// Description:
//
//	Stage names must be unique and every stage must declare at least
//	one layer. Declared layer sets must be pairwise disjoint so no
//	stage can modify bits another stage owns.
//
// Inputs:
//   - shape: Neighborhood shape used to build syndromes.
//   - stages: Stages in application order.
//
// Outputs:
//   - *Pipeline: The validated pipeline.
//   - error: ErrNilShape, ErrEmptyLayerSet, ErrDuplicateStage, or
//     ErrOverlappingStages.
func NewPipeline(shape *grid.Shape, stages []Stage) (*Pipeline, error) {
	if shape == nil {
		return nil, ErrNilShape
	}
	var claimed codec.LayerSet
	names := make(map[string]struct{}, len(stages))
	masks := make([]uint32, len(stages))
	for i, st := range stages {
		if st.Layers().Empty() {
			return nil, fmt.Errorf("%w: stage %q", ErrEmptyLayerSet, st.Name())
		}
		if _, dup := names[st.Name()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStage, st.Name())
		}
		names[st.Name()] = struct{}{}
		if claimed.Overlaps(st.Layers()) {
			return nil, fmt.Errorf("%w: stage %q claims %s", ErrOverlappingStages, st.Name(), st.Layers())
		}
		claimed |= st.Layers()
		masks[i] = st.Layers().WordMask()
	}
	return &Pipeline{
		shape:   shape,
		offsets: shape.Offsets(),
		stages:  slices.Clone(stages),
		masks:   masks,
	}, nil
}

// Stages returns the stage names in application order.
func (p *Pipeline) Stages() []string {
	out := make([]string, len(p.stages))
	for i, st := range p.stages {
		out[i] = st.Name()
	}
	return out
}

// CorrectCell runs every stage against one cell word and returns the
// corrected word plus the skipped stages. Skip entries carry the stage
// name and reason; the caller fills in the coordinate.
//
// Each stage's output is masked to its declared layers, so a stage can
// never leak changes into bits it does not own. A stage error or an
// invalid masked word skips that stage; the remaining stages still see
// the unskipped result.
func (p *Pipeline) CorrectCell(cell codec.Word, syn Syndrome) (codec.Word, []Skip) {
	cur := cell
	var skipped []Skip
	for i, st := range p.stages {
		out, err := st.Apply(cur, syn)
		if err != nil {
			skipped = append(skipped, Skip{Stage: st.Name(), Reason: err.Error()})
			continue
		}
		masked := codec.Word(uint32(cur)&^p.masks[i] | uint32(out)&p.masks[i])
		if err := codec.Validate(masked); err != nil {
			skipped = append(skipped, Skip{Stage: st.Name(), Reason: err.Error()})
			continue
		}
		cur = masked
	}
	return cur, skipped
}

// CorrectAll corrects every post-constraint result and returns the
// words to commit.
//
// Description:
//
//	Cells are processed in coordinate order. Each cell's syndrome is
//	built from its neighbors' post-constraint states, so correction
//	reads only the constraint output, never the live grid. Ground
//	results stay in the output map; commit uses them to delete stale
//	cells.
//
// Inputs:
//   - ctx: Cancellation context checked per cell.
//   - results: Constraint outcomes for the step's active set.
//
// Outputs:
//   - map[grid.Coordinate]codec.Word: Corrected word per cell.
//   - []Skip: Skipped stages in processing order.
//   - error: The context error when cancelled, or an encode failure on
//     a malformed result.
func (p *Pipeline) CorrectAll(ctx context.Context, results map[grid.Coordinate]constraint.Result) (map[grid.Coordinate]codec.Word, []Skip, error) {
	ctx, span := correctTracer.Start(ctx, "correction.correct_all",
		trace.WithAttributes(
			attribute.Int("cells.count", len(results)),
			attribute.Int("stages.count", len(p.stages)),
		))
	defer span.End()

	coords := make([]grid.Coordinate, 0, len(results))
	for coord := range results {
		coords = append(coords, coord)
	}
	slices.SortFunc(coords, grid.Coordinate.Compare)

	words := make(map[grid.Coordinate]codec.Word, len(coords))
	var skips []Skip
	for _, coord := range coords {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("correction: %w", err)
		}
		res := results[coord]
		cell, err := res.Cand.Word()
		if err != nil {
			return nil, nil, fmt.Errorf("correction: encode %s: %w", coord, err)
		}
		syn := BuildSyndrome(p.offsets, results, coord)
		corrected, cellSkips := p.CorrectCell(cell, syn)
		words[coord] = corrected
		for _, sk := range cellSkips {
			sk.Coord = coord
			skips = append(skips, sk)
		}
	}

	span.SetAttributes(attribute.Int("skips.count", len(skips)))
	if len(skips) > 0 {
		slog.Debug("correction stages skipped",
			"count", len(skips),
			"cells", len(coords))
	}
	return words, skips, nil
}
