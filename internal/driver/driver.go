/*
Copyright (C) 2024  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package driver runs the training loop (C7): one master goroutine
// proposing attribute weight changes in fast-forward and fast-backward
// passes over a shrinking geometric step size, and one worker goroutine
// per chunk evaluating each proposal against its own slice of the data.
package driver

import (
	"context"
	"math"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jtolds/gls"
	"golang.org/x/sync/errgroup"

	"github.com/launix-de/snbayes/internal/binset"
	"github.com/launix-de/snbayes/internal/datacost"
	"github.com/launix-de/snbayes/internal/schema"
	"github.com/launix-de/snbayes/internal/scorer"
	"github.com/launix-de/snbayes/internal/trainerr"
)

var glsMgr = gls.NewContextManager()

// CalculatorFactory builds the chunk-local calculator for one worker; the
// caller (pkg/snbayes) decides which of the three datacost variants this
// run needs before the driver starts.
type CalculatorFactory func(chunk *binset.ChunkSliceSet) (datacost.Calculator, error)

// Worker owns exactly one chunk and evaluates proposals against it; it
// never touches another chunk's file or columns.
type Worker struct {
	chunk *binset.ChunkSliceSet
	calc  datacost.Calculator
}

// NewWorker pairs a chunk with the calculator that will evaluate every
// proposal against it.
func NewWorker(chunk *binset.ChunkSliceSet, calc datacost.Calculator) *Worker {
	return &Worker{chunk: chunk, calc: calc}
}

// BuildWorkers constructs one worker per chunk via factory, failing fast
// (and not leaving any already-built calculator behind) if any chunk's
// calculator construction fails.
func BuildWorkers(chunks []*binset.ChunkSliceSet, factory CalculatorFactory) ([]*Worker, error) {
	workers := make([]*Worker, 0, len(chunks))
	for _, c := range chunks {
		calc, err := factory(c)
		if err != nil {
			return nil, err
		}
		workers = append(workers, NewWorker(c, calc))
	}
	return workers, nil
}

// Result is what Train returns: the final selection's weights and the
// diagnostic classifying how informative the run turned out to be.
type Result struct {
	RunID      uuid.UUID
	Weights    map[int]float64
	FinalScore float64
	Diagnostic Diagnostic
	Iterations int
}

// Diagnostic narrates the degenerate cases a run can land in.
type Diagnostic int

const (
	DiagnosticNone Diagnostic = iota
	DiagnosticNoInformativeVariables
	DiagnosticUnivariate
)

func (d Diagnostic) String() string {
	switch d {
	case DiagnosticNoInformativeVariables:
		return "no informative variables found"
	case DiagnosticUnivariate:
		return "univariate predictor"
	default:
		return "none"
	}
}

// ProgressEvent is posted, without blocking, after every accepted or
// rejected proposal; when the channel's 64-event buffer is full the event
// is dropped. A caller wiring in progress broadcast (e.g. over a
// websocket) reads this channel until Train closes it.
type ProgressEvent struct {
	Outer     int
	Attribute int
	Accepted  bool
	Score     float64
}

// Driver orchestrates one training run across a fixed set of workers.
type Driver struct {
	schema      *schema.Schema
	workers     []*Worker
	scorer      *scorer.Scorer
	attrInfo    map[int]datacost.AttributeInfo // per-attribute log-prob table and calculator-specific payload, prebuilt by the caller
	columns     func(chunkIndex, attribute int) (binset.Column, error)
	epsilon     float64
	interrupted atomic.Bool
	progress    chan ProgressEvent
}

// New builds a driver over an already-built set of chunk calculators.
// attrInfo supplies each candidate attribute's log-probability table
// (and, for regression/grouped tasks, its WithExtra payload) once up
// front. columns supplies the attribute's column for a given chunk,
// letting the driver stay agnostic to whether S==1 (resident) or S>1
// (on-disk slices).
//
// The precision epsilon run state happens right here, once, before any
// attribute weight is ever touched: sc starts out at the empty selection,
// so scoring it now is exactly PrecisionEpsilonComputation's score_empty.
func New(s *schema.Schema, workers []*Worker, sc *scorer.Scorer, attrInfo map[int]datacost.AttributeInfo,
	columns func(chunkIndex, attribute int) (binset.Column, error)) *Driver {
	scoreEmpty := sc.Score(aggregateCost{workers})
	return &Driver{
		schema:   s,
		workers:  workers,
		scorer:   sc,
		attrInfo: attrInfo,
		columns:  columns,
		epsilon:  precisionEpsilon(scoreEmpty, totalInstances(workers)),
		progress: make(chan ProgressEvent, 64),
	}
}

func totalInstances(workers []*Worker) int {
	n := 0
	for _, w := range workers {
		n += w.chunk.InstanceCount()
	}
	return n
}

// precisionEpsilon is the threshold a score change must clear to be
// accepted: ε = 10⁻² · (1 + |score_empty|) / (1 + N), computed once from
// the empty-selection score so it scales with both the data's own cost
// magnitude and the dataset size.
func precisionEpsilon(scoreEmpty float64, globalN int) float64 {
	if globalN < 0 {
		globalN = 0
	}
	return 1e-2 * (1 + math.Abs(scoreEmpty)) / (1 + float64(globalN))
}

// Progress exposes the channel Train posts accept/reject events to.
func (d *Driver) Progress() <-chan ProgressEvent { return d.progress }

// Interrupt asks the training loop to stop at the next safe point and
// return whatever selection it has accepted so far.
func (d *Driver) Interrupt() { d.interrupted.Store(true) }

// outerIterations is ceil(log2(N+1)), the number of halvings of the
// weight-delta schedule 1/2^o the run works through.
func outerIterations(globalN int) int {
	if globalN < 1 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(globalN+1))))
}

// Train runs ceil(log2(N+1)) outer iterations over the geometric
// weight-delta schedule 1/2^o; each outer iteration runs up to two
// fast-forward/fast-backward rounds, the second only when the first
// accepted a proposal. It then reports the resulting selection.
func (d *Driver) Train(ctx context.Context, candidates []int) (Result, error) {
	runID := uuid.New()
	defer close(d.progress)

	sort.Ints(candidates)
	outer := outerIterations(totalInstances(d.workers))

	for o := 0; o < outer; o++ {
		if d.interrupted.Load() {
			return d.finish(runID, o), trainerr.InterruptedError{ElapsedSeconds: 0}
		}
		select {
		case <-ctx.Done():
			return d.finish(runID, o), trainerr.InterruptedError{ElapsedSeconds: 0}
		default:
		}

		deltaWeight := 1.0 / math.Pow(2, float64(o))
		for round := 0; round < 2; round++ {
			acceptedFF, err := d.pass(ctx, candidates, deltaWeight, true, o)
			if err != nil {
				return d.finish(runID, o), err
			}
			acceptedFB, err := d.pass(ctx, d.scorer.Selection().Attributes(), deltaWeight, false, o)
			if err != nil {
				return d.finish(runID, o), err
			}
			if !acceptedFF && !acceptedFB {
				break
			}
		}
	}

	return d.finish(runID, outer), nil
}

func (d *Driver) finish(runID uuid.UUID, iterations int) Result {
	sel := d.scorer.Selection()
	weights := make(map[int]float64, sel.Size())
	for _, a := range sel.Attributes() {
		weights[a] = sel.Weight(a)
	}
	diag := DiagnosticNone
	switch sel.Size() {
	case 0:
		diag = DiagnosticNoInformativeVariables
	case 1:
		diag = DiagnosticUnivariate
	}
	return Result{
		RunID:      runID,
		Weights:    weights,
		FinalScore: d.scorer.Score(aggregateCost{d.workers}),
		Diagnostic: diag,
		Iterations: iterations,
	}
}

// pass runs one fast-forward (increase) or fast-backward (decrease) sweep
// over attributes in the order the caller passes them; it does not shuffle
// that order. Fast-forward commits a proposal that improves the score by
// more than epsilon, fast-backward one that worsens it by less than
// epsilon; every other proposal is undone.
func (d *Driver) pass(ctx context.Context, attributes []int, deltaWeight float64, increase bool, outer int) (bool, error) {
	anyAccepted := false
	for _, attr := range attributes {
		if d.interrupted.Load() {
			return anyAccepted, nil
		}
		select {
		case <-ctx.Done():
			return anyAccepted, nil
		default:
		}

		before := d.scorer.Score(aggregateCost{d.workers})
		entering := increase && !d.scorer.Selection().Contains(attr)
		leaving := !increase && d.scorer.Selection().Weight(attr)-deltaWeight <= 0

		snapshots := d.snapshotWorkers()
		if err := d.apply(ctx, attr, deltaWeight, increase, entering, leaving); err != nil {
			return anyAccepted, err
		}

		after := d.scorer.Score(aggregateCost{d.workers})
		// FF commits a strict improvement (new < current - ε); FB commits
		// under the same epsilon slack but on the other side (new <
		// current + ε), letting the backward sweep shed variables on a
		// near-flat score instead of only ever growing the selection.
		var accept bool
		if increase {
			accept = before-after > d.epsilon
		} else {
			accept = before-after > -d.epsilon
		}
		if !accept {
			d.restoreWorkers(snapshots)
			if err := d.scorer.UndoLast(); err != nil {
				return anyAccepted, err
			}
		} else {
			anyAccepted = true
		}

		select {
		case d.progress <- ProgressEvent{Outer: outer, Attribute: attr, Accepted: accept, Score: after}:
		default:
		}
	}
	return anyAccepted, nil
}

// snapshotWorkers captures every worker calculator's state so a rejected
// proposal can be rolled back without recomputing from scratch.
func (d *Driver) snapshotWorkers() []datacost.State {
	out := make([]datacost.State, len(d.workers))
	for i, w := range d.workers {
		out[i] = w.calc.Snapshot()
	}
	return out
}

func (d *Driver) restoreWorkers(snapshots []datacost.State) {
	for i, w := range d.workers {
		w.calc.Restore(snapshots[i])
	}
}

// apply broadcasts one proposal to every worker in parallel via errgroup,
// then commits the master-side scorer/selection update. gls tags each
// worker goroutine with its chunk index; a recovered panic is wrapped in
// trainerr.WorkerPanic with the chunk index taken from the worker itself.
func (d *Driver) apply(ctx context.Context, attr int, deltaWeight float64, increase, entering, leaving bool) error {
	g, gctx := errgroup.WithContext(ctx)
	_ = gctx
	for _, w := range d.workers {
		w := w
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = trainerr.NewWorkerPanic(w.chunk.ChunkIndex, r)
				}
			}()
			return glsMgr.SetValues(gls.Values{"chunk": w.chunk.ChunkIndex}, func() error {
				return d.applyToWorker(w, attr, deltaWeight, increase, entering, leaving)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if increase {
		_, err := d.scorer.Increase(attr, deltaWeight)
		return err
	}
	_, err := d.scorer.Decrease(attr, deltaWeight)
	return err
}

func (d *Driver) applyToWorker(w *Worker, attr int, deltaWeight float64, increase, entering, leaving bool) error {
	col, err := d.columns(w.chunk.ChunkIndex, attr)
	if err != nil {
		return err
	}
	info := d.attrInfo[attr]
	if increase {
		return w.calc.Increase(info, col, deltaWeight, entering)
	}
	return w.calc.Decrease(info, col, deltaWeight, leaving)
}

// aggregateCost sums every worker's current chunk data cost into the
// scorer-facing total.
type aggregateCost struct {
	workers []*Worker
}

func (a aggregateCost) DataCost() float64 {
	var sum float64
	for _, w := range a.workers {
		sum += w.calc.DataCost()
	}
	return sum
}
