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

// Package snbayes is the external interface (C8) of a selective naive
// Bayes training run: the input contracts a caller assembles from its own
// prepared attribute grid, the Config knobs that shape a run, and the
// Train entrypoint that wires the schema, binary slice set, scorer and
// training driver together and reports a predictor specification.
package snbayes

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/launix-de/snbayes/internal/binset"
	"github.com/launix-de/snbayes/internal/datacost"
	"github.com/launix-de/snbayes/internal/driver"
	"github.com/launix-de/snbayes/internal/partition"
	"github.com/launix-de/snbayes/internal/schema"
	"github.com/launix-de/snbayes/internal/scorer"
)

// Task names which of the three data-cost calculator variants a run uses;
// it is a property of the target attribute's type, decided by the caller
// before Train is invoked.
type Task int

const (
	TaskClassification Task = iota
	TaskRegression
	TaskGeneralizedClassification
)

// PreparedAttribute is one candidate predictor as the caller's own
// preparation stage produced it: its schema identity, construction and
// preparation costs, and the conditional log-probability table against
// the target partition this run will use.
type PreparedAttribute struct {
	Index             int
	NativeName        string
	RecodedName       string
	PreparedName      string
	CatalogueIndex    int
	Sparse            bool
	ConstructionCost  float64
	NullConstructCost float64
	PreparationCost   float64
	Level             float64

	// LogProb[s][t] = ln P(target part t | source part s), row-major via
	// NumSource rows of NumTarget columns.
	LogProb  []float64
	NumParts int // number of source parts (rows in LogProb)

	// RegressionCutPoints is only meaningful for TaskRegression: this
	// attribute's own interval discretisation of the target rank,
	// expressed as cumulative frequency right-boundaries.
	RegressionCutPoints []int

	// GroupOf is only meaningful for TaskGeneralizedClassification: the
	// attribute's own grouping of the J original target classes.
	GroupOf []int
}

// Config shapes one training run; the zero value is usable and falls back
// to the same defaults scorer.Config documents.
type Config struct {
	Task Task

	MaxEvaluatedAttributes int // 0 = unlimited
	MaxSelectedAttributes  int // 0 = unlimited

	PriorWeight   float64
	PriorExponent float64

	ConstructionCostEnabled bool
	PreparationCostEnabled  bool

	ForceDenseMode bool

	NumChunks int // 0 defaults to 1
	NumSlices int // 0 defaults to 1

	// WorkingDir is where chunk files get written when NumSlices > 1.
	WorkingDir string
}

// SparseBlock is one block of a caller's sparse prepared table, covering
// every attribute its local slots map to; it is binset.PreparedSparseBlock.
type SparseBlock = binset.PreparedSparseBlock

// Dataset is the full input contract: the target values, every candidate
// attribute's prepared grid, and the raw or sparse column data a caller
// already recoded into part indexes.
type Dataset struct {
	Instances int

	// TargetClass is used for TaskClassification and
	// TaskGeneralizedClassification: the original class index per
	// instance.
	TargetClass []int
	ClassFreq   []int

	// TargetRank is used for TaskRegression: each instance's rank in
	// sorted target order.
	TargetRank []int

	Attributes []PreparedAttribute

	// Columns holds, per attribute index, the recoded source-part column
	// over the whole dataset; Train slices each chunk's instance range out
	// of it. The caller owns how these are produced (dense slices, sparse
	// pair lists via SparseBlock).
	Columns map[int]binset.Column
}

// Diagnostic mirrors driver.Diagnostic in the C8-facing vocabulary.
type Diagnostic = driver.Diagnostic

const (
	DiagnosticNone                   = driver.DiagnosticNone
	DiagnosticNoInformativeVariables = driver.DiagnosticNoInformativeVariables
	DiagnosticUnivariate             = driver.DiagnosticUnivariate
)

// SelectedAttribute is one entry of the final predictor specification.
type SelectedAttribute struct {
	Index      int
	NativeName string
	Weight     float64
	Importance float64
}

// SelectionReport is what Train returns: the predictor specification plus
// the run's identity and diagnostic.
type SelectionReport struct {
	RunID      uuid.UUID
	Selected   []SelectedAttribute
	FinalScore float64
	Diagnostic Diagnostic
	Duration   time.Duration
}

// Summary renders the exit-time message a caller prints after Train
// returns, in the same register a long-running batch job uses to report
// what it did and how long it took.
func (r SelectionReport) Summary() string {
	h := int(r.Duration.Hours())
	m := int(r.Duration.Minutes()) % 60
	s := int(r.Duration.Seconds()) % 60
	base := fmt.Sprintf("Selective Naive Bayes train time: %02d:%02d:%02d", h, m, s)
	if r.Diagnostic != DiagnosticNone {
		return base + " (" + r.Diagnostic.String() + ")"
	}
	return base
}

// Train builds the schema, binary slice set, scorer and training driver
// from ds and cfg, runs the fast-forward/fast-backward search, and
// reports the resulting predictor specification.
func Train(ctx context.Context, ds Dataset, cfg Config) (SelectionReport, error) {
	start := time.Now()

	attrs := make([]*schema.Attribute, len(ds.Attributes))
	attrInfo := make(map[int]datacost.AttributeInfo, len(ds.Attributes))
	attrCosts := make([]scorer.AttributeCost, len(ds.Attributes))
	for i, pa := range ds.Attributes {
		attrs[i] = &schema.Attribute{
			Index:             pa.Index,
			NativeName:        pa.NativeName,
			RecodedName:       pa.RecodedName,
			PreparedName:      pa.PreparedName,
			CatalogueIndex:    pa.CatalogueIndex,
			Sparse:            pa.Sparse,
			ConstructionCost:  pa.ConstructionCost,
			NullConstructCost: pa.NullConstructCost,
			PreparationCost:   pa.PreparationCost,
			Level:             pa.Level,
		}
		lnp := partition.NewLogProbTable(pa.NumParts, numTargetParts(ds, cfg), pa.LogProb)
		info := datacost.AttributeInfo{Index: pa.Index, LnP: lnp}
		switch cfg.Task {
		case TaskRegression:
			info = info.WithExtra(datacost.RegressionAttribute{AttributeInfo: info, CumulativeFrequency: pa.RegressionCutPoints})
		case TaskGeneralizedClassification:
			info = info.WithExtra(datacost.GroupedAttribute{AttributeInfo: info, GroupOf: pa.GroupOf})
		}
		attrInfo[pa.Index] = info
		attrCosts[i] = scorer.AttributeCost{Index: pa.Index, Cost: attributeCost(pa, len(ds.Attributes), cfg)}
	}
	sch := schema.Build(attrs)

	chunks := cfg.NumChunks
	if chunks < 1 {
		chunks = 1
	}
	slices := cfg.NumSlices
	if slices < 1 {
		slices = 1
	}
	layout := binset.NewLayout(ds.Instances, chunks, sch.NumAttributes(), slices)

	var store binset.ChunkFileStore
	if slices > 1 {
		store = binset.NewLocalFileStore(cfg.WorkingDir)
	}
	src := datasetSource{ds: ds, layout: layout}
	bss, err := binset.Build(layout, src, store, "snbayes-")
	if err != nil {
		return SelectionReport{}, err
	}
	defer bss.Close(true)

	factory := calculatorFactory(ds, cfg)
	workers, err := driver.BuildWorkers(bss.Chunks, factory)
	if err != nil {
		return SelectionReport{}, err
	}

	sc := scorer.New(scorer.Config{PriorWeight: cfg.PriorWeight, PriorExponent: cfg.PriorExponent}, attrCosts)

	d := driver.New(sch, workers, sc, attrInfo, src.Column)

	candidates := make([]int, 0, len(ds.Attributes))
	for _, pa := range ds.Attributes {
		candidates = append(candidates, pa.Index)
	}
	sort.Ints(candidates)
	if cfg.MaxEvaluatedAttributes > 0 && len(candidates) > cfg.MaxEvaluatedAttributes {
		candidates = candidates[:cfg.MaxEvaluatedAttributes]
	}

	result, trainErr := d.Train(ctx, candidates)

	report := SelectionReport{
		RunID:      result.RunID,
		FinalScore: result.FinalScore,
		Diagnostic: result.Diagnostic,
		Duration:   time.Since(start),
	}
	report.Selected = selectedAttributes(ds, result.Weights, cfg)

	return report, trainErr
}

func numTargetParts(ds Dataset, cfg Config) int {
	switch cfg.Task {
	case TaskRegression:
		return len(ds.TargetRank)
	default:
		return len(ds.ClassFreq)
	}
}

// attributeCost is the unscaled attr_cost(a) term the scorer applies the
// prior weight and exponent to: construction cost net of the attribute's
// own null-construction cost when construction costs are enabled and the
// attribute actually has one, falling back otherwise to a flat
// ln(#initial attributes) variable-selection cost; preparation cost is
// added on top when preparation costs are enabled.
func attributeCost(pa PreparedAttribute, numInitialAttributes int, cfg Config) float64 {
	c := 0.0
	if cfg.ConstructionCostEnabled && pa.ConstructionCost > 0 {
		c += pa.ConstructionCost - pa.NullConstructCost
	} else {
		c += math.Log(float64(numInitialAttributes))
	}
	if cfg.PreparationCostEnabled {
		c += pa.PreparationCost
	}
	return c
}

// selectedAttributes sorts by descending importance, enforcing
// MaxSelectedAttributes if set, per the cap ordering: attributes already
// accepted by the driver are kept in importance order, not arrival order.
func selectedAttributes(ds Dataset, weights map[int]float64, cfg Config) []SelectedAttribute {
	byIndex := make(map[int]PreparedAttribute, len(ds.Attributes))
	for _, pa := range ds.Attributes {
		byIndex[pa.Index] = pa
	}
	out := make([]SelectedAttribute, 0, len(weights))
	for idx, w := range weights {
		pa := byIndex[idx]
		out = append(out, SelectedAttribute{
			Index:      idx,
			NativeName: pa.NativeName,
			Weight:     w,
			Importance: math.Sqrt(w * pa.Level),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	if cfg.MaxSelectedAttributes > 0 && len(out) > cfg.MaxSelectedAttributes {
		out = out[:cfg.MaxSelectedAttributes]
	}
	return out
}

// datasetSource adapts one whole-dataset column per attribute into the
// chunk-local view binset.ChunkSource requires, slicing by the layout's
// instance range for that chunk.
type datasetSource struct {
	ds     Dataset
	layout *binset.Layout
}

func (s datasetSource) Column(chunk, attr int) (binset.Column, error) {
	whole := s.ds.Columns[attr]
	if whole == nil {
		return nil, nil
	}
	offset := s.layout.InstanceOffset(chunk)
	count := s.layout.InstanceCount(chunk)
	if offset == 0 && count == whole.Len() {
		return whole, nil
	}
	return sliceColumn(whole, offset, count), nil
}

// sliceColumn carves out the [offset, offset+count) instance range of a
// whole-dataset column, rebasing sparse instance indexes to be
// chunk-relative.
func sliceColumn(col binset.Column, offset, count int) binset.Column {
	if sparse, ok := col.(*binset.SparseColumn); ok {
		pairs := make([]int32, 0, 16)
		sparse.ForEachPresent(func(i int, part int32) {
			if i >= offset && i < offset+count {
				pairs = append(pairs, int32(i-offset), part)
			}
		})
		return binset.NewSparseColumn(pairs, count)
	}
	values := make([]int32, count)
	for i := 0; i < count; i++ {
		values[i] = col.Get(offset + i)
	}
	return &binset.DenseColumn{Values: values}
}

func calculatorFactory(ds Dataset, cfg Config) driver.CalculatorFactory {
	return func(chunk *binset.ChunkSliceSet) (datacost.Calculator, error) {
		offset := chunk.InstanceOffset()
		n := chunk.InstanceCount()
		switch cfg.Task {
		case TaskRegression:
			rank := ds.TargetRank[offset : offset+n]
			return datacost.NewRegression(len(ds.TargetRank), rank), nil
		case TaskGeneralizedClassification:
			cls := ds.TargetClass[offset : offset+n]
			return datacost.NewGrouped(len(ds.TargetClass), ds.ClassFreq, cls), nil
		default:
			cls := ds.TargetClass[offset : offset+n]
			return datacost.NewClassification(len(ds.TargetClass), ds.ClassFreq, cls), nil
		}
	}
}
