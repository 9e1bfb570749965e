/*
Copyright (C) 2023  Carl-Philip Hänsch

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

// Package scorer composes the regularised model cost (a prior over which
// attributes are selected) with the data cost reported by a chunk's
// calculator into the single scalar the training driver accepts or
// rejects proposals on.
package scorer

import (
	"fmt"
	"math"

	"github.com/launix-de/snbayes/internal/selection"
)

// AttributeCost is the prior's per-attribute construction/preparation
// cost, precomputed once from the prepared attribute grid.
type AttributeCost struct {
	Index int
	Cost  float64
}

// Config mirrors the prior's two tunables; zero-value Config falls back to
// the defaults used throughout testing and in the reference Khiops-style
// MODL prior (weight 0.1, exponent 0.95).
type Config struct {
	PriorWeight   float64
	PriorExponent float64
	BasePrior     float64
}

func (c Config) weight() float64 {
	if c.PriorWeight == 0 {
		return 0.1
	}
	return c.PriorWeight
}

func (c Config) exponent() float64 {
	if c.PriorExponent == 0 {
		return 0.95
	}
	return c.PriorExponent
}

// DataCostSource reports the aggregated data cost across every chunk;
// callers own aggregation (master sums worker-reported chunk data costs).
type DataCostSource interface {
	DataCost() float64
}

// Scorer evaluates Score = model_cost(selection) + data_cost for the
// weight-delta proposal protocol the training driver runs: Increase or
// Decrease mutate the live selection and cached model cost; UndoLast
// reverts exactly the most recent call and only the most recent call.
//
// model_cost(selection) = prior_weight * [ base_prior(selection) +
// Σ_a w_a^prior_exponent * attr_cost(a) ]. sumWeightedCost caches the
// unscaled bracket sum so Increase/Decrease only need the before/after
// term for the one attribute touched, not a full sum over the selection;
// base_prior is recomputed from the selection's size and weight sum,
// which is cheap (O(1), selection.Weighted already tracks SumOfWeights).
type Scorer struct {
	cfg             Config
	selection       *selection.Weighted
	costs           map[int]float64
	sumWeightedCost float64
	lastUndo        func()
	lastCalled      bool
}

// New builds a scorer for the empty selection, caching each attribute's
// construction/preparation cost for O(1) incremental prior updates.
func New(cfg Config, costs []AttributeCost) *Scorer {
	m := make(map[int]float64, len(costs))
	for _, c := range costs {
		m[c.Index] = c.Cost
	}
	return &Scorer{
		cfg:       cfg,
		selection: selection.New(),
		costs:     m,
	}
}

func (s *Scorer) Selection() *selection.Weighted { return s.selection }

// priorTerm returns weight^exponent * attr_cost(a), unscaled by the prior
// weight: the bracket term the base_prior sits alongside.
func (s *Scorer) priorTerm(attribute int, weight float64) float64 {
	return math.Pow(weight, s.cfg.exponent()) * s.costs[attribute]
}

// basePrior penalises the "number" of selected variables: ln 2 plus the
// configured null-construction cost for the empty selection, otherwise
// the universal code length of the (rounded-up) sum of weights minus the
// log of its factorial, the cost of picking which attributes out of that
// many are selected.
func (s *Scorer) basePrior() float64 {
	if s.selection.Size() == 0 {
		return math.Log(2) + s.cfg.BasePrior
	}
	n := int(math.Ceil(s.selection.SumOfWeights()))
	return universalIntegerCodeLength(n) - lnFactorial(n)
}

// universalIntegerCodeLength is Rissanen's universal code length for a
// positive integer: the iterated log sum log(n) + log(log(n)) + ... for
// as long as each term stays positive, plus the Kraft-normalising
// constant log(2.865064).
func universalIntegerCodeLength(n int) float64 {
	if n <= 0 {
		return 0
	}
	cost := math.Log(2.865064)
	term := math.Log(float64(n))
	for term > 0 {
		cost += term
		term = math.Log(term)
	}
	return cost
}

// lnFactorial returns ln(n!) via the log-gamma function.
func lnFactorial(n int) float64 {
	if n <= 1 {
		return 0
	}
	v, _ := math.Lgamma(float64(n) + 1)
	return v
}

// Increase raises attribute's weight by delta and updates the cached
// bracket sum incrementally: the prior only needs the before/after term
// for this one attribute, not a full sum over the selection.
func (s *Scorer) Increase(attribute int, delta float64) (float64, error) {
	if delta < 0 {
		return 0, fmt.Errorf("scorer: Increase requires a non-negative delta, got %v", delta)
	}
	before := s.selection.Weight(attribute)
	beforeTerm := 0.0
	if s.selection.Contains(attribute) {
		beforeTerm = s.priorTerm(attribute, before)
	}
	effective := s.selection.Increase(attribute, delta)
	after := s.selection.Weight(attribute)
	afterTerm := s.priorTerm(attribute, after)
	s.sumWeightedCost += afterTerm - beforeTerm

	s.lastUndo = func() {
		s.selection.Decrease(attribute, effective)
		s.sumWeightedCost += beforeTerm - afterTerm
	}
	s.lastCalled = true
	return effective, nil
}

// Decrease lowers attribute's weight by delta, removing it from the
// selection if the weight reaches zero, and updates the cached bracket
// sum the same way Increase does, in reverse.
func (s *Scorer) Decrease(attribute int, delta float64) (float64, error) {
	if delta < 0 {
		return 0, fmt.Errorf("scorer: Decrease requires a non-negative delta, got %v", delta)
	}
	if !s.selection.Contains(attribute) {
		return 0, nil
	}
	before := s.selection.Weight(attribute)
	beforeTerm := s.priorTerm(attribute, before)
	effective := s.selection.Decrease(attribute, delta)
	afterTerm := 0.0
	if s.selection.Contains(attribute) {
		afterTerm = s.priorTerm(attribute, s.selection.Weight(attribute))
	}
	s.sumWeightedCost += afterTerm - beforeTerm

	s.lastUndo = func() {
		s.selection.Increase(attribute, effective)
		s.sumWeightedCost += beforeTerm - afterTerm
	}
	s.lastCalled = true
	return effective, nil
}

// UndoLast reverts exactly the most recent Increase or Decrease call.
// Calling it twice in a row without an intervening mutation is a
// programmer error: the training driver always undoes at most one
// proposal before issuing the next.
func (s *Scorer) UndoLast() error {
	if !s.lastCalled || s.lastUndo == nil {
		return fmt.Errorf("scorer: UndoLast called with nothing to undo")
	}
	s.lastUndo()
	s.lastUndo = nil
	s.lastCalled = false
	return nil
}

// ModelCost returns prior_weight * (base_prior(selection) + the sum,
// over every selected attribute, of weight^exponent * attr_cost(a)).
func (s *Scorer) ModelCost() float64 {
	return s.cfg.weight() * (s.basePrior() + s.sumWeightedCost)
}

// Score combines the cached model cost with the caller-aggregated data
// cost into the single scalar proposals are compared on; lower is better.
func (s *Scorer) Score(data DataCostSource) float64 {
	return s.ModelCost() + data.DataCost()
}
