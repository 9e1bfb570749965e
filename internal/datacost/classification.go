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

package datacost

import (
	"math"

	"github.com/launix-de/snbayes/internal/binset"
)

// Classification treats the target partition as a fixed
// set of J singletons for the whole run, so matching_a(k) = k and the
// partition never restructures on enter/exit.
type Classification struct {
	globalN          int
	numParts         int
	targetOfInstance []int // m(i): actual target part per instance in this chunk
	classFreq        []int // global class frequency, for ln(pi) init
	epsilon          float64
	denom            float64 // D = N + epsilon*J
	scores           [][]float64
	cost             float64
}

// NewClassification builds the calculator for the empty selection, per
// the empty selection starts each score[k][i] = ln(pi_k), pi_k = freq_k/N.
func NewClassification(globalN int, classFreq []int, targetOfInstance []int) *Classification {
	j := len(classFreq)
	c := &Classification{
		globalN:          globalN,
		numParts:         j,
		targetOfInstance: append([]int(nil), targetOfInstance...),
		classFreq:        append([]int(nil), classFreq...),
		epsilon:          0.5 / float64(j),
	}
	c.denom = float64(globalN) + c.epsilon*float64(j)
	n := len(targetOfInstance)
	c.scores = make([][]float64, j)
	for k := 0; k < j; k++ {
		lnPi := math.Log(float64(classFreq[k]) / float64(globalN))
		row := make([]float64, n)
		for i := range row {
			row[i] = lnPi
		}
		c.scores[k] = row
	}
	c.cost = c.recomputeFullCost()
	return c
}

func (c *Classification) mult(k int) float64 { return 1 }

func (c *Classification) recomputeFullCost() float64 {
	var sum float64
	n := len(c.targetOfInstance)
	for i := 0; i < n; i++ {
		m := c.targetOfInstance[i]
		invProb := invProbFromScores(c.scores, i, m, c.globalN, c.mult)
		sum += instanceCost(c.globalN, invProb, c.epsilon)
	}
	return sum + float64(n)*math.Log(c.denom)
}

func (c *Classification) DataCost() float64 { return c.cost }

func (c *Classification) Increase(attr AttributeInfo, col binset.Column, deltaWeight float64, entering bool) error {
	// the singleton partition never restructures
	applyDelta(c.scores, col, attr.LnP, deltaWeight, identityMatching)
	c.cost = c.recomputeFullCost()
	return nil
}

func (c *Classification) Decrease(attr AttributeInfo, col binset.Column, deltaWeight float64, leaving bool) error {
	applyDelta(c.scores, col, attr.LnP, -deltaWeight, identityMatching)
	c.cost = c.recomputeFullCost()
	return nil
}

func identityMatching(k int) int { return k }

// applyDelta walks, for every existing part k, the column of
// a and add deltaWeight*LnP[s_i, matching(k)] to score[k][i]; sparse
// columns only touch present instances.
func applyDelta(scores [][]float64, col binset.Column, lnp LogProbLookup, deltaWeight float64, matching func(int) int) {
	if deltaWeight == 0 {
		return
	}
	for k, row := range scores {
		t := matching(k)
		col.ForEachPresent(func(i int, s int32) {
			row[i] += deltaWeight * lnp.At(int(s), t)
		})
	}
}

type classificationState struct {
	scores [][]float64
	cost   float64
}

func (c *Classification) Snapshot() State {
	cp := make([][]float64, len(c.scores))
	for k, row := range c.scores {
		cp[k] = append([]float64(nil), row...)
	}
	return classificationState{scores: cp, cost: c.cost}
}

func (c *Classification) Restore(s State) {
	st := s.(classificationState)
	c.scores = st.scores
	c.cost = st.cost
}
