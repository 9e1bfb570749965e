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

// Package datacost implements the data-cost calculator (C5): three
// task-specific variants (classification, regression, generalised
// classification) sharing the log-sum-exp pooling and incremental update
// shape shared across task types.
package datacost

import "math"

// clippedExp caps exp(x) at DBL_MAX/N,
// which keeps the log-sum-exp pooling from overflowing when many parts
// contribute large positive score differences.
func clippedExp(x float64, n int) float64 {
	v := math.Exp(x)
	if n < 1 {
		n = 1
	}
	cap := math.MaxFloat64 / float64(n)
	if v > cap {
		return cap
	}
	return v
}

// instanceCost computes -ln(N/invProb + eps) for one instance given its
// already-accumulated inv_prob.
func instanceCost(globalN int, invProb, epsilon float64) float64 {
	return -math.Log(float64(globalN)/invProb + epsilon)
}

// invProbFromScores computes inv_prob_i = Σ_k mult_k · exp(score[k][i] -
// score[m][i]) for instance i, given the actual part m and a multiplier
// function over parts.
func invProbFromScores(scores [][]float64, i, m, globalN int, mult func(k int) float64) float64 {
	base := scores[m][i]
	var invProb float64
	for k, sv := range scores {
		invProb += mult(k) * clippedExp(sv[i]-base, globalN)
	}
	return invProb
}
