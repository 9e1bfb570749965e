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

	"github.com/google/btree"

	"github.com/launix-de/snbayes/internal/binset"
)

// interval is one part of the regression target partition:
// cumulative_frequency is the right-boundary cumulative frequency, strictly
// increasing across the ordered chain and covering [0, N].
type interval struct {
	cumulativeFrequency int
	frequency            int
	refCount             int
	score                []float64
}

func (iv *interval) Less(than btree.Item) bool {
	return iv.cumulativeFrequency < than.(*interval).cumulativeFrequency
}

// RegressionAttribute extends AttributeInfo with the attribute's own
// interval discretisation of the target rank, used to refine the
// calculator's live partition.
type RegressionAttribute struct {
	AttributeInfo
	// CumulativeFrequency[t] is the attribute's own interval t's right
	// boundary, strictly increasing, CumulativeFrequency[last] == N.
	CumulativeFrequency []int
}

// Regression models target parts as an ordered chain of
// rank intervals that gets refined as attributes enter and coarsened as
// they leave.
type Regression struct {
	globalN int
	rank    []int // rank(i) for every instance in this chunk

	// ordered chain, kept both as a btree (for O(log N) boundary lookup)
	// and a flat ordered slice (for the O(#parts) cost walk and the
	// rank->interval flat array rebuild).
	tree    *btree.BTree
	ordered []*interval

	rankToInterval []int // flat rank -> interval index, rebuilt after every structural change

	refAttrIntervals map[int][]int // attribute index -> cut points it contributed, for symmetric removal

	epsilon float64
	cost    float64
}

// NewRegression builds the calculator for the empty selection: a single
// interval covering the whole range, score 0.
func NewRegression(globalN int, rank []int) *Regression {
	r := &Regression{
		globalN:          globalN,
		rank:             append([]int(nil), rank...),
		tree:             btree.New(8),
		refAttrIntervals: make(map[int][]int),
	}
	maxParts := int(math.Ceil(math.Sqrt(float64(globalN))))
	if maxParts < 1 {
		maxParts = 1
	}
	r.epsilon = 0.5 / float64(globalN+1)
	single := &interval{cumulativeFrequency: globalN, frequency: globalN, refCount: 0, score: make([]float64, len(rank))}
	r.tree.ReplaceOrInsert(single)
	r.ordered = []*interval{single}
	r.rebuildFlatArray()
	r.cost = r.recomputeFullCost()
	_ = maxParts // the sqrt(N) part bound is not enforced by this calculator
	return r
}

func (r *Regression) rebuildFlatArray() {
	r.rankToInterval = make([]int, r.globalN)
	start := 0
	for idx, iv := range r.ordered {
		for rk := start; rk < iv.cumulativeFrequency; rk++ {
			r.rankToInterval[rk] = idx
		}
		start = iv.cumulativeFrequency
	}
}

func (r *Regression) mult(k int) float64 { return float64(r.ordered[k].frequency) }

func (r *Regression) recomputeFullCost() float64 {
	scores := make([][]float64, len(r.ordered))
	for k, iv := range r.ordered {
		scores[k] = iv.score
	}
	var sum float64
	n := len(r.rank)
	for i := 0; i < n; i++ {
		m := r.rankToInterval[r.rank[i]]
		invProb := invProbFromScores(scores, i, m, r.globalN, r.mult)
		sum += instanceCost(r.globalN, invProb, r.epsilon)
	}
	denom := float64(r.globalN) + r.epsilon*float64(len(r.ordered))
	return sum + float64(n)*math.Log(denom)
}

func (r *Regression) DataCost() float64 { return r.cost }

// splitAt ensures a part boundary exists at cumFreq, returning the index of the (possibly new) interval whose
// right boundary is exactly cumFreq. A freshly split interval starts at refCount 0: addAttribute always
// increments by exactly one right after calling splitAt, whether the boundary was already there or not.
func (r *Regression) splitAt(cumFreq int) int {
	pivot := &interval{cumulativeFrequency: cumFreq}
	item := r.tree.Get(pivot)
	if item != nil {
		for idx, iv := range r.ordered {
			if iv == item {
				return idx
			}
		}
	}
	// find the enclosing interval (first whose right boundary exceeds cumFreq)
	var enclosingIdx int = -1
	r.tree.AscendGreaterOrEqual(pivot, func(it btree.Item) bool {
		iv := it.(*interval)
		for idx, o := range r.ordered {
			if o == iv {
				enclosingIdx = idx
				break
			}
		}
		return false
	})
	if enclosingIdx == -1 {
		enclosingIdx = len(r.ordered) - 1
	}
	enclosing := r.ordered[enclosingIdx]
	lowerBound := 0
	if enclosingIdx > 0 {
		lowerBound = r.ordered[enclosingIdx-1].cumulativeFrequency
	}
	newFreq := cumFreq - lowerBound
	newInterval := &interval{
		cumulativeFrequency: cumFreq,
		frequency:           newFreq,
		refCount:            0,
		score:               append([]float64(nil), enclosing.score...),
	}
	enclosing.frequency -= newFreq
	r.tree.ReplaceOrInsert(newInterval)
	out := make([]*interval, 0, len(r.ordered)+1)
	out = append(out, r.ordered[:enclosingIdx]...)
	out = append(out, newInterval, enclosing)
	out = append(out, r.ordered[enclosingIdx+1:]...)
	r.ordered = out
	return enclosingIdx
}

// AddAttribute refines the partition by attr's own cut points.
func (r *Regression) addAttribute(attr RegressionAttribute) {
	cuts := make([]int, 0, len(attr.CumulativeFrequency))
	for _, cf := range attr.CumulativeFrequency {
		idx := r.splitAt(cf)
		r.ordered[idx].refCount++
		cuts = append(cuts, cf)
	}
	r.refAttrIntervals[attr.Index] = cuts
	r.rebuildFlatArray()
}

// removeAttribute walks symmetrically: decrement ref_count at each
// coinciding edge this attribute contributed; merge into the successor
// when it reaches 0.
func (r *Regression) removeAttribute(attrIndex int) {
	cuts := r.refAttrIntervals[attrIndex]
	delete(r.refAttrIntervals, attrIndex)
	for _, cf := range cuts {
		for idx, iv := range r.ordered {
			if iv.cumulativeFrequency == cf {
				iv.refCount--
				if iv.refCount <= 0 && idx < len(r.ordered)-1 {
					r.mergeIntoSuccessor(idx)
				}
				break
			}
		}
	}
	r.rebuildFlatArray()
}

func (r *Regression) mergeIntoSuccessor(idx int) {
	iv := r.ordered[idx]
	succ := r.ordered[idx+1]
	succ.frequency += iv.frequency
	r.tree.Delete(iv)
	r.ordered = append(r.ordered[:idx], r.ordered[idx+1:]...)
}

func (r *Regression) Increase(attrAny AttributeInfo, col binset.Column, deltaWeight float64, entering bool) error {
	ra, ok := attrAny.extra.(RegressionAttribute)
	if !ok {
		ra = RegressionAttribute{AttributeInfo: attrAny}
	}
	if entering {
		r.addAttribute(ra)
	}
	scores := make([][]float64, len(r.ordered))
	for k, iv := range r.ordered {
		scores[k] = iv.score
	}
	applyDelta(scores, col, attrAny.LnP, deltaWeight, func(k int) int { return r.matching(ra, k) })
	r.cost = r.recomputeFullCost()
	return nil
}

func (r *Regression) Decrease(attrAny AttributeInfo, col binset.Column, deltaWeight float64, leaving bool) error {
	ra, ok := attrAny.extra.(RegressionAttribute)
	if !ok {
		ra = RegressionAttribute{AttributeInfo: attrAny}
	}
	scores := make([][]float64, len(r.ordered))
	for k, iv := range r.ordered {
		scores[k] = iv.score
	}
	applyDelta(scores, col, attrAny.LnP, -deltaWeight, func(k int) int { return r.matching(ra, k) })
	if leaving {
		r.removeAttribute(ra.Index)
	}
	r.cost = r.recomputeFullCost()
	return nil
}

// matching computes matching_a(k): a's own local interval index whose
// range contains global part k's range, via the midpoint rank of part k
// (valid because a's own cut points can only sit at calculator part
// boundaries, never strictly inside one, once a has been added).
func (r *Regression) matching(ra RegressionAttribute, k int) int {
	iv := r.ordered[k]
	lower := 0
	if k > 0 {
		lower = r.ordered[k-1].cumulativeFrequency
	}
	mid := (lower + iv.cumulativeFrequency) / 2
	for t, cf := range ra.CumulativeFrequency {
		if mid < cf {
			return t
		}
	}
	return len(ra.CumulativeFrequency) - 1
}

// NumParts reports the current interval count.
func (r *Regression) NumParts() int { return len(r.ordered) }

// LastCumulativeFrequency returns the final interval's cumulative
// frequency, which must equal N.
func (r *Regression) LastCumulativeFrequency() int {
	return r.ordered[len(r.ordered)-1].cumulativeFrequency
}

type regressionState struct {
	ordered []*interval
	refAttr map[int][]int
	rankMap []int
	cost    float64
}

func (r *Regression) Snapshot() State {
	cp := make([]*interval, len(r.ordered))
	for i, iv := range r.ordered {
		c := *iv
		c.score = append([]float64(nil), iv.score...)
		cp[i] = &c
	}
	refCp := make(map[int][]int, len(r.refAttrIntervals))
	for k, v := range r.refAttrIntervals {
		refCp[k] = append([]int(nil), v...)
	}
	return regressionState{
		ordered: cp,
		refAttr: refCp,
		rankMap: append([]int(nil), r.rankToInterval...),
		cost:    r.cost,
	}
}

func (r *Regression) Restore(s State) {
	st := s.(regressionState)
	r.ordered = st.ordered
	r.refAttrIntervals = st.refAttr
	r.rankToInterval = st.rankMap
	r.cost = st.cost
	r.tree = btree.New(8)
	for _, iv := range r.ordered {
		r.tree.ReplaceOrInsert(iv)
	}
}
