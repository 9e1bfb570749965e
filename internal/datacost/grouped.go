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
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/launix-de/snbayes/internal/binset"
)

// GroupedAttribute extends AttributeInfo with the attribute's own grouping
// of the J original target classes into a small number of local groups.
// GroupOf[c] is the group id attribute a assigns to original class c.
type GroupedAttribute struct {
	AttributeInfo
	GroupOf []int
}

// groupPart is one materialised target part: the set of original classes
// sharing an identical signature of per-selected-attribute group ids.
type groupPart struct {
	signature string
	members   []int // original class indexes belonging to this part
	freq      int
	score     []float64
	free      bool
}

// Grouped is the generalised-classification variant: a target part is not
// a single class but a tuple of per-selected-attribute groupings of the
// original classes, so the partition is recomputed from scratch on every
// structural change and reused through an arena keyed by signature so a
// combination seen before (e.g. re-entering a previously removed
// attribute) gets its old score row back instead of restarting from zero.
type Grouped struct {
	globalN          int
	numClasses       int
	classFreq        []int
	classOfInstance  []int
	targetOfInstance []int // recomputed index into parts, kept for fast cost evaluation

	selected map[int][]int // attribute index -> GroupOf, currently in the selection
	order    []int         // selected attribute indexes in stable (sorted) order

	arena      map[string]*groupPart
	partsOrder []string // signatures of currently active parts, in stable order

	epsilon float64
	cost    float64
}

// NewGrouped builds the calculator for the empty selection: one part per
// original class, identical to the classification baseline.
func NewGrouped(globalN int, classFreq []int, classOfInstance []int) *Grouped {
	g := &Grouped{
		globalN:         globalN,
		numClasses:      len(classFreq),
		classFreq:       append([]int(nil), classFreq...),
		classOfInstance: append([]int(nil), classOfInstance...),
		selected:        make(map[int][]int),
		arena:           make(map[string]*groupPart),
		epsilon:         0.5 / float64(len(classFreq)),
	}
	g.rebuildPartition()
	g.cost = g.recomputeFullCost()
	return g
}

// signatureOf returns the dot-joined tuple of group ids that class c maps
// to under the currently selected attributes, in stable attribute order.
func (g *Grouped) signatureOf(c int) string {
	if len(g.order) == 0 {
		return fmt.Sprintf("c%d", c)
	}
	parts := make([]string, len(g.order))
	for i, a := range g.order {
		parts[i] = fmt.Sprintf("%d", g.selected[a][c])
	}
	return strings.Join(parts, ".")
}

// rebuildPartition recomputes, from the current selection, which parts are
// active: every distinct signature over the J original classes becomes one
// part, drawn from the arena when that exact signature was seen before.
func (g *Grouped) rebuildPartition() {
	bySig := make(map[string][]int)
	order := make([]string, 0, g.numClasses)
	for c := 0; c < g.numClasses; c++ {
		sig := g.signatureOf(c)
		if _, ok := bySig[sig]; !ok {
			order = append(order, sig)
		}
		bySig[sig] = append(bySig[sig], c)
	}

	active := make(map[string]bool, len(order))
	for _, sig := range order {
		members := bySig[sig]
		freq := 0
		for _, c := range members {
			freq += g.classFreq[c]
		}
		p, ok := g.arena[sig]
		if !ok {
			p = &groupPart{signature: sig, score: make([]float64, len(g.classOfInstance))}
			g.arena[sig] = p
		}
		p.members = members
		p.freq = freq
		p.free = false
		active[sig] = true
	}
	// anything not active this round is parked in the arena, not discarded,
	// so its score row survives if the same combination reappears later.
	for sig, p := range g.arena {
		if !active[sig] {
			p.free = true
		}
	}

	g.partsOrder = order
	classToPart := make([]int, g.numClasses)
	for idx, sig := range order {
		for _, c := range bySig[sig] {
			classToPart[c] = idx
		}
	}
	targetOfInstance := make([]int, len(g.classOfInstance))
	for i, c := range g.classOfInstance {
		targetOfInstance[i] = classToPart[c]
	}
	g.targetOfInstance = targetOfInstance
}

func (g *Grouped) activeParts() []*groupPart {
	out := make([]*groupPart, len(g.partsOrder))
	for i, sig := range g.partsOrder {
		out[i] = g.arena[sig]
	}
	return out
}

func (g *Grouped) mult(parts []*groupPart) func(int) float64 {
	return func(k int) float64 { return 1 }
}

func (g *Grouped) recomputeFullCost() float64 {
	parts := g.activeParts()
	scores := make([][]float64, len(parts))
	for k, p := range parts {
		scores[k] = p.score
	}
	mult := g.mult(parts)
	var sum float64
	n := len(g.targetOfInstance)
	for i := 0; i < n; i++ {
		m := g.targetOfInstance[i]
		invProb := invProbFromScores(scores, i, m, g.globalN, mult)
		sum += instanceCost(g.globalN, invProb, g.epsilon)
	}
	denom := float64(g.globalN) + g.epsilon*float64(len(parts))
	return sum + float64(n)*math.Log(denom)
}

func (g *Grouped) DataCost() float64 { return g.cost }

func (g *Grouped) insertSorted(attrIndex int) {
	idx := sort.SearchInts(g.order, attrIndex)
	g.order = append(g.order, 0)
	copy(g.order[idx+1:], g.order[idx:])
	g.order[idx] = attrIndex
}

func (g *Grouped) removeFromOrder(attrIndex int) {
	idx := sort.SearchInts(g.order, attrIndex)
	if idx < len(g.order) && g.order[idx] == attrIndex {
		g.order = append(g.order[:idx], g.order[idx+1:]...)
	}
}

func (g *Grouped) Increase(attrAny AttributeInfo, col binset.Column, deltaWeight float64, entering bool) error {
	ga, ok := attrAny.extra.(GroupedAttribute)
	if !ok {
		ga = GroupedAttribute{AttributeInfo: attrAny, GroupOf: identityGroups(attrAny.LnP.NumTarget())}
	}
	if entering {
		g.selected[ga.Index] = ga.GroupOf
		g.insertSorted(ga.Index)
		g.rebuildPartition()
	}
	parts := g.activeParts()
	scores := make([][]float64, len(parts))
	for k, p := range parts {
		scores[k] = p.score
	}
	applyDelta(scores, col, attrAny.LnP, deltaWeight, identityMatching)
	g.cost = g.recomputeFullCost()
	return nil
}

func (g *Grouped) Decrease(attrAny AttributeInfo, col binset.Column, deltaWeight float64, leaving bool) error {
	parts := g.activeParts()
	scores := make([][]float64, len(parts))
	for k, p := range parts {
		scores[k] = p.score
	}
	applyDelta(scores, col, attrAny.LnP, -deltaWeight, identityMatching)
	if leaving {
		delete(g.selected, attrAny.Index)
		g.removeFromOrder(attrAny.Index)
		g.rebuildPartition()
	}
	g.cost = g.recomputeFullCost()
	return nil
}

func identityGroups(numTarget int) []int {
	out := make([]int, numTarget)
	for i := range out {
		out[i] = i
	}
	return out
}

// NumParts reports the current count of distinct signatures.
func (g *Grouped) NumParts() int { return len(g.partsOrder) }

type groupedState struct {
	selected   map[int][]int
	order      []int
	partsOrder []string
	arena      map[string]*groupPart
	targetMap  []int
	cost       float64
}

func (g *Grouped) Snapshot() State {
	selCp := make(map[int][]int, len(g.selected))
	for k, v := range g.selected {
		selCp[k] = append([]int(nil), v...)
	}
	arenaCp := make(map[string]*groupPart, len(g.arena))
	for k, p := range g.arena {
		cp := *p
		cp.members = append([]int(nil), p.members...)
		cp.score = append([]float64(nil), p.score...)
		arenaCp[k] = &cp
	}
	return groupedState{
		selected:   selCp,
		order:      append([]int(nil), g.order...),
		partsOrder: append([]string(nil), g.partsOrder...),
		arena:      arenaCp,
		targetMap:  append([]int(nil), g.targetOfInstance...),
		cost:       g.cost,
	}
}

func (g *Grouped) Restore(s State) {
	st := s.(groupedState)
	g.selected = st.selected
	g.order = st.order
	g.partsOrder = st.partsOrder
	g.arena = st.arena
	g.targetOfInstance = st.targetMap
	g.cost = st.cost
}
