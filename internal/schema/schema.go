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

// Package schema keeps the attribute schema (C3): a stable index per
// attribute, lookups by native and recoded name, and a locally shuffled
// random iterator used by the training driver's FF/FB passes.
package schema

import (
	"math/rand"

	nlrm "github.com/launix-de/NonLockingReadMap"
)

// Attribute is one input variable after preparation. It is immutable once
// the schema is built and shared read-only across all workers.
type Attribute struct {
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
}

// nameEntry adapts Attribute lookups to NonLockingReadMap's KeyGetter
// contract, keyed by whichever name view the map was built for.
type nameEntry struct {
	key *Attribute
	by  func(*Attribute) string
}

func (e nameEntry) GetKey() string     { return e.by(e.key) }
func (e nameEntry) ComputeSize() uint  { return 64 }

// Schema is the stable, read-only index over all A attributes, with two
// additional lookup views. It is built once at task start and shared
// read-only across workers.
type Schema struct {
	byIndex   []*Attribute
	byNative  nlrm.NonLockingReadMap[nameEntry, string]
	byRecoded nlrm.NonLockingReadMap[nameEntry, string]
}

// Build constructs a schema from attributes already carrying their final,
// stable index (0..A-1, contiguous).
func Build(attributes []*Attribute) *Schema {
	s := &Schema{
		byIndex:   append([]*Attribute(nil), attributes...),
		byNative:  nlrm.New[nameEntry, string](),
		byRecoded: nlrm.New[nameEntry, string](),
	}
	for _, a := range attributes {
		a := a
		s.byNative.Set(&nameEntry{key: a, by: func(a *Attribute) string { return a.NativeName }})
		s.byRecoded.Set(&nameEntry{key: a, by: func(a *Attribute) string { return a.RecodedName }})
	}
	return s
}

func (s *Schema) NumAttributes() int { return len(s.byIndex) }

func (s *Schema) ByIndex(i int) *Attribute { return s.byIndex[i] }

func (s *Schema) ByNativeName(name string) (*Attribute, bool) {
	e := s.byNative.Get(name)
	if e == nil {
		return nil, false
	}
	return (*e).key, true
}

func (s *Schema) ByRecodedName(name string) (*Attribute, bool) {
	e := s.byRecoded.Get(name)
	if e == nil {
		return nil, false
	}
	return (*e).key, true
}

// SliceOf returns which slice index (0..S-1) an attribute falls into for a
// layout with S slices over A attributes, assigned in near-equal,
// contiguous bands mirroring the band-splitting rule used for chunk sizing.
func SliceOf(attributeIndex, numAttributes, numSlices int) int {
	return bandOf(attributeIndex, numAttributes, numSlices)
}

func bandOf(index, total, numBands int) int {
	if numBands <= 1 {
		return 0
	}
	base := total / numBands
	rem := total % numBands
	// first `rem` bands carry base+1 elements, matching the chunk sizing
	// rule: the first N mod C bands are one larger.
	boundary := rem * (base + 1)
	if index < boundary {
		return index / (base + 1)
	}
	return rem + (index-boundary)/base
}

// ShuffleIterator walks attributes in a locally shuffled order: one
// sub-vector per slice is shuffled, and slices are then shuffled among
// themselves, so sequentially used attributes stay inside the same slice
// and reduce slice-load churn.
type ShuffleIterator struct {
	schema    *Schema
	numSlices int
	slices    [][]int // attribute indexes grouped by slice, in stable order
	order     []int   // current flattened iteration order
}

func NewShuffleIterator(s *Schema, numSlices int) *ShuffleIterator {
	if numSlices < 1 {
		numSlices = 1
	}
	it := &ShuffleIterator{schema: s, numSlices: numSlices}
	it.slices = make([][]int, numSlices)
	for i := 0; i < s.NumAttributes(); i++ {
		sl := SliceOf(i, s.NumAttributes(), numSlices)
		it.slices[sl] = append(it.slices[sl], i)
	}
	it.Restore()
	return it
}

// Shuffle reshuffles the slice order and, within each slice, the attribute
// order, using rng for determinism given a fixed seed.
func (it *ShuffleIterator) Shuffle(rng *rand.Rand) {
	sliceOrder := rng.Perm(it.numSlices)
	out := make([]int, 0, len(it.order))
	for _, sl := range sliceOrder {
		attrs := append([]int(nil), it.slices[sl]...)
		rng.Shuffle(len(attrs), func(i, j int) { attrs[i], attrs[j] = attrs[j], attrs[i] })
		out = append(out, attrs...)
	}
	it.order = out
}

// Restore returns the iteration order to stable-index order.
func (it *ShuffleIterator) Restore() {
	out := make([]int, 0, it.schema.NumAttributes())
	for _, sl := range it.slices {
		out = append(out, sl...)
	}
	it.order = out
}

// Order returns the current iteration order (read-only).
func (it *ShuffleIterator) Order() []int { return it.order }
