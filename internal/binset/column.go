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

package binset

import "sort"

// Column is one attribute's recoded part indexes for one chunk, either
// dense or sparse.
type Column interface {
	// Get returns the part index for instanceInChunk, or -1 if missing.
	Get(instanceInChunk int) int32
	// ForEachPresent calls fn(instanceInChunk, partIndex) for every
	// present value. For dense columns this still skips -1 entries, but
	// callers on the sparse incremental-update path should
	// prefer sparse columns for the O(#present) guarantee.
	ForEachPresent(fn func(instanceInChunk int, partIndex int32))
	// Len returns instance_count for this chunk.
	Len() int
	// IsSparse reports the column's on-disk encoding.
	IsSparse() bool
}

// DenseColumn holds one signed integer per instance; -1 denotes missing.
type DenseColumn struct {
	Values []int32
}

func (d *DenseColumn) Get(i int) int32 { return d.Values[i] }
func (d *DenseColumn) Len() int        { return len(d.Values) }
func (d *DenseColumn) IsSparse() bool  { return false }
func (d *DenseColumn) ForEachPresent(fn func(int, int32)) {
	for i, v := range d.Values {
		if v >= 0 {
			fn(i, v)
		}
	}
}

// SparseColumn stores, for each present instance, the pair
// (instance-index-within-chunk, part-index), encoded as a single
// concatenated int32 buffer of even length with strictly increasing
// instance indexes.
type SparseColumn struct {
	Pairs  []int32 // alternating instance, part — strictly increasing instance
	length int     // instance_count of the owning chunk, for Len()
}

func NewSparseColumn(pairs []int32, instanceCount int) *SparseColumn {
	if len(pairs)%2 != 0 {
		panic("binset: sparse column buffer must have even length")
	}
	return &SparseColumn{Pairs: pairs, length: instanceCount}
}

func (s *SparseColumn) Len() int       { return s.length }
func (s *SparseColumn) IsSparse() bool { return true }

func (s *SparseColumn) numPresent() int { return len(s.Pairs) / 2 }

func (s *SparseColumn) Get(i int) int32 {
	n := s.numPresent()
	idx := sort.Search(n, func(k int) bool { return s.Pairs[2*k] >= int32(i) })
	if idx < n && s.Pairs[2*idx] == int32(i) {
		return s.Pairs[2*idx+1]
	}
	return -1
}

func (s *SparseColumn) ForEachPresent(fn func(int, int32)) {
	n := s.numPresent()
	for k := 0; k < n; k++ {
		fn(int(s.Pairs[2*k]), s.Pairs[2*k+1])
	}
}

// PresentPairs returns the (instance, partIndex) pairs in strictly
// increasing instance order.
func (s *SparseColumn) PresentPairs() [][2]int32 {
	n := s.numPresent()
	out := make([][2]int32, n)
	for k := 0; k < n; k++ {
		out[k] = [2]int32{s.Pairs[2*k], s.Pairs[2*k+1]}
	}
	return out
}
