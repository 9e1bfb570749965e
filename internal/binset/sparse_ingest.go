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

import (
	"sort"

	"github.com/launix-de/snbayes/internal/trainerr"
)

// PreparedSparseBlock is one block of the upstream prepared table's sparse
// encoding: a set of (instance, local-slot, 1-based part index) entries
// together with the mapping from local slot to global attribute index
//. The preparation stage that produces these
// blocks is out of scope; this is the wire shape C2 consumes.
type PreparedSparseBlock struct {
	LocalAttributeIndex []int     // local slot -> global attribute index
	Entries              [][3]int32 // (instanceInChunk, localSlot, partIndex1Based)
}

// TranslateSparseBlock walks a prepared sparse block and returns, per
// global attribute index, the strictly-increasing (instance, partIndex)
// pairs with part indexes rebased to 0 (prepared indexes are 1-based).
func TranslateSparseBlock(block PreparedSparseBlock, maxValuesPerBlock int) (map[int][][2]int32, error) {
	out := make(map[int][][2]int32)
	total := 0
	for _, e := range block.Entries {
		inst, slot, part1 := e[0], e[1], e[2]
		if int(slot) >= len(block.LocalAttributeIndex) {
			return nil, trainerr.NewInvariantViolation("binset.TranslateSparseBlock", "local slot out of range")
		}
		total++
		if maxValuesPerBlock > 0 && total > maxValuesPerBlock {
			// past the budget: keep counting, stop materialising
			continue
		}
		attr := block.LocalAttributeIndex[slot]
		out[attr] = append(out[attr], [2]int32{inst, part1 - 1})
	}
	if maxValuesPerBlock > 0 && total > maxValuesPerBlock {
		overflow := int64(total-maxValuesPerBlock) * 2 * intSize
		return nil, trainerr.MemoryExhaustedError{
			Resource:      "sparse block ingestion",
			OverflowBytes: overflow,
		}
	}
	for attr := range out {
		sort.Slice(out[attr], func(i, j int) bool { return out[attr][i][0] < out[attr][j][0] })
	}
	return out, nil
}
