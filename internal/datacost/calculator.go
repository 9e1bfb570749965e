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

import "github.com/launix-de/snbayes/internal/binset"

// Calculator is the closed family of three task-specific data-cost
// calculators. Each chunk owns one Calculator.
type Calculator interface {
	// DataCost returns the calculator's current chunk data cost,
	// Σ_i cost_i + instance_count · ln D.
	DataCost() float64

	// Increase applies an attribute entering or growing in the selection.
	// entering is true the first time this attribute gets a nonzero
	// weight; col is the attribute's column for this chunk.
	Increase(attr AttributeInfo, col binset.Column, deltaWeight float64, entering bool) error

	// Decrease applies an attribute shrinking or leaving the selection.
	// leaving is true when this decrease brings the attribute's weight to
	// zero.
	Decrease(attr AttributeInfo, col binset.Column, deltaWeight float64, leaving bool) error

	// Snapshot/Restore back the single-undo support required by C6: the
	// scorer snapshots before a proposal and restores on reject.
	Snapshot() State
	Restore(State)
}

// State is an opaque, calculator-specific snapshot handle.
type State interface{}

// AttributeInfo is the calculator-facing view of one attribute: its
// conditional log-probability table and (for regression/grouped tasks)
// the extra shape each variant needs. Index is the global attribute index
// used to key internal per-attribute bookkeeping (interval ref-counts,
// schema positions).
type AttributeInfo struct {
	Index int
	LnP   LogProbLookup

	// extra carries variant-specific shape (e.g. RegressionAttribute's own
	// cut points, GroupedAttribute's grouping function) that the shared
	// Calculator interface has no business knowing about.
	extra interface{}
}

// WithExtra attaches a variant-specific payload and returns the updated
// value; AttributeInfo is passed by value so this reads naturally at call
// sites: calculator.Increase(base.WithExtra(ra), col, delta, true).
func (a AttributeInfo) WithExtra(extra interface{}) AttributeInfo {
	a.extra = extra
	return a
}

// LogProbLookup is the subset of partition.LogProbTable the calculator
// needs, kept as an interface so tests can supply small literal tables.
type LogProbLookup interface {
	At(source, target int) float64
	NumTarget() int
}
