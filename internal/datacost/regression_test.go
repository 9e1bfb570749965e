package datacost

import (
	"math"
	"testing"

	"github.com/launix-de/snbayes/internal/binset"
)

func buildRegression() (*Regression, binset.Column, literalLnP) {
	// 6 instances, ranks 0..5
	rank := []int{0, 1, 2, 3, 4, 5}
	r := NewRegression(6, rank)
	col := &binset.DenseColumn{Values: []int32{0, 0, 1, 1, 2, 2}}
	lnp := literalLnP{rows: [][]float64{
		{math.Log(0.5), math.Log(0.3), math.Log(0.2)},
		{math.Log(0.1), math.Log(0.3), math.Log(0.6)},
		{math.Log(0.2), math.Log(0.2), math.Log(0.6)},
	}}
	return r, col, lnp
}

func TestRegressionEmptySelectionSingleInterval(t *testing.T) {
	r, _, _ := buildRegression()
	if r.NumParts() != 1 {
		t.Fatalf("expected 1 interval at empty selection, got %d", r.NumParts())
	}
	if r.LastCumulativeFrequency() != 6 {
		t.Fatalf("expected cumulative frequency to cover N=6, got %d", r.LastCumulativeFrequency())
	}
}

func TestRegressionAddAttributeSplitsIntervals(t *testing.T) {
	r, col, lnp := buildRegression()
	ra := RegressionAttribute{
		AttributeInfo:       AttributeInfo{Index: 0, LnP: lnp},
		CumulativeFrequency: []int{2, 4, 6},
	}
	if err := r.Increase(ra.AttributeInfo.WithExtra(ra), col, 0.5, true); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if r.NumParts() != 3 {
		t.Fatalf("expected 3 intervals after split, got %d", r.NumParts())
	}
	if r.LastCumulativeFrequency() != 6 {
		t.Fatalf("cumulative frequency chain must still cover N=6, got %d", r.LastCumulativeFrequency())
	}
}

func TestRegressionRemoveAttributeMergesBack(t *testing.T) {
	r, col, lnp := buildRegression()
	ra := RegressionAttribute{
		AttributeInfo:       AttributeInfo{Index: 0, LnP: lnp},
		CumulativeFrequency: []int{2, 4, 6},
	}
	attr := ra.AttributeInfo.WithExtra(ra)
	if err := r.Increase(attr, col, 0.5, true); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if err := r.Decrease(attr, col, 0.5, true); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if r.NumParts() != 1 {
		t.Fatalf("expected merge back to 1 interval, got %d", r.NumParts())
	}
}

func TestRegressionUndoRoundTrip(t *testing.T) {
	r, col, lnp := buildRegression()
	before := r.DataCost()
	snap := r.Snapshot()

	ra := RegressionAttribute{
		AttributeInfo:       AttributeInfo{Index: 0, LnP: lnp},
		CumulativeFrequency: []int{3, 6},
	}
	if err := r.Increase(ra.AttributeInfo.WithExtra(ra), col, 0.4, true); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if r.DataCost() == before {
		t.Fatalf("expected cost to change")
	}

	r.Restore(snap)
	if r.DataCost() != before {
		t.Fatalf("restore mismatch: got %v want %v", r.DataCost(), before)
	}
	if r.NumParts() != 1 {
		t.Fatalf("restore must also roll back interval structure, got %d parts", r.NumParts())
	}
}

func TestRegressionIncrementalMatchesRebuild(t *testing.T) {
	r, col, lnp := buildRegression()
	ra := RegressionAttribute{
		AttributeInfo:       AttributeInfo{Index: 0, LnP: lnp},
		CumulativeFrequency: []int{2, 4, 6},
	}
	if err := r.Increase(ra.AttributeInfo.WithExtra(ra), col, 1.0, true); err != nil {
		t.Fatalf("increase: %v", err)
	}
	rebuilt := r.recomputeFullCost()
	if math.Abs(rebuilt-r.cost) > 1e-9*math.Abs(rebuilt) {
		t.Fatalf("incremental cost %v diverges from rebuilt cost %v", r.cost, rebuilt)
	}
}
