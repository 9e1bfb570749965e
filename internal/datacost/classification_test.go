package datacost

import (
	"math"
	"testing"

	"github.com/launix-de/snbayes/internal/binset"
)

type literalLnP struct {
	rows [][]float64
}

func (l literalLnP) At(source, target int) float64 { return l.rows[source][target] }
func (l literalLnP) NumTarget() int                { return len(l.rows[0]) }

func buildClassification() (*Classification, binset.Column, literalLnP) {
	// 4 instances, 2 classes, class 0 has 3, class 1 has 1
	classFreq := []int{3, 1}
	target := []int{0, 0, 0, 1}
	c := NewClassification(4, classFreq, target)
	col := &binset.DenseColumn{Values: []int32{0, 1, 0, 1}}
	lnp := literalLnP{rows: [][]float64{
		{math.Log(0.9), math.Log(0.1)},
		{math.Log(0.2), math.Log(0.8)},
	}}
	return c, col, lnp
}

func TestClassificationEmptySelectionScores(t *testing.T) {
	c, _, _ := buildClassification()
	for i := 0; i < 4; i++ {
		if c.scores[0][i] != math.Log(0.75) {
			t.Fatalf("score[0][%d] = %v, want ln(0.75)", i, c.scores[0][i])
		}
		if c.scores[1][i] != math.Log(0.25) {
			t.Fatalf("score[1][%d] = %v, want ln(0.25)", i, c.scores[1][i])
		}
	}
}

func TestClassificationUndoRoundTrip(t *testing.T) {
	c, col, lnp := buildClassification()
	before := c.DataCost()
	snap := c.Snapshot()

	attr := AttributeInfo{Index: 0, LnP: lnp}
	if err := c.Increase(attr, col, 0.3, true); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if c.DataCost() == before {
		t.Fatalf("expected cost to change after increase")
	}

	c.Restore(snap)
	if c.DataCost() != before {
		t.Fatalf("restore did not return to original cost: got %v want %v", c.DataCost(), before)
	}
}

func TestClassificationIncreaseThenFullDecreaseMatchesBaseline(t *testing.T) {
	c, col, lnp := buildClassification()
	before := c.DataCost()
	attr := AttributeInfo{Index: 0, LnP: lnp}

	if err := c.Increase(attr, col, 0.4, true); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if err := c.Decrease(attr, col, 0.4, true); err != nil {
		t.Fatalf("decrease: %v", err)
	}

	if math.Abs(c.DataCost()-before) > 1e-9*math.Abs(before) {
		t.Fatalf("increase+decrease did not cancel: got %v want %v", c.DataCost(), before)
	}
}

func TestClassificationIncrementalMatchesRebuild(t *testing.T) {
	c, col, lnp := buildClassification()
	attr := AttributeInfo{Index: 0, LnP: lnp}
	if err := c.Increase(attr, col, 1.0, true); err != nil {
		t.Fatalf("increase: %v", err)
	}

	rebuilt := c.recomputeFullCost()
	if math.Abs(rebuilt-c.cost) > 1e-9*math.Abs(rebuilt) {
		t.Fatalf("incremental cost %v diverges from rebuilt cost %v", c.cost, rebuilt)
	}
}
