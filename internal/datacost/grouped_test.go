package datacost

import (
	"math"
	"testing"

	"github.com/launix-de/snbayes/internal/binset"
)

func buildGrouped() (*Grouped, binset.Column, literalLnP) {
	// 4 original classes, 6 instances
	classFreq := []int{2, 2, 1, 1}
	classOfInstance := []int{0, 0, 1, 1, 2, 3}
	g := NewGrouped(6, classFreq, classOfInstance)
	col := &binset.DenseColumn{Values: []int32{0, 0, 1, 1, 1, 0}}
	lnp := literalLnP{rows: [][]float64{
		{math.Log(0.4), math.Log(0.3), math.Log(0.2), math.Log(0.1)},
		{math.Log(0.1), math.Log(0.2), math.Log(0.3), math.Log(0.4)},
	}}
	return g, col, lnp
}

func TestGroupedEmptySelectionHasOnePartPerClass(t *testing.T) {
	g, _, _ := buildGrouped()
	if g.NumParts() != 4 {
		t.Fatalf("expected 4 parts at empty selection, got %d", g.NumParts())
	}
}

func TestGroupedSignaturesAreUniquePerPart(t *testing.T) {
	g, col, lnp := buildGrouped()
	ga := GroupedAttribute{
		AttributeInfo: AttributeInfo{Index: 0, LnP: lnp},
		GroupOf:       []int{0, 0, 1, 1}, // merges classes {0,1} and {2,3}
	}
	if err := g.Increase(ga.AttributeInfo.WithExtra(ga), col, 0.5, true); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if g.NumParts() != 2 {
		t.Fatalf("expected grouping to merge down to 2 parts, got %d", g.NumParts())
	}
	seen := make(map[string]bool)
	for _, sig := range g.partsOrder {
		if seen[sig] {
			t.Fatalf("duplicate signature %q among active parts", sig)
		}
		seen[sig] = true
	}
}

func TestGroupedRemoveAttributeRestoresClassGranularity(t *testing.T) {
	g, col, lnp := buildGrouped()
	ga := GroupedAttribute{
		AttributeInfo: AttributeInfo{Index: 0, LnP: lnp},
		GroupOf:       []int{0, 0, 1, 1},
	}
	attr := ga.AttributeInfo.WithExtra(ga)
	if err := g.Increase(attr, col, 0.5, true); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if err := g.Decrease(attr, col, 0.5, true); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if g.NumParts() != 4 {
		t.Fatalf("expected 4 parts after removing the only selected attribute, got %d", g.NumParts())
	}
}

func TestGroupedUndoRoundTrip(t *testing.T) {
	g, col, lnp := buildGrouped()
	before := g.DataCost()
	snap := g.Snapshot()

	ga := GroupedAttribute{
		AttributeInfo: AttributeInfo{Index: 0, LnP: lnp},
		GroupOf:       []int{0, 1, 0, 1},
	}
	if err := g.Increase(ga.AttributeInfo.WithExtra(ga), col, 0.3, true); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if g.DataCost() == before {
		t.Fatalf("expected cost to change")
	}

	g.Restore(snap)
	if g.DataCost() != before {
		t.Fatalf("restore mismatch: got %v want %v", g.DataCost(), before)
	}
}
