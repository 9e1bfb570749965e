package scorer

import (
	"math"
	"testing"
)

type fixedDataCost float64

func (f fixedDataCost) DataCost() float64 { return float64(f) }

func TestIncreaseThenUndoLastRestoresModelCost(t *testing.T) {
	s := New(Config{}, []AttributeCost{{Index: 0, Cost: 2.0}, {Index: 1, Cost: 3.0}})
	before := s.ModelCost()

	if _, err := s.Increase(0, 0.5); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if s.ModelCost() == before {
		t.Fatalf("expected model cost to change after increase")
	}

	if err := s.UndoLast(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if s.ModelCost() != before {
		t.Fatalf("undo did not restore model cost: got %v want %v", s.ModelCost(), before)
	}
	if s.Selection().Contains(0) {
		t.Fatalf("undo did not remove attribute from selection")
	}
}

func TestUndoLastTwiceFails(t *testing.T) {
	s := New(Config{}, []AttributeCost{{Index: 0, Cost: 1.0}})
	if _, err := s.Increase(0, 0.3); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if err := s.UndoLast(); err != nil {
		t.Fatalf("first undo: %v", err)
	}
	if err := s.UndoLast(); err == nil {
		t.Fatalf("expected second consecutive undo to fail")
	}
}

func TestModelCostMatchesExplicitPriorFormula(t *testing.T) {
	cfg := Config{PriorWeight: 0.1, PriorExponent: 0.95}
	s := New(cfg, []AttributeCost{{Index: 0, Cost: 4.0}})
	if _, err := s.Increase(0, 0.6); err != nil {
		t.Fatalf("increase: %v", err)
	}
	base := universalIntegerCodeLength(1) - lnFactorial(1)
	want := cfg.weight() * (base + math.Pow(0.6, 0.95)*4.0)
	if math.Abs(s.ModelCost()-want) > 1e-9 {
		t.Fatalf("model cost = %v, want %v", s.ModelCost(), want)
	}
}

func TestModelCostAppliesPriorWeightToEmptySelection(t *testing.T) {
	cfg := Config{PriorWeight: 0.2, BasePrior: 1.0}
	s := New(cfg, nil)
	want := 0.2 * (math.Log(2) + 1.0)
	if math.Abs(s.ModelCost()-want) > 1e-9 {
		t.Fatalf("empty-selection model cost = %v, want %v", s.ModelCost(), want)
	}
}

func TestScoreCombinesModelAndDataCost(t *testing.T) {
	s := New(Config{}, []AttributeCost{{Index: 0, Cost: 1.0}})
	if _, err := s.Increase(0, 1.0); err != nil {
		t.Fatalf("increase: %v", err)
	}
	got := s.Score(fixedDataCost(10.0))
	want := s.ModelCost() + 10.0
	if got != want {
		t.Fatalf("score = %v, want %v", got, want)
	}
}

func TestDecreaseToZeroRemovesFromSelectionAndPrior(t *testing.T) {
	s := New(Config{}, []AttributeCost{{Index: 0, Cost: 2.0}})
	base := s.ModelCost()
	if _, err := s.Increase(0, 0.8); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if _, err := s.Decrease(0, 0.8); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if s.Selection().Contains(0) {
		t.Fatalf("expected attribute removed once weight reaches 0")
	}
	if math.Abs(s.ModelCost()-base) > 1e-9 {
		t.Fatalf("model cost = %v, want back to base %v", s.ModelCost(), base)
	}
}
