package partition

import "testing"

func TestSingletonsPartIndex(t *testing.T) {
	s := NewSingletons([]string{"a", "b", "c"})
	if s.PartIndex("b") != 1 {
		t.Fatalf("expected part index 1 for b, got %d", s.PartIndex("b"))
	}
	if s.PartIndex("z") != -1 {
		t.Fatalf("expected -1 for unseen symbol, got %d", s.PartIndex("z"))
	}
	if s.NumParts() != 3 {
		t.Fatalf("expected 3 parts, got %d", s.NumParts())
	}
}

func TestIntervalsTieBreaksLow(t *testing.T) {
	iv := NewIntervals([]float64{10, 20, 30})
	cases := []struct {
		rank     float64
		expected int
	}{
		{5, 0},
		{10, 0}, // exact bound: lower-indexed part
		{15, 1},
		{20, 1},
		{25, 2},
		{30, 2},
		{100, 3}, // beyond last finite bound
	}
	for _, c := range cases {
		if got := iv.PartIndexRank(c.rank); got != c.expected {
			t.Errorf("rank %v: expected part %d, got %d", c.rank, c.expected, got)
		}
	}
}

func TestGroupsDefaultFallback(t *testing.T) {
	g := NewGroups(map[string]int{"x": 0, "y": 0, "z": 1}, 3, 2)
	if g.PartIndex("x") != 0 {
		t.Fatalf("expected group 0 for x")
	}
	if g.PartIndex("unseen") != 2 {
		t.Fatalf("expected default group 2 for unseen symbol, got %d", g.PartIndex("unseen"))
	}
}

func TestLogProbTableRowsAccessible(t *testing.T) {
	tbl := NewLogProbTable(2, 3, []float64{
		-1, -2, -3,
		-4, -5, -6,
	})
	if tbl.At(1, 2) != -6 {
		t.Fatalf("expected -6 at (1,2), got %v", tbl.At(1, 2))
	}
	if tbl.NumSource() != 2 || tbl.NumTarget() != 3 {
		t.Fatalf("unexpected table dimensions")
	}
}
