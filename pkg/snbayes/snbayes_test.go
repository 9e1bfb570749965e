package snbayes

import (
	"context"
	"math"
	"testing"

	"github.com/launix-de/snbayes/internal/binset"
)

func buildClassificationDataset() Dataset {
	n := 8
	targetClass := []int{0, 0, 0, 0, 1, 1, 1, 1}
	informative := &binset.DenseColumn{Values: []int32{0, 0, 0, 0, 1, 1, 1, 1}}
	noise := &binset.DenseColumn{Values: []int32{0, 1, 0, 1, 0, 1, 0, 1}}

	logProb := func(good bool) []float64 {
		if good {
			return []float64{math.Log(0.95), math.Log(0.05), math.Log(0.05), math.Log(0.95)}
		}
		return []float64{math.Log(0.5), math.Log(0.5), math.Log(0.5), math.Log(0.5)}
	}

	return Dataset{
		Instances:   n,
		TargetClass: targetClass,
		ClassFreq:   []int{4, 4},
		Attributes: []PreparedAttribute{
			{Index: 0, NativeName: "good", NumParts: 2, LogProb: logProb(true), ConstructionCost: 1, Level: 0.8},
			{Index: 1, NativeName: "noise", NumParts: 2, LogProb: logProb(false), ConstructionCost: 1, Level: 0.01},
		},
		Columns: map[int]binset.Column{0: informative, 1: noise},
	}
}

func TestTrainClassificationEndToEnd(t *testing.T) {
	ds := buildClassificationDataset()
	report, err := Train(context.Background(), ds, Config{})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if len(report.Selected) == 0 {
		t.Fatalf("expected at least one selected attribute")
	}
	found := false
	for _, sa := range report.Selected {
		if sa.Index == 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the informative attribute to be selected, got %+v", report.Selected)
	}
}

func TestSummaryFormatsDuration(t *testing.T) {
	r := SelectionReport{Duration: 0}
	got := r.Summary()
	if got != "Selective Naive Bayes train time: 00:00:00" {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestSummaryIncludesDiagnostic(t *testing.T) {
	r := SelectionReport{Diagnostic: DiagnosticNoInformativeVariables}
	got := r.Summary()
	if got != "Selective Naive Bayes train time: 00:00:00 (no informative variables found)" {
		t.Fatalf("unexpected summary: %q", got)
	}
}
