package main

import (
	"math"
	"testing"

	"github.com/relprobe/relprobe/internal/experiment"
)

func TestDiffScoresIdentical(t *testing.T) {
	t.Parallel()

	rows := []experiment.QuestionScore{
		{Question: 0, Answer: 1, Prediction: 1, Scores: []float64{-2, -1.5}},
		{Question: 1, Answer: 0, Prediction: 0, Scores: []float64{-1, -3, -4}},
	}

	st, err := diffScores(rows, rows)
	if err != nil {
		t.Fatalf("diffScores returned error: %v", err)
	}
	if st.Questions != 2 || st.Cells != 5 {
		t.Fatalf("unexpected counts: questions=%d cells=%d", st.Questions, st.Cells)
	}
	if st.MaxAbs != 0 || st.MeanAbs != 0 || st.RMSE != 0 {
		t.Fatalf("identical runs should have zero diffs: %+v", st)
	}
	if st.Agreement != 1 {
		t.Fatalf("agreement = %v, want 1", st.Agreement)
	}
	if len(st.Flips) != 0 {
		t.Fatalf("unexpected flips: %v", st.Flips)
	}
}

func TestDiffScoresDrift(t *testing.T) {
	t.Parallel()

	a := []experiment.QuestionScore{
		{Question: 0, Prediction: 0, Scores: []float64{-1, -2}},
		{Question: 1, Prediction: 1, Scores: []float64{-3, -1}},
	}
	b := []experiment.QuestionScore{
		{Question: 0, Prediction: 0, Scores: []float64{-1.5, -2}},
		{Question: 1, Prediction: 0, Scores: []float64{-3, -2.5}},
	}

	st, err := diffScores(a, b)
	if err != nil {
		t.Fatalf("diffScores returned error: %v", err)
	}
	if st.MaxAbs != 1.5 {
		t.Fatalf("max abs = %v, want 1.5", st.MaxAbs)
	}
	if st.MeanAbs != 0.5 {
		t.Fatalf("mean abs = %v, want 0.5", st.MeanAbs)
	}
	wantRMSE := math.Sqrt((0.25 + 2.25) / 4)
	if math.Abs(st.RMSE-wantRMSE) > 1e-12 {
		t.Fatalf("rmse = %v, want %v", st.RMSE, wantRMSE)
	}
	if st.Agreement != 0.5 {
		t.Fatalf("agreement = %v, want 0.5", st.Agreement)
	}
	if len(st.Flips) != 1 || st.Flips[0].Question != 1 || st.Flips[0].A != 1 || st.Flips[0].B != 0 {
		t.Fatalf("unexpected flips: %v", st.Flips)
	}
}

func TestDiffScoresShapeMismatch(t *testing.T) {
	t.Parallel()

	a := []experiment.QuestionScore{{Question: 0, Scores: []float64{-1}}}

	if _, err := diffScores(a, nil); err == nil {
		t.Fatal("expected error for differing question counts")
	}

	b := []experiment.QuestionScore{{Question: 2, Scores: []float64{-1}}}
	if _, err := diffScores(a, b); err == nil {
		t.Fatal("expected error for mismatched question ids")
	}

	c := []experiment.QuestionScore{{Question: 0, Scores: []float64{-1, -2}}}
	if _, err := diffScores(a, c); err == nil {
		t.Fatal("expected error for differing choice counts")
	}
}
