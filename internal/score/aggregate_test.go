package score

import (
	"math"
	"testing"
)

func TestAggregate(t *testing.T) {
	t.Parallel()
	values := []float64{3, 1, 4, 1.5}
	tests := []struct {
		name string
		want float64
	}{
		{"max", 4},
		{"min", 1},
		{"mean", 9.5 / 4},
		{"index_0", 3},
		{"index_2", 4},
		{"p_1", 1},
		{"p_3", 1.5},
	}
	for _, tc := range tests {
		got, err := Aggregate(tc.name, values)
		if err != nil {
			t.Fatalf("Aggregate(%s): %v", tc.name, err)
		}
		if math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("Aggregate(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAggregateIndexClamps(t *testing.T) {
	t.Parallel()
	values := []float64{7, 8}
	got, err := Aggregate("index_11", values)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got != 8 {
		t.Fatalf("Aggregate(index_11) over 2 values = %v, want last value 8", got)
	}
	got, err = Aggregate("p_5", values)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got != 8 {
		t.Fatalf("Aggregate(p_5) over 2 values = %v, want 8", got)
	}
}

func TestAggregateErrors(t *testing.T) {
	t.Parallel()
	if _, err := Aggregate("median", []float64{1}); err == nil {
		t.Fatal("unknown aggregation should fail")
	}
	if _, err := Aggregate("index_x", []float64{1}); err == nil {
		t.Fatal("malformed index aggregation should fail")
	}
	if _, err := Aggregate("index_-1", []float64{1}); err == nil {
		t.Fatal("negative index aggregation should fail")
	}
	if _, err := Aggregate("max", nil); err == nil {
		t.Fatal("aggregation over no values should fail")
	}
}
