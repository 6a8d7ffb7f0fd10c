package lm

import "testing"

func TestPad(t *testing.T) {
	t.Parallel()

	e := Pad([]int{5, 6, 7}, 1, 6)
	wantIDs := []int{5, 6, 7, 1, 1, 1}
	for i, id := range wantIDs {
		if e.IDs[i] != id {
			t.Fatalf("IDs[%d]: got %d want %d", i, e.IDs[i], id)
		}
	}
	wantMask := []float32{1, 1, 1, 0, 0, 0}
	for i, m := range wantMask {
		if e.AttentionMask[i] != m {
			t.Fatalf("AttentionMask[%d]: got %v want %v", i, e.AttentionMask[i], m)
		}
	}
	if got := e.Length(); got != 3 {
		t.Fatalf("Length: got %d want 3", got)
	}
}

func TestSparseLabels(t *testing.T) {
	t.Parallel()

	labels, err := SparseLabels(5, []int{2}, []int{42})
	if err != nil {
		t.Fatalf("SparseLabels: %v", err)
	}
	for i, l := range labels {
		if i == 2 {
			if l != 42 {
				t.Fatalf("labels[2]: got %d want 42", l)
			}
			continue
		}
		if l != PadLabelID {
			t.Fatalf("labels[%d]: got %d want pad", i, l)
		}
	}

	if _, err := SparseLabels(5, []int{1, 2}, []int{9}); err == nil {
		t.Fatal("expected error for mismatched position/id lists")
	}
	if _, err := SparseLabels(3, []int{7}, []int{9}); err == nil {
		t.Fatal("expected error for out-of-range position")
	}
}

func TestFlatten(t *testing.T) {
	t.Parallel()

	a := Pad([]int{1}, 0, 2)
	groups := [][]Encoding{{a, a}, {a}, {a, a, a}}
	batch, spans := Flatten(groups)
	if len(batch) != 6 {
		t.Fatalf("batch length: got %d want 6", len(batch))
	}
	want := [][2]int{{0, 2}, {2, 3}, {3, 6}}
	for i := range want {
		if spans[i] != want[i] {
			t.Fatalf("span[%d]: got %v want %v", i, spans[i], want[i])
		}
	}
}
