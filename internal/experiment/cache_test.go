package experiment

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/relprobe/relprobe/internal/score"
	"github.com/relprobe/relprobe/internal/template"
)

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "sat__fake__32.db")

	c, err := OpenCache(path)
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}

	key := ScoreKey{Method: "ppl_based_pmi", Template: "is-to-as", Split: "valid", Question: 3, Choice: 1}
	if hit, err := c.Get(ctx, key); err != nil || hit != nil {
		t.Fatalf("empty cache get = %v, %v", hit, err)
	}

	prims := score.TemplatePrimitives{
		Template: template.IsToAs,
		Positive: []score.PermutationScore{
			{Full: 12.5, StemMasked: 9.25, ChoiceMasked: 11},
			{Full: 8, Cond: []float64{-1.5, -2.25}, Marg: []float64{-3, -4.5}},
		},
		Negative: []score.PermutationScore{{Full: 40.5}},
	}
	if err := c.Put(ctx, key, prims); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || !reflect.DeepEqual(*got, prims) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, prims)
	}

	// Rows replace in place.
	prims.Positive = prims.Positive[:1]
	if err := c.Put(ctx, key, prims); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	got, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after replace: %v", err)
	}
	if len(got.Positive) != 1 {
		t.Fatalf("replace kept %d positive rows, want 1", len(got.Positive))
	}

	// A neighboring key stays a miss.
	other := key
	other.Choice = 2
	if hit, err := c.Get(ctx, other); err != nil || hit != nil {
		t.Fatalf("neighbor get = %v, %v", hit, err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The file persists across opens.
	c, err = OpenCache(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c.Close()
	got, err = c.Get(ctx, key)
	if err != nil || got == nil {
		t.Fatalf("get after reopen = %v, %v", got, err)
	}
	if got.Positive[0].Full != 12.5 {
		t.Fatalf("persisted Full = %v, want 12.5", got.Positive[0].Full)
	}
}
