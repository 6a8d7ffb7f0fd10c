package report

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/relprobe/relprobe/internal/experiment"
)

func run(id, model, data, method string, acc float64, split string) experiment.Run {
	cfg := experiment.DefaultConfig()
	cfg.Model = model
	cfg.Data = data
	cfg.ScoringMethod = method
	cfg.Test = split == "test"
	return experiment.Run{
		ID:     id,
		Config: cfg,
		Accuracy: experiment.Accuracy{
			Accuracy: acc,
			Correct:  int(acc * 100),
			Total:    100,
			Split:    split,
		},
	}
}

func TestRows(t *testing.T) {
	t.Parallel()
	u2 := run("01A", "bert", "u2", "ppl", 0.34567, "valid")
	u2.Config.TemplateTypes = []string{"is-to-as", "rel-same"}
	runs := []experiment.Run{
		u2,
		run("01B", "bert", "sat", "ppl", 0.5, "valid"),
		run("01C", "bert", "sat", "ppl", 0.25, "test"),
	}

	rows := Rows(runs, "")
	if len(rows) != 2 {
		t.Fatalf("got %d validation rows, want 2", len(rows))
	}
	if rows[0].Data != "sat" || rows[1].Data != "u2" {
		t.Fatalf("rows not sorted by data: %s, %s", rows[0].Data, rows[1].Data)
	}
	if rows[1].Accuracy != 34.57 {
		t.Fatalf("accuracy = %v, want 34.57", rows[1].Accuracy)
	}
	if rows[1].TemplateTypes != "is-to-as,rel-same" {
		t.Fatalf("templates = %q", rows[1].TemplateTypes)
	}

	test := Rows(runs, "test")
	if len(test) != 1 || test[0].Accuracy != 25 {
		t.Fatalf("test rows = %+v", test)
	}
}

func TestWrite(t *testing.T) {
	t.Parallel()
	rows := Rows([]experiment.Run{run("01A", "bert", "sat", "ppl", 0.5, "valid")}, "")

	var buf bytes.Buffer
	if err := Write(&buf, rows); err != nil {
		t.Fatalf("Write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header and one row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "model,max_length,data,template_types,scoring_method") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "bert") || !strings.Contains(lines[1], ",50,") {
		t.Fatalf("row = %q", lines[1])
	}
}

func TestExport(t *testing.T) {
	t.Parallel()
	st := experiment.NewStore(t.TempDir())
	valid := run("", "bert", "sat", "ppl", 0.5, "valid")
	if _, err := st.Save(valid.Config, valid.Accuracy); err != nil {
		t.Fatalf("Save: %v", err)
	}
	test := run("", "bert", "sat", "ppl", 0.25, "test")
	if _, err := st.Save(test.Config, test.Accuracy); err != nil {
		t.Fatalf("Save: %v", err)
	}

	paths, err := Export(st)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("got %d files, want summary and test summary", len(paths))
	}
	for i, want := range []string{"summary.csv", "summary.test.csv"} {
		if !strings.HasSuffix(paths[i], want) {
			t.Fatalf("paths[%d] = %s, want %s", i, paths[i], want)
		}
		raw, err := os.ReadFile(paths[i])
		if err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		if len(raw) == 0 {
			t.Fatalf("%s is empty", want)
		}
	}

	empty := experiment.NewStore(t.TempDir())
	if _, err := Export(empty); err == nil {
		t.Fatal("empty store exported")
	}
}

func TestBest(t *testing.T) {
	t.Parallel()
	runs := []experiment.Run{
		run("01A", "bert", "sat", "ppl", 0.4, "valid"),
		run("01B", "bert", "sat", "ppl_based_pmi", 0.6, "valid"),
		run("01C", "bert", "u2", "ppl", 0.9, "valid"),
		run("01D", "bert", "sat", "ppl", 0.95, "test"),
	}

	best, err := Best(runs, Filter{Data: "sat"})
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if best.ID != "01B" {
		t.Fatalf("best = %s, want 01B", best.ID)
	}

	best, err = Best(runs, Filter{Data: "sat", Method: "ppl"})
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if best.ID != "01A" {
		t.Fatalf("best = %s, want 01A", best.ID)
	}

	if _, err := Best(runs, Filter{Data: "bats"}); err == nil {
		t.Fatal("missing data matched")
	}

	// Ties go to the earliest run.
	tied := []experiment.Run{
		run("01A", "bert", "sat", "ppl", 0.5, "valid"),
		run("01B", "bert", "sat", "ppl_based_pmi", 0.5, "valid"),
	}
	best, err = Best(tied, Filter{})
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if best.ID != "01A" {
		t.Fatalf("tie went to %s, want 01A", best.ID)
	}
}

func TestBestEach(t *testing.T) {
	t.Parallel()
	runs := []experiment.Run{
		run("01A", "bert", "sat", "ppl", 0.4, "valid"),
		run("01B", "bert", "sat", "ppl", 0.7, "valid"),
		run("01C", "bert", "sat", "ppl_based_pmi", 0.6, "valid"),
		run("01D", "bert", "u2", "ppl", 0.9, "valid"),
		run("01E", "bert", "sat", "ppl", 0.95, "test"),
	}

	tuned, err := BestEach(runs, Filter{})
	if err != nil {
		t.Fatalf("BestEach: %v", err)
	}
	if len(tuned) != 3 {
		t.Fatalf("got %d groups, want 3", len(tuned))
	}
	// Ordered by data then method; the sat/ppl group keeps its best run.
	if tuned[0].ID != "01B" || tuned[1].ID != "01C" || tuned[2].ID != "01D" {
		t.Fatalf("unexpected group winners: %s, %s, %s", tuned[0].ID, tuned[1].ID, tuned[2].ID)
	}

	tuned, err = BestEach(runs, Filter{Method: "ppl"})
	if err != nil {
		t.Fatalf("BestEach: %v", err)
	}
	if len(tuned) != 2 {
		t.Fatalf("got %d groups, want 2", len(tuned))
	}

	if _, err := BestEach(runs, Filter{Data: "bats"}); err == nil {
		t.Fatal("missing data matched")
	}
}
