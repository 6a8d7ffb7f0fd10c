package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "questions.jsonl")
	writeFile(t, path, `{"stem": ["word", "language"], "answer": 1, "choice": [["paint", "portrait"], ["note", "music"]], "prefix": "190 FROM REAL SATs"}

{"stem": ["dawn", "dusk"], "answer": 0, "choice": [["start", "end"]]}
`)

	qs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("loaded %d questions, want 2", len(qs))
	}
	q := qs[0]
	if q.Stem != [2]string{"word", "language"} {
		t.Fatalf("stem = %v", q.Stem)
	}
	if q.Answer != 1 || q.AnswerPair() != [2]string{"note", "music"} {
		t.Fatalf("answer pair = %v", q.AnswerPair())
	}
	if q.Prefix != "190 FROM REAL SATs" {
		t.Fatalf("prefix = %q", q.Prefix)
	}
	if qs[1].Prefix != "" {
		t.Fatalf("second prefix = %q, want empty", qs[1].Prefix)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		line string
		want string
	}{
		{"bad json", `{"stem": `, "dataset:"},
		{"long stem", `{"stem": ["a", "b", "c"], "answer": 0, "choice": [["x", "y"]]}`, "stem has 3 words"},
		{"empty stem word", `{"stem": ["a", ""], "answer": 0, "choice": [["x", "y"]]}`, "empty word"},
		{"missing answer", `{"stem": ["a", "b"], "choice": [["x", "y"]]}`, "missing answer"},
		{"answer out of range", `{"stem": ["a", "b"], "answer": 2, "choice": [["x", "y"]]}`, "answer 2 outside 1 choices"},
		{"no choices", `{"stem": ["a", "b"], "answer": 0, "choice": []}`, "no choice pairs"},
		{"short choice", `{"stem": ["a", "b"], "answer": 0, "choice": [["x"]]}`, "choice 0 has 1 words"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.jsonl")
			writeFile(t, path, tc.line+"\n")
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load = %v, want error containing %q", err, tc.want)
			}
			if !strings.Contains(err.Error(), ":1") {
				t.Fatalf("error %v does not name the line", err)
			}
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	writeFile(t, path, "\n\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load on an empty file succeeded")
	}
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Fatal("Load on a missing file succeeded")
	}
}

func TestLoadSplit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sat", ValidFile),
		`{"stem": ["a", "b"], "answer": 0, "choice": [["x", "y"], ["p", "q"]]}`+"\n")
	writeFile(t, filepath.Join(dir, "sat", TestFile),
		`{"stem": ["c", "d"], "answer": 1, "choice": [["x", "y"], ["p", "q"]]}`+"\n")

	valid, test, err := LoadSplit(dir, "sat")
	if err != nil {
		t.Fatalf("LoadSplit: %v", err)
	}
	if len(valid) != 1 || len(test) != 1 {
		t.Fatalf("split sizes %d/%d, want 1/1", len(valid), len(test))
	}
	if valid[0].Stem[0] != "a" || test[0].Stem[0] != "c" {
		t.Fatalf("splits swapped: %v / %v", valid[0].Stem, test[0].Stem)
	}

	if _, _, err := LoadSplit(dir, "u2"); err == nil {
		t.Fatal("LoadSplit on a missing set succeeded")
	}
}

func TestKnown(t *testing.T) {
	t.Parallel()
	if got := Names(); len(got) != 5 {
		t.Fatalf("Names = %v", got)
	}
	if !Known("sat") || Known("imaginary") {
		t.Fatal("Known misclassifies set names")
	}
}
