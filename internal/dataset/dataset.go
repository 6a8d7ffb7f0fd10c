// Package dataset loads word-analogy question sets from JSON-lines files.
//
// A question holds a stem pair, candidate answer pairs and the index of the
// correct candidate:
//
//	{"stem": ["word", "language"], "answer": 1,
//	 "choice": [["paint", "portrait"], ["note", "music"]],
//	 "prefix": "190 FROM REAL SATs"}
package dataset

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-json"
)

// Split file names inside a set directory.
const (
	ValidFile = "valid.jsonl"
	TestFile  = "test.jsonl"
)

// Names lists the analogy sets the experiment drivers know about.
func Names() []string {
	return []string{"sat", "u2", "u4", "google", "bats"}
}

// Known reports whether name is one of the standard sets.
func Known(name string) bool {
	return slices.Contains(Names(), name)
}

// Question is one analogy item: which choice pair relates the way the stem
// pair does?
type Question struct {
	Stem    [2]string
	Choices [][2]string
	Answer  int
	Prefix  string
}

// AnswerPair returns the correct choice pair.
func (q Question) AnswerPair() [2]string { return q.Choices[q.Answer] }

type rawQuestion struct {
	Stem   []string   `json:"stem"`
	Answer *int       `json:"answer"`
	Choice [][]string `json:"choice"`
	Prefix string     `json:"prefix"`
}

// Load reads one JSON-lines question file. Blank lines are skipped; any
// malformed record fails the whole load with its line number.
func Load(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	var out []Question
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var raw rawQuestion
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("dataset: %s:%d: %w", path, lineNo, err)
		}
		q, err := raw.validate()
		if err != nil {
			return nil, fmt.Errorf("dataset: %s:%d: %w", path, lineNo, err)
		}
		out = append(out, q)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dataset: reading %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("dataset: %s holds no questions", path)
	}
	return out, nil
}

// LoadSplit reads the valid and test files of a named set under dir.
func LoadSplit(dir, name string) (valid, test []Question, err error) {
	valid, err = Load(filepath.Join(dir, name, ValidFile))
	if err != nil {
		return nil, nil, err
	}
	test, err = Load(filepath.Join(dir, name, TestFile))
	if err != nil {
		return nil, nil, err
	}
	return valid, test, nil
}

func (r rawQuestion) validate() (Question, error) {
	var q Question
	if len(r.Stem) != 2 {
		return q, fmt.Errorf("stem has %d words, want 2", len(r.Stem))
	}
	if r.Stem[0] == "" || r.Stem[1] == "" {
		return q, fmt.Errorf("stem holds an empty word")
	}
	if r.Answer == nil {
		return q, fmt.Errorf("missing answer")
	}
	if len(r.Choice) == 0 {
		return q, fmt.Errorf("no choice pairs")
	}
	if *r.Answer < 0 || *r.Answer >= len(r.Choice) {
		return q, fmt.Errorf("answer %d outside %d choices", *r.Answer, len(r.Choice))
	}
	q.Stem = [2]string{r.Stem[0], r.Stem[1]}
	q.Choices = make([][2]string, len(r.Choice))
	for i, c := range r.Choice {
		if len(c) != 2 {
			return Question{}, fmt.Errorf("choice %d has %d words, want 2", i, len(c))
		}
		if c[0] == "" || c[1] == "" {
			return Question{}, fmt.Errorf("choice %d holds an empty word", i)
		}
		q.Choices[i] = [2]string{c[0], c[1]}
	}
	q.Answer = *r.Answer
	q.Prefix = r.Prefix
	return q, nil
}
