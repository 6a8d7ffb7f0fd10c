package experiment

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

const scoresFile = "scores.jsonl"

// QuestionScore records how one question was answered: the score of every
// choice plus the argmax prediction.
type QuestionScore struct {
	Question   int       `json:"question"`
	Answer     int       `json:"answer"`
	Prediction int       `json:"prediction"`
	Scores     []float64 `json:"scores"`
}

// WriteScores stores the per-question scores beside a run's config and
// accuracy, one JSON object per line.
func (s *Store) WriteScores(run Run, scores []QuestionScore) error {
	var buf bytes.Buffer
	for _, qs := range scores {
		raw, err := json.Marshal(qs)
		if err != nil {
			return fmt.Errorf("experiment: encode scores: %w", err)
		}
		buf.Write(raw)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(run.Dir, scoresFile), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("experiment: %w", err)
	}
	return nil
}

// ReadScores loads the per-question scores from a run directory.
func ReadScores(dir string) ([]QuestionScore, error) {
	path := filepath.Join(dir, scoresFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("experiment: %w", err)
	}
	defer f.Close()

	var scores []QuestionScore
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var qs QuestionScore
		if err := json.Unmarshal(raw, &qs); err != nil {
			return nil, fmt.Errorf("experiment: %s:%d: %w", path, line, err)
		}
		scores = append(scores, qs)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("experiment: %s: %w", path, err)
	}
	return scores, nil
}
