// Command scorediff compares the per-question score dumps of two stored
// analogy runs. It reports how far the choice scores drifted and which
// predictions flipped, which is the fastest way to tell whether a scoring
// change was cosmetic or behavioral.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/relprobe/relprobe/internal/experiment"
)

type diffStats struct {
	Questions int
	Cells     int
	MaxAbs    float64
	MeanAbs   float64
	RMSE      float64
	Agreement float64
	Flips     []flip
}

type flip struct {
	Question int
	A, B     int
}

func main() {
	var (
		showFlips bool
		maxFlips  int
	)
	flag.BoolVar(&showFlips, "show-flips", true, "list questions whose prediction changed")
	flag.IntVar(&maxFlips, "max-flips", 20, "max flips to list (0 = all)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: scorediff [flags] <run-dir-a> <run-dir-b>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	dirA, dirB := flag.Arg(0), flag.Arg(1)

	a, err := experiment.ReadScores(dirA)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read a:", err)
		os.Exit(1)
	}
	b, err := experiment.ReadScores(dirB)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read b:", err)
		os.Exit(1)
	}

	stats, err := diffScores(a, b)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("A=%s\n", dirA)
	fmt.Printf("B=%s\n", dirB)
	fmt.Printf("questions=%d cells=%d\n", stats.Questions, stats.Cells)
	fmt.Printf("max_abs=%.6g mean_abs=%.6g rmse=%.6g agreement=%.2f%%\n",
		stats.MaxAbs, stats.MeanAbs, stats.RMSE, 100*stats.Agreement)

	if !showFlips {
		return
	}
	for i, f := range stats.Flips {
		if maxFlips > 0 && i == maxFlips {
			fmt.Printf("... %d more flips\n", len(stats.Flips)-maxFlips)
			break
		}
		fmt.Printf("question %d: %d -> %d\n", f.Question, f.A, f.B)
	}
}

// diffScores compares two runs question by question. The runs must cover
// the same questions in the same order with the same choice counts.
func diffScores(a, b []experiment.QuestionScore) (diffStats, error) {
	if len(a) != len(b) {
		return diffStats{}, fmt.Errorf("question count differs: %d vs %d", len(a), len(b))
	}
	var (
		st     diffStats
		sumAbs float64
		sumSq  float64
		agree  int
	)
	for i := range a {
		qa, qb := a[i], b[i]
		if qa.Question != qb.Question {
			return diffStats{}, fmt.Errorf("row %d compares question %d against %d", i, qa.Question, qb.Question)
		}
		if len(qa.Scores) != len(qb.Scores) {
			return diffStats{}, fmt.Errorf("question %d: choice count differs: %d vs %d", qa.Question, len(qa.Scores), len(qb.Scores))
		}
		for j := range qa.Scores {
			d := math.Abs(qa.Scores[j] - qb.Scores[j])
			if d > st.MaxAbs {
				st.MaxAbs = d
			}
			sumAbs += d
			sumSq += d * d
			st.Cells++
		}
		if qa.Prediction == qb.Prediction {
			agree++
		} else {
			st.Flips = append(st.Flips, flip{Question: qa.Question, A: qa.Prediction, B: qb.Prediction})
		}
	}
	st.Questions = len(a)
	if st.Cells > 0 {
		st.MeanAbs = sumAbs / float64(st.Cells)
		st.RMSE = math.Sqrt(sumSq / float64(st.Cells))
	}
	if st.Questions > 0 {
		st.Agreement = float64(agree) / float64(st.Questions)
	}
	return st, nil
}
