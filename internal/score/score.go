// Package score turns collaborator logits into the numbers the pipeline
// ranks by: top-k shortlists, pseudo-perplexity, PMI variants, permutation
// aggregation.
package score

import (
	"fmt"
	"math"
)

// Prediction is one vocabulary entry from a top-k shortlist.
type Prediction struct {
	ID    int
	Logit float32
}

// TopK returns the k highest-logit entries, largest first. It keeps a sorted
// shortlist by insertion, O(V*K), which beats a full sort for the small k
// used here.
func TopK(logits []float32, k int) []Prediction {
	if k <= 0 || len(logits) == 0 {
		return nil
	}
	if k > len(logits) {
		k = len(logits)
	}
	top := make([]Prediction, 0, k+1)
	for i, v := range logits {
		pos := len(top)
		for pos > 0 && top[pos-1].Logit < v {
			pos--
		}
		if pos >= k {
			continue
		}
		top = append(top, Prediction{})
		copy(top[pos+1:], top[pos:])
		top[pos] = Prediction{ID: i, Logit: v}
		if len(top) > k {
			top = top[:k]
		}
	}
	return top
}

// LogSumExp computes log(sum(exp(x))) with the max subtracted for stability.
func LogSumExp(logits []float32) float64 {
	if len(logits) == 0 {
		return math.Inf(-1)
	}
	maxv := logits[0]
	for _, v := range logits[1:] {
		if v > maxv {
			maxv = v
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v - maxv))
	}
	return float64(maxv) + math.Log(sum)
}

// CrossEntropy is the negative log-probability of label under the softmax of
// logits.
func CrossEntropy(logits []float32, label int) (float64, error) {
	if label < 0 || label >= len(logits) {
		return 0, fmt.Errorf("score: label %d outside vocabulary of %d", label, len(logits))
	}
	return LogSumExp(logits) - float64(logits[label]), nil
}

// LogProb is the log-probability of label under the softmax of logits.
func LogProb(logits []float32, label int) (float64, error) {
	ce, err := CrossEntropy(logits, label)
	if err != nil {
		return 0, err
	}
	return -ce, nil
}
