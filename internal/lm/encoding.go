package lm

import "fmt"

// PadLabelID marks positions that carry no label. Loss computation skips
// them, matching the ignore index convention of the collaborator's training
// stack.
const PadLabelID = -100

// Encoding is one model input row. IDs and AttentionMask always share a
// length; Labels is either nil or the same length again, holding PadLabelID
// everywhere except the positions to score.
type Encoding struct {
	IDs           []int     `json:"input_ids"`
	AttentionMask []float32 `json:"attention_mask"`
	Labels        []int     `json:"labels,omitempty"`
}

// Pad builds an encoding from raw ids, right-padding with padID up to
// length. The attention mask is 1 over the real ids and 0 over padding.
func Pad(ids []int, padID, length int) Encoding {
	e := Encoding{
		IDs:           make([]int, length),
		AttentionMask: make([]float32, length),
	}
	for i := 0; i < length; i++ {
		if i < len(ids) {
			e.IDs[i] = ids[i]
			e.AttentionMask[i] = 1
		} else {
			e.IDs[i] = padID
		}
	}
	return e
}

// Length returns the number of attended positions.
func (e Encoding) Length() int {
	n := 0
	for _, m := range e.AttentionMask {
		if m != 0 {
			n++
		}
	}
	return n
}

// SparseLabels labels only the given positions with the given ids and pads
// everything else. Position and id lists must pair up.
func SparseLabels(n int, positions, ids []int) ([]int, error) {
	if len(positions) != len(ids) {
		return nil, fmt.Errorf("lm: %d label positions for %d label ids", len(positions), len(ids))
	}
	labels := make([]int, n)
	for i := range labels {
		labels[i] = PadLabelID
	}
	for i, p := range positions {
		if p < 0 || p >= n {
			return nil, fmt.Errorf("lm: label position %d outside sequence of length %d", p, n)
		}
		labels[p] = ids[i]
	}
	return labels, nil
}

// Flatten concatenates per-sentence encoding groups into a single batch and
// returns the [start,end) span of each group within it. Spans let callers
// slice per-sentence results back out of a flat forward pass.
func Flatten(groups [][]Encoding) ([]Encoding, [][2]int) {
	var batch []Encoding
	spans := make([][2]int, len(groups))
	for i, g := range groups {
		spans[i] = [2]int{len(batch), len(batch) + len(g)}
		batch = append(batch, g...)
	}
	return batch, spans
}
