package score

import (
	"fmt"
	"strconv"
	"strings"
)

// Aggregate reduces values by name: "max", "mean", "min", or a positional
// pick "index_k" / "p_k". Positions past the end clamp to the last value, so
// a fixed aggregation name works across sentences with different subtoken
// counts.
func Aggregate(name string, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("score: aggregate %q over no values", name)
	}
	switch name {
	case "max":
		out := values[0]
		for _, v := range values[1:] {
			if v > out {
				out = v
			}
		}
		return out, nil
	case "mean":
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	case "min":
		out := values[0]
		for _, v := range values[1:] {
			if v < out {
				out = v
			}
		}
		return out, nil
	}

	var idx string
	switch {
	case strings.HasPrefix(name, "index_"):
		idx = strings.TrimPrefix(name, "index_")
	case strings.HasPrefix(name, "p_"):
		idx = strings.TrimPrefix(name, "p_")
	default:
		return 0, fmt.Errorf("score: unknown aggregation %q", name)
	}
	k, err := strconv.Atoi(idx)
	if err != nil || k < 0 {
		return 0, fmt.Errorf("score: unknown aggregation %q", name)
	}
	if k >= len(values) {
		k = len(values) - 1
	}
	return values[k], nil
}
