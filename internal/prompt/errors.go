package prompt

import (
	"errors"
	"fmt"
)

// ErrNoCandidates reports a fill step where every prediction was rejected,
// either by the head/tail substring filter or because the model predicted
// the mask token itself. There is no fallback fill; callers decide whether
// to drop the pair or retry with wider search parameters.
var ErrNoCandidates = errors.New("no fill candidates survived filtering")

// NoCandidatesError carries the pair whose fill step came up empty.
type NoCandidatesError struct {
	Pair Pair
}

func (e *NoCandidatesError) Error() string {
	return fmt.Sprintf("prompt: pair %s: %v", e.Pair, ErrNoCandidates)
}

func (e *NoCandidatesError) Unwrap() error { return ErrNoCandidates }
