// Package lm defines the boundary to the external pretrained-model
// collaborator: a tokenizer plus a masked language model that maps token ids
// to vocabulary logits. The package holds only interfaces and the encoding
// plumbing shared by every implementation; the HTTP client lives in
// lm/remote and the in-process test double in lm/lmtest.
package lm

import (
	"context"
	"errors"
)

// Model kinds reported by a collaborator.
const (
	KindMasked = "masked"
	KindCausal = "causal"
)

var (
	// ErrSequenceTooLong reports an input that does not fit the model
	// window. There is no truncation fallback; callers shorten their input
	// or raise the configured max length.
	ErrSequenceTooLong = errors.New("sequence exceeds model max length")

	// ErrCausalModel reports a collaborator serving a causal LM. Mask
	// filling and token-wise masked scoring need bidirectional context, so
	// causal models are rejected outright.
	ErrCausalModel = errors.New("causal models are not supported")
)

// Token pairs a tokenizer surface form with its vocabulary id.
type Token struct {
	Text string `json:"text"`
	ID   int    `json:"id"`
}

// Info describes the served model and its tokenizer. PrefixIDs and
// SuffixIDs are the special ids Encode wraps around the raw tokens (for a
// RoBERTa-style tokenizer, <s> and </s>); they let callers translate between
// token positions and encoded positions without re-probing the tokenizer.
type Info struct {
	Model         string   `json:"model"`
	Kind          string   `json:"kind"`
	VocabSize     int      `json:"vocab_size"`
	MaxLength     int      `json:"max_length"`
	MaskToken     string   `json:"mask_token"`
	MaskID        int      `json:"mask_id"`
	PadID         int      `json:"pad_id"`
	SpecialTokens []string `json:"special_tokens"`
	PrefixIDs     []int    `json:"prefix_ids"`
	SuffixIDs     []int    `json:"suffix_ids"`
}

// Masked reports whether the collaborator serves a masked LM.
func (i Info) Masked() bool {
	return i.Kind == KindMasked
}

// Tokenizer is the text side of the collaborator.
type Tokenizer interface {
	// Info returns the model description captured when the collaborator
	// was opened.
	Info() Info

	// Encode turns text into one model input row: special tokens added,
	// padded to Info().MaxLength. Returns ErrSequenceTooLong when the
	// unpadded sequence does not fit.
	Encode(ctx context.Context, text string) (Encoding, error)

	// Tokenize splits text into surface tokens with ids, without special
	// tokens and without padding.
	Tokenize(ctx context.Context, text string) ([]Token, error)

	// Decode turns ids back into text. Special tokens are kept; stripping
	// them is the caller's concern because the mask token must survive.
	Decode(ctx context.Context, ids []int) (string, error)
}

// Model is the inference side of the collaborator. Forward runs one masked
// LM pass over the batch and returns logits shaped
// [len(batch)][sequence][vocab].
type Model interface {
	Forward(ctx context.Context, batch []Encoding) ([][][]float32, error)
}
