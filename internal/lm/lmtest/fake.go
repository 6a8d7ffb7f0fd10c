// Package lmtest provides a deterministic in-process masked model for tests.
// Logits are pseudo-random but stable across runs, derived by hashing the
// seed together with the surrounding token, so tests can assert exact
// orderings after nudging individual words with Bias and Pair.
package lmtest

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/dgryski/go-spooky"

	"github.com/relprobe/relprobe/internal/lm"
)

const (
	bosID = iota
	eosID
	padID
	maskID
	unkID
	numSpecials
)

var specials = []string{"<s>", "</s>", "<pad>", "<mask>", "<unk>"}

// Fake implements lm.Tokenizer and lm.Model over a whitespace vocabulary.
type Fake struct {
	mu    sync.Mutex
	words []string
	vocab map[string]int
	seed  uint64
	kind  string
	maxLn int
	bias  map[int]float32
	pair  map[[2]int]float32
	calls int
	rows  int
}

// New builds a fake with the given vocabulary words on top of the special
// tokens and basic punctuation.
func New(words ...string) *Fake {
	f := &Fake{
		vocab: map[string]int{},
		seed:  1,
		kind:  lm.KindMasked,
		maxLn: 32,
		bias:  map[int]float32{},
		pair:  map[[2]int]float32{},
	}
	for _, w := range specials {
		f.add(w)
	}
	for _, w := range []string{".", ",", "?", "!"} {
		f.add(w)
	}
	for _, w := range words {
		f.add(w)
	}
	return f
}

func (f *Fake) add(w string) {
	if _, ok := f.vocab[w]; ok {
		return
	}
	f.vocab[w] = len(f.words)
	f.words = append(f.words, w)
}

// SetSeed changes the noise seed.
func (f *Fake) SetSeed(seed uint64) { f.seed = seed }

// SetKind overrides the reported model kind.
func (f *Fake) SetKind(kind string) { f.kind = kind }

// SetMaxLength changes the encoding window.
func (f *Fake) SetMaxLength(n int) { f.maxLn = n }

// Bias adds delta to the logit of word at every position.
func (f *Fake) Bias(word string, delta float32) {
	f.add(word)
	f.bias[f.vocab[word]] = delta
}

// Pair adds delta to the logit of next whenever prev is the preceding token.
func (f *Fake) Pair(prev, next string, delta float32) {
	f.add(prev)
	f.add(next)
	f.pair[[2]int{f.vocab[prev], f.vocab[next]}] = delta
}

// Stats reports how many Forward calls and encoding rows have been scored.
func (f *Fake) Stats() (calls, rows int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.rows
}

// Info implements lm.Tokenizer.
func (f *Fake) Info() lm.Info {
	return lm.Info{
		Model:         "lmtest-fake",
		Kind:          f.kind,
		VocabSize:     len(f.words),
		MaxLength:     f.maxLn,
		MaskToken:     "<mask>",
		MaskID:        maskID,
		PadID:         padID,
		SpecialTokens: append([]string(nil), specials...),
		PrefixIDs:     []int{bosID},
		SuffixIDs:     []int{eosID},
	}
}

// split breaks text on whitespace and peels punctuation off word edges.
func split(text string) []string {
	var out []string
	for _, field := range strings.Fields(text) {
		for len(field) > 0 && strings.ContainsAny(field[:1], ".,?!") {
			out = append(out, field[:1])
			field = field[1:]
		}
		var tail []string
		for len(field) > 0 && strings.ContainsAny(field[len(field)-1:], ".,?!") {
			tail = append([]string{field[len(field)-1:]}, tail...)
			field = field[:len(field)-1]
		}
		if field != "" {
			out = append(out, field)
		}
		out = append(out, tail...)
	}
	return out
}

// Tokenize implements lm.Tokenizer. Unknown words become <unk>.
func (f *Fake) Tokenize(_ context.Context, text string) ([]lm.Token, error) {
	var toks []lm.Token
	for _, w := range split(text) {
		id, ok := f.vocab[w]
		if !ok {
			id = unkID
			w = "<unk>"
		}
		toks = append(toks, lm.Token{Text: w, ID: id})
	}
	return toks, nil
}

// Encode implements lm.Tokenizer.
func (f *Fake) Encode(ctx context.Context, text string) (lm.Encoding, error) {
	toks, err := f.Tokenize(ctx, text)
	if err != nil {
		return lm.Encoding{}, err
	}
	ids := []int{bosID}
	for _, t := range toks {
		ids = append(ids, t.ID)
	}
	ids = append(ids, eosID)
	if len(ids) >= f.maxLn {
		return lm.Encoding{}, fmt.Errorf("lmtest: %q needs %d of %d positions: %w",
			text, len(ids), f.maxLn, lm.ErrSequenceTooLong)
	}
	return lm.Pad(ids, padID, f.maxLn), nil
}

// Decode implements lm.Tokenizer, joining tokens with single spaces.
func (f *Fake) Decode(_ context.Context, ids []int) (string, error) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < 0 || id >= len(f.words) {
			return "", fmt.Errorf("lmtest: id %d outside vocabulary of %d", id, len(f.words))
		}
		parts = append(parts, f.words[id])
	}
	return strings.Join(parts, " "), nil
}

// Forward implements lm.Model.
func (f *Fake) Forward(_ context.Context, batch []lm.Encoding) ([][][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.rows += len(batch)
	f.mu.Unlock()

	out := make([][][]float32, len(batch))
	for i, enc := range batch {
		rows := make([][]float32, len(enc.IDs))
		for pos := range enc.IDs {
			rows[pos] = f.logits(enc, pos)
		}
		out[i] = rows
	}
	return out, nil
}

func (f *Fake) logits(enc lm.Encoding, pos int) []float32 {
	prev := padID
	if pos > 0 {
		prev = enc.IDs[pos-1]
	}
	out := make([]float32, len(f.words))
	for tok := range out {
		v := f.noise(prev, tok)
		if tok < numSpecials {
			v -= 8
		}
		v += f.bias[tok]
		v += f.pair[[2]int{prev, tok}]
		out[tok] = v
	}
	return out
}

// noise is a stable value in [0,1) keyed on (seed, prev, tok).
func (f *Fake) noise(prev, tok int) float32 {
	var key [24]byte
	binary.LittleEndian.PutUint64(key[0:], f.seed)
	binary.LittleEndian.PutUint64(key[8:], uint64(int64(prev)))
	binary.LittleEndian.PutUint64(key[16:], uint64(int64(tok)))
	h := spooky.Hash64(key[:])
	return float32(h&0xffff) / float32(1<<16)
}
