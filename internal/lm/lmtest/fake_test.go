package lmtest

import (
	"context"
	"errors"
	"testing"

	"github.com/relprobe/relprobe/internal/lm"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	f := New("beauty", "is", "to", "beast")
	ctx := context.Background()

	enc, err := f.Encode(ctx, "beauty is to beast")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got, want := enc.Length(), 6; got != want {
		t.Fatalf("Length = %d, want %d", got, want)
	}
	if len(enc.IDs) != f.Info().MaxLength {
		t.Fatalf("padded to %d, want %d", len(enc.IDs), f.Info().MaxLength)
	}
	text, err := f.Decode(ctx, enc.IDs[1:enc.Length()-1])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if text != "beauty is to beast" {
		t.Fatalf("Decode = %q", text)
	}
}

func TestTokenizeSplitsPunctuation(t *testing.T) {
	t.Parallel()
	f := New("word")
	toks, err := f.Tokenize(context.Background(), "word, word.")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	var texts []string
	for _, tok := range toks {
		texts = append(texts, tok.Text)
	}
	want := []string{"word", ",", "word", "."}
	if len(texts) != len(want) {
		t.Fatalf("tokens = %v, want %v", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Fatalf("tokens = %v, want %v", texts, want)
		}
	}
}

func TestEncodeTooLong(t *testing.T) {
	t.Parallel()
	f := New("a")
	f.SetMaxLength(4)
	_, err := f.Encode(context.Background(), "a a a")
	if !errors.Is(err, lm.ErrSequenceTooLong) {
		t.Fatalf("err = %v, want ErrSequenceTooLong", err)
	}
}

func TestForwardDeterministic(t *testing.T) {
	t.Parallel()
	f := New("beauty", "is", "to", "beast")
	ctx := context.Background()
	enc, err := f.Encode(ctx, "beauty is <mask> beast")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	a, err := f.Forward(ctx, []lm.Encoding{enc})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	b, err := f.Forward(ctx, []lm.Encoding{enc})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for pos := range a[0] {
		for tok := range a[0][pos] {
			if a[0][pos][tok] != b[0][pos][tok] {
				t.Fatalf("logit (%d,%d) changed between calls", pos, tok)
			}
		}
	}
	if calls, rows := f.Stats(); calls != 2 || rows != 2 {
		t.Fatalf("Stats = (%d,%d), want (2,2)", calls, rows)
	}
}

func TestSeedChangesLogits(t *testing.T) {
	t.Parallel()
	a := New("beauty", "is", "to", "beast")
	b := New("beauty", "is", "to", "beast")
	b.SetSeed(99)
	ctx := context.Background()

	enc, err := a.Encode(ctx, "beauty is <mask> beast")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	la, err := a.Forward(ctx, []lm.Encoding{enc})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	lb, err := b.Forward(ctx, []lm.Encoding{enc})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for pos := range la[0] {
		for tok := range la[0][pos] {
			if la[0][pos][tok] != lb[0][pos][tok] {
				return
			}
		}
	}
	t.Fatal("reseeding left every logit unchanged")
}

func TestBiasWinsTopToken(t *testing.T) {
	t.Parallel()
	f := New("beauty", "is", "to", "beast")
	f.Bias("beast", 10)
	ctx := context.Background()

	enc, err := f.Encode(ctx, "beauty is to <mask>")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	logits, err := f.Forward(ctx, []lm.Encoding{enc})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	maskPos := -1
	for pos, id := range enc.IDs {
		if id == f.Info().MaskID {
			maskPos = pos
		}
	}
	if maskPos < 0 {
		t.Fatal("no mask position in encoding")
	}
	best, bestTok := float32(-1e30), -1
	for tok, v := range logits[0][maskPos] {
		if v > best {
			best, bestTok = v, tok
		}
	}
	text, err := f.Decode(ctx, []int{bestTok})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if text != "beast" {
		t.Fatalf("top token = %q, want beast", text)
	}
}

func TestPairBeatsBias(t *testing.T) {
	t.Parallel()
	f := New("beauty", "is", "to", "beast", "stone")
	f.Bias("stone", 5)
	f.Pair("to", "beast", 20)
	ctx := context.Background()

	enc, err := f.Encode(ctx, "beauty is to <mask>")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	logits, err := f.Forward(ctx, []lm.Encoding{enc})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	// mask follows "to", so the pair bonus must outrank the global bias
	maskPos := 4
	if enc.IDs[maskPos] != f.Info().MaskID {
		t.Fatalf("expected mask at position %d", maskPos)
	}
	beast, stone := f.vocab["beast"], f.vocab["stone"]
	if logits[0][maskPos][beast] <= logits[0][maskPos][stone] {
		t.Fatalf("pair bonus lost to bias: beast=%v stone=%v",
			logits[0][maskPos][beast], logits[0][maskPos][stone])
	}
}
