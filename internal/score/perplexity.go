package score

import (
	"context"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/relprobe/relprobe/internal/lm"
	"github.com/relprobe/relprobe/internal/logger"
)

const (
	defaultBatchSize = 32
	defaultMemoSize  = 4096
)

// ScorerOptions configures a Scorer. Zero values pick defaults.
type ScorerOptions struct {
	BatchSize int
	MemoSize  int
	Logger    logger.Logger
}

// Scorer computes sentence scores through a masked-LM collaborator. It is
// safe for concurrent use; repeated sentences hit an LRU memo instead of the
// model.
type Scorer struct {
	tok       lm.Tokenizer
	model     lm.Model
	batchSize int
	memo      *lru.Cache[string, float64]
	log       logger.Logger
}

// NewScorer wires a tokenizer and model into a Scorer.
func NewScorer(tok lm.Tokenizer, model lm.Model, opts ScorerOptions) (*Scorer, error) {
	if !tok.Info().Masked() {
		return nil, fmt.Errorf("score: model %s is %s: %w", tok.Info().Model, tok.Info().Kind, lm.ErrCausalModel)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MemoSize <= 0 {
		opts.MemoSize = defaultMemoSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	memo, err := lru.New[string, float64](opts.MemoSize)
	if err != nil {
		return nil, fmt.Errorf("score: memo cache: %w", err)
	}
	return &Scorer{
		tok:       tok,
		model:     model,
		batchSize: opts.BatchSize,
		memo:      memo,
		log:       opts.Logger,
	}, nil
}

// Info exposes the collaborator description.
func (s *Scorer) Info() lm.Info { return s.tok.Info() }

// Tokenizer exposes the underlying tokenizer.
func (s *Scorer) Tokenizer() lm.Tokenizer { return s.tok }

// Perplexity computes the pseudo-perplexity of each sentence: every unmasked
// position is masked in turn, the true token's cross-entropy is taken from
// one forward pass per variant, and the mean over positions is
// exponentiated. Positions already holding a mask token are skipped, so a
// partially masked sentence yields the conditional perplexity of its visible
// tokens. Each sentence's value depends only on that sentence.
func (s *Scorer) Perplexity(ctx context.Context, sentences []string) ([]float64, error) {
	out := make([]float64, len(sentences))
	var missing []string
	seen := make(map[string]bool)
	for _, sent := range sentences {
		if _, ok := s.memo.Get(sent); ok || seen[sent] {
			continue
		}
		seen[sent] = true
		missing = append(missing, sent)
	}

	fresh := make(map[string]float64, len(missing))
	if len(missing) > 0 {
		groups := make([][]lm.Encoding, len(missing))
		for gi, sent := range missing {
			variants, err := s.maskable(ctx, sent)
			if err != nil {
				return nil, err
			}
			if len(variants) == 0 {
				return nil, fmt.Errorf("score: %q has no unmasked positions to score", sent)
			}
			groups[gi] = variants
		}
		flat, spans := lm.Flatten(groups)
		s.log.Debug("scoring perplexity", "sentences", len(missing), "variants", len(flat))

		logits, err := s.ForwardChunks(ctx, flat, 0)
		if err != nil {
			return nil, err
		}

		for gi, sent := range missing {
			span := spans[gi]
			var sum float64
			for vi := span[0]; vi < span[1]; vi++ {
				ce, err := variantCrossEntropy(flat[vi], logits[vi])
				if err != nil {
					return nil, fmt.Errorf("score: %q: %w", sent, err)
				}
				sum += ce
			}
			ppl := math.Exp(sum / float64(span[1]-span[0]))
			fresh[sent] = ppl
			s.memo.Add(sent, ppl)
		}
	}

	for i, sent := range sentences {
		if v, ok := fresh[sent]; ok {
			out[i] = v
			continue
		}
		v, ok := s.memo.Get(sent)
		if !ok {
			return nil, fmt.Errorf("score: %q missing after scoring", sent)
		}
		out[i] = v
	}
	return out, nil
}

// MaskEachPosition builds one encoding per maskable position of the
// sentence, each with exactly one extra mask and a label pointing at the
// hidden token. Positions already holding a mask are skipped; a fully masked
// sentence yields no encodings.
func (s *Scorer) MaskEachPosition(ctx context.Context, sentence string) ([]lm.Encoding, error) {
	return s.maskable(ctx, sentence)
}

func (s *Scorer) maskable(ctx context.Context, sentence string) ([]lm.Encoding, error) {
	info := s.tok.Info()
	toks, err := s.tok.Tokenize(ctx, sentence)
	if err != nil {
		return nil, fmt.Errorf("score: tokenize %q: %w", sentence, err)
	}
	ids := append([]int(nil), info.PrefixIDs...)
	for _, t := range toks {
		ids = append(ids, t.ID)
	}
	ids = append(ids, info.SuffixIDs...)
	if len(ids) >= info.MaxLength {
		return nil, fmt.Errorf("score: %q needs %d of %d positions: %w",
			sentence, len(ids), info.MaxLength, lm.ErrSequenceTooLong)
	}

	offset := len(info.PrefixIDs)
	var out []lm.Encoding
	for i, t := range toks {
		if t.ID == info.MaskID {
			continue
		}
		masked := append([]int(nil), ids...)
		masked[offset+i] = info.MaskID
		enc := lm.Pad(masked, info.PadID, info.MaxLength)
		labels, err := lm.SparseLabels(len(enc.IDs), []int{offset + i}, []int{t.ID})
		if err != nil {
			return nil, fmt.Errorf("score: label %q: %w", sentence, err)
		}
		enc.Labels = labels
		out = append(out, enc)
	}
	return out, nil
}

func variantCrossEntropy(enc lm.Encoding, logits [][]float32) (float64, error) {
	for pos, label := range enc.Labels {
		if label == lm.PadLabelID {
			continue
		}
		if pos >= len(logits) {
			return 0, fmt.Errorf("label position %d beyond %d logit rows", pos, len(logits))
		}
		return CrossEntropy(logits[pos], label)
	}
	return 0, fmt.Errorf("variant carries no label")
}

// MaskTarget addresses one mask position of a sentence by its index among
// that sentence's masks, with the token whose probability is wanted there.
type MaskTarget struct {
	MaskIndex int
	TokenID   int
}

// MaskedLogProbs encodes each text as-is and returns, per text, the
// log-probability of each requested token at its mask position, all from one
// forward pass per text.
func (s *Scorer) MaskedLogProbs(ctx context.Context, texts []string, targets [][]MaskTarget) ([][]float64, error) {
	if len(texts) != len(targets) {
		return nil, fmt.Errorf("score: %d texts with %d target sets", len(texts), len(targets))
	}
	batch := make([]lm.Encoding, len(texts))
	for i, text := range texts {
		enc, err := s.tok.Encode(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("score: encode %q: %w", text, err)
		}
		batch[i] = enc
	}
	logits, err := s.ForwardChunks(ctx, batch, 0)
	if err != nil {
		return nil, err
	}

	info := s.tok.Info()
	out := make([][]float64, len(texts))
	for i, enc := range batch {
		var maskPos []int
		for pos := 0; pos < enc.Length(); pos++ {
			if enc.IDs[pos] == info.MaskID {
				maskPos = append(maskPos, pos)
			}
		}
		probs := make([]float64, len(targets[i]))
		for j, tgt := range targets[i] {
			if tgt.MaskIndex < 0 || tgt.MaskIndex >= len(maskPos) {
				return nil, fmt.Errorf("score: %q has %d masks, target wants index %d",
					texts[i], len(maskPos), tgt.MaskIndex)
			}
			lp, err := LogProb(logits[i][maskPos[tgt.MaskIndex]], tgt.TokenID)
			if err != nil {
				return nil, fmt.Errorf("score: %q: %w", texts[i], err)
			}
			probs[j] = lp
		}
		out[i] = probs
	}
	return out, nil
}

// ForwardChunks runs the batch through the model in chunkSize slices,
// observing ctx between slices. chunkSize <= 0 uses the scorer's batch size.
func (s *Scorer) ForwardChunks(ctx context.Context, batch []lm.Encoding, chunkSize int) ([][][]float32, error) {
	if chunkSize <= 0 {
		chunkSize = s.batchSize
	}
	out := make([][][]float32, 0, len(batch))
	for start := 0; start < len(batch); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+chunkSize, len(batch))
		logits, err := s.model.Forward(ctx, batch[start:end])
		if err != nil {
			return nil, fmt.Errorf("score: forward rows %d..%d: %w", start, end, err)
		}
		if len(logits) != end-start {
			return nil, fmt.Errorf("score: forward returned %d rows for %d encodings", len(logits), end-start)
		}
		out = append(out, logits...)
	}
	return out, nil
}
