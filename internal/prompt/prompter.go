// Package prompt mines natural-language sentences that express the relation
// between a word pair. A seed template embeds the pair between mask tokens;
// the mask positions are then filled one token per step with the masked
// model's most plausible predictions, and the finished sentence is polished
// by a fixed number of token-wise revision passes. Candidates that drop the
// head or tail word are discarded, so the pair always survives into the
// mined sentence.
package prompt

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/relprobe/relprobe/internal/lm"
	"github.com/relprobe/relprobe/internal/logger"
	"github.com/relprobe/relprobe/internal/score"
)

const defaultBatchSize = 4

// Pair is a head/tail word pair whose relation gets mined.
type Pair struct {
	Head string `json:"head"`
	Tail string `json:"tail"`
}

func (p Pair) String() string { return p.Head + ":" + p.Tail }

// Result carries the mined sentences and the edit trail that produced them.
// History holds, per pair, the seed and each intermediate fill except the
// one that cleared the last mask, followed by every revision.
type Result struct {
	Pairs     []Pair     `json:"pairs"`
	Sentences []string   `json:"sentences"`
	History   [][]string `json:"history"`
}

// PrompterOptions configure construction. Zero values pick defaults; the
// batch size here is the default for calls that do not set their own.
type PrompterOptions struct {
	BatchSize int
	MemoSize  int
	Logger    logger.Logger
}

// Prompter drives seed construction and the fill-and-revise loop against a
// masked-LM collaborator.
type Prompter struct {
	tok    lm.Tokenizer
	scorer *score.Scorer
	info   lm.Info
	log    logger.Logger
	batch  int
	strip  []string
}

// New wires a tokenizer and model into a Prompter. Causal collaborators are
// rejected; mining needs bidirectional mask filling.
func New(tok lm.Tokenizer, model lm.Model, opts PrompterOptions) (*Prompter, error) {
	info := tok.Info()
	if !info.Masked() {
		return nil, fmt.Errorf("prompt: model %s is %s: %w", info.Model, info.Kind, lm.ErrCausalModel)
	}
	if info.MaskToken == "" {
		return nil, fmt.Errorf("prompt: model %s reports no mask token", info.Model)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	scorer, err := score.NewScorer(tok, model, score.ScorerOptions{
		BatchSize: opts.BatchSize,
		MemoSize:  opts.MemoSize,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	// Longer tokens strip first so no special survives as a fragment of
	// another.
	strip := make([]string, 0, len(info.SpecialTokens))
	for _, sp := range info.SpecialTokens {
		if sp != "" && sp != info.MaskToken {
			strip = append(strip, sp)
		}
	}
	sort.Slice(strip, func(i, j int) bool { return len(strip[i]) > len(strip[j]) })

	return &Prompter{
		tok:    tok,
		scorer: scorer,
		info:   info,
		log:    opts.Logger,
		batch:  opts.BatchSize,
		strip:  strip,
	}, nil
}

// PairToSeed renders the seed sentence a pair's mining starts from.
func (p *Prompter) PairToSeed(ctx context.Context, pair Pair, opts SeedOptions) (string, error) {
	return p.seed(ctx, pair, resolveSeed(opts, p.batch))
}

func (p *Prompter) seed(ctx context.Context, pair Pair, req seedRequest) (string, error) {
	mask := p.info.MaskToken
	switch req.kind {
	case SeedMiddle:
		words := append([]string{pair.Head}, masks(mask, req.blanks)...)
		words = append(words, pair.Tail)
		return strings.Join(words, " "), nil
	case SeedWhole:
		words := append(masks(mask, req.prefixBlanks), pair.Head)
		words = append(words, masks(mask, req.blanks)...)
		words = append(words, pair.Tail)
		words = append(words, masks(mask, req.suffixBlanks)...)
		return strings.Join(words, " "), nil
	case SeedBest:
		return p.bestSeed(ctx, pair, req)
	}
	return "", fmt.Errorf("prompt: unknown seed kind %q", req.kind)
}

// bestSeed searches layouts of the form MASK*pre head MASK*mid tail for the
// one with the lowest conditional perplexity. The search grid is bounded so
// that every candidate fits the model window.
func (p *Prompter) bestSeed(ctx context.Context, pair Pair, req seedRequest) (string, error) {
	headLen, err := p.wordLen(ctx, pair.Head)
	if err != nil {
		return "", err
	}
	tailLen, err := p.wordLen(ctx, pair.Tail)
	if err != nil {
		return "", err
	}
	budget := p.info.MaxLength - 1 - len(p.info.PrefixIDs) - len(p.info.SuffixIDs) - headLen - tailLen
	if budget < 1 {
		return "", fmt.Errorf("prompt: pair %s leaves no room for blanks in a %d-token window: %w",
			pair, p.info.MaxLength, lm.ErrSequenceTooLong)
	}

	mask := p.info.MaskToken
	var cands []string
	for pre := 0; pre <= budget-1; pre++ {
		for mid := 1; mid <= budget-pre; mid++ {
			words := append(masks(mask, pre), pair.Head)
			words = append(words, masks(mask, mid)...)
			words = append(words, pair.Tail)
			cands = append(cands, strings.Join(words, " "))
		}
	}
	p.log.Debug("searching seed layouts", "pair", pair.String(), "candidates", len(cands))

	ppl, err := p.scorer.Perplexity(ctx, cands)
	if err != nil {
		return "", err
	}
	best := 0
	for i, v := range ppl {
		if v < ppl[best] {
			best = i
		}
	}
	return cands[best], nil
}

// Mine runs the fill-and-revise loop over the pairs: seeds are filled one
// mask per step until none remain, then revised for a fixed number of
// passes. The returned history is per pair.
func (p *Prompter) Mine(ctx context.Context, pairs []Pair, opts Options) (*Result, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("prompt: no pairs to mine")
	}
	req := resolveMine(opts, p.batch)

	sentences := make([]string, len(pairs))
	for i, pair := range pairs {
		s, err := p.seed(ctx, pair, req.seedRequest)
		if err != nil {
			return nil, err
		}
		sentences[i] = s
	}

	p.log.Info("filling masked tokens", "pairs", len(pairs), "seed", string(req.kind))
	steps := [][]string{slices.Clone(sentences)}
	for {
		next, err := p.fillStep(ctx, pairs, sentences, req)
		if err != nil {
			return nil, err
		}
		sentences = next
		if !p.anyMasked(sentences) {
			break
		}
		steps = append(steps, slices.Clone(sentences))
	}

	p.log.Info("revising sentences", "steps", req.revisions)
	for r := 0; r < req.revisions; r++ {
		next, err := p.fillStep(ctx, pairs, sentences, req)
		if err != nil {
			return nil, err
		}
		sentences = next
		steps = append(steps, slices.Clone(sentences))
	}

	return &Result{
		Pairs:     slices.Clone(pairs),
		Sentences: sentences,
		History:   transpose(steps, len(pairs)),
	}, nil
}

// fillStep advances every sentence by one edit. Sentences still holding a
// mask are encoded as-is and get their best fill; mask-free sentences are
// token-wise masked so every position competes for a revision. Exactly one
// token changes per sentence.
func (p *Prompter) fillStep(ctx context.Context, pairs []Pair, sentences []string, req mineRequest) ([]string, error) {
	groups := make([][]lm.Encoding, len(sentences))
	for i, sent := range sentences {
		if strings.Contains(sent, p.info.MaskToken) {
			enc, err := p.tok.Encode(ctx, sent)
			if err != nil {
				return nil, fmt.Errorf("prompt: encode %q: %w", sent, err)
			}
			groups[i] = []lm.Encoding{enc}
			continue
		}
		variants, err := p.scorer.MaskEachPosition(ctx, sent)
		if err != nil {
			return nil, err
		}
		if len(variants) == 0 {
			return nil, fmt.Errorf("prompt: %q has nothing left to revise", sent)
		}
		groups[i] = variants
	}

	flat, spans := lm.Flatten(groups)
	logits, err := p.scorer.ForwardChunks(ctx, flat, req.batchSize)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(sentences))
	for i := range sentences {
		cands, err := p.candidates(ctx, pairs[i], flat, logits, spans[i], req.topKPerPosition)
		if err != nil {
			return nil, err
		}
		if len(cands) == 0 {
			return nil, &NoCandidatesError{Pair: pairs[i]}
		}
		sort.SliceStable(cands, func(a, b int) bool { return cands[a].logit > cands[b].logit })
		if len(cands) > req.topK {
			cands = cands[:req.topK]
		}
		texts := make([]string, len(cands))
		for j, c := range cands {
			texts[j] = c.text
		}
		p.log.Debug("fill candidates", "pair", pairs[i].String(), "kept", len(texts))

		if !req.perplexityFilter {
			out[i] = texts[0]
			continue
		}
		ppl, err := p.scorer.Perplexity(ctx, texts)
		if err != nil {
			return nil, err
		}
		best := 0
		for j, v := range ppl {
			if v < ppl[best] {
				best = j
			}
		}
		out[i] = texts[best]
	}
	return out, nil
}

type candidate struct {
	text  string
	logit float64
}

// candidates decodes the top predictions at every masked position of the
// span's rows, keeping the ones that still carry the pair. Predictions of
// the mask token itself are skipped; accepting them would stall the fill
// loop.
func (p *Prompter) candidates(ctx context.Context, pair Pair, flat []lm.Encoding, logits [][][]float32, span [2]int, perPosition int) ([]candidate, error) {
	var out []candidate
	for row := span[0]; row < span[1]; row++ {
		enc := flat[row]
		n := enc.Length()
		for pos := 0; pos < n; pos++ {
			if enc.IDs[pos] != p.info.MaskID {
				continue
			}
			for _, pred := range score.TopK(logits[row][pos], perPosition) {
				if pred.ID == p.info.MaskID {
					continue
				}
				ids := append([]int(nil), enc.IDs[:n]...)
				ids[pos] = pred.ID
				decoded, err := p.tok.Decode(ctx, ids)
				if err != nil {
					return nil, fmt.Errorf("prompt: decode fill for %s: %w", pair, err)
				}
				text := p.cleanupDecode(decoded)
				if strings.Contains(text, pair.Head) && strings.Contains(text, pair.Tail) {
					out = append(out, candidate{text: text, logit: float64(pred.Logit)})
				}
			}
		}
	}
	return out, nil
}

var spaceRun = regexp.MustCompile(`\s+`)

// cleanupDecode strips special tokens from a decoded candidate and
// collapses whitespace runs. The mask token survives, spaced apart so the
// fill loop can still find it as a word of its own.
func (p *Prompter) cleanupDecode(s string) string {
	mask := p.info.MaskToken
	s = strings.ReplaceAll(s, mask, " "+mask+" ")
	for _, sp := range p.strip {
		s = strings.ReplaceAll(s, sp, "")
	}
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func (p *Prompter) anyMasked(sentences []string) bool {
	for _, s := range sentences {
		if strings.Contains(s, p.info.MaskToken) {
			return true
		}
	}
	return false
}

func (p *Prompter) wordLen(ctx context.Context, word string) (int, error) {
	toks, err := p.tok.Tokenize(ctx, word)
	if err != nil {
		return 0, fmt.Errorf("prompt: tokenize %q: %w", word, err)
	}
	if len(toks) == 0 {
		return 0, fmt.Errorf("prompt: %q tokenizes to nothing", word)
	}
	return len(toks), nil
}

func masks(mask string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = mask
	}
	return out
}

func transpose(steps [][]string, n int) [][]string {
	out := make([][]string, n)
	for i := range out {
		row := make([]string, len(steps))
		for j, step := range steps {
			row[j] = step[i]
		}
		out[i] = row
	}
	return out
}
