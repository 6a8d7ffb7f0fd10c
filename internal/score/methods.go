package score

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/relprobe/relprobe/internal/template"
)

// Method names an analogy scoring method. All methods return scores where
// higher means the choice fits the stem better.
type Method string

const (
	// MethodPPL ranks by the perplexity of the rendered sentence.
	MethodPPL Method = "ppl"
	// MethodPPLHeadMasked hides the stem head, scoring the hypothesis side.
	MethodPPLHeadMasked Method = "ppl_head_masked"
	// MethodPPLTailMasked hides the stem tail.
	MethodPPLTailMasked Method = "ppl_tail_masked"
	// MethodPPLAddMasked sums the head-masked and tail-masked perplexities.
	MethodPPLAddMasked Method = "ppl_add_masked"
	// MethodPPLBasedPMI contrasts the full perplexity with the stem- and
	// choice-marginalized ones in log space.
	MethodPPLBasedPMI Method = "ppl_based_pmi"
	// MethodPMIFeldman is token-level PMI of the hypothesis pair: the
	// conditional log-probability of each tail subtoken minus its
	// probability with the pair head also hidden.
	MethodPMIFeldman Method = "pmi_feldman"
	// MethodPPLHypothesisBias debiases the full perplexity by the
	// hypothesis-only perplexity.
	MethodPPLHypothesisBias Method = "ppl_hypothesis_bias"
	// MethodPPLMarginalBias debiases the full perplexity by the
	// choice-marginalized perplexity.
	MethodPPLMarginalBias Method = "ppl_marginal_bias"
)

// Methods returns every scoring method in a stable order.
func Methods() []Method {
	return []Method{
		MethodPPL,
		MethodPPLHeadMasked,
		MethodPPLTailMasked,
		MethodPPLAddMasked,
		MethodPPLBasedPMI,
		MethodPMIFeldman,
		MethodPPLHypothesisBias,
		MethodPPLMarginalBias,
	}
}

// ParseMethod validates a scoring method name.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	for _, known := range Methods() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("score: unknown scoring method %q", s)
}

// Options carries the weights and aggregation names applied when folding
// primitives into a choice score. Inference does not depend on them, so a
// cached primitive set can be refolded under different Options.
type Options struct {
	// PositiveAggregation reduces the 8 validity-preserving permutation
	// scores. Default "mean".
	PositiveAggregation string
	// NegativeAggregation reduces the 12 violating permutation scores.
	// Default "mean"; only consulted when NegativeWeight is nonzero.
	NegativeAggregation string
	// NegativeWeight scales the subtracted negative aggregate.
	NegativeWeight float64
	// PPLPMIAggregation reduces the two ppl_based_pmi contrasts. Default
	// "mean".
	PPLPMIAggregation string
	// PMIAggregation reduces pmi_feldman's per-subtoken values. Default
	// "mean".
	PMIAggregation string
	// PPLPMILambda weights the marginal term of ppl_based_pmi and both
	// bias methods. Default 1.
	PPLPMILambda *float64
	// PMIFeldmanLambda weights pmi_feldman's marginal term. Default 1.
	PMIFeldmanLambda *float64
	// Prefix, when set, is prepended to every rendered sentence.
	Prefix string
}

func (o Options) resolve() Options {
	if o.PositiveAggregation == "" {
		o.PositiveAggregation = "mean"
	}
	if o.NegativeAggregation == "" {
		o.NegativeAggregation = "mean"
	}
	if o.PPLPMIAggregation == "" {
		o.PPLPMIAggregation = "mean"
	}
	if o.PMIAggregation == "" {
		o.PMIAggregation = "mean"
	}
	if o.PPLPMILambda == nil {
		one := 1.0
		o.PPLPMILambda = &one
	}
	if o.PMIFeldmanLambda == nil {
		one := 1.0
		o.PMIFeldmanLambda = &one
	}
	return o
}

// PermutationScore holds the model-derived primitives for one permutation of
// one template. Which fields are set depends on the method that produced it.
type PermutationScore struct {
	Full         float64   `json:"full,omitempty"`
	HeadMasked   float64   `json:"head_masked,omitempty"`
	TailMasked   float64   `json:"tail_masked,omitempty"`
	StemMasked   float64   `json:"stem_masked,omitempty"`
	ChoiceMasked float64   `json:"choice_masked,omitempty"`
	Cond         []float64 `json:"cond,omitempty"`
	Marg         []float64 `json:"marg,omitempty"`
}

// TemplatePrimitives is the full permutation grid for one template kind.
type TemplatePrimitives struct {
	Template template.Kind      `json:"template"`
	Positive []PermutationScore `json:"positive"`
	Negative []PermutationScore `json:"negative"`
}

// pplField selects which masked rendering of a sentence a perplexity value
// describes.
type pplField int

const (
	fieldFull pplField = iota
	fieldHead
	fieldTail
	fieldStem
	fieldChoice
)

func pplFields(m Method) []pplField {
	switch m {
	case MethodPPL:
		return []pplField{fieldFull}
	case MethodPPLHeadMasked:
		return []pplField{fieldHead}
	case MethodPPLTailMasked:
		return []pplField{fieldTail}
	case MethodPPLAddMasked:
		return []pplField{fieldHead, fieldTail}
	case MethodPPLBasedPMI:
		return []pplField{fieldFull, fieldStem, fieldChoice}
	case MethodPPLHypothesisBias:
		return []pplField{fieldFull, fieldStem}
	case MethodPPLMarginalBias:
		return []pplField{fieldFull, fieldChoice}
	}
	return nil
}

func (f pplField) maskSlots() []int {
	switch f {
	case fieldHead:
		return []int{0}
	case fieldTail:
		return []int{1}
	case fieldStem:
		return []int{0, 1}
	case fieldChoice:
		return []int{2, 3}
	}
	return nil
}

func (ps *PermutationScore) set(f pplField, v float64) {
	switch f {
	case fieldFull:
		ps.Full = v
	case fieldHead:
		ps.HeadMasked = v
	case fieldTail:
		ps.TailMasked = v
	case fieldStem:
		ps.StemMasked = v
	case fieldChoice:
		ps.ChoiceMasked = v
	}
}

// Primitives computes the permutation grid for one stem/choice pair under
// every given template, batching all collaborator work per template. The
// result is independent of Options and safe to cache.
func (s *Scorer) Primitives(ctx context.Context, method Method, stem, choice [2]string, kinds []template.Kind, prefix string) ([]TemplatePrimitives, error) {
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("score: no templates given")
	}
	quad := [4]string{stem[0], stem[1], choice[0], choice[1]}
	counts, err := s.subtokenCounts(ctx, quad)
	if err != nil {
		return nil, err
	}

	perms := make([][4]int, 0, len(PositivePermutations)+len(NegativePermutations))
	for _, p := range PositivePermutations {
		perms = append(perms, p)
	}
	for _, p := range NegativePermutations {
		perms = append(perms, p)
	}

	out := make([]TemplatePrimitives, 0, len(kinds))
	for _, kind := range kinds {
		var scores []PermutationScore
		if method == MethodPMIFeldman {
			scores, err = s.feldmanGrid(ctx, kind, quad, perms, counts, prefix)
		} else {
			scores, err = s.perplexityGrid(ctx, method, kind, quad, perms, counts, prefix)
		}
		if err != nil {
			return nil, fmt.Errorf("score: template %s: %w", kind, err)
		}
		out = append(out, TemplatePrimitives{
			Template: kind,
			Positive: scores[:len(PositivePermutations)],
			Negative: scores[len(PositivePermutations):],
		})
	}
	return out, nil
}

// perplexityGrid renders every (permutation, field) sentence for one
// template and scores them in a single batched perplexity call.
func (s *Scorer) perplexityGrid(ctx context.Context, method Method, kind template.Kind, quad [4]string, perms [][4]int, counts map[string]int, prefix string) ([]PermutationScore, error) {
	fields := pplFields(method)
	texts := make([]string, 0, len(perms)*len(fields))
	for _, perm := range perms {
		permuted := Permute(quad, perm)
		for _, f := range fields {
			text, err := s.renderMasked(kind, permuted, f.maskSlots(), counts, prefix)
			if err != nil {
				return nil, err
			}
			texts = append(texts, text)
		}
	}
	ppls, err := s.Perplexity(ctx, texts)
	if err != nil {
		return nil, err
	}
	scores := make([]PermutationScore, len(perms))
	for pi := range perms {
		for fi, f := range fields {
			scores[pi].set(f, ppls[pi*len(fields)+fi])
		}
	}
	return scores, nil
}

// feldmanGrid computes, per permutation, the conditional and marginal
// log-probabilities of the hypothesis tail's subtokens: tail masked alone,
// then head and tail masked together.
func (s *Scorer) feldmanGrid(ctx context.Context, kind template.Kind, quad [4]string, perms [][4]int, counts map[string]int, prefix string) ([]PermutationScore, error) {
	texts := make([]string, 0, len(perms)*2)
	targets := make([][]MaskTarget, 0, len(perms)*2)
	for _, perm := range perms {
		permuted := Permute(quad, perm)
		tailIDs, err := s.wordIDs(ctx, permuted[3])
		if err != nil {
			return nil, err
		}
		nHead := counts[permuted[2]]

		cond, err := s.renderMasked(kind, permuted, []int{3}, counts, prefix)
		if err != nil {
			return nil, err
		}
		condTargets := make([]MaskTarget, len(tailIDs))
		for j, id := range tailIDs {
			condTargets[j] = MaskTarget{MaskIndex: j, TokenID: id}
		}

		marg, err := s.renderMasked(kind, permuted, []int{2, 3}, counts, prefix)
		if err != nil {
			return nil, err
		}
		margTargets := make([]MaskTarget, len(tailIDs))
		for j, id := range tailIDs {
			margTargets[j] = MaskTarget{MaskIndex: nHead + j, TokenID: id}
		}

		texts = append(texts, cond, marg)
		targets = append(targets, condTargets, margTargets)
	}
	probs, err := s.MaskedLogProbs(ctx, texts, targets)
	if err != nil {
		return nil, err
	}
	scores := make([]PermutationScore, len(perms))
	for pi := range perms {
		scores[pi].Cond = probs[pi*2]
		scores[pi].Marg = probs[pi*2+1]
	}
	return scores, nil
}

// renderMasked renders the template with the words in maskSlots replaced by
// one mask token per subtoken.
func (s *Scorer) renderMasked(kind template.Kind, quad [4]string, maskSlots []int, counts map[string]int, prefix string) (string, error) {
	mask := s.tok.Info().MaskToken
	for _, slot := range maskSlots {
		n := counts[quad[slot]]
		quad[slot] = strings.TrimSpace(strings.Repeat(mask+" ", n))
	}
	text, err := template.Render(kind, quad)
	if err != nil {
		return "", err
	}
	if prefix != "" {
		text = prefix + " " + text
	}
	return text, nil
}

// subtokenCounts tokenizes each distinct word once and records how many
// subtokens it spans.
func (s *Scorer) subtokenCounts(ctx context.Context, quad [4]string) (map[string]int, error) {
	counts := make(map[string]int, 4)
	for _, w := range quad {
		if _, ok := counts[w]; ok {
			continue
		}
		ids, err := s.wordIDs(ctx, w)
		if err != nil {
			return nil, err
		}
		counts[w] = len(ids)
	}
	return counts, nil
}

func (s *Scorer) wordIDs(ctx context.Context, word string) ([]int, error) {
	toks, err := s.tok.Tokenize(ctx, word)
	if err != nil {
		return nil, fmt.Errorf("score: tokenize word %q: %w", word, err)
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("score: word %q tokenizes to nothing", word)
	}
	ids := make([]int, len(toks))
	for i, t := range toks {
		ids[i] = t.ID
	}
	return ids, nil
}

// methodScore folds one permutation's primitives into a single higher-is-
// better value under the given options.
func methodScore(m Method, ps PermutationScore, opts Options) (float64, error) {
	switch m {
	case MethodPPL:
		return -ps.Full, nil
	case MethodPPLHeadMasked:
		return -ps.HeadMasked, nil
	case MethodPPLTailMasked:
		return -ps.TailMasked, nil
	case MethodPPLAddMasked:
		return -(ps.HeadMasked + ps.TailMasked), nil
	case MethodPPLBasedPMI:
		full := math.Log(ps.Full)
		contrasts := []float64{
			math.Log(ps.StemMasked) - *opts.PPLPMILambda*full,
			math.Log(ps.ChoiceMasked) - *opts.PPLPMILambda*full,
		}
		return Aggregate(opts.PPLPMIAggregation, contrasts)
	case MethodPMIFeldman:
		if len(ps.Cond) == 0 || len(ps.Cond) != len(ps.Marg) {
			return 0, fmt.Errorf("score: pmi primitives have %d conditional and %d marginal values", len(ps.Cond), len(ps.Marg))
		}
		pmi := make([]float64, len(ps.Cond))
		for j := range ps.Cond {
			pmi[j] = ps.Cond[j] - *opts.PMIFeldmanLambda*ps.Marg[j]
		}
		return Aggregate(opts.PMIAggregation, pmi)
	case MethodPPLHypothesisBias:
		return -ps.Full + *opts.PPLPMILambda*ps.StemMasked, nil
	case MethodPPLMarginalBias:
		return -ps.Full + *opts.PPLPMILambda*ps.ChoiceMasked, nil
	}
	return 0, fmt.Errorf("score: unknown scoring method %q", m)
}

// ChoiceScore folds a primitive grid into one number: per template, the
// positive permutation aggregate minus the weighted negative aggregate, then
// the mean across templates. It performs no inference.
func ChoiceScore(method Method, prims []TemplatePrimitives, opts Options) (float64, error) {
	if len(prims) == 0 {
		return 0, fmt.Errorf("score: no primitives to fold")
	}
	opts = opts.resolve()

	var sum float64
	for _, tp := range prims {
		if len(tp.Positive) == 0 {
			return 0, fmt.Errorf("score: template %s has no positive permutation scores", tp.Template)
		}
		pos := make([]float64, len(tp.Positive))
		for i, ps := range tp.Positive {
			v, err := methodScore(method, ps, opts)
			if err != nil {
				return 0, err
			}
			pos[i] = v
		}
		value, err := Aggregate(opts.PositiveAggregation, pos)
		if err != nil {
			return 0, err
		}
		if opts.NegativeWeight != 0 && len(tp.Negative) > 0 {
			neg := make([]float64, len(tp.Negative))
			for i, ps := range tp.Negative {
				v, err := methodScore(method, ps, opts)
				if err != nil {
					return 0, err
				}
				neg[i] = v
			}
			nv, err := Aggregate(opts.NegativeAggregation, neg)
			if err != nil {
				return 0, err
			}
			value -= opts.NegativeWeight * nv
		}
		sum += value
	}
	return sum / float64(len(prims)), nil
}
