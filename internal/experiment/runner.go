package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/relprobe/relprobe/internal/dataset"
	"github.com/relprobe/relprobe/internal/logger"
	"github.com/relprobe/relprobe/internal/score"
	"github.com/relprobe/relprobe/internal/template"
)

// ErrMissingScores reports a cache miss while inference is disabled.
var ErrMissingScores = errors.New("scores missing from cache")

// Runner evaluates configs against one scorer. The scorer fixes the model
// and length budget; configs supply everything else.
type Runner struct {
	scorer  *score.Scorer
	store   *Store
	dataDir string
	log     logger.Logger
}

type RunnerOptions struct {
	// DataDir holds the named benchmark sets, one directory per name with
	// valid.jsonl and test.jsonl inside. Defaults to "data".
	DataDir string
	Logger  logger.Logger
}

func NewRunner(scorer *score.Scorer, store *Store, opts RunnerOptions) *Runner {
	r := &Runner{scorer: scorer, store: store, dataDir: "data", log: logger.Default()}
	if opts.DataDir != "" {
		r.dataDir = opts.DataDir
	}
	if opts.Logger != nil {
		r.log = opts.Logger
	}
	return r
}

type RunOptions struct {
	// Overwrite reruns and replaces a stored run with an equal config
	// instead of returning it untouched.
	Overwrite bool
	// NoInference answers purely from the primitive cache and fails with
	// ErrMissingScores on any miss.
	NoInference bool
}

// AnalogyTest scores every question of the configured split, persists the
// run, and returns it. A run with an equal config short-circuits unless
// Overwrite is set.
func (r *Runner) AnalogyTest(ctx context.Context, cfg Config, opts RunOptions) (Run, error) {
	cfg.Normalize()
	if err := r.bindModel(&cfg); err != nil {
		return Run{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Run{}, err
	}

	if prev, err := r.store.Find(cfg); err != nil {
		return Run{}, err
	} else if prev != nil {
		if !opts.Overwrite {
			r.log.Info("run already stored", "run", prev.ID, "data", cfg.DataName(), "method", cfg.ScoringMethod)
			return *prev, nil
		}
		if err := r.store.Delete(prev.ID); err != nil {
			return Run{}, err
		}
	}

	questions, split, err := r.loadQuestions(cfg)
	if err != nil {
		return Run{}, err
	}
	method, err := score.ParseMethod(cfg.ScoringMethod)
	if err != nil {
		return Run{}, err
	}
	kinds, err := cfg.Templates()
	if err != nil {
		return Run{}, err
	}
	cache, err := OpenCache(r.store.CachePath(cfg))
	if err != nil {
		return Run{}, err
	}
	defer cache.Close()

	r.log.Info("analogy test",
		"data", cfg.DataName(), "split", split, "method", cfg.ScoringMethod,
		"templates", len(kinds), "questions", len(questions))

	sopts := cfg.scoreOptions()
	correct := 0
	scores := make([]QuestionScore, 0, len(questions))
	for qi, q := range questions {
		if err := ctx.Err(); err != nil {
			return Run{}, err
		}
		best, bestScore := -1, math.Inf(-1)
		values := make([]float64, len(q.Choices))
		for ci, choice := range q.Choices {
			prims, err := r.primitives(ctx, cache, method, split, qi, ci, q, choice, kinds, opts.NoInference)
			if err != nil {
				return Run{}, fmt.Errorf("experiment: question %d choice %d: %w", qi, ci, err)
			}
			val, err := score.ChoiceScore(method, prims, sopts)
			if err != nil {
				return Run{}, fmt.Errorf("experiment: question %d choice %d: %w", qi, ci, err)
			}
			values[ci] = val
			if val > bestScore {
				best, bestScore = ci, val
			}
		}
		if best == q.Answer {
			correct++
		}
		scores = append(scores, QuestionScore{Question: qi, Answer: q.Answer, Prediction: best, Scores: values})
	}

	acc := Accuracy{
		Accuracy: float64(correct) / float64(len(questions)),
		Correct:  correct,
		Total:    len(questions),
		Split:    split,
	}
	run, err := r.store.Save(cfg, acc)
	if err != nil {
		return Run{}, err
	}
	if err := r.store.WriteScores(run, scores); err != nil {
		return Run{}, err
	}
	r.log.Info("run complete", "run", run.ID, "accuracy", acc.Accuracy, "correct", correct, "total", acc.Total)
	return run, nil
}

// bindModel fills empty model fields from the scorer and rejects configs
// written for a different collaborator.
func (r *Runner) bindModel(cfg *Config) error {
	info := r.scorer.Info()
	if cfg.Model == "" {
		cfg.Model = info.Model
	} else if cfg.Model != info.Model {
		return fmt.Errorf("experiment: config names model %q, runner serves %q", cfg.Model, info.Model)
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = info.MaxLength
	} else if cfg.MaxLength != info.MaxLength {
		return fmt.Errorf("experiment: config max_length %d, model enforces %d", cfg.MaxLength, info.MaxLength)
	}
	return nil
}

func (r *Runner) loadQuestions(cfg Config) ([]dataset.Question, string, error) {
	split := "valid"
	file := dataset.ValidFile
	if cfg.Test {
		split = "test"
		file = dataset.TestFile
	}
	if cfg.PathToData != "" {
		qs, err := dataset.Load(cfg.PathToData)
		return qs, split, err
	}
	qs, err := dataset.Load(filepath.Join(r.dataDir, cfg.Data, file))
	return qs, split, err
}

// primitives returns one TemplatePrimitives per kind, from the cache where
// possible and from the model otherwise. The question's prefix rides along
// so prefixed datasets score the sentences they declare.
func (r *Runner) primitives(ctx context.Context, cache *Cache, method score.Method, split string, qi, ci int, q dataset.Question, choice [2]string, kinds []template.Kind, noInference bool) ([]score.TemplatePrimitives, error) {
	byKind := make(map[template.Kind]score.TemplatePrimitives, len(kinds))
	var missing []template.Kind
	for _, k := range kinds {
		key := ScoreKey{Method: string(method), Template: string(k), Split: split, Question: qi, Choice: ci}
		hit, err := cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			byKind[k] = *hit
			continue
		}
		missing = append(missing, k)
	}
	if len(missing) > 0 {
		if noInference {
			return nil, fmt.Errorf("%w: template %s", ErrMissingScores, missing[0])
		}
		fresh, err := r.scorer.Primitives(ctx, method, q.Stem, choice, missing, q.Prefix)
		if err != nil {
			return nil, err
		}
		for _, p := range fresh {
			key := ScoreKey{Method: string(method), Template: string(p.Template), Split: split, Question: qi, Choice: ci}
			if err := cache.Put(ctx, key, p); err != nil {
				return nil, err
			}
			byKind[p.Template] = p
		}
	}
	out := make([]score.TemplatePrimitives, 0, len(kinds))
	for _, k := range kinds {
		p, ok := byKind[k]
		if !ok {
			return nil, fmt.Errorf("experiment: no scores produced for template %s", k)
		}
		out = append(out, p)
	}
	return out, nil
}
