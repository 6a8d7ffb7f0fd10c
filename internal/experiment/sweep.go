package experiment

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/relprobe/relprobe/internal/template"
)

// Grid describes a hyperparameter sweep: one list per axis, expanded to the
// cartesian product of configs. Model and length come from the runner's
// scorer, never from the grid.
type Grid struct {
	Data          []string   `yaml:"data"`
	ScoringMethod []string   `yaml:"scoring_method"`
	TemplateTypes [][]string `yaml:"template_types"`

	PositivePermutationAggregation []string  `yaml:"positive_permutation_aggregation"`
	NegativePermutationAggregation []string  `yaml:"negative_permutation_aggregation"`
	NegativePermutationWeight      []float64 `yaml:"negative_permutation_weight"`
	PPLPMIAggregation              []string  `yaml:"ppl_pmi_aggregation"`
	PPLPMILambda                   []float64 `yaml:"ppl_pmi_lambda"`
	PMIAggregation                 []string  `yaml:"pmi_aggregation"`
	PMIFeldmanLambda               []float64 `yaml:"pmi_feldman_lambda"`

	BatchSize int  `yaml:"batch_size"`
	Test      bool `yaml:"test"`
}

// LoadGrid reads a sweep description from a YAML file.
func LoadGrid(path string) (Grid, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Grid{}, fmt.Errorf("experiment: %w", err)
	}
	var g Grid
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return Grid{}, fmt.Errorf("experiment: decode grid %s: %w", path, err)
	}
	return g, nil
}

// Configs expands the grid. Data and scoring method axes are mandatory;
// every other empty axis collapses to its default.
func (g Grid) Configs() ([]Config, error) {
	if len(g.Data) == 0 {
		return nil, fmt.Errorf("experiment: grid names no data")
	}
	if len(g.ScoringMethod) == 0 {
		return nil, fmt.Errorf("experiment: grid names no scoring_method")
	}
	out := []Config{{BatchSize: g.BatchSize, Test: g.Test}}
	out = expand(out, g.Data, func(c *Config, v string) { c.Data = v })
	out = expand(out, g.ScoringMethod, func(c *Config, v string) { c.ScoringMethod = v })
	out = expand(out, axis(g.TemplateTypes, []string{string(template.IsToAs)}), func(c *Config, v []string) { c.TemplateTypes = v })
	out = expand(out, axis(g.PositivePermutationAggregation, "mean"), func(c *Config, v string) { c.PositivePermutationAggregation = v })
	out = expand(out, axis(g.NegativePermutationAggregation, "mean"), func(c *Config, v string) { c.NegativePermutationAggregation = v })
	out = expand(out, axis(g.NegativePermutationWeight, 1), func(c *Config, v float64) { c.NegativePermutationWeight = v })
	out = expand(out, axis(g.PPLPMIAggregation, "mean"), func(c *Config, v string) { c.PPLPMIAggregation = v })
	out = expand(out, axis(g.PPLPMILambda, 1), func(c *Config, v float64) { c.PPLPMILambda = v })
	out = expand(out, axis(g.PMIAggregation, "mean"), func(c *Config, v string) { c.PMIAggregation = v })
	out = expand(out, axis(g.PMIFeldmanLambda, 1), func(c *Config, v float64) { c.PMIFeldmanLambda = v })
	return out, nil
}

// expand crosses the configs built so far with one axis.
func expand[T any](in []Config, vals []T, set func(*Config, T)) []Config {
	out := make([]Config, 0, len(in)*len(vals))
	for _, c := range in {
		for _, v := range vals {
			next := c
			set(&next, v)
			out = append(out, next)
		}
	}
	return out
}

func axis[T any](vals []T, def T) []T {
	if len(vals) > 0 {
		return vals
	}
	return []T{def}
}

// Sweep runs every config the grid expands to, in order. Stored runs are
// reused unless opts.Overwrite is set.
func (r *Runner) Sweep(ctx context.Context, grid Grid, opts RunOptions) ([]Run, error) {
	cfgs, err := grid.Configs()
	if err != nil {
		return nil, err
	}
	r.log.Info("sweep", "configs", len(cfgs))
	runs := make([]Run, 0, len(cfgs))
	for _, cfg := range cfgs {
		run, err := r.AnalogyTest(ctx, cfg, opts)
		if err != nil {
			return runs, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}
