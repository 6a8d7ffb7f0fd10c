// Package experiment runs analogy benchmarks: it renders questions through
// relation templates, scores every permutation of every choice pair against
// the collaborator model, aggregates per configuration, and persists runs
// with their accuracy. Raw permutation scores are cached in sqlite so that
// aggregation sweeps re-evaluate without touching the model.
package experiment

import (
	"fmt"
	"slices"

	"github.com/relprobe/relprobe/internal/score"
	"github.com/relprobe/relprobe/internal/template"
)

// Config is the flat description of one run, serialized verbatim to
// config.json. Every scoring knob is recorded whether or not the method
// reads it, so summary rows always carry the same columns.
type Config struct {
	Model         string   `json:"model" yaml:"model"`
	MaxLength     int      `json:"max_length" yaml:"max_length"`
	Data          string   `json:"data" yaml:"data"`
	PathToData    string   `json:"path_to_data" yaml:"path_to_data,omitempty"`
	TemplateTypes []string `json:"template_types" yaml:"template_types"`
	ScoringMethod string   `json:"scoring_method" yaml:"scoring_method"`

	PositivePermutationAggregation string  `json:"positive_permutation_aggregation" yaml:"positive_permutation_aggregation"`
	NegativePermutationAggregation string  `json:"negative_permutation_aggregation" yaml:"negative_permutation_aggregation"`
	NegativePermutationWeight      float64 `json:"negative_permutation_weight" yaml:"negative_permutation_weight"`
	PPLPMIAggregation              string  `json:"ppl_pmi_aggregation" yaml:"ppl_pmi_aggregation"`
	PPLPMILambda                   float64 `json:"ppl_pmi_lambda" yaml:"ppl_pmi_lambda"`
	PMIAggregation                 string  `json:"pmi_aggregation" yaml:"pmi_aggregation"`
	PMIFeldmanLambda               float64 `json:"pmi_feldman_lambda" yaml:"pmi_feldman_lambda"`

	BatchSize int  `json:"batch_size" yaml:"batch_size,omitempty"`
	Test      bool `json:"test" yaml:"test"`
}

// DefaultConfig returns a runnable starting point: perplexity scoring on
// the is-to-as template with mean aggregations and unit weights.
func DefaultConfig() Config {
	return Config{
		MaxLength:                      32,
		TemplateTypes:                  []string{string(template.IsToAs)},
		ScoringMethod:                  string(score.MethodPPL),
		PositivePermutationAggregation: "mean",
		NegativePermutationAggregation: "mean",
		NegativePermutationWeight:      1,
		PPLPMIAggregation:              "mean",
		PPLPMILambda:                   1,
		PMIAggregation:                 "mean",
		PMIFeldmanLambda:               1,
		BatchSize:                      32,
	}
}

// Normalize fills the aggregation names a config left empty. Numeric knobs
// are left alone; zero is a legitimate lambda.
func (c *Config) Normalize() {
	if c.PositivePermutationAggregation == "" {
		c.PositivePermutationAggregation = "mean"
	}
	if c.NegativePermutationAggregation == "" {
		c.NegativePermutationAggregation = "mean"
	}
	if c.PPLPMIAggregation == "" {
		c.PPLPMIAggregation = "mean"
	}
	if c.PMIAggregation == "" {
		c.PMIAggregation = "mean"
	}
}

// Validate reports the first structural problem with the config.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("experiment: config names no model")
	}
	if c.MaxLength <= 0 {
		return fmt.Errorf("experiment: max_length %d", c.MaxLength)
	}
	if c.Data == "" && c.PathToData == "" {
		return fmt.Errorf("experiment: config names neither data nor path_to_data")
	}
	if len(c.TemplateTypes) == 0 {
		return fmt.Errorf("experiment: config names no template_types")
	}
	if _, err := c.Templates(); err != nil {
		return err
	}
	if _, err := score.ParseMethod(c.ScoringMethod); err != nil {
		return fmt.Errorf("experiment: %w", err)
	}
	return nil
}

// Templates parses the configured template type names.
func (c Config) Templates() ([]template.Kind, error) {
	kinds := make([]template.Kind, len(c.TemplateTypes))
	for i, s := range c.TemplateTypes {
		k, err := template.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("experiment: %w", err)
		}
		kinds[i] = k
	}
	return kinds, nil
}

// Equal reports whether two configs describe the same run. BatchSize is an
// execution detail, not run identity.
func (c Config) Equal(o Config) bool {
	return c.Model == o.Model &&
		c.MaxLength == o.MaxLength &&
		c.Data == o.Data &&
		c.PathToData == o.PathToData &&
		slices.Equal(c.TemplateTypes, o.TemplateTypes) &&
		c.ScoringMethod == o.ScoringMethod &&
		c.PositivePermutationAggregation == o.PositivePermutationAggregation &&
		c.NegativePermutationAggregation == o.NegativePermutationAggregation &&
		c.NegativePermutationWeight == o.NegativePermutationWeight &&
		c.PPLPMIAggregation == o.PPLPMIAggregation &&
		c.PPLPMILambda == o.PPLPMILambda &&
		c.PMIAggregation == o.PMIAggregation &&
		c.PMIFeldmanLambda == o.PMIFeldmanLambda &&
		c.Test == o.Test
}

func (c Config) scoreOptions() score.Options {
	return score.Options{
		PositiveAggregation: c.PositivePermutationAggregation,
		NegativeAggregation: c.NegativePermutationAggregation,
		NegativeWeight:      c.NegativePermutationWeight,
		PPLPMIAggregation:   c.PPLPMIAggregation,
		PMIAggregation:      c.PMIAggregation,
		PPLPMILambda:        &c.PPLPMILambda,
		PMIFeldmanLambda:    &c.PMIFeldmanLambda,
	}
}
