package experiment

import (
	"strings"
	"testing"
)

func TestConfigEqual(t *testing.T) {
	t.Parallel()
	base := DefaultConfig()
	base.Model = "lmtest-fake"
	base.Data = "sat"

	same := base
	same.BatchSize = 99
	if !base.Equal(same) {
		t.Fatal("batch size must not change run identity")
	}

	for name, mutate := range map[string]func(*Config){
		"test flag": func(c *Config) { c.Test = true },
		"lambda":    func(c *Config) { c.PPLPMILambda = 0.5 },
		"templates": func(c *Config) { c.TemplateTypes = []string{"rel-same"} },
		"method":    func(c *Config) { c.ScoringMethod = "pmi_feldman" },
		"data":      func(c *Config) { c.Data = "u2" },
	} {
		other := base
		mutate(&other)
		if base.Equal(other) {
			t.Fatalf("%s change should break equality", name)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	good := DefaultConfig()
	good.Model = "lmtest-fake"
	good.Data = "sat"
	if err := good.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"no model":     {func(c *Config) { c.Model = "" }, "no model"},
		"no data":      {func(c *Config) { c.Data = "" }, "neither data"},
		"bad length":   {func(c *Config) { c.MaxLength = 0 }, "max_length"},
		"no templates": {func(c *Config) { c.TemplateTypes = nil }, "template_types"},
		"bad template": {func(c *Config) { c.TemplateTypes = []string{"is-to-maybe"} }, "is-to-maybe"},
		"bad method":   {func(c *Config) { c.ScoringMethod = "vibes" }, "vibes"},
	}
	for name, tc := range cases {
		cfg := good
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: err = %v, want %q", name, err, tc.want)
		}
	}
}

func TestConfigNormalize(t *testing.T) {
	t.Parallel()
	var cfg Config
	cfg.Normalize()
	if cfg.PositivePermutationAggregation != "mean" ||
		cfg.NegativePermutationAggregation != "mean" ||
		cfg.PPLPMIAggregation != "mean" ||
		cfg.PMIAggregation != "mean" {
		t.Fatalf("aggregations not defaulted: %+v", cfg)
	}
	if cfg.PPLPMILambda != 0 || cfg.NegativePermutationWeight != 0 {
		t.Fatalf("numeric knobs must stay untouched: %+v", cfg)
	}

	cfg.PositivePermutationAggregation = "max"
	cfg.Normalize()
	if cfg.PositivePermutationAggregation != "max" {
		t.Fatal("explicit aggregation overwritten")
	}
}

func TestConfigDataName(t *testing.T) {
	t.Parallel()
	cfg := Config{Data: "sat"}
	if cfg.DataName() != "sat" {
		t.Fatalf("DataName = %q", cfg.DataName())
	}
	cfg = Config{PathToData: "/tmp/probe/sat_package_v3.jsonl"}
	if cfg.DataName() != "sat_package_v3" {
		t.Fatalf("DataName = %q", cfg.DataName())
	}
}
