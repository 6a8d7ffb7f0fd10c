// Package report flattens stored runs into summary tables, CSV exports,
// and accuracy box plots.
package report

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/relprobe/relprobe/internal/experiment"
)

// Row is one summary line: the config columns followed by accuracy in
// percent. Template lists are comma-joined so the table stays flat.
type Row struct {
	Model                          string  `csv:"model" json:"model"`
	MaxLength                      int     `csv:"max_length" json:"max_length"`
	Data                           string  `csv:"data" json:"data"`
	TemplateTypes                  string  `csv:"template_types" json:"template_types"`
	ScoringMethod                  string  `csv:"scoring_method" json:"scoring_method"`
	PositivePermutationAggregation string  `csv:"positive_permutation_aggregation" json:"positive_permutation_aggregation"`
	NegativePermutationAggregation string  `csv:"negative_permutation_aggregation" json:"negative_permutation_aggregation"`
	NegativePermutationWeight      float64 `csv:"negative_permutation_weight" json:"negative_permutation_weight"`
	PPLPMIAggregation              string  `csv:"ppl_pmi_aggregation" json:"ppl_pmi_aggregation"`
	PPLPMILambda                   float64 `csv:"ppl_pmi_lambda" json:"ppl_pmi_lambda"`
	PMIAggregation                 string  `csv:"pmi_aggregation" json:"pmi_aggregation"`
	PMIFeldmanLambda               float64 `csv:"pmi_feldman_lambda" json:"pmi_feldman_lambda"`
	Accuracy                       float64 `csv:"accuracy" json:"accuracy"`
	RunID                          string  `csv:"run_id" json:"run_id"`
}

// Rows flattens the runs of one split, sorted by the config columns.
// An empty split selects validation runs.
func Rows(runs []experiment.Run, split string) []Row {
	if split == "" {
		split = "valid"
	}
	var rows []Row
	for _, r := range runs {
		if r.Accuracy.Split != split {
			continue
		}
		cfg := r.Config
		rows = append(rows, Row{
			Model:                          cfg.Model,
			MaxLength:                      cfg.MaxLength,
			Data:                           cfg.DataName(),
			TemplateTypes:                  strings.Join(cfg.TemplateTypes, ","),
			ScoringMethod:                  cfg.ScoringMethod,
			PositivePermutationAggregation: cfg.PositivePermutationAggregation,
			NegativePermutationAggregation: cfg.NegativePermutationAggregation,
			NegativePermutationWeight:      cfg.NegativePermutationWeight,
			PPLPMIAggregation:              cfg.PPLPMIAggregation,
			PPLPMILambda:                   cfg.PPLPMILambda,
			PMIAggregation:                 cfg.PMIAggregation,
			PMIFeldmanLambda:               cfg.PMIFeldmanLambda,
			Accuracy:                       percent(r.Accuracy.Accuracy),
			RunID:                          r.ID,
		})
	}
	slices.SortFunc(rows, compareRows)
	return rows
}

// percent rescales a fraction to two-decimal percent.
func percent(v float64) float64 {
	return math.Round(v*10000) / 100
}

func compareRows(a, b Row) int {
	return cmp.Or(
		strings.Compare(a.Model, b.Model),
		cmp.Compare(a.MaxLength, b.MaxLength),
		strings.Compare(a.Data, b.Data),
		strings.Compare(a.TemplateTypes, b.TemplateTypes),
		strings.Compare(a.ScoringMethod, b.ScoringMethod),
		strings.Compare(a.PositivePermutationAggregation, b.PositivePermutationAggregation),
		strings.Compare(a.NegativePermutationAggregation, b.NegativePermutationAggregation),
		cmp.Compare(a.NegativePermutationWeight, b.NegativePermutationWeight),
		strings.Compare(a.PPLPMIAggregation, b.PPLPMIAggregation),
		cmp.Compare(a.PPLPMILambda, b.PPLPMILambda),
		strings.Compare(a.PMIAggregation, b.PMIAggregation),
		cmp.Compare(a.PMIFeldmanLambda, b.PMIFeldmanLambda),
	)
}

// Write renders rows as CSV.
func Write(w io.Writer, rows []Row) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// Export writes summary.csv for validation runs and summary.test.csv when
// test runs exist, both under the store root. It returns the files written.
func Export(st *experiment.Store) ([]string, error) {
	runs, err := st.Runs()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("report: no stored runs under %s", st.Root())
	}
	var paths []string
	for _, split := range []string{"valid", "test"} {
		rows := Rows(runs, split)
		if len(rows) == 0 {
			continue
		}
		name := "summary.csv"
		if split != "valid" {
			name = "summary." + split + ".csv"
		}
		path := filepath.Join(st.Root(), name)
		f, err := os.Create(path)
		if err != nil {
			return paths, fmt.Errorf("report: %w", err)
		}
		if err := Write(f, rows); err != nil {
			f.Close()
			return paths, err
		}
		if err := f.Close(); err != nil {
			return paths, fmt.Errorf("report: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Filter narrows Best to matching runs. Empty fields match everything;
// Split defaults to valid.
type Filter struct {
	Data   string
	Model  string
	Method string
	Split  string
}

// Best returns the matching run with the highest accuracy, earliest run
// winning ties.
func Best(runs []experiment.Run, f Filter) (*experiment.Run, error) {
	split := f.Split
	if split == "" {
		split = "valid"
	}
	var best *experiment.Run
	for i := range runs {
		r := &runs[i]
		if r.Accuracy.Split != split {
			continue
		}
		if f.Data != "" && r.Config.DataName() != f.Data {
			continue
		}
		if f.Model != "" && r.Config.Model != f.Model {
			continue
		}
		if f.Method != "" && r.Config.ScoringMethod != f.Method {
			continue
		}
		if best == nil || r.Accuracy.Accuracy > best.Accuracy.Accuracy {
			best = r
		}
	}
	if best == nil {
		return nil, fmt.Errorf("report: no %s runs match data=%q model=%q method=%q", split, f.Data, f.Model, f.Method)
	}
	return best, nil
}

// BestEach returns the best matching run for every (data, model, method)
// group with at least one match, ordered by group. It backs test-split
// reruns of tuned validation configs.
func BestEach(runs []experiment.Run, f Filter) ([]experiment.Run, error) {
	split := f.Split
	if split == "" {
		split = "valid"
	}
	type group struct {
		data, model, method string
	}
	best := make(map[group]*experiment.Run)
	for i := range runs {
		r := &runs[i]
		if r.Accuracy.Split != split {
			continue
		}
		if f.Data != "" && r.Config.DataName() != f.Data {
			continue
		}
		if f.Model != "" && r.Config.Model != f.Model {
			continue
		}
		if f.Method != "" && r.Config.ScoringMethod != f.Method {
			continue
		}
		g := group{r.Config.DataName(), r.Config.Model, r.Config.ScoringMethod}
		if cur, ok := best[g]; !ok || r.Accuracy.Accuracy > cur.Accuracy.Accuracy {
			best[g] = r
		}
	}
	if len(best) == 0 {
		return nil, fmt.Errorf("report: no %s runs match data=%q model=%q method=%q", split, f.Data, f.Model, f.Method)
	}
	out := make([]experiment.Run, 0, len(best))
	for _, r := range best {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b experiment.Run) int {
		return cmp.Or(
			strings.Compare(a.Config.DataName(), b.Config.DataName()),
			strings.Compare(a.Config.Model, b.Config.Model),
			strings.Compare(a.Config.ScoringMethod, b.Config.ScoringMethod),
		)
	})
	return out, nil
}
