package report

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// aggregationColumns are the axes accuracy distributions are grouped by.
var aggregationColumns = []string{
	"positive_permutation_aggregation",
	"negative_permutation_aggregation",
	"ppl_pmi_aggregation",
	"pmi_aggregation",
}

func columnValue(r Row, col string) string {
	switch col {
	case "positive_permutation_aggregation":
		return r.PositivePermutationAggregation
	case "negative_permutation_aggregation":
		return r.NegativePermutationAggregation
	case "ppl_pmi_aggregation":
		return r.PPLPMIAggregation
	case "pmi_aggregation":
		return r.PMIAggregation
	}
	return ""
}

// BoxPlots draws one accuracy box plot per dataset and aggregation column,
// plus pooled plots over every dataset, named box.<data>.<column>.png.
func BoxPlots(rows []Row, outDir string) ([]string, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("report: no rows to plot")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	var datasets []string
	for _, r := range rows {
		if !slices.Contains(datasets, r.Data) {
			datasets = append(datasets, r.Data)
		}
	}
	slices.Sort(datasets)
	datasets = append(datasets, "all")

	var paths []string
	for _, data := range datasets {
		sub := rows
		if data != "all" {
			sub = nil
			for _, r := range rows {
				if r.Data == data {
					sub = append(sub, r)
				}
			}
		}
		for _, col := range aggregationColumns {
			path := filepath.Join(outDir, fmt.Sprintf("box.%s.%s.png", data, col))
			if err := boxPlot(sub, col, data, path); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// boxPlot draws one box per (column value, model) pair, colored by model.
func boxPlot(rows []Row, col, title, path string) error {
	type key struct{ value, model string }
	groups := map[key]plotter.Values{}
	var order []key
	var models []string
	for _, r := range rows {
		k := key{value: columnValue(r, col), model: r.Model}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r.Accuracy)
		if !slices.Contains(models, r.Model) {
			models = append(models, r.Model)
		}
	}
	slices.SortFunc(order, func(a, b key) int {
		if c := strings.Compare(a.value, b.value); c != 0 {
			return c
		}
		return strings.Compare(a.model, b.model)
	})
	slices.Sort(models)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: accuracy by %s", title, col)
	p.Y.Label.Text = "accuracy"

	labels := make([]string, 0, len(order))
	for i, k := range order {
		box, err := plotter.NewBoxPlot(vg.Points(18), float64(i), groups[k])
		if err != nil {
			return fmt.Errorf("report: box %s/%s: %w", k.value, k.model, err)
		}
		box.FillColor = plotutil.Color(slices.Index(models, k.model))
		p.Add(box)
		label := k.value
		if len(models) > 1 {
			label = k.value + "\n" + k.model
		}
		labels = append(labels, label)
	}
	p.NominalX(labels...)
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save %s: %w", filepath.Base(path), err)
	}
	return nil
}
