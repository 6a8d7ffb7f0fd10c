package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/relprobe/relprobe/internal/experiment"
	"github.com/relprobe/relprobe/internal/report"
	"github.com/relprobe/relprobe/internal/score"
	"github.com/relprobe/relprobe/internal/template"
)

func testCmd() *cli.Command {
	var (
		data         string
		pathToData   string
		method       string
		templates    string
		posAgg       string
		negAgg       string
		negWeight    float64
		pplPMIAgg    string
		pplPMILambda float64
		pmiAgg       string
		pmiLambda    float64
		testSplit    bool
		overwrite    bool
		noInference  bool
		releaseCache bool
		fromBest     bool
	)

	return &cli.Command{
		Name:  "test",
		Usage: "Run an analogy benchmark and store the result",
		Flags: append(append(append(collaboratorFlags(), storeFlags()...), loggingFlags()...),
			&cli.StringFlag{
				Name:        "data",
				Aliases:     []string{"d"},
				Usage:       "benchmark name under --data-dir (sat, u2, u4, google, bats)",
				Destination: &data,
			},
			&cli.StringFlag{
				Name:        "path-to-data",
				Usage:       "explicit dataset file (overrides --data)",
				Destination: &pathToData,
			},
			&cli.StringFlag{
				Name:        "method",
				Usage:       "scoring method",
				Value:       string(score.MethodPPL),
				Destination: &method,
			},
			&cli.StringFlag{
				Name:        "templates",
				Usage:       "comma separated template types",
				Value:       string(template.IsToAs),
				Destination: &templates,
			},
			&cli.StringFlag{
				Name:        "pos-agg",
				Usage:       "positive permutation aggregation (mean, max, min, none, or an index)",
				Value:       "mean",
				Destination: &posAgg,
			},
			&cli.StringFlag{
				Name:        "neg-agg",
				Usage:       "negative permutation aggregation",
				Value:       "mean",
				Destination: &negAgg,
			},
			&cli.Float64Flag{
				Name:        "neg-weight",
				Usage:       "weight of the negative permutation term",
				Value:       1,
				Destination: &negWeight,
			},
			&cli.StringFlag{
				Name:        "ppl-pmi-agg",
				Usage:       "marginal aggregation for ppl_based_pmi",
				Value:       "mean",
				Destination: &pplPMIAgg,
			},
			&cli.Float64Flag{
				Name:        "ppl-pmi-lambda",
				Usage:       "marginal weight for ppl_based_pmi",
				Value:       1,
				Destination: &pplPMILambda,
			},
			&cli.StringFlag{
				Name:        "pmi-agg",
				Usage:       "conditional aggregation for pmi_feldman",
				Value:       "mean",
				Destination: &pmiAgg,
			},
			&cli.Float64Flag{
				Name:        "pmi-lambda",
				Usage:       "conditional exponent for pmi_feldman",
				Value:       1,
				Destination: &pmiLambda,
			},
			&cli.BoolFlag{
				Name:        "test",
				Usage:       "evaluate the test split instead of validation",
				Destination: &testSplit,
			},
			&cli.BoolFlag{
				Name:        "overwrite",
				Usage:       "re-run even when the config is already stored",
				Destination: &overwrite,
			},
			&cli.BoolFlag{
				Name:        "no-inference",
				Usage:       "fail instead of calling the model when scores are missing from the cache",
				Destination: &noInference,
			},
			&cli.BoolFlag{
				Name:        "release-cache",
				Usage:       "delete the score cache after the run",
				Destination: &releaseCache,
			},
			&cli.BoolFlag{
				Name:        "from-best",
				Usage:       "rerun the best stored validation config on the test split",
				Destination: &fromBest,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyCommonConfig(c, LoadConfig())
			log := newLogger()

			client, err := dialClient(ctx, log)
			if err != nil {
				return err
			}
			scorer, err := score.NewScorer(client, client, score.ScorerOptions{
				BatchSize: int(batchSize),
				Logger:    log,
			})
			if err != nil {
				return err
			}
			store := experiment.NewStore(exportDir)
			runner := experiment.NewRunner(scorer, store, experiment.RunnerOptions{
				DataDir: dataDir,
				Logger:  log,
			})

			runOpts := experiment.RunOptions{
				Overwrite:   overwrite,
				NoInference: noInference,
			}

			// Tuned test reruns: the best stored validation config of
			// every matching (data, model, method) group, on the test
			// split.
			if fromBest {
				stored, err := store.Runs()
				if err != nil {
					return err
				}
				filter := report.Filter{Data: data, Model: modelName}
				if c.IsSet("method") {
					filter.Method = method
				}
				tuned, err := report.BestEach(stored, filter)
				if err != nil {
					return err
				}
				var runs []experiment.Run
				for _, t := range tuned {
					cfg := t.Config
					cfg.Test = true
					if c.IsSet("batch-size") || c.IsSet("b") {
						cfg.BatchSize = int(batchSize)
					}
					run, err := runner.AnalogyTest(ctx, cfg, runOpts)
					if err != nil {
						return err
					}
					if releaseCache {
						if err := store.ReleaseCache(run.Config); err != nil {
							return err
						}
					}
					runs = append(runs, run)
				}
				return writeResult("", runs)
			}

			cfg := experiment.Config{
				Model:                          modelName,
				MaxLength:                      int(maxLength),
				Data:                           data,
				PathToData:                     pathToData,
				TemplateTypes:                  splitList(templates),
				ScoringMethod:                  method,
				PositivePermutationAggregation: posAgg,
				NegativePermutationAggregation: negAgg,
				NegativePermutationWeight:      negWeight,
				PPLPMIAggregation:              pplPMIAgg,
				PPLPMILambda:                   pplPMILambda,
				PMIAggregation:                 pmiAgg,
				PMIFeldmanLambda:               pmiLambda,
				BatchSize:                      int(batchSize),
				Test:                           testSplit,
			}
			run, err := runner.AnalogyTest(ctx, cfg, runOpts)
			if err != nil {
				return err
			}
			if releaseCache {
				if err := store.ReleaseCache(run.Config); err != nil {
					return err
				}
			}
			return writeResult("", run)
		},
	}
}
