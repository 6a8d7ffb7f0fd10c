package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/relprobe/relprobe/internal/experiment"
	"github.com/relprobe/relprobe/internal/report"
	"github.com/relprobe/relprobe/internal/score"
)

func sweepCmd() *cli.Command {
	var (
		overwrite   bool
		noInference bool
	)

	return &cli.Command{
		Name:      "sweep",
		Usage:     "Run every configuration in a grid file and export the summary",
		ArgsUsage: "grid.yaml",
		Flags: append(append(append(collaboratorFlags(), storeFlags()...), loggingFlags()...),
			&cli.BoolFlag{
				Name:        "overwrite",
				Usage:       "re-run configs that are already stored",
				Destination: &overwrite,
			},
			&cli.BoolFlag{
				Name:        "no-inference",
				Usage:       "fail instead of calling the model when scores are missing from the cache",
				Destination: &noInference,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyCommonConfig(c, LoadConfig())
			log := newLogger()

			if c.Args().Len() != 1 {
				return errors.New("sweep takes exactly one grid file")
			}
			grid, err := experiment.LoadGrid(c.Args().First())
			if err != nil {
				return err
			}

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

			runs, err := runner.Sweep(ctx, grid, experiment.RunOptions{
				Overwrite:   overwrite,
				NoInference: noInference,
			})
			if err != nil {
				return err
			}
			log.Info("sweep complete", "runs", len(runs))

			paths, err := report.Export(store)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		},
	}
}
