package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/relprobe/relprobe/internal/experiment"
	"github.com/relprobe/relprobe/internal/report"
)

func reportCmd() *cli.Command {
	var (
		plotFigures bool
		best        bool
		data        string
		model       string
		method      string
		split       string
	)

	return &cli.Command{
		Name:  "report",
		Usage: "Aggregate stored runs into CSV summaries",
		Flags: append(append(storeFlags(), loggingFlags()...),
			&cli.BoolFlag{
				Name:        "plot",
				Usage:       "render accuracy box plots next to the summaries",
				Destination: &plotFigures,
			},
			&cli.BoolFlag{
				Name:        "best",
				Usage:       "print the best matching run instead of exporting",
				Destination: &best,
			},
			&cli.StringFlag{
				Name:        "data",
				Aliases:     []string{"d"},
				Usage:       "filter runs by dataset",
				Destination: &data,
			},
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "filter runs by model",
				Destination: &model,
			},
			&cli.StringFlag{
				Name:        "method",
				Usage:       "filter runs by scoring method",
				Destination: &method,
			},
			&cli.StringFlag{
				Name:        "split",
				Usage:       "split for --best (valid, test)",
				Value:       "valid",
				Destination: &split,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyCommonConfig(c, LoadConfig())
			log := newLogger()
			store := experiment.NewStore(exportDir)

			if best {
				runs, err := store.Runs()
				if err != nil {
					return err
				}
				r, err := report.Best(runs, report.Filter{
					Data:   data,
					Model:  model,
					Method: method,
					Split:  split,
				})
				if err != nil {
					return err
				}
				return writeResult("", r)
			}

			paths, err := report.Export(store)
			if err != nil {
				return err
			}
			if plotFigures {
				runs, err := store.Runs()
				if err != nil {
					return err
				}
				rows := report.Rows(runs, "valid")
				figures, err := report.BoxPlots(rows, filepath.Join(store.Root(), "figures"))
				if err != nil {
					return err
				}
				paths = append(paths, figures...)
			}
			log.Info("report written", "files", len(paths))
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		},
	}
}
