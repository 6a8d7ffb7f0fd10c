package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/relprobe/relprobe/internal/score"
)

func pplCmd() *cli.Command {
	var outputPath string

	return &cli.Command{
		Name:      "ppl",
		Usage:     "Score sentence pseudo-perplexity",
		ArgsUsage: "[sentence ...]",
		Flags: append(append(collaboratorFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "output",
				Usage:       "write the result JSON here instead of stdout",
				Destination: &outputPath,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyCommonConfig(c, LoadConfig())
			log := newLogger()

			sentences, err := readSentences(c.Args().Slice(), os.Stdin)
			if err != nil {
				return err
			}
			if len(sentences) == 0 {
				return errors.New("no sentences: pass them as arguments or on stdin")
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

			ppls, err := scorer.Perplexity(ctx, sentences)
			if err != nil {
				return err
			}
			type row struct {
				Sentence   string  `json:"sentence"`
				Perplexity float64 `json:"perplexity"`
			}
			out := struct {
				Model string `json:"model"`
				Rows  []row  `json:"rows"`
			}{Model: scorer.Info().Model}
			for i, s := range sentences {
				out.Rows = append(out.Rows, row{Sentence: s, Perplexity: ppls[i]})
			}
			return writeResult(outputPath, out)
		},
	}
}
