package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/relprobe/relprobe/internal/prompt"
)

func ptr[T any](v T) *T { return &v }

func mineCmd() *cli.Command {
	var (
		inputPath  string
		outputPath string
		seedType   string
		nBlank     int64
		nPrefix    int64
		nSuffix    int64
		topK       int64
		topKPer    int64
		revisions  int64
		pplFilter  bool
	)

	return &cli.Command{
		Name:      "mine",
		Usage:     "Mine relation templates for word pairs",
		ArgsUsage: "[head:tail ...]",
		Flags: append(append(collaboratorFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "JSON lines file of {\"head\",\"tail\"} pairs",
				Destination: &inputPath,
			},
			&cli.StringFlag{
				Name:        "output",
				Usage:       "write the result JSON here instead of stdout",
				Destination: &outputPath,
			},
			&cli.StringFlag{
				Name:        "seed-type",
				Usage:       "seed layout (middle, whole, best)",
				Value:       string(prompt.SeedMiddle),
				Destination: &seedType,
			},
			&cli.Int64Flag{
				Name:        "n-blank",
				Usage:       "blanks between head and tail",
				Value:       2,
				Destination: &nBlank,
			},
			&cli.Int64Flag{
				Name:        "n-blank-prefix",
				Usage:       "blanks before the pair (whole seeds)",
				Value:       2,
				Destination: &nPrefix,
			},
			&cli.Int64Flag{
				Name:        "n-blank-suffix",
				Usage:       "blanks after the pair (whole seeds)",
				Value:       2,
				Destination: &nSuffix,
			},
			&cli.Int64Flag{
				Name:        "topk",
				Usage:       "candidates kept per fill step",
				Value:       5,
				Destination: &topK,
			},
			&cli.Int64Flag{
				Name:        "topk-per-position",
				Usage:       "vocabulary candidates per masked position",
				Value:       15,
				Destination: &topKPer,
			},
			&cli.Int64Flag{
				Name:        "n-revision",
				Usage:       "revision rounds after the masks are filled",
				Value:       10,
				Destination: &revisions,
			},
			&cli.BoolFlag{
				Name:        "ppl-filter",
				Usage:       "pick fills by perplexity instead of raw logit",
				Value:       true,
				Destination: &pplFilter,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyCommonConfig(c, LoadConfig())
			log := newLogger()

			pairs, err := parsePairs(c.Args().Slice())
			if err != nil {
				return err
			}
			if inputPath != "" {
				fromFile, err := readPairs(inputPath)
				if err != nil {
					return err
				}
				pairs = append(pairs, fromFile...)
			}
			if len(pairs) == 0 {
				return errors.New("no pairs: pass head:tail arguments or --input")
			}

			kind, err := prompt.ParseSeedKind(seedType)
			if err != nil {
				return err
			}

			client, err := dialClient(ctx, log)
			if err != nil {
				return err
			}
			popts := prompt.PrompterOptions{Logger: log}
			if c.IsSet("batch-size") || c.IsSet("b") {
				popts.BatchSize = int(batchSize)
			}
			prompter, err := prompt.New(client, client, popts)
			if err != nil {
				return err
			}

			res, err := prompter.Mine(ctx, pairs, prompt.Options{
				Kind:             &kind,
				Blanks:           ptr(int(nBlank)),
				PrefixBlanks:     ptr(int(nPrefix)),
				SuffixBlanks:     ptr(int(nSuffix)),
				TopK:             ptr(int(topK)),
				TopKPerPosition:  ptr(int(topKPer)),
				Revisions:        ptr(int(revisions)),
				PerplexityFilter: &pplFilter,
			})
			if err != nil {
				return err
			}
			return writeResult(outputPath, res)
		},
	}
}
