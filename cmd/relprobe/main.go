package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// A local .env can hold RELPROBE_SERVER and friends; absence is fine.
	_ = godotenv.Load()

	app := &cli.Command{
		Name:  "relprobe",
		Usage: "Relation probing for masked language models",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			mineCmd(),
			pplCmd(),
			testCmd(),
			sweepCmd(),
			reportCmd(),
			serveCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
