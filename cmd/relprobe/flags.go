package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/relprobe/relprobe/internal/logger"
)

var (
	serverURL string
	apiKey    string
	modelName string
	maxLength int64
	rps       float64
	batchSize int64
	dataDir   string
	exportDir string
	logLevel  string
	logFormat string
	debug     bool
)

func collaboratorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "server",
			Aliases:     []string{"s"},
			Usage:       "base URL of the model server",
			Destination: &serverURL,
		},
		&cli.StringFlag{
			Name:        "api-key",
			Usage:       "bearer token for the model server",
			Destination: &apiKey,
		},
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "model card to request (empty = server default)",
			Destination: &modelName,
		},
		&cli.Int64Flag{
			Name:        "max-length",
			Aliases:     []string{"max-len"},
			Usage:       "token window cap (0 = model window)",
			Destination: &maxLength,
		},
		&cli.Float64Flag{
			Name:        "rps",
			Usage:       "request rate limit (0 = unthrottled)",
			Destination: &rps,
		},
		&cli.Int64Flag{
			Name:        "batch-size",
			Aliases:     []string{"b"},
			Usage:       "sentences per forward pass",
			Value:       32,
			Destination: &batchSize,
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "directory holding benchmark datasets",
			Value:       "data",
			Destination: &dataDir,
		},
		&cli.StringFlag{
			Name:        "export-dir",
			Aliases:     []string{"o"},
			Usage:       "directory for stored runs and reports",
			Value:       "results",
			Destination: &exportDir,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// stderrIsTTY is a small seam for tests.
var stderrIsTTY = isTTY

// newLogger builds the command logger from the logging flags. Pretty output
// degrades to plain text when stderr is not a terminal.
func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	format := logFormat
	if format == "pretty" && !stderrIsTTY() {
		format = "text"
	}
	switch format {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "pretty":
		return logger.Pretty(os.Stderr, level)
	default:
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
}
