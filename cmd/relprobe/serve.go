package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/relprobe/relprobe/internal/api"
	"github.com/relprobe/relprobe/internal/experiment"
	"github.com/relprobe/relprobe/internal/prompt"
	"github.com/relprobe/relprobe/internal/score"
	"github.com/relprobe/relprobe/internal/webui"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the scoring and mining REST API",
		Flags: append(append(append(collaboratorFlags(), storeFlags()...), loggingFlags()...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8087",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			applyCommonConfig(c, cfg)
			applyServeConfig(c, cfg, &addr)
			log := newLogger()

			var (
				scorer   *score.Scorer
				prompter *prompt.Prompter
			)
			if strings.TrimSpace(serverURL) != "" {
				client, err := dialClient(ctx, log)
				if err != nil {
					return err
				}
				scorer, err = score.NewScorer(client, client, score.ScorerOptions{
					BatchSize: int(batchSize),
					Logger:    log,
				})
				if err != nil {
					return err
				}
				prompter, err = prompt.New(client, client, prompt.PrompterOptions{Logger: log})
				if err != nil {
					return err
				}
			} else {
				log.Warn("no model server configured; scoring and mining endpoints will answer 500")
			}

			store := experiment.NewStore(exportDir)
			server := api.NewServer(scorer, prompter, store)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			ui := http.FileServer(webui.StaticFS())
			e.GET("/*", func(c *echo.Context) error {
				ui.ServeHTTP(c.Response(), c.Request())
				return nil
			})

			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
