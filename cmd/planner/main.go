package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/planify/backend-go/internal/config"
	"github.com/andresuchdata/planify/backend-go/pkg/logger"
)

func newDBURLFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: required,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func main() {
	cfg := config.Load()
	logger.SetLevel(cfg.Server.LogLevel)

	app := &cli.App{
		Name:  "planner",
		Usage: "Run the demand planning engine in batch",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json-logs",
				Usage: "Emit structured JSON logs instead of console output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("json-logs") {
				logger.UseJSON(os.Stdout)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Plan over a set of input tables and write the output tables",
				Flags:  runFlags(cfg),
				Action: func(c *cli.Context) error { return runPlan(c, cfg) },
			},
			{
				Name:  "runs",
				Usage: "List tracked plan runs",
				Flags: []cli.Flag{
					newDBURLFlag(true),
					&cli.IntFlag{
						Name:  "days",
						Usage: "Only list runs started in the last N days",
						Value: 7,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list",
						Value: 20,
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: listRuns,
			},
			{
				Name:   "migrate",
				Usage:  "Create the plan tables if they do not exist",
				Flags:  []cli.Flag{newDBURLFlag(true)},
				Before: initDB,
				After:  closeDB,
				Action: migrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("planner failed")
	}
}
