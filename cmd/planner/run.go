package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/planify/backend-go/internal/cache"
	"github.com/andresuchdata/planify/backend-go/internal/config"
	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/drive"
	"github.com/andresuchdata/planify/backend-go/internal/ingest"
	"github.com/andresuchdata/planify/backend-go/internal/pipeline"
	"github.com/andresuchdata/planify/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/planify/backend-go/internal/service"
	"github.com/andresuchdata/planify/backend-go/internal/storage"
	"github.com/andresuchdata/planify/backend-go/pkg/logger"
)

const (
	sourceLocal = "local"
	sourceDrive = "drive"
	sourceS3    = "s3"
)

func runFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "source",
			Usage: "Where the input tables come from: local, drive or s3",
			Value: sourceLocal,
		},
		&cli.StringFlag{
			Name:    "input",
			Usage:   "Input directory (local), folder ID (drive) or object prefix (s3)",
			EnvVars: []string{"PLANNER_INPUT"},
		},
		&cli.StringFlag{
			Name:    "output",
			Usage:   "Directory for the output tables",
			Value:   cfg.App.DataDir,
			EnvVars: []string{"PLANNER_OUTPUT"},
		},
		&cli.StringFlag{
			Name:  "as-of",
			Usage: "Evaluation month (YYYY-MM); defaults to the month after the last demand month",
			Value: cfg.Planning.AsOfMonth,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of concurrent SKU workers",
			Value: cfg.Planning.WorkerCount,
		},
		&cli.BoolFlag{
			Name:  "upload",
			Usage: "Publish the output tables to object storage",
		},
		&cli.BoolFlag{
			Name:  "persist",
			Usage: "Store the plan and its run tracking in Postgres (requires --db-url)",
		},
		newDBURLFlag(false),
	}
}

func runPlan(c *cli.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	plog := logger.Component("planner")

	// 1. Engine configuration
	settings := cfg.Planning
	settings.AsOfMonth = c.String("as-of")
	settings.WorkerCount = c.Int("workers")
	if settings.AsOfMonth != "" {
		if _, err := domain.ParseMonth(settings.AsOfMonth); err != nil {
			return fmt.Errorf("invalid --as-of: %w", err)
		}
	}

	// 2. Optional cache and persistence
	planCache, err := cache.NewPlanCache(cfg.Cache)
	if err != nil {
		plog.Warn().Err(err).Msg("plan cache unavailable, continuing without it")
		planCache = cache.NewNoopPlanCache()
	}
	orchOpts := []pipeline.Option{pipeline.WithCache(planCache)}
	var svcOpts []service.Option

	if c.Bool("persist") {
		if c.String("db-url") == "" {
			return fmt.Errorf("--persist requires --db-url")
		}
		if err := initDB(c); err != nil {
			return err
		}
		defer closeDB(c)

		db := dbFrom(c)
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		orchOpts = append(orchOpts, pipeline.WithRunRepository(pipeline.NewRepository(db.DB)))
		svcOpts = append(svcOpts, service.WithPlanRepository(postgres.NewPlanRepository(db)))
	}

	svc := service.NewPlanningService(
		pipeline.NewOrchestrator(pipeline.ConfigFromSettings(settings), orchOpts...),
		svcOpts...,
	)

	// 3. Object storage, needed to read s3 input or publish output
	var store storage.ObjectStorage
	if c.String("source") == sourceS3 || c.Bool("upload") {
		client, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			return err
		}
		store = client
	}

	// 4. Plan
	res, err := planFromSource(ctx, c, cfg, svc, store)
	if err != nil {
		return err
	}

	// 5. Write and publish the output tables
	var callbacks []pipeline.FlushFunc
	if c.Bool("upload") {
		callbacks = append(callbacks, func(ctx context.Context, res *domain.PlanResult, files []string) error {
			keys, err := storage.PublishFiles(ctx, store, cfg.Storage.OutputPrefix, res.RunID, files)
			if err != nil {
				return err
			}
			plog.Info().Str("run_id", res.RunID).Int("objects", len(keys)).Msg("plan published")
			return nil
		})
	}
	files, err := pipeline.NewOutputWriter(c.String("output"), callbacks...).Write(ctx, res)
	if err != nil {
		return err
	}

	plog.Info().
		Str("run_id", res.RunID).
		Str("as_of", domain.FormatMonth(res.AsOf)).
		Int("skus", len(res.SKUs)).
		Int("skus_to_buy", res.Totals.SKUsToBuy).
		Int("units_to_buy", res.Totals.TotalUnitsToBuy).
		Str("purchase_cost", res.Totals.TotalPurchaseCost.StringFixed(2)).
		Int("files", len(files)).
		Msg("plan complete")
	return nil
}

func planFromSource(ctx context.Context, c *cli.Context, cfg *config.Config, svc *service.PlanningService, store storage.ObjectStorage) (*domain.PlanResult, error) {
	input := c.String("input")

	switch c.String("source") {
	case sourceLocal:
		if input == "" {
			input = cfg.App.UploadDir
		}
		sources, err := ingest.DirSources(input)
		if err != nil {
			return nil, err
		}
		return svc.Plan(ctx, sources)

	case sourceS3:
		if input == "" {
			input = cfg.Storage.InputPrefix
		}
		dir, err := os.MkdirTemp("", "planner-s3-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)

		if _, err := storage.SyncPrefix(ctx, store, input, dir); err != nil {
			return nil, err
		}
		sources, err := ingest.DirSources(dir)
		if err != nil {
			return nil, err
		}
		return svc.Plan(ctx, sources)

	case sourceDrive:
		if input == "" {
			input = cfg.Drive.FolderID
		}
		if input == "" {
			return nil, fmt.Errorf("drive source needs --input or DRIVE_FOLDER_ID")
		}
		driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			return nil, err
		}
		importer := drive.NewImporter(drive.NewDownloader(driveService), svc, cfg.Drive.DownloadDir)
		return importer.ImportFolder(ctx, input)
	}

	return nil, fmt.Errorf("unknown source %q", c.String("source"))
}
