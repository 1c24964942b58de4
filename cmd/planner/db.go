package main

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/planify/backend-go/internal/pipeline"
	"github.com/andresuchdata/planify/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/planify/backend-go/pkg/logger"
)

type dbKey struct{}

func initDB(c *cli.Context) error {
	if c.String("db-url") == "" {
		return nil
	}

	// Open over the pgx stdlib driver
	db, err := sqlx.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(c.Context); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Store the database connection in the context
	c.Context = context.WithValue(c.Context, dbKey{}, postgres.Wrap(db))
	return nil
}

func closeDB(c *cli.Context) error {
	if db := dbFrom(c); db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) *postgres.DB {
	db, _ := c.Context.Value(dbKey{}).(*postgres.DB)
	return db
}

func migrate(c *cli.Context) error {
	if err := postgres.EnsureSchema(c.Context, dbFrom(c)); err != nil {
		return err
	}
	logger.Log.Info().Msg("plan schema is up to date")
	return nil
}

func listRuns(c *cli.Context) error {
	runs := pipeline.NewRepository(dbFrom(c).DB)
	since := time.Now().AddDate(0, 0, -c.Int("days"))

	list, err := runs.ListRecentRuns(c.Context, since, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	stats, err := runs.GetRunStats(c.Context, since)
	if err != nil {
		return fmt.Errorf("failed to load run stats: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "%-36s  %-10s  %6s  %9s  %s\n", "RUN", "STATUS", "SKUS", "FALLBACKS", "STARTED")
	for _, r := range list {
		status := string(r.Status)
		if r.CacheHit {
			status += "*"
		}
		fmt.Fprintf(w, "%-36s  %-10s  %6d  %9d  %s\n",
			r.ID, status, r.ProcessedSKUs, r.FallbackPoints, r.StartedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "\n%d runs, %d failed, %d served from cache, %d SKUs processed\n",
		stats.Runs, stats.Failed, stats.CacheHits, stats.SKUsProcessed)
	return nil
}
