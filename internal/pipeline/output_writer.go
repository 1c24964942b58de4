package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/ingest"
)

// FlushFunc receives the CSV files written for a plan, e.g. to upload or
// persist them.
type FlushFunc func(ctx context.Context, res *domain.PlanResult, files []string) error

// OutputWriter writes every table of a plan result to CSV and then hands
// the files to the flush callbacks
type OutputWriter struct {
	outputDir string
	callbacks []FlushFunc
}

// NewOutputWriter creates a new output writer for dir
func NewOutputWriter(outputDir string, callbacks ...FlushFunc) *OutputWriter {
	return &OutputWriter{
		outputDir: outputDir,
		callbacks: callbacks,
	}
}

// Write renders the plan tables to outputDir and runs the callbacks in
// order. It returns the written paths.
func (ow *OutputWriter) Write(ctx context.Context, res *domain.PlanResult) ([]string, error) {
	// Ensure output directory exists
	if err := os.MkdirAll(ow.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tables := ingest.OutputTables(res)
	files := make([]string, 0, len(tables))
	for _, table := range tables {
		path := filepath.Join(ow.outputDir, table.Name+".csv")
		if err := writeFile(path, table); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", table.Name, err)
		}
		files = append(files, path)
	}

	log.Info().Str("dir", ow.outputDir).Int("files", len(files)).Str("run_id", res.RunID).Msg("plan tables written")

	for _, cb := range ow.callbacks {
		if err := cb(ctx, res, files); err != nil {
			return files, fmt.Errorf("flush callback failed: %w", err)
		}
	}
	return files, nil
}

func writeFile(path string, table ingest.OutputTable) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := table.Write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
