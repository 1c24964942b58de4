package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/ingest"
)

// Planner runs the planning engine over a set of input files.
type Planner interface {
	Plan(ctx context.Context, sources []ingest.Source) (*domain.PlanResult, error)
}

// Importer downloads a Drive folder and plans over its files.
type Importer struct {
	downloader  *Downloader
	planner     Planner
	downloadDir string
}

func NewImporter(downloader *Downloader, planner Planner, downloadDir string) *Importer {
	return &Importer{
		downloader:  downloader,
		planner:     planner,
		downloadDir: downloadDir,
	}
}

// ImportFolder downloads folderID into a fresh directory, maps each file
// onto an input table and runs a plan. Files whose names match no table are
// skipped.
func (i *Importer) ImportFolder(ctx context.Context, folderID string) (*domain.PlanResult, error) {
	if err := os.MkdirAll(i.downloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	dir, err := os.MkdirTemp(i.downloadDir, "import-")
	if err != nil {
		return nil, fmt.Errorf("failed to create import dir: %w", err)
	}
	defer os.RemoveAll(dir)

	paths, err := i.downloader.DownloadFolderCSV(ctx, DownloadOptions{FolderID: folderID, DownloadDir: dir})
	if err != nil {
		return nil, err
	}

	sources := make([]ingest.Source, 0, len(paths))
	for _, p := range paths {
		src, err := ingest.FileSource(p)
		if err != nil {
			log.Warn().Str("file", filepath.Base(p)).Msg("skipping drive file with no matching input table")
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, ingest.ErrNoDemand
	}

	return i.planner.Plan(ctx, sources)
}
