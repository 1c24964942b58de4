package drive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrFolderNotFound is returned when a folder path does not resolve.
var ErrFolderNotFound = errors.New("drive folder not found")

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader copies the tabular files of a Drive folder to local disk.
type Downloader struct {
	files FileStore
}

// NewDownloader creates a new Downloader.
func NewDownloader(files FileStore) *Downloader {
	return &Downloader{files: files}
}

// DownloadFolderCSV downloads the CSV and XLSX files of a folder into
// DownloadDir and returns local CSV paths. Spreadsheets are converted from
// their first sheet and the downloaded workbook is removed afterwards.
func (d *Downloader) DownloadFolderCSV(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.files.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := filepath.Base(f.Name)
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".csv" && ext != ".xlsx" {
			log.Debug().Str("file", f.Name).Msg("skipping non-tabular drive file")
			continue
		}

		localPath := filepath.Join(opts.DownloadDir, name)
		if err := d.download(ctx, f.ID, localPath); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}

		if ext == ".xlsx" {
			csvPath := strings.TrimSuffix(localPath, filepath.Ext(localPath)) + ".csv"
			if err := convertXLSXToCSV(localPath, csvPath); err != nil {
				return nil, fmt.Errorf("failed to convert %s to csv: %w", f.Name, err)
			}
			_ = os.Remove(localPath)
			localPath = csvPath
		}
		localPaths = append(localPaths, localPath)
	}

	log.Info().Str("folder", opts.FolderID).Int("files", len(localPaths)).Msg("drive folder downloaded")
	return localPaths, nil
}

func (d *Downloader) download(ctx context.Context, fileID, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := d.files.DownloadFile(ctx, fileID, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
