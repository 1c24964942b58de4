package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the planner needs.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// SyncPrefix downloads every CSV object under prefix into destDir and
// returns the local paths. Other objects are skipped.
func SyncPrefix(ctx context.Context, store ObjectStorage, prefix, destDir string) ([]string, error) {
	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			log.Debug().Str("key", obj.Key).Msg("skipping non-csv object")
			continue
		}
		dest := filepath.Join(destDir, name)
		if err := store.DownloadObject(ctx, obj.Key, dest); err != nil {
			return nil, err
		}
		paths = append(paths, dest)
	}

	log.Info().Str("prefix", prefix).Int("files", len(paths)).Msg("input objects downloaded")
	return paths, nil
}

// PublishFiles uploads local files under prefix/runID/ keeping their base
// names, and returns the object keys.
func PublishFiles(ctx context.Context, store ObjectStorage, prefix, runID string, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed reading %s: %w", file, err)
		}
		key := path.Join(prefix, runID, filepath.Base(file))
		if err := store.UploadObject(ctx, key, data); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
