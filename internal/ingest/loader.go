package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
)

// Source is one input file to load.
type Source struct {
	Table Table
	Name  string
	Open  func() (io.ReadCloser, error)
}

// FileSource opens a local file, detecting its table from the file name.
func FileSource(path string) (Source, error) {
	table, err := DetectTable(path)
	if err != nil {
		return Source{}, err
	}
	return Source{
		Table: table,
		Name:  path,
		Open:  func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// DirSources lists the CSV files of dir that map onto an input table. Other
// files are skipped with a warning.
func DirSources(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir %s: %w", dir, err)
	}

	var sources []Source
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		src, err := FileSource(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Warn().Str("file", e.Name()).Msg("skipping file with no matching input table")
			continue
		}
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

// Load parses the sources concurrently and merges them into one dataset.
// Several files of the same table are concatenated in source order.
func Load(ctx context.Context, sources []Source) (domain.Dataset, error) {
	parsed := make([]domain.Dataset, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rc, err := src.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", src.Name, err)
			}
			defer rc.Close()

			ds, err := Read(src.Table, rc)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(src.Name), err)
			}
			parsed[i] = ds
			log.Debug().Str("file", src.Name).Str("table", string(src.Table)).Msg("input loaded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Dataset{}, err
	}

	var out domain.Dataset
	for _, ds := range parsed {
		out.Demand = append(out.Demand, ds.Demand...)
		out.StockHistory = append(out.StockHistory, ds.StockHistory...)
		out.CurrentStock = append(out.CurrentStock, ds.CurrentStock...)
		out.Replenishments = append(out.Replenishments, ds.Replenishments...)
		out.Products = append(out.Products, ds.Products...)
	}
	if len(out.Demand) == 0 {
		return out, ErrNoDemand
	}
	return out, nil
}

// Read parses a single table into a dataset holding only that table.
func Read(table Table, r io.Reader) (domain.Dataset, error) {
	var ds domain.Dataset
	var err error
	switch table {
	case TableDemand:
		ds.Demand, err = ReadDemand(r)
	case TableStockHistory:
		ds.StockHistory, err = ReadStockHistory(r)
	case TableCurrentStock:
		ds.CurrentStock, err = ReadCurrentStock(r)
	case TableReplenishment:
		ds.Replenishments, err = ReadReplenishments(r)
	case TableProducts:
		ds.Products, err = ReadProducts(r)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return ds, err
}
