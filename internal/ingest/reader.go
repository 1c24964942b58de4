// Package ingest reads the planning input tables from CSV and writes the
// output tables back out.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/planning/stats"
)

// Table identifies one of the input tables.
type Table string

const (
	TableDemand        Table = "demanda"
	TableStockHistory  Table = "stock_historico"
	TableCurrentStock  Table = "stock_actual"
	TableReplenishment Table = "reposiciones"
	TableProducts      Table = "maestro"
)

// Tables lists the input tables in load order.
var Tables = []Table{TableDemand, TableStockHistory, TableCurrentStock, TableReplenishment, TableProducts}

// ErrUnknownTable is returned when a file cannot be matched to an input table.
var ErrUnknownTable = errors.New("unknown input table")

// ErrNoDemand is returned when a load produced no demand rows.
var ErrNoDemand = errors.New("no demand rows loaded")

// SchemaError reports the required columns a file is missing.
type SchemaError struct {
	Table   Table
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Table, strings.Join(e.Missing, ", "))
}

// required columns per table; the first name is canonical, the rest are
// accepted aliases
var schemas = map[Table][][]string{
	TableDemand: {
		{"sku", "codigo", "producto"},
		{"fecha", "date"},
		{"demanda", "cantidad", "ventas"},
	},
	TableStockHistory: {
		{"sku", "codigo"},
		{"fecha", "mes", "date"},
		{"stock", "stock_historico", "existencias"},
	},
	TableCurrentStock: {
		{"sku", "codigo"},
		{"descripcion", "description", "nombre"},
		{"stock", "stock_actual", "existencias"},
		{"fecha", "date"},
	},
	TableReplenishment: {
		{"sku", "codigo"},
		{"fecha", "fecha_llegada", "date"},
		{"cantidad", "unidades"},
	},
	TableProducts: {
		{"sku", "codigo"},
		{"descripcion", "description", "nombre"},
		{"costo_fabricacion", "coste_fabricacion", "costo"},
		{"precio_venta", "precio"},
		{"categoria", "category"},
	},
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

var accentFolder = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.TrimPrefix(name, "\ufeff")
	return columnNameSanitizer.Replace(accentFolder.Replace(name))
}

// DetectTable maps a file name onto an input table.
func DetectTable(filename string) (Table, error) {
	base := filepath.Base(filename)
	name := normalizeColumnName(strings.TrimSuffix(base, filepath.Ext(base)))
	switch {
	case strings.Contains(name, "reposicion"):
		return TableReplenishment, nil
	case strings.Contains(name, "stockactual"):
		return TableCurrentStock, nil
	case strings.Contains(name, "stock"):
		return TableStockHistory, nil
	case strings.Contains(name, "maestro"), strings.Contains(name, "producto"):
		return TableProducts, nil
	case strings.Contains(name, "demanda"), strings.Contains(name, "ventas"):
		return TableDemand, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTable, base)
}

// ParseTable accepts a table name in any casing.
func ParseTable(s string) (Table, error) {
	key := normalizeColumnName(s)
	for _, t := range Tables {
		if normalizeColumnName(string(t)) == key {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTable, s)
}

// sheet is a CSV file with its header resolved against a schema.
type sheet struct {
	table  Table
	reader *csv.Reader
	index  []int
	line   int
}

func openSheet(r io.Reader, table Table) (*sheet, error) {
	br := bufio.NewReader(r)
	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Table: table, Missing: canonical(table)}
		}
		return nil, fmt.Errorf("%s: read header: %w", table, err)
	}

	colIndex := func(names ...string) int {
		targets := make(map[string]struct{}, len(names))
		for _, name := range names {
			targets[normalizeColumnName(name)] = struct{}{}
		}
		for i, h := range header {
			if _, ok := targets[normalizeColumnName(h)]; ok {
				return i
			}
		}
		return -1
	}

	s := &sheet{table: table, reader: reader, line: 1}
	var missing []string
	for _, names := range schemas[table] {
		idx := colIndex(names...)
		if idx < 0 {
			missing = append(missing, names[0])
		}
		s.index = append(s.index, idx)
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Table: table, Missing: missing}
	}
	return s, nil
}

// next returns the required fields of the next non-blank record, io.EOF at
// the end of the file.
func (s *sheet) next() ([]string, error) {
	for {
		record, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%s: %w", s.table, err)
		}
		s.line++

		fields := make([]string, len(s.index))
		blank := true
		for i, idx := range s.index {
			if idx < len(record) {
				fields[i] = strings.TrimSpace(record[idx])
			}
			if fields[i] != "" {
				blank = false
			}
		}
		if !blank {
			return fields, nil
		}
	}
}

func (s *sheet) rowError(format string, args ...any) error {
	return fmt.Errorf("%s row %d: %s", s.table, s.line, fmt.Sprintf(format, args...))
}

func canonical(table Table) []string {
	out := make([]string, 0, len(schemas[table]))
	for _, names := range schemas[table] {
		out = append(out, names[0])
	}
	return out
}

func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	if bytes.Count(peek, []byte(";")) > bytes.Count(peek, []byte(",")) {
		return ';'
	}
	return ','
}

// ReadDemand reads the demand table.
func ReadDemand(r io.Reader) ([]domain.DemandObservation, error) {
	s, err := openSheet(r, TableDemand)
	if err != nil {
		return nil, err
	}

	var out []domain.DemandObservation
	for {
		f, err := s.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if f[0] == "" {
			continue
		}
		date, err := ParseDate(f[1])
		if err != nil {
			return nil, s.rowError("invalid fecha %q", f[1])
		}
		qty, err := ParseNumber(f[2])
		if err != nil || qty < 0 {
			return nil, s.rowError("invalid demanda %q", f[2])
		}
		out = append(out, domain.DemandObservation{SKU: f[0], Date: date, RawQuantity: qty})
	}
}

// ReadStockHistory reads the historical stock table, one row per SKU and
// date, with the date truncated to its month.
func ReadStockHistory(r io.Reader) ([]domain.StockObservation, error) {
	s, err := openSheet(r, TableStockHistory)
	if err != nil {
		return nil, err
	}

	var out []domain.StockObservation
	for {
		f, err := s.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if f[0] == "" {
			continue
		}
		date, err := ParseDate(f[1])
		if err != nil {
			return nil, s.rowError("invalid fecha %q", f[1])
		}
		qty, err := parseCount(f[2])
		if err != nil {
			return nil, s.rowError("invalid stock %q", f[2])
		}
		out = append(out, domain.StockObservation{SKU: f[0], Month: domain.MonthStart(date), Quantity: max(qty, 0)})
	}
}

// ReadCurrentStock reads the current stock snapshot.
func ReadCurrentStock(r io.Reader) ([]domain.CurrentStock, error) {
	s, err := openSheet(r, TableCurrentStock)
	if err != nil {
		return nil, err
	}

	var out []domain.CurrentStock
	for {
		f, err := s.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if f[0] == "" {
			continue
		}
		qty, err := parseCount(f[2])
		if err != nil {
			return nil, s.rowError("invalid stock %q", f[2])
		}
		date, err := ParseDate(f[3])
		if err != nil {
			return nil, s.rowError("invalid fecha %q", f[3])
		}
		out = append(out, domain.CurrentStock{SKU: f[0], Description: f[1], Quantity: qty, Date: date})
	}
}

// ReadReplenishments reads the planned deliveries. Rows whose date does not
// parse are kept with a zero Date and the source text in RawDate so the
// purchase evaluation of that SKU can refuse to decide.
func ReadReplenishments(r io.Reader) ([]domain.ReplenishmentEvent, error) {
	s, err := openSheet(r, TableReplenishment)
	if err != nil {
		return nil, err
	}

	var out []domain.ReplenishmentEvent
	for {
		f, err := s.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if f[0] == "" {
			continue
		}
		qty, err := parseCount(f[2])
		if err != nil || qty < 0 {
			return nil, s.rowError("invalid cantidad %q", f[2])
		}
		ev := domain.ReplenishmentEvent{SKU: f[0], Quantity: qty, RawDate: f[1]}
		if date, err := ParseDate(f[1]); err == nil {
			ev.Date = date
		}
		out = append(out, ev)
	}
}

// ReadProducts reads the product master. Rows without a SKU are dropped.
func ReadProducts(r io.Reader) ([]domain.Product, error) {
	s, err := openSheet(r, TableProducts)
	if err != nil {
		return nil, err
	}

	var out []domain.Product
	for {
		f, err := s.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if f[0] == "" {
			continue
		}
		p := domain.Product{SKU: f[0], Description: f[1], Category: f[4]}
		if p.ManufacturingCost, err = parseMoney(f[2]); err != nil {
			return nil, s.rowError("invalid costo_fabricacion %q", f[2])
		}
		if f[3] != "" {
			if p.SalePrice, err = parseMoney(f[3]); err != nil {
				return nil, s.rowError("invalid precio_venta %q", f[3])
			}
			p.HasPrice = true
		}
		out = append(out, p)
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
	"2006-01",
	"01/2006",
}

// ParseDate accepts ISO dates, day-first European dates and YYYY-MM months.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// ParseNumber parses a number written with either a decimal point or a
// decimal comma. Empty input is zero; Inf and NaN are rejected.
func ParseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(normalizeNumber(s), 64)
	if err != nil {
		return 0, err
	}
	if !stats.IsFinite(v) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

func normalizeNumber(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimSuffix(s, "€")
	if s == "" {
		return "0"
	}
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

// parseCount parses a unit count. "12,0" is accepted, "3,7" is not.
func parseCount(s string) (int, error) {
	v, err := ParseNumber(s)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("fractional count %q", s)
	}
	return int(v), nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(normalizeNumber(s))
}
