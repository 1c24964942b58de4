package drive

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// convertXLSXToCSV writes one sheet of a workbook as CSV. A sheet named like
// the workbook file (e.g. "maestro" in maestro.xlsx) wins over the first
// sheet. Blank rows are dropped and short rows are padded to the header
// width, since excelize omits trailing empty cells.
func convertXLSXToCSV(xlsxPath, csvPath string) error {
	book, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheet := pickSheet(book.GetSheetList(), xlsxPath)
	if sheet == "" {
		return fmt.Errorf("workbook %s has no sheets", filepath.Base(xlsxPath))
	}

	rows, err := book.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	out, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	w := csv.NewWriter(out)

	var header int
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if header == 0 {
			header = len(row)
		}
		if len(row) < header {
			row = append(row, make([]string, header-len(row))...)
		}
		if err := w.Write(row); err != nil {
			out.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func pickSheet(sheets []string, xlsxPath string) string {
	if len(sheets) == 0 {
		return ""
	}
	base := strings.TrimSuffix(filepath.Base(xlsxPath), filepath.Ext(xlsxPath))
	for _, s := range sheets {
		if strings.EqualFold(strings.TrimSpace(s), base) {
			return s
		}
	}
	return sheets[0]
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
