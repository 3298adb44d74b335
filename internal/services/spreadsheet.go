package services

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// sheetTable is the first worksheet of an uploaded workbook, addressed by
// lower-cased header names.
type sheetTable struct {
	columns map[string]int
	rows    [][]string
}

func readSheetTable(file io.Reader, required ...string) (*sheetTable, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, ErrInvalidSpreadsheet.Wrap(err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, ErrInvalidSpreadsheet.Wrap(err)
	}
	if len(rows) == 0 {
		return nil, ErrInvalidSpreadsheet.Wrap(fmt.Errorf("sheet %q is empty", sheet))
	}

	table := &sheetTable{columns: make(map[string]int), rows: rows[1:]}
	for i, name := range rows[0] {
		table.columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := table.columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, ErrInvalidSpreadsheet.Wrap(fmt.Errorf("missing columns: %s", strings.Join(missing, ", ")))
	}
	return table, nil
}

// cell returns the trimmed value of a named column, "" when absent.
func (t *sheetTable) cell(row []string, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *sheetTable) optionalCell(row []string, column string) *string {
	v := t.cell(row, column)
	if v == "" {
		return nil
	}
	return &v
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sheetRowNumber converts a data row index to the 1-based row shown in a
// spreadsheet, counting the header.
func sheetRowNumber(i int) int {
	return i + 2
}

func parseOptionalInt(v string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// writeSheet renders a header and rows into a single-sheet workbook.
func writeSheet(sheet string, header []interface{}, rows [][]interface{}) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cellRef, &rows[i]); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
