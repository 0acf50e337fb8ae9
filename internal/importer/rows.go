package importer

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// maxXLSRows bounds how many rows are read from a legacy workbook.
const maxXLSRows = 100000

// ReadRows decodes a statement file into rows, choosing the reader by
// extension. Spreadsheets use their first sheet; anything else is treated as
// delimited text and never fails.
func ReadRows(name string, data []byte) ([]RawRow, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return readXLSX(data)
	case ".xls":
		return readXLS(data)
	default:
		return Tokenize(string(data)), nil
	}
}

func readXLSX(data []byte) ([]RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	return cleanRows(cells), nil
}

func readXLS(data []byte) ([]RawRow, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("opening xls: %w", err)
	}
	return cleanRows(wb.ReadAllCells(maxXLSRows)), nil
}

// cleanRows applies the tokenizer's trimming and blank-row rules to
// spreadsheet cells.
func cleanRows(cells [][]string) []RawRow {
	var rows []RawRow
	for _, rec := range cells {
		row := make(RawRow, len(rec))
		for i, c := range rec {
			row[i] = strings.TrimSpace(c)
		}
		if hasContent(row) {
			rows = append(rows, row)
		}
	}
	return rows
}
