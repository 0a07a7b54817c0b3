package ingest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// parseWorkbook reads the first sheet of a workbook as a raw matrix. An
// unreadable workbook, a workbook without sheets and an empty first sheet all
// produce an empty table with a warning rather than an error.
func parseWorkbook(data []byte) *TableResult {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return emptyTable(fmt.Sprintf("Could not read workbook: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return emptyTable("Workbook contains no sheets.")
	}
	sheet := sheets[0]

	sr := &sheetReader{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	raw, warnings := sr.read()

	rows := make([][]string, 0, len(raw))
	for _, r := range raw {
		cells := normalizeRow(r)
		if isBlankRow(cells) {
			continue
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		t := emptyTable(fmt.Sprintf("First sheet %q contains no rows.", sheet))
		t.Warnings = append(t.Warnings, warnings...)
		return t
	}

	t := buildTable(rows, nil)
	t.Warnings = append(t.Warnings, warnings...)
	return t
}

// sheetReader turns stored cell values back into typed raw cells so that
// booleans and dates normalize the same way regardless of their display format.
type sheetReader struct {
	f          *excelize.File
	sheet      string
	dateStyles map[int]bool
}

func (sr *sheetReader) read() ([][]any, []string) {
	rows, err := sr.f.Rows(sr.sheet)
	if err != nil {
		return nil, []string{fmt.Sprintf("Could not read sheet %q: %v", sr.sheet, err)}
	}
	defer rows.Close()

	var (
		matrix   [][]any
		warnings []string
	)
	rowNr := 0
	for rows.Next() {
		rowNr++
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Row %d: %v", rowNr, err))
			continue
		}
		raw := make([]any, len(cols))
		for i, v := range cols {
			raw[i] = sr.cell(i+1, rowNr, v)
		}
		matrix = append(matrix, raw)
	}
	if err := rows.Error(); err != nil {
		warnings = append(warnings, fmt.Sprintf("Stopped reading sheet %q: %v", sr.sheet, err))
	}
	return matrix, warnings
}

func (sr *sheetReader) cell(col, row int, v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return v
	}
	typ, err := sr.f.GetCellType(sr.sheet, axis)
	if err != nil {
		return v
	}

	switch typ {
	case excelize.CellTypeBool:
		return v == "1" || strings.EqualFold(v, "true")
	case excelize.CellTypeDate:
		if t, ok := parseISODate(v); ok {
			return t
		}
		return v
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return v
		}
		if sr.isDateCell(axis) {
			if t, err := excelize.ExcelDateToTime(n, false); err == nil {
				return t
			}
		}
		return n
	default:
		return v
	}
}

func (sr *sheetReader) isDateCell(axis string) bool {
	idx, err := sr.f.GetCellStyle(sr.sheet, axis)
	if err != nil || idx == 0 {
		return false
	}
	if isDate, ok := sr.dateStyles[idx]; ok {
		return isDate
	}
	isDate := false
	if style, err := sr.f.GetStyle(idx); err == nil && style != nil {
		isDate = isDateNumFmt(style.NumFmt, style.CustomNumFmt)
	}
	sr.dateStyles[idx] = isDate
	return isDate
}

// isDateNumFmt recognises the built-in date/time number formats and custom
// formats built from date tokens.
func isDateNumFmt(id int, custom *string) bool {
	if custom != nil {
		f := strings.ToLower(*custom)
		return strings.Contains(f, "yy") || strings.Contains(f, "dd") ||
			strings.Contains(f, "mmm") || strings.Contains(f, "hh")
	}
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

var isoDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseISODate(v string) (time.Time, bool) {
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
