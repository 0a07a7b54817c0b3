package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// parseDelimited reads comma- or tab-separated data in header mode: the first
// record names the fields and is never re-examined by the header detector.
// Rows whose width differs from the header are kept (padded or truncated) and
// reported as warnings, as are quoted fields that never close properly.
func parseDelimited(data []byte, comma rune) *TableResult {
	data = bytes.TrimPrefix(data, utf8BOM)

	r := newDelimitedReader(data, comma)
	r.LazyQuotes = true

	var (
		header   []string
		records  [][]string
		warnings = quoteWarnings(data, comma)
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				warnings = append(warnings, fmt.Sprintf("Line %d: %v", pe.StartLine, pe.Err))
				continue
			}
			warnings = append(warnings, fmt.Sprintf("Stopped reading: %v", err))
			break
		}
		if header == nil {
			header = rec
			continue
		}
		if len(rec) != len(header) {
			line, _ := r.FieldPos(0)
			warnings = append(warnings, fmt.Sprintf("Line %d: expected %d fields, got %d", line, len(header), len(rec)))
		}
		records = append(records, normalizeRow(stringsToAny(rec)))
	}

	if header == nil {
		t := emptyTable("No rows found in file.")
		t.Warnings = append(t.Warnings, warnings...)
		return t
	}

	t := buildTable(records, header)
	t.Warnings = append(t.Warnings, warnings...)
	return t
}

func newDelimitedReader(data []byte, comma rune) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	return r
}

// quoteWarnings re-reads data with strict quoting and reports every record
// whose quoted field is unterminated or followed by stray text. The lenient
// pass keeps such records, usually merged with the lines after them.
func quoteWarnings(data []byte, comma rune) []string {
	r := newDelimitedReader(data, comma)
	r.ReuseRecord = true

	warnings := []string{}
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			return warnings
		}
		var pe *csv.ParseError
		if !errors.As(err, &pe) {
			if err != nil {
				return warnings
			}
			continue
		}
		if errors.Is(pe.Err, csv.ErrQuote) {
			warnings = append(warnings, fmt.Sprintf("Line %d: %v", pe.StartLine, pe.Err))
		}
	}
}

func stringsToAny(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
