// CLAUDE:SUMMARY Defines Format, the Result sum type (TextResult | TableResult) and TableRow for the ingest pipeline.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Format identifies how an uploaded file is parsed.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
)

// Kind discriminates the two Result shapes.
type Kind string

const (
	KindText  Kind = "text"
	KindTable Kind = "table"
)

// ErrUnknownColumn is returned when a text column override is not one of the table's columns.
var ErrUnknownColumn = errors.New("unknown column")

// ErrNoTextColumn is returned when items are requested from a table that has
// neither a detected nor a chosen text column.
var ErrNoTextColumn = errors.New("no text column")

// Result is the outcome of ingesting one file. It is either a *TextResult or
// a *TableResult; callers are expected to type-switch on it.
type Result interface {
	Kind() Kind
	// Notices returns the non-fatal warnings gathered while parsing.
	Notices() []string

	isResult()
}

// TableRow maps a column name to its normalized cell. Every row of a table
// carries exactly the table's column names as keys.
type TableRow map[string]string

// TextResult holds a file ingested as one opaque text blob.
type TextResult struct {
	RawText  string             `json:"raw_text"`
	Warnings []string           `json:"warnings"`
	Quality  *ExtractionQuality `json:"quality,omitempty"` // PDF only
}

// TableResult holds a file ingested as named columns.
type TableResult struct {
	Columns []string   `json:"columns"`
	Rows    []TableRow `json:"rows"`
	// TextColumn is the column holding free-form feedback: the detected one,
	// or the user's choice once overridden. "" means none, written as null.
	TextColumn string   `json:"text_column"`
	Warnings   []string `json:"warnings"`
}

// MarshalJSON writes an empty TextColumn as null.
func (t TableResult) MarshalJSON() ([]byte, error) {
	type plain TableResult
	var column *string
	if t.TextColumn != "" {
		column = &t.TextColumn
	}
	return json.Marshal(struct {
		plain
		TextColumn *string `json:"text_column"`
	}{plain(t), column})
}

func (*TextResult) Kind() Kind           { return KindText }
func (r *TextResult) Notices() []string  { return r.Warnings }
func (*TextResult) isResult()            {}
func (*TableResult) Kind() Kind          { return KindTable }
func (r *TableResult) Notices() []string { return r.Warnings }
func (*TableResult) isResult()           {}

// HasTextColumn reports whether a text column was detected or chosen.
func (t *TableResult) HasTextColumn() bool { return t.TextColumn != "" }

// HasColumn reports whether name is one of the table's columns.
func (t *TableResult) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// WithTextColumn returns a copy of the table whose TextColumn is set to column.
// Passing "" clears the choice. The receiver is left untouched; rows are shared
// since nothing downstream mutates them.
func (t *TableResult) WithTextColumn(column string) (*TableResult, error) {
	if column != "" && !t.HasColumn(column) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	out := *t
	out.Columns = slices.Clone(t.Columns)
	out.Warnings = slices.Clone(t.Warnings)
	out.TextColumn = column
	return &out, nil
}

func emptyTable(warning string) *TableResult {
	return &TableResult{
		Columns:  []string{},
		Rows:     []TableRow{},
		Warnings: []string{warning},
	}
}
