package ingest

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TableRowsToItems projects one column out of rows as feedback items:
// trimmed, empties dropped, order kept, duplicates kept.
func TableRowsToItems(rows []TableRow, column string) []string {
	items := make([]string, 0, len(rows))
	for _, row := range rows {
		if v := strings.TrimSpace(row[column]); v != "" {
			items = append(items, v)
		}
	}
	return items
}

// TextItems splits a text result into one item per non-blank line.
func TextItems(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	items := []string{}
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}
	return items
}

// CleanItems strips markup from items when stripHTML is set, collapsing the
// remaining whitespace. Items left empty are dropped. With stripHTML unset the
// input is returned as is.
func CleanItems(items []string, stripHTML bool) []string {
	if !stripHTML {
		return items
	}
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	out := make([]string, 0, len(items))
	for _, it := range items {
		// StrictPolicy escapes what it keeps; items are plain text downstream.
		text := html.UnescapeString(policy.Sanitize(it))
		if text = strings.Join(strings.Fields(text), " "); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// Items extracts feedback items from any Result. For tables, column overrides
// the detected text column; the column actually used is returned. Text
// results are split into lines and column must be empty.
func Items(res Result, column string) ([]string, string, error) {
	switch r := res.(type) {
	case *TableResult:
		if column == "" {
			column = r.TextColumn
		}
		if column == "" {
			return nil, "", fmt.Errorf("%w: choose one of %q", ErrNoTextColumn, r.Columns)
		}
		if !r.HasColumn(column) {
			return nil, "", fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		}
		return TableRowsToItems(r.Rows, column), column, nil
	case *TextResult:
		if column != "" {
			return nil, "", fmt.Errorf("%w: %q (text input has no columns)", ErrUnknownColumn, column)
		}
		return TextItems(r.RawText), "", nil
	default:
		return nil, "", fmt.Errorf("unsupported result %T", res)
	}
}
