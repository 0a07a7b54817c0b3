package ingest

import (
	"slices"
	"strings"
	"testing"
)

func TestParseDelimited_HeaderedCSV(t *testing.T) {
	data := "id,comment,rating\n1,\"The app is slow and crashes\",2\n2,\"Love the UI, but billing is confusing\",4"
	tbl := parseDelimited([]byte(data), ',')
	assertTableInvariants(t, tbl)

	if !slices.Equal(tbl.Columns, []string{"id", "comment", "rating"}) {
		t.Fatalf("columns = %v", tbl.Columns)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if tbl.TextColumn != "comment" {
		t.Fatalf("text column = %q, want comment", tbl.TextColumn)
	}
	want := []string{"The app is slow and crashes", "Love the UI, but billing is confusing"}
	if got := TableRowsToItems(tbl.Rows, tbl.TextColumn); !slices.Equal(got, want) {
		t.Fatalf("items = %q, want %q", got, want)
	}
	if len(tbl.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", tbl.Warnings)
	}
}

func TestParseDelimited_TSV(t *testing.T) {
	data := "user\tmessage\nann\tCannot reset my password\nbob\tInvoices arrive late, every month"
	tbl := parseDelimited([]byte(data), '\t')
	assertTableInvariants(t, tbl)

	if !slices.Equal(tbl.Columns, []string{"user", "message"}) {
		t.Fatalf("columns = %v", tbl.Columns)
	}
	if tbl.Rows[1]["message"] != "Invoices arrive late, every month" {
		t.Fatalf("comma inside TSV field split: %v", tbl.Rows[1])
	}
	if tbl.TextColumn != "message" {
		t.Fatalf("text column = %q", tbl.TextColumn)
	}
}

func TestParseDelimited_BOM(t *testing.T) {
	// WHAT: a UTF-8 byte order mark does not leak into the first column name.
	// WHY: spreadsheet exports on Windows prepend one.
	data := "\xef\xbb\xbfid,feedback\n1,Works fine\n"
	tbl := parseDelimited([]byte(data), ',')
	if tbl.Columns[0] != "id" {
		t.Fatalf("first column = %q", tbl.Columns[0])
	}
}

func TestParseDelimited_BlankHeaderName(t *testing.T) {
	data := "id,,comment\n1,x,Slow search\n"
	tbl := parseDelimited([]byte(data), ',')
	want := []string{"id", "Column 2", "comment"}
	if !slices.Equal(tbl.Columns, want) {
		t.Fatalf("columns = %v, want %v", tbl.Columns, want)
	}
	assertTableInvariants(t, tbl)
}

func TestParseDelimited_Ragged(t *testing.T) {
	data := "name,comment,score\nAnn,Too expensive\nBob,Great,5,extra\n"
	tbl := parseDelimited([]byte(data), ',')
	assertTableInvariants(t, tbl)

	if tbl.Rows[0]["score"] != "" {
		t.Fatalf("missing cell = %q, want empty", tbl.Rows[0]["score"])
	}
	if tbl.Rows[1]["score"] != "5" {
		t.Fatalf("score = %q", tbl.Rows[1]["score"])
	}
	want := []string{
		"Line 2: expected 3 fields, got 2",
		"Line 3: expected 3 fields, got 4",
	}
	if !slices.Equal(tbl.Warnings, want) {
		t.Fatalf("warnings = %q, want %q", tbl.Warnings, want)
	}
}

func TestParseDelimited_UnterminatedQuote(t *testing.T) {
	// WHAT: a quote that never closes is reported; the lenient read still
	// returns what it could.
	// WHY: the open quote swallows every following line into one cell.
	data := "id,comment\n1,\"never closed\n2,second row\n3,third row\n"
	tbl := parseDelimited([]byte(data), ',')
	assertTableInvariants(t, tbl)

	if len(tbl.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(tbl.Rows))
	}
	if len(tbl.Warnings) != 1 || !strings.HasPrefix(tbl.Warnings[0], "Line 2: ") {
		t.Fatalf("warnings = %q", tbl.Warnings)
	}
}

func TestParseDelimited_BareQuoteTolerated(t *testing.T) {
	data := "id,comment\n1,The 5\" screen cracked\n"
	tbl := parseDelimited([]byte(data), ',')
	if tbl.Rows[0]["comment"] != `The 5" screen cracked` {
		t.Fatalf("comment = %q", tbl.Rows[0]["comment"])
	}
	if len(tbl.Warnings) != 0 {
		t.Fatalf("warnings = %q", tbl.Warnings)
	}
}

func TestParseDelimited_Empty(t *testing.T) {
	tbl := parseDelimited(nil, ',')
	if len(tbl.Columns) != 0 || len(tbl.Rows) != 0 || tbl.HasTextColumn() {
		t.Fatalf("unexpected table: %+v", tbl)
	}
	if len(tbl.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", tbl.Warnings)
	}
}

func TestParseDelimited_HeaderOnly(t *testing.T) {
	tbl := parseDelimited([]byte("id,comment\n"), ',')
	if !slices.Equal(tbl.Columns, []string{"id", "comment"}) {
		t.Fatalf("columns = %v", tbl.Columns)
	}
	if len(tbl.Rows) != 0 {
		t.Fatalf("rows = %v", tbl.Rows)
	}
	if tbl.HasTextColumn() {
		t.Fatalf("no rows, yet text column %q detected", tbl.TextColumn)
	}
}

func TestParseDelimited_BlankAndQuotedLines(t *testing.T) {
	data := "id,comment\n\n1,\"first line\nsecond line\"\n\n2,ok\n"
	tbl := parseDelimited([]byte(data), ',')
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2: %v", len(tbl.Rows), tbl.Rows)
	}
	if tbl.Rows[0]["comment"] != "first line\nsecond line" {
		t.Fatalf("quoted newline lost: %q", tbl.Rows[0]["comment"])
	}
}

func TestParseDelimited_TrimsCells(t *testing.T) {
	tbl := parseDelimited([]byte(" id , comment \n 7 ,  padded value  \n"), ',')
	if !slices.Equal(tbl.Columns, []string{"id", "comment"}) {
		t.Fatalf("columns = %v", tbl.Columns)
	}
	if tbl.Rows[0]["comment"] != "padded value" || tbl.Rows[0]["id"] != "7" {
		t.Fatalf("row = %v", tbl.Rows[0])
	}
}
