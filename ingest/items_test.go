package ingest

import (
	"errors"
	"slices"
	"testing"
)

func TestTableRowsToItems(t *testing.T) {
	rows := []TableRow{
		{"c": "  first  "},
		{"c": ""},
		{"c": "   "},
		{"c": "first"},
		{"other": "no c here"},
		{"c": "last"},
	}
	got := TableRowsToItems(rows, "c")
	want := []string{"first", "first", "last"}
	if !slices.Equal(got, want) {
		t.Fatalf("items = %q, want %q", got, want)
	}
	if got := TableRowsToItems(nil, "c"); got == nil || len(got) != 0 {
		t.Fatalf("nil rows = %#v, want empty slice", got)
	}
}

func TestTextItems(t *testing.T) {
	got := TextItems("one\r\n\r\n  two  \rthree\n\n")
	want := []string{"one", "two", "three"}
	if !slices.Equal(got, want) {
		t.Fatalf("items = %q, want %q", got, want)
	}
	if got := TextItems(""); got == nil || len(got) != 0 {
		t.Fatalf("empty text = %#v", got)
	}
}

func TestCleanItems(t *testing.T) {
	in := []string{
		"<p>Checkout <b>fails</b></p>",
		"Fish &amp; chips",
		"<script>alert(1)</script>",
		"plain   spaced\ttext",
	}

	if got := CleanItems(in, false); !slices.Equal(got, in) {
		t.Fatalf("stripHTML=false altered items: %q", got)
	}

	got := CleanItems(in, true)
	want := []string{"Checkout fails", "Fish & chips", "plain spaced text"}
	if !slices.Equal(got, want) {
		t.Fatalf("items = %q, want %q", got, want)
	}
}

func TestItems(t *testing.T) {
	tbl := ToTable([][]any{
		{"id", "comment"},
		{1, "Too many notifications"},
		{2, "Great onboarding"},
	}, nil)

	items, col, err := Items(tbl, "")
	if err != nil {
		t.Fatal(err)
	}
	if col != "comment" || len(items) != 2 {
		t.Fatalf("got %q from %q", items, col)
	}

	items, col, err = Items(tbl, "id")
	if err != nil || col != "id" || !slices.Equal(items, []string{"1", "2"}) {
		t.Fatalf("override: %q %q %v", items, col, err)
	}

	if _, _, err := Items(tbl, "missing"); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("err = %v, want ErrUnknownColumn", err)
	}

	none, _ := tbl.WithTextColumn("")
	if _, _, err := Items(none, ""); !errors.Is(err, ErrNoTextColumn) {
		t.Fatalf("err = %v, want ErrNoTextColumn", err)
	}

	txt := &TextResult{RawText: "a\nb", Warnings: []string{}}
	if items, _, err := Items(txt, ""); err != nil || !slices.Equal(items, []string{"a", "b"}) {
		t.Fatalf("text items: %q %v", items, err)
	}
	if _, _, err := Items(txt, "comment"); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("err = %v, want ErrUnknownColumn", err)
	}
}
