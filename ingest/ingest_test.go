package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hazyhaar/verbatim/kit"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"export.csv", FormatCSV},
		{"EXPORT.CSV", FormatCSV},
		{"survey.tsv", FormatTSV},
		{"book.xlsx", FormatXLSX},
		{"legacy.XLS", FormatXLSX},
		{"report.pdf", FormatPDF},
		{"notes.txt", FormatText},
		{"README", FormatText},
		{"archive.csv.gz", FormatText},
		{"", FormatText},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.name); got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestImport_TextPassthrough(t *testing.T) {
	pipe := New(Config{})
	raw := "  first line\r\nsecond line  \n"
	res, err := pipe.Import(context.Background(), "notes.txt", strings.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	txt, ok := res.(*TextResult)
	if !ok {
		t.Fatalf("got %T, want *TextResult", res)
	}
	if txt.RawText != raw {
		t.Fatalf("raw text altered: %q", txt.RawText)
	}
	if txt.Warnings == nil || len(txt.Warnings) != 0 {
		t.Fatalf("warnings = %#v, want empty", txt.Warnings)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestImport_ReadFailure(t *testing.T) {
	// WHAT: an I/O failure is the one case that returns an error.
	// WHY: content problems are warnings, a broken reader is not content.
	pipe := New(Config{})
	ctx := kit.WithRequestID(context.Background(), "req_test")
	_, err := pipe.Import(ctx, "export.csv", failingReader{})
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("err = %v", err)
	}
}

func TestImportFile_Missing(t *testing.T) {
	pipe := New(Config{})
	_, err := pipe.ImportFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestImportFile_RoutesByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Feedback.CSV")
	if err := os.WriteFile(path, []byte("id,comment\n1,Battery drains overnight\n"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := New(Config{}).ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	tbl, ok := res.(*TableResult)
	if !ok {
		t.Fatalf("got %T, want *TableResult", res)
	}
	if tbl.TextColumn != "comment" {
		t.Fatalf("text column = %q", tbl.TextColumn)
	}
}

func TestImportBytes_Idempotent(t *testing.T) {
	pipe := New(Config{})
	inputs := map[string][]byte{
		"a.csv":  []byte("id,comment\n1,Needs offline mode\n2,Search is slow\n"),
		"b.tsv":  []byte("x\ty\n1\t2\n"),
		"c.txt":  []byte("hello"),
		"d.xlsx": []byte("garbage"),
		"e.pdf":  []byte("garbage"),
	}
	for name, data := range inputs {
		first := pipe.ImportBytes(name, data)
		second := pipe.ImportBytes(name, data)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: results differ between runs", name)
		}
		if tbl, ok := first.(*TableResult); ok {
			assertTableInvariants(t, tbl)
		}
	}
}

func TestImportBytes_KindPerFormat(t *testing.T) {
	pipe := New(Config{})
	tests := map[string]Kind{
		"a.csv":  KindTable,
		"a.tsv":  KindTable,
		"a.xlsx": KindTable,
		"a.xls":  KindTable,
		"a.pdf":  KindText,
		"a.md":   KindText,
	}
	for name, want := range tests {
		if got := pipe.ImportBytes(name, nil).Kind(); got != want {
			t.Errorf("%s: kind = %q, want %q", name, got, want)
		}
	}
}

func TestSupportedFormats(t *testing.T) {
	got := SupportedFormats()
	for _, ext := range got {
		if DetectFormat("f."+ext) == FormatText {
			t.Errorf("%s listed as supported but routed to text", ext)
		}
	}
}
