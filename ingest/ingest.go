// CLAUDE:SUMMARY Format dispatcher: routes an uploaded file by extension to the CSV, TSV, workbook, PDF or text parser.
// Package ingest turns an uploaded feedback file of unknown structure into
// either a text blob or a table with a detected feedback column.
//
// Routing by lower-cased extension:
//   - .csv        comma-separated, first record names the fields
//   - .tsv        tab-separated, same rules as .csv
//   - .xlsx, .xls first sheet of a workbook, header row detected heuristically
//   - .pdf        page-ordered text extraction
//   - anything else, including no extension: raw text
//
// Usage:
//
//	pipe := ingest.New(ingest.Config{})
//	res, err := pipe.ImportFile(ctx, "/path/to/export.csv")
//	if t, ok := res.(*ingest.TableResult); ok && t.HasTextColumn() {
//		items := ingest.TableRowsToItems(t.Rows, t.TextColumn)
//	}
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/verbatim/kit"
)

// Pipeline is the ingestion engine. It holds no parser state between calls,
// so one Pipeline can serve concurrent imports.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Detect returns the parsing format for a file name.
func (p *Pipeline) Detect(name string) Format {
	return DetectFormat(name)
}

// DetectFormat maps a file name's lower-cased extension to a Format.
// Unknown or missing extensions are text.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV
	case ".tsv":
		return FormatTSV
	case ".xlsx", ".xls":
		return FormatXLSX
	case ".pdf":
		return FormatPDF
	default:
		return FormatText
	}
}

// ImportFile reads and ingests the file at path. Only the read can fail.
func (p *Pipeline) ImportFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return p.Import(ctx, filepath.Base(path), f)
}

// Import reads r to the end and ingests it under the given file name.
// A read failure is returned as is; content problems end up in the
// result's warnings.
func (p *Pipeline) Import(ctx context.Context, name string, r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	res := p.ImportBytes(name, data)

	log := p.logger.With("file", name, "kind", res.Kind())
	if id := kit.GetRequestID(ctx); id != "" {
		log = log.With("request_id", id)
	}
	for _, w := range res.Notices() {
		log.Warn("ingest warning", "warning", w)
	}
	if t, ok := res.(*TableResult); ok {
		log.Debug("table ingested", "columns", len(t.Columns), "rows", len(t.Rows), "text_column", t.TextColumn)
	}
	return res, nil
}

// ImportBytes ingests an in-memory file. It is a pure function of name and data.
func (p *Pipeline) ImportBytes(name string, data []byte) Result {
	format := DetectFormat(name)
	p.logger.Debug("ingesting file", "file", name, "format", format, "bytes", len(data))

	switch format {
	case FormatCSV:
		return parseDelimited(data, ',')
	case FormatTSV:
		return parseDelimited(data, '\t')
	case FormatXLSX:
		return parseWorkbook(data)
	case FormatPDF:
		return ExtractPDFText(data)
	default:
		return &TextResult{
			RawText:  string(bytes.TrimPrefix(data, utf8BOM)),
			Warnings: []string{},
		}
	}
}

// SupportedFormats returns the extensions with a dedicated parser.
func SupportedFormats() []string {
	return []string{"csv", "tsv", "xlsx", "xls", "pdf"}
}
