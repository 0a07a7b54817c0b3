// CLAUDE:SUMMARY Entry point: `serve` runs the upload API and MCP endpoint, `inspect` analyses one file and prints JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/verbatim/dbopen"
	"github.com/hazyhaar/verbatim/imports"
	"github.com/hazyhaar/verbatim/ingest"
	"github.com/hazyhaar/verbatim/observability"
	"github.com/hazyhaar/verbatim/server"
)

const usage = `usage:
  verbatim serve [config.yaml]     run the upload API (config also via $VERBATIM_CONFIG)
  verbatim inspect <file> [column] print the parsed file and its feedback items as JSON
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = serve(os.Args[2:])
	case "inspect":
		err = inspect(os.Stdout, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error(os.Args[1], "error", err)
		os.Exit(1)
	}
}

func serve(args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	}
	cfg, err := server.LoadConfig(path)
	if err != nil {
		return err
	}

	lvl, _ := cfg.Level()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := imports.Open(cfg.DBPath, dbopen.WithSchema(observability.Schema))
	if err != nil {
		return err
	}
	defer store.Close()

	var audit *observability.AuditLogger
	if cfg.Audit.Enabled {
		audit = observability.NewAuditLogger(store.DB(), 1000, observability.WithLogger(logger))
		defer audit.Close()
	}

	return server.New(cfg, store, audit, logger).Run(ctx)
}

type inspectOutput struct {
	File   string        `json:"file"`
	Format ingest.Format `json:"format"`
	Kind   ingest.Kind   `json:"kind"`
	Result ingest.Result `json:"result"`
	Column *string       `json:"column"`
	Items  []string      `json:"items"`
	Error  string        `json:"items_error,omitempty"`
}

func inspect(w io.Writer, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("inspect takes a file and an optional column")
	}
	var column string
	if len(args) == 2 {
		column = args[1]
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	pipe := ingest.New(ingest.Config{Logger: logger})
	res, err := pipe.ImportFile(context.Background(), args[0])
	if err != nil {
		return err
	}

	out := inspectOutput{
		File:   args[0],
		Format: ingest.DetectFormat(args[0]),
		Kind:   res.Kind(),
		Result: res,
		Items:  []string{},
	}
	items, used, err := ingest.Items(res, column)
	if err != nil {
		out.Error = err.Error()
	} else {
		out.Items = items
		if used != "" {
			out.Column = &used
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
