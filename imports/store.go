// CLAUDE:SUMMARY SQLite store of import records: one row per ingested file, its full result and the user's text-column choice.
// CLAUDE:DEPENDS dbopen, idgen, ingest
// CLAUDE:EXPORTS Store, Record, Open, New, Schema
package imports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/verbatim/dbopen"
	"github.com/hazyhaar/verbatim/idgen"
	"github.com/hazyhaar/verbatim/ingest"
)

const idPrefix = "imp_"

// Schema is the DDL of the import store. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS imports (
    id               TEXT PRIMARY KEY,
    filename         TEXT NOT NULL,
    format           TEXT NOT NULL,
    kind             TEXT NOT NULL,
    size_bytes       INTEGER NOT NULL,
    row_count        INTEGER NOT NULL DEFAULT 0,
    columns          TEXT NOT NULL DEFAULT '[]',
    detected_column  TEXT NOT NULL DEFAULT '',
    text_column      TEXT NOT NULL DEFAULT '',
    warnings         TEXT NOT NULL DEFAULT '[]',
    result           TEXT NOT NULL,
    created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_imports_created ON imports(created_at, id);
`

// Record is one stored import. Result is loaded by Get and SetTextColumn
// only; List leaves it nil.
type Record struct {
	ID             string        `json:"id"`
	Filename       string        `json:"filename"`
	Format         ingest.Format `json:"format"`
	Kind           ingest.Kind   `json:"kind"`
	SizeBytes      int64         `json:"size_bytes"`
	RowCount       int           `json:"row_count"`
	Columns        []string      `json:"columns"`
	DetectedColumn string        `json:"detected_text_column"`
	TextColumn     string        `json:"text_column"`
	Warnings       []string      `json:"warnings"`
	CreatedAt      string        `json:"created_at"`
	Result         ingest.Result `json:"-"`
}

// Store persists import records in SQLite.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
	now   func() time.Time
}

// Open opens (or creates) the store database at path and applies Schema.
// opts can queue the DDL of tables sharing the file.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	opts = append([]dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}, opts...)
	db, err := dbopen.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("imports: %w", err)
	}
	return New(db), nil
}

// New wraps a database that already carries Schema.
func New(db *sql.DB) *Store {
	return &Store{
		db:    db,
		newID: idgen.Prefixed(idPrefix, idgen.UUIDv7()),
		now:   time.Now,
	}
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Save stores a freshly ingested result. The text column starts out as the
// detected one.
func (s *Store) Save(ctx context.Context, filename string, size int64, res ingest.Result) (*Record, error) {
	rec := &Record{
		ID:        s.newID(),
		Filename:  filename,
		Format:    ingest.DetectFormat(filename),
		Kind:      res.Kind(),
		SizeBytes: size,
		Columns:   []string{},
		Warnings:  nonNil(res.Notices()),
		CreatedAt: s.now().UTC().Format(time.RFC3339),
		Result:    res,
	}
	if t, ok := res.(*ingest.TableResult); ok {
		rec.RowCount = len(t.Rows)
		rec.Columns = nonNil(t.Columns)
		rec.DetectedColumn = t.TextColumn
		rec.TextColumn = t.TextColumn
	}

	resultJSON, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("imports: marshal result: %w", err)
	}
	columns, _ := json.Marshal(rec.Columns)
	warnings, _ := json.Marshal(rec.Warnings)

	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO imports (id, filename, format, kind, size_bytes, row_count, columns,
			 detected_column, text_column, warnings, result, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Filename, string(rec.Format), string(rec.Kind), rec.SizeBytes, rec.RowCount,
			string(columns), rec.DetectedColumn, rec.TextColumn, string(warnings), string(resultJSON), rec.CreatedAt,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("imports: save %s: %w", filename, err)
	}
	return rec, nil
}

const recordColumns = `id, filename, format, kind, size_bytes, row_count, columns,
	detected_column, text_column, warnings, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, withResult bool) (*Record, error) {
	var (
		rec                         Record
		format, kind                string
		columns, warnings, resultJS string
	)
	dest := []any{&rec.ID, &rec.Filename, &format, &kind, &rec.SizeBytes, &rec.RowCount, &columns,
		&rec.DetectedColumn, &rec.TextColumn, &warnings, &rec.CreatedAt}
	if withResult {
		dest = append(dest, &resultJS)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rec.Format = ingest.Format(format)
	rec.Kind = ingest.Kind(kind)
	if err := json.Unmarshal([]byte(columns), &rec.Columns); err != nil {
		return nil, fmt.Errorf("decode columns of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(warnings), &rec.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings of %s: %w", rec.ID, err)
	}
	if withResult {
		res, err := decodeResult(rec.Kind, []byte(resultJS))
		if err != nil {
			return nil, fmt.Errorf("decode result of %s: %w", rec.ID, err)
		}
		rec.Result = res
	}
	return &rec, nil
}

func decodeResult(kind ingest.Kind, data []byte) (ingest.Result, error) {
	switch kind {
	case ingest.KindTable:
		var t ingest.TableResult
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
		return &t, nil
	case ingest.KindText:
		var t ingest.TextResult
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

// Get returns the record with its full result, or nil, nil when id is
// unknown or malformed.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	return s.get(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) get(ctx context.Context, q queryer, id string) (*Record, error) {
	if _, err := idgen.ParsePrefixed(idPrefix, id); err != nil {
		return nil, nil
	}
	row := q.QueryRowContext(ctx, `SELECT `+recordColumns+`, result FROM imports WHERE id = ?`, id)
	rec, err := scanRecord(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("imports: get %s: %w", id, err)
	}
	return rec, nil
}

// List returns records newest first, without their results.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM imports ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("imports: list: %w", err)
	}
	defer rows.Close()

	out := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, false)
		if err != nil {
			return nil, fmt.Errorf("imports: list: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetTextColumn records the user's choice of feedback column. An empty
// column clears the choice. It returns nil, nil when the import does not
// exist, and an error wrapping ingest.ErrUnknownColumn when column is not one
// of its columns (text imports have none).
func (s *Store) SetTextColumn(ctx context.Context, id, column string) (*Record, error) {
	var rec *Record
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		rec, err = s.get(ctx, tx, id)
		if err != nil || rec == nil {
			return err
		}

		tbl, ok := rec.Result.(*ingest.TableResult)
		if !ok {
			if column == "" {
				return nil
			}
			return fmt.Errorf("%w: %q (text import has no columns)", ingest.ErrUnknownColumn, column)
		}
		updated, err := tbl.WithTextColumn(column)
		if err != nil {
			return err
		}
		data, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE imports SET text_column = ?, result = ? WHERE id = ?`,
			column, string(data), id,
		); err != nil {
			return err
		}
		rec.TextColumn = column
		rec.Result = updated
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("imports: set text column of %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes a record. It reports whether a record was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM imports WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("imports: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("imports: delete %s: %w", id, err)
	}
	return n > 0, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
