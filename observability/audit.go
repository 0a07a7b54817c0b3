// CLAUDE:SUMMARY Asynchronous SQLite audit trail of import operations (HTTP and MCP), with filtered queries and retention cleanup.
// CLAUDE:DEPENDS dbopen, idgen, kit
// CLAUDE:EXPORTS AuditLogger, AuditEntry, AuditFilter, NewAuditLogger, Schema, Init
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/verbatim/dbopen"
	"github.com/hazyhaar/verbatim/idgen"
	"github.com/hazyhaar/verbatim/kit"
)

const (
	defaultQueryLimit = 100
	batchSize         = 100
)

// AuditEntry is one recorded operation.
type AuditEntry struct {
	EntryID      string          `json:"entry_id"`
	Timestamp    time.Time       `json:"timestamp"`
	Transport    string          `json:"transport"` // "http", "mcp"
	Operation    string          `json:"operation"` // e.g. "import", "set_text_column", "ingest_items"
	RequestID    string          `json:"request_id,omitempty"`
	ImportID     string          `json:"import_id,omitempty"`
	Parameters   json.RawMessage `json:"parameters,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	Status       string          `json:"status"` // "success", "error"
}

// AuditFilter narrows Query. Empty fields match everything.
type AuditFilter struct {
	Transport string
	Operation string
	ImportID  string
	Limit     int // default 100
	Offset    int
}

// AuditLogger persists audit entries in batches from a background goroutine.
type AuditLogger struct {
	db            *sql.DB
	logger        *slog.Logger
	newID         idgen.Generator
	flushInterval time.Duration

	ch      chan *AuditEntry
	flushCh chan chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// AuditOption configures an AuditLogger.
type AuditOption func(*AuditLogger)

// WithLogger sets the logger used for write failures.
func WithLogger(l *slog.Logger) AuditOption {
	return func(a *AuditLogger) { a.logger = l }
}

// WithFlushInterval sets how often queued entries are written. Default 5s.
func WithFlushInterval(d time.Duration) AuditOption {
	return func(a *AuditLogger) { a.flushInterval = d }
}

// NewAuditLogger starts an audit logger on a database carrying Schema.
// Recommended bufferSize: 1000.
func NewAuditLogger(db *sql.DB, bufferSize int, opts ...AuditOption) *AuditLogger {
	a := &AuditLogger{
		db:            db,
		logger:        slog.Default(),
		newID:         idgen.Prefixed("aud_", idgen.UUIDv7()),
		flushInterval: 5 * time.Second,
		ch:            make(chan *AuditEntry, bufferSize),
		flushCh:       make(chan chan struct{}),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	go a.flushLoop()
	return a
}

// NewEntry builds an entry for operation, taking the transport and request ID
// from ctx. params is marshalled to JSON.
func (a *AuditLogger) NewEntry(ctx context.Context, operation, importID string, params any, err error, duration time.Duration) *AuditEntry {
	e := &AuditEntry{
		EntryID:    a.newID(),
		Timestamp:  time.Now().UTC(),
		Transport:  kit.GetTransport(ctx),
		Operation:  operation,
		RequestID:  kit.GetRequestID(ctx),
		ImportID:   importID,
		DurationMs: duration.Milliseconds(),
		Status:     "success",
	}
	if params != nil {
		if b, mErr := json.Marshal(params); mErr == nil {
			e.Parameters = b
		}
	}
	if err != nil {
		e.Status = "error"
		e.ErrorMessage = err.Error()
	}
	return e
}

// Log writes an entry synchronously.
func (a *AuditLogger) Log(ctx context.Context, e *AuditEntry) error {
	a.fillDefaults(e)
	return dbopen.RunTx(ctx, a.db, func(tx *sql.Tx) error { return insert(ctx, tx, e) })
}

// LogAsync queues an entry. When the buffer is full the entry is written
// synchronously.
func (a *AuditLogger) LogAsync(e *AuditEntry) {
	a.fillDefaults(e)
	select {
	case a.ch <- e:
	default:
		a.logger.Warn("audit buffer full, writing synchronously", "operation", e.Operation)
		if err := a.Log(context.Background(), e); err != nil {
			a.logger.Error("audit sync write failed", "error", err)
		}
	}
}

// Middleware records one entry per call of the wrapped endpoint, named after
// operation. The request is stored as the entry parameters.
func (a *AuditLogger) Middleware(operation string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			a.LogAsync(a.NewEntry(ctx, operation, "", req, err, time.Since(start)))
			return resp, err
		}
	}
}

// Flush writes every queued entry before returning.
func (a *AuditLogger) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case a.flushCh <- ack:
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Query returns entries matching f, newest first.
func (a *AuditLogger) Query(ctx context.Context, f AuditFilter) ([]*AuditEntry, error) {
	q := `SELECT entry_id, timestamp, transport, operation, request_id, import_id,
		parameters, error_message, duration_ms, status
		FROM audit_log WHERE 1=1`
	var args []any
	if f.Transport != "" {
		q += " AND transport = ?"
		args = append(args, f.Transport)
	}
	if f.Operation != "" {
		q += " AND operation = ?"
		args = append(args, f.Operation)
	}
	if f.ImportID != "" {
		q += " AND import_id = ?"
		args = append(args, f.ImportID)
	}

	limit := defaultQueryLimit
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " ORDER BY timestamp DESC, entry_id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, max(f.Offset, 0))

	rows, err := a.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var ts int64
		var requestID, importID, errMsg sql.NullString
		var params string
		var durationMs sql.NullInt64
		if err := rows.Scan(&e.EntryID, &ts, &e.Transport, &e.Operation,
			&requestID, &importID, &params, &errMsg, &durationMs, &e.Status); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		e.RequestID = requestID.String
		e.ImportID = importID.String
		e.ErrorMessage = errMsg.String
		e.DurationMs = durationMs.Int64
		if params != "" && params != "{}" {
			e.Parameters = json.RawMessage(params)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Cleanup deletes entries older than retentionDays.
func (a *AuditLogger) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()
	res, err := a.db.ExecContext(ctx, "DELETE FROM audit_log WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup audit log: %w", err)
	}
	return res.RowsAffected()
}

// Close writes the queued entries and stops the background goroutine.
func (a *AuditLogger) Close() error {
	close(a.stop)
	<-a.done
	return nil
}

func (a *AuditLogger) fillDefaults(e *AuditEntry) {
	if e.EntryID == "" {
		e.EntryID = a.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	if e.Status == "" {
		if e.ErrorMessage != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}

func (a *AuditLogger) flushLoop() {
	defer close(a.done)
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()
	batch := make([]*AuditEntry, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := dbopen.RunTx(ctx, a.db, func(tx *sql.Tx) error {
			for _, e := range batch {
				if err := insert(ctx, tx, e); err != nil {
					return fmt.Errorf("insert %s: %w", e.EntryID, err)
				}
			}
			return nil
		})
		if err != nil {
			a.logger.Error("audit flush failed", "entries", len(batch), "error", err)
		}
		batch = batch[:0]
	}
	drain := func() {
		for {
			select {
			case e := <-a.ch:
				batch = append(batch, e)
			default:
				flush()
				return
			}
		}
	}

	for {
		select {
		case <-a.stop:
			drain()
			return
		case ack := <-a.flushCh:
			drain()
			close(ack)
		case e := <-a.ch:
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func insert(ctx context.Context, tx *sql.Tx, e *AuditEntry) error {
	params := "{}"
	if len(e.Parameters) > 0 {
		params = string(e.Parameters)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO audit_log
		(entry_id, timestamp, transport, operation, request_id, import_id,
		 parameters, error_message, duration_ms, status)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.EntryID, e.Timestamp.UnixMilli(), e.Transport, e.Operation,
		nullString(e.RequestID), nullString(e.ImportID),
		params, nullString(e.ErrorMessage), e.DurationMs, e.Status)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
