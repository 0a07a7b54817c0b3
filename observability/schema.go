package observability

import "database/sql"

// Schema holds the DDL for the audit trail. It lives next to the import
// store in the same database file.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    entry_id      TEXT PRIMARY KEY,
    timestamp     INTEGER NOT NULL,
    transport     TEXT NOT NULL,
    operation     TEXT NOT NULL,
    request_id    TEXT,
    import_id     TEXT,
    parameters    TEXT NOT NULL DEFAULT '{}',
    error_message TEXT,
    duration_ms   INTEGER,
    status        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_import ON audit_log(import_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_operation ON audit_log(transport, operation);
`

// Init applies Schema to db.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
