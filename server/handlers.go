package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/verbatim/imports"
	"github.com/hazyhaar/verbatim/ingest"
	"github.com/hazyhaar/verbatim/observability"
	"github.com/hazyhaar/verbatim/shield"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	previewRows      = 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": Version,
		"formats": ingest.SupportedFormats(),
	})
}

// upload is a parsed file from a multipart request.
type upload struct {
	name   string
	size   int64
	result ingest.Result
}

// ingestUpload reads the multipart field "file" and runs it through the
// pipeline, enforcing the size and row limits. On failure it has already
// written the response.
func (s *Server) ingestUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds %d MB", s.cfg.MaxFileMB))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("multipart field \"file\" is required: %w", err))
		return nil, false
	}
	defer file.Close()

	if header.Size > s.cfg.MaxFileBytes() {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds %d MB", s.cfg.MaxFileMB))
		return nil, false
	}

	res, err := s.pipe.Import(r.Context(), header.Filename, io.LimitReader(file, s.cfg.MaxFileBytes()+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}

	if t, ok := res.(*ingest.TableResult); ok && len(t.Rows) > s.cfg.MaxRows {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Errorf("file has %d rows, the limit is %d", len(t.Rows), s.cfg.MaxRows))
		return nil, false
	}
	return &upload{name: header.Filename, size: header.Size, result: res}, true
}

func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	up, ok := s.ingestUpload(w, r)
	if !ok {
		return
	}
	params := map[string]any{"filename": up.name, "size_bytes": up.size}
	rec, err := s.store.Save(r.Context(), up.name, up.size, up.result)
	if err != nil {
		s.record(r, "import", "", params, err, start)
		shield.GetLogger(r.Context()).Error("save import", "file", up.name, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("could not store import"))
		return
	}
	s.record(r, "import", rec.ID, params, nil, start)
	writeJSON(w, http.StatusCreated, recordView(rec))
}

// handleDetect parses an upload without storing it, so a client can show
// the columns and the detected text column before committing.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	up, ok := s.ingestUpload(w, r)
	if !ok {
		return
	}
	resp := map[string]any{
		"filename": up.name,
		"format":   ingest.DetectFormat(up.name),
		"kind":     up.result.Kind(),
		"warnings": up.result.Notices(),
	}
	switch res := up.result.(type) {
	case *ingest.TableResult:
		resp["columns"] = res.Columns
		resp["row_count"] = len(res.Rows)
		resp["detected_text_column"] = nullable(res.TextColumn)
		resp["preview"] = headRows(res.Rows)
	case *ingest.TextResult:
		resp["raw_text"] = res.RawText
		resp["quality"] = res.Quality
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and %d", maxListLimit))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, errors.New("offset must be >= 0"))
		return
	}

	list, err := s.store.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": list, "limit": limit, "offset": offset})
}

func (s *Server) loadImport(w http.ResponseWriter, r *http.Request) (*imports.Record, bool) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("import %q not found", id))
		return nil, false
	}
	return rec, true
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadImport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, recordView(rec))
}

func (s *Server) handleSetTextColumn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Column string `json:"column"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	start := time.Now()
	id := chi.URLParam(r, "id")
	rec, err := s.store.SetTextColumn(r.Context(), id, req.Column)
	if err != nil || rec != nil {
		s.record(r, "set_text_column", id, req, err, start)
	}
	switch {
	case errors.Is(err, ingest.ErrUnknownColumn):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	case rec == nil:
		writeError(w, http.StatusNotFound, fmt.Errorf("import %q not found", id))
	default:
		writeJSON(w, http.StatusOK, recordView(rec))
	}
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadImport(w, r)
	if !ok {
		return
	}
	stripHTML, err := queryBool(r, "strip_html")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	items, column, err := ingest.Items(rec.Result, r.URL.Query().Get("column"))
	switch {
	case errors.Is(err, ingest.ErrUnknownColumn):
		writeError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, ingest.ErrNoTextColumn):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	items = ingest.CleanItems(items, stripHTML)
	s.record(r, "export_items", rec.ID,
		map[string]any{"column": column, "strip_html": stripHTML, "count": len(items)}, nil, start)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     rec.ID,
		"column": nullable(column),
		"count":  len(items),
		"items":  items,
	})
}

func (s *Server) handleDeleteImport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	deleted, err := s.store.Delete(r.Context(), id)
	if err != nil || deleted {
		s.record(r, "delete", id, nil, err, start)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, fmt.Errorf("import %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and %d", maxListLimit))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, errors.New("offset must be >= 0"))
		return
	}

	q := r.URL.Query()
	entries, err := s.audit.Query(r.Context(), observability.AuditFilter{
		Transport: q.Get("transport"),
		Operation: q.Get("operation"),
		ImportID:  q.Get("import_id"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "limit": limit, "offset": offset})
}

// importView is a record plus, for tables loaded with their result, the
// first rows.
type importView struct {
	*imports.Record
	Preview []ingest.TableRow `json:"preview,omitempty"`
}

func recordView(rec *imports.Record) importView {
	v := importView{Record: rec}
	if t, ok := rec.Result.(*ingest.TableResult); ok {
		v.Preview = headRows(t.Rows)
	}
	return v
}

func headRows(rows []ingest.TableRow) []ingest.TableRow {
	if len(rows) > previewRows {
		return rows[:previewRows]
	}
	return rows
}

// nullable renders "" as JSON null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}
