// CLAUDE:SUMMARY HTTP upload API (chi) over the ingest pipeline and import store, plus the streamable MCP endpoint.
// CLAUDE:DEPENDS ingest, imports, observability, shield, kit
// CLAUDE:EXPORTS Server, New, Version
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/verbatim/imports"
	"github.com/hazyhaar/verbatim/ingest"
	"github.com/hazyhaar/verbatim/kit"
	"github.com/hazyhaar/verbatim/observability"
	"github.com/hazyhaar/verbatim/shield"
)

// Version is reported by /v1/health and the MCP implementation.
const Version = "0.1.0"

// Server wires the pipeline and the store behind HTTP and MCP.
type Server struct {
	cfg     *Config
	pipe    *ingest.Pipeline
	store   *imports.Store
	logger  *slog.Logger
	mcp     *mcp.Server
	limiter *shield.RateLimiter
	audit   *observability.AuditLogger
}

// New creates a Server. cfg must have passed Validate. audit may be nil, in
// which case nothing is recorded and /v1/audit is not served.
func New(cfg *Config, store *imports.Store, audit *observability.AuditLogger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	pcfg := ingest.Config{Logger: logger, Root: cfg.MCP.Root}
	if audit != nil {
		pcfg.ToolMiddleware = audit.Middleware
	}
	s := &Server{
		cfg:     cfg,
		pipe:    ingest.New(pcfg),
		store:   store,
		logger:  logger,
		limiter: shield.NewRateLimiter(cfg.RateLimit.UploadsPerMinute, time.Minute, cfg.RateLimit.TrustProxy),
		audit:   audit,
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "verbatim", Version: Version}, nil)
	s.pipe.RegisterMCP(s.mcp)
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.APIStack(s.logger) {
		r.Use(mw)
	}
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Get("/v1/health", s.handleHealth)

	upload := r.With(shield.MaxBody(s.cfg.MaxFileBytes()), s.limiter.Middleware)
	upload.Post("/v1/imports", s.handleCreateImport)
	upload.Post("/v1/detect", s.handleDetect)

	r.Get("/v1/imports", s.handleListImports)
	r.Route("/v1/imports/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetImport)
		r.Delete("/", s.handleDeleteImport)
		r.Put("/text-column", s.handleSetTextColumn)
		r.Get("/items", s.handleItems)
	})

	if s.audit != nil {
		r.Get("/v1/audit", s.handleAudit)
	}

	if s.cfg.MCP.Enabled {
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
		r.Handle(s.cfg.MCP.Path, h)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)
	s.limiter.StartGC(done)

	if s.audit != nil && s.cfg.Audit.RetentionDays > 0 {
		if n, err := s.audit.Cleanup(ctx, s.cfg.Audit.RetentionDays); err != nil {
			s.logger.Warn("audit cleanup failed", "error", err)
		} else if n > 0 {
			s.logger.Info("audit cleanup", "deleted", n)
		}
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "listen", s.cfg.Listen, "mcp", s.cfg.MCP.Enabled)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// logRequests logs one line per request with its final status.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		shield.GetLogger(r.Context()).Info("request",
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// record adds an audit entry for an HTTP operation. No-op without an audit logger.
func (s *Server) record(r *http.Request, operation, importID string, params any, err error, start time.Time) {
	if s.audit == nil {
		return
	}
	ctx := kit.WithTransport(r.Context(), "http")
	s.audit.LogAsync(s.audit.NewEntry(ctx, operation, importID, params, err, time.Since(start)))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
