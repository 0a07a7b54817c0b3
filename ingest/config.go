// CLAUDE:SUMMARY Configuration struct and defaults for the ingest pipeline.
package ingest

import (
	"log/slog"

	"github.com/hazyhaar/verbatim/kit"
)

// Config configures the ingest pipeline. Size and row limits are the caller's
// business: the pipeline parses whatever it is handed.
type Config struct {
	// Logger for debug and warning messages.
	Logger *slog.Logger `json:"-" yaml:"-"`

	// Root confines the paths accepted by the MCP tools. Empty means any
	// path the process can read.
	Root string `json:"root" yaml:"root"`

	// ToolMiddleware, when set, wraps each MCP tool endpoint inside the
	// logging middleware. It receives the tool name.
	ToolMiddleware func(tool string) kit.Middleware `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
