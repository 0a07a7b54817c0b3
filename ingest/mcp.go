package ingest

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/verbatim/horosafe"
	"github.com/hazyhaar/verbatim/kit"
)

// RegisterMCP registers the ingest tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerImportTool(srv)
	p.registerDetectTool(srv)
	p.registerFormatsTool(srv)
	p.registerTextColumnTool(srv)
	p.registerItemsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (p *Pipeline) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode kit.MCPDecoder) {
	mws := []kit.Middleware{kit.Logging(p.logger, tool.Name)}
	if p.cfg.ToolMiddleware != nil {
		mws = append(mws, p.cfg.ToolMiddleware(tool.Name))
	}
	kit.RegisterMCPTool(srv, tool, kit.Chain(mws...)(endpoint), decode)
}

var pathProperty = map[string]any{"type": "string", "description": "Path of the file to ingest"}

// importPath reads a tool-supplied path, resolved under the configured root.
func (p *Pipeline) importPath(ctx context.Context, path string) (Result, error) {
	if p.cfg.Root != "" {
		resolved, err := horosafe.SafePath(p.cfg.Root, path)
		if err != nil {
			return nil, err
		}
		path = resolved
	}
	return p.ImportFile(ctx, path)
}

// --- import ---

type importReq struct {
	Path string `json:"path"`
}

func (p *Pipeline) registerImportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ingest_import",
		Description: "Parse a feedback file (csv, tsv, xlsx, pdf, text) into a table with a detected feedback column, or a text blob.",
		InputSchema: inputSchema(map[string]any{"path": pathProperty}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*importReq)
		res, err := p.importPath(ctx, r.Path)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": res.Kind(), "result": res}, nil
	}

	p.register(srv, tool, endpoint, kit.DecodeJSON[importReq]())
}

// --- detect ---

func (p *Pipeline) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ingest_detect",
		Description: "Report which parser a file name is routed to.",
		InputSchema: inputSchema(map[string]any{"path": pathProperty}, []string{"path"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*importReq)
		return map[string]any{"format": string(p.Detect(r.Path))}, nil
	}

	p.register(srv, tool, endpoint, kit.DecodeJSON[importReq]())
}

// --- formats ---

func (p *Pipeline) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ingest_formats",
		Description: "List the file extensions with a dedicated parser. Anything else is read as plain text.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"formats": SupportedFormats()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	p.register(srv, tool, endpoint, decode)
}

// --- text column ---

type textColumnReq struct {
	Columns []string   `json:"columns"`
	Rows    []TableRow `json:"rows"`
}

func (p *Pipeline) registerTextColumnTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ingest_text_column",
		Description: "Score the columns of a table and return the one most likely to hold free-form feedback text, or null.",
		InputSchema: inputSchema(map[string]any{
			"columns": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"rows": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
			},
		}, []string{"columns", "rows"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*textColumnReq)
		col, ok := DetectTextColumn(r.Columns, r.Rows)
		if !ok {
			return map[string]any{"column": nil}, nil
		}
		return map[string]any{"column": col}, nil
	}

	p.register(srv, tool, endpoint, kit.DecodeJSON[textColumnReq]())
}

// --- items ---

type itemsReq struct {
	Path      string `json:"path"`
	Column    string `json:"column,omitempty"`
	StripHTML bool   `json:"strip_html,omitempty"`
}

func (p *Pipeline) registerItemsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ingest_items",
		Description: "Extract feedback items from a file: one per row of the text column for tables, one per line for text.",
		InputSchema: inputSchema(map[string]any{
			"path":       pathProperty,
			"column":     map[string]any{"type": "string", "description": "Column to extract; defaults to the detected one"},
			"strip_html": map[string]any{"type": "boolean", "description": "Remove HTML markup from items"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*itemsReq)
		res, err := p.importPath(ctx, r.Path)
		if err != nil {
			return nil, err
		}
		items, column, err := Items(res, r.Column)
		if err != nil {
			return nil, err
		}
		return map[string]any{"column": column, "items": CleanItems(items, r.StripHTML)}, nil
	}

	p.register(srv, tool, endpoint, kit.DecodeJSON[itemsReq]())
}
