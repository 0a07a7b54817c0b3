package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/verbatim/kit"
)

var testMCPImpl = &mcp.Implementation{Name: "verbatim-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	return mcpSessionWith(t, Config{})
}

func mcpSessionWith(t *testing.T, cfg Config) *mcp.ClientSession {
	t.Helper()
	pipe := New(cfg)
	srv := mcp.NewServer(testMCPImpl, nil)
	pipe.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return result
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result := mcpCall(t, session, name, args)
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const feedbackCSV = "id,comment,rating\n1,\"The app is slow and crashes\",2\n2,\"Love the UI, but billing is confusing\",4\n"

func TestMCP_Formats(t *testing.T) {
	session := mcpSession(t)
	text := mcpCallTool(t, session, "ingest_formats", map[string]any{})

	var resp struct {
		Formats []string `json:"formats"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !slices.Equal(resp.Formats, SupportedFormats()) {
		t.Fatalf("formats = %v", resp.Formats)
	}
}

func TestMCP_Detect(t *testing.T) {
	session := mcpSession(t)
	text := mcpCallTool(t, session, "ingest_detect", map[string]any{"path": "/tmp/Report.PDF"})
	if !strings.Contains(text, `"format":"pdf"`) {
		t.Fatalf("detect = %s", text)
	}
}

func TestMCP_Import(t *testing.T) {
	session := mcpSession(t)
	path := writeFile(t, "feedback.csv", feedbackCSV)

	text := mcpCallTool(t, session, "ingest_import", map[string]any{"path": path})

	var resp struct {
		Kind   string      `json:"kind"`
		Result TableResult `json:"result"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Kind != "table" {
		t.Fatalf("kind = %q", resp.Kind)
	}
	if resp.Result.TextColumn != "comment" || len(resp.Result.Rows) != 2 {
		t.Fatalf("result = %+v", resp.Result)
	}
}

func TestMCP_Import_MissingFile(t *testing.T) {
	// WHAT: a missing file is a tool error, not a protocol error.
	// WHY: the calling model needs to read the message and recover.
	session := mcpSession(t)
	result := mcpCall(t, session, "ingest_import", map[string]any{"path": "/nonexistent/feedback.csv"})
	if !result.IsError {
		t.Fatal("expected tool error for missing file")
	}
}

func TestMCP_TextColumn(t *testing.T) {
	session := mcpSession(t)
	text := mcpCallTool(t, session, "ingest_text_column", map[string]any{
		"columns": []string{"id", "note"},
		"rows": []map[string]string{
			{"id": "1", "note": "Too slow"},
			{"id": "2", "note": "Great support team"},
		},
	})
	if !strings.Contains(text, `"column":"note"`) {
		t.Fatalf("text column = %s", text)
	}

	text = mcpCallTool(t, session, "ingest_text_column", map[string]any{
		"columns": []string{"id"},
		"rows":    []map[string]string{},
	})
	if !strings.Contains(text, `"column":null`) {
		t.Fatalf("empty table = %s", text)
	}
}

func TestMCP_Items(t *testing.T) {
	session := mcpSession(t)
	path := writeFile(t, "feedback.csv", feedbackCSV)

	text := mcpCallTool(t, session, "ingest_items", map[string]any{"path": path})
	var resp struct {
		Column string   `json:"column"`
		Items  []string `json:"items"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"The app is slow and crashes", "Love the UI, but billing is confusing"}
	if resp.Column != "comment" || !slices.Equal(resp.Items, want) {
		t.Fatalf("items = %+v", resp)
	}

	result := mcpCall(t, session, "ingest_items", map[string]any{"path": path, "column": "nope"})
	if !result.IsError {
		t.Fatal("expected tool error for unknown column")
	}
}

func TestMCP_RootConfinement(t *testing.T) {
	// WHAT: with a root configured, tool paths resolve inside it and cannot escape.
	// WHY: over HTTP the tools must not read arbitrary server files.
	path := writeFile(t, "feedback.csv", feedbackCSV)
	session := mcpSessionWith(t, Config{Root: filepath.Dir(path)})

	text := mcpCallTool(t, session, "ingest_items", map[string]any{"path": "feedback.csv"})
	if !strings.Contains(text, `"column":"comment"`) {
		t.Fatalf("items = %s", text)
	}

	result := mcpCall(t, session, "ingest_import", map[string]any{"path": "../feedback.csv"})
	if !result.IsError {
		t.Fatal("expected tool error for a path outside the root")
	}
}

func TestMCP_ToolMiddleware(t *testing.T) {
	var calls []string
	cfg := Config{ToolMiddleware: func(tool string) kit.Middleware {
		return func(next kit.Endpoint) kit.Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				calls = append(calls, tool+":"+kit.GetTransport(ctx))
				return next(ctx, req)
			}
		}
	}}
	session := mcpSessionWith(t, cfg)

	mcpCallTool(t, session, "ingest_formats", map[string]any{})
	mcpCallTool(t, session, "ingest_detect", map[string]any{"path": "a.tsv"})

	want := []string{"ingest_formats:mcp", "ingest_detect:mcp"}
	if !slices.Equal(calls, want) {
		t.Fatalf("calls = %v", calls)
	}
}
