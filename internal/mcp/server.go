// Package mcp implements the MCP server exposing the parser as tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jcs090218/tree-sitter-actionscript/internal/config"
	"github.com/jcs090218/tree-sitter-actionscript/internal/index"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
	"github.com/jcs090218/tree-sitter-actionscript/pkg/types"
)

// maxSexpBytes caps S-expressions returned to clients.
const maxSexpBytes = 64 << 10

// maxNodeText caps the source text returned by node_at.
const maxNodeText = 200

// Server implements the MCP server.
type Server struct {
	mcpServer  *server.MCPServer
	projectDir string
	config     *config.Config
	indexer    *index.Indexer
}

// Config contains server configuration.
type Config struct {
	ProjectDir string
	Config     *config.Config
	Indexer    *index.Indexer
	Version    string
}

// New creates a new MCP server.
func New(cfg Config) (*Server, error) {
	if cfg.Indexer == nil {
		return nil, errors.New("mcp: indexer is required")
	}
	c := cfg.Config
	if c == nil {
		c = config.DefaultConfig()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		projectDir: cfg.ProjectDir,
		config:     c,
		indexer:    cfg.Indexer,
	}

	mcpServer := server.NewMCPServer(
		c.MCP.Name,
		version,
		server.WithLogging(),
	)
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s, nil
}

// registerTools registers all MCP tools.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("parse_text",
		mcp.WithDescription("Parse source text and return its syntax tree as an S-expression"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Source text")),
		mcp.WithString("language", mcp.Description("Language name (default actionscript)")),
	), s.handleParseText)

	mcpServer.AddTool(mcp.NewTool("parse_file",
		mcp.WithDescription("Parse a project file, incrementally if it was parsed before, and record the parse"),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path, relative to the project root")),
		mcp.WithBoolean("include_tree", mcp.Description("Include the S-expression (default true)")),
	), s.handleParseFile)

	mcpServer.AddTool(mcp.NewTool("node_at",
		mcp.WithDescription("Describe the smallest syntax node at a position in a file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path, relative to the project root")),
		mcp.WithNumber("row", mcp.Required(), mcp.Description("Zero-based row")),
		mcp.WithNumber("column", mcp.Required(), mcp.Description("Zero-based byte column")),
		mcp.WithBoolean("named", mcp.Description("Only consider named nodes (default true)")),
	), s.handleNodeAt)

	mcpServer.AddTool(mcp.NewTool("describe_language",
		mcp.WithDescription("Describe a registered grammar: symbols, fields and table sizes"),
		mcp.WithString("language", mcp.Description("Language name (default actionscript)")),
	), s.handleDescribeLanguage)

	mcpServer.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("Get recorded parses of a file, newest first"),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path, relative to the project root")),
		mcp.WithNumber("limit", mcp.Description("Maximum records (default 20)")),
	), s.handleGetHistory)

	mcpServer.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Get parser status: languages and history statistics"),
	), s.handleGetStatus)
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// resolvePath keeps tool paths inside the project.
func (s *Server) resolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.projectDir, path)
	}
	rel, err := filepath.Rel(s.projectDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path outside project: %s", path)
	}
	return full, nil
}

func truncateSexp(sexp string) (string, bool) {
	return truncate(sexp, maxSexpBytes)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n], true
}

func (s *Server) handleParseText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	language := req.GetString("language", "actionscript")

	res, err := s.indexer.ParseText(ctx, language, "", []byte(text))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse failed: %v", err)), nil
	}

	sexp, truncated := truncateSexp(res.Tree.RootNode().String())
	return jsonResult(map[string]any{
		"language":  language,
		"has_error": res.Report.HasErrors(),
		"tree":      sexp,
		"truncated": truncated,
		"summary":   res.Summary,
	})
}

func (s *Server) handleParseFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.resolvePath(req.GetString("path", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.indexer.ParseFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse failed: %v", err)), nil
	}

	changed := make([]map[string]any, 0, len(res.Changed))
	for _, r := range res.Changed {
		changed = append(changed, rangeJSON(r))
	}
	result := map[string]any{
		"path":         res.Report.Path,
		"language":     res.Report.Language,
		"hash":         res.Report.Hash,
		"bytes":        res.Report.Bytes,
		"incremental":  res.Report.Incremental,
		"unchanged":    res.Skipped,
		"has_error":    res.Report.HasErrors(),
		"errors":       res.Report.Errors,
		"missing":      res.Report.Missing,
		"reused_bytes": res.Report.ReusedBytes,
		"duration_ms":  res.Report.Duration.Milliseconds(),
		"changed":      changed,
		"problems":     res.Summary.Problems,
	}
	if req.GetBool("include_tree", true) {
		sexp, truncated := truncateSexp(res.Tree.RootNode().String())
		result["tree"] = sexp
		result["truncated"] = truncated
	}
	return jsonResult(result)
}

func (s *Server) handleNodeAt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.resolvePath(req.GetString("path", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, col := req.GetInt("row", -1), req.GetInt("column", -1)
	if row < 0 || col < 0 {
		return mcp.NewToolResultError("row and column must be non-negative"), nil
	}

	res, err := s.indexer.ParseFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse failed: %v", err)), nil
	}
	doc, ok := s.indexer.Document(path)
	if !ok {
		return mcp.NewToolResultError("document not available"), nil
	}
	src := doc.Text()

	pt := sitter.Point{Row: uint32(row), Column: uint32(col)}
	root := res.Tree.RootNode()
	if root.EndPoint().Less(pt) {
		return mcp.NewToolResultError(fmt.Sprintf("position %s is past the end of the file %s", pt, root.EndPoint())), nil
	}

	node := root.DescendantForPointRange(pt, pt)
	if req.GetBool("named", true) {
		for !node.IsNull() && !node.IsNamed() {
			node = node.Parent()
		}
	}
	if node.IsNull() {
		return mcp.NewToolResultError("no node at position"), nil
	}

	var ancestors []string
	for p := node.Parent(); !p.IsNull(); p = p.Parent() {
		ancestors = append(ancestors, p.Type())
	}
	text, cut := truncate(node.Content(src), maxNodeText)
	if cut {
		text += "..."
	}
	return jsonResult(map[string]any{
		"type":       node.Type(),
		"named":      node.IsNamed(),
		"field":      node.FieldName(),
		"missing":    node.IsMissing(),
		"error":      node.IsError(),
		"has_error":  node.HasError(),
		"range":      rangeJSON(node.Range()),
		"text":       text,
		"ancestors":  ancestors,
		"children":   node.ChildCount(),
		"expression": node.String(),
	})
}

func rangeJSON(r sitter.Range) map[string]any {
	return map[string]any{
		"start_byte": r.StartByte,
		"end_byte":   r.EndByte,
		"start":      r.StartPoint.String(),
		"end":        r.EndPoint.String(),
	}
}

func (s *Server) handleDescribeLanguage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("language", "actionscript")
	lang, err := s.indexer.Registry().Get(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var terminals, nonterminals []string
	for sym := sitter.Symbol(0); uint32(sym) < lang.SymbolCount(); sym++ {
		if !lang.IsVisible(sym) {
			continue
		}
		label := lang.SymbolName(sym)
		if !lang.IsNamed(sym) {
			label = fmt.Sprintf("%q", label)
		}
		if lang.IsTerminal(sym) {
			terminals = append(terminals, label)
		} else {
			nonterminals = append(nonterminals, label)
		}
	}
	var fields []string
	for id := sitter.FieldID(1); uint32(id) <= lang.FieldCount(); id++ {
		fields = append(fields, lang.FieldNameForID(id))
	}

	return jsonResult(map[string]any{
		"name":         lang.Name(),
		"version":      lang.Version(),
		"extensions":   s.indexer.Registry().Extensions(name),
		"symbols":      lang.SymbolCount(),
		"tokens":       lang.TokenCount(),
		"states":       lang.StateCount(),
		"productions":  lang.ProductionCount(),
		"lex_modes":    lang.LexModeCount(),
		"terminals":    terminals,
		"nonterminals": nonterminals,
		"fields":       fields,
	})
}

func (s *Server) handleGetHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.indexer.Store()
	if st == nil {
		return mcp.NewToolResultError("parse history is disabled"), nil
	}
	path, err := s.resolvePath(req.GetString("path", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rel, _ := filepath.Rel(s.projectDir, path)

	records, err := st.History(ctx, filepath.ToSlash(rel), req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get history: %v", err)), nil
	}

	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, recordJSON(r))
	}
	return jsonResult(map[string]any{"path": filepath.ToSlash(rel), "records": out})
}

func recordJSON(r *types.ParseRecord) map[string]any {
	return map[string]any{
		"id":           r.ID,
		"created_at":   r.CreatedAt.Format("2006-01-02 15:04:05"),
		"hash":         r.Hash,
		"bytes":        r.Bytes,
		"incremental":  r.Incremental,
		"errors":       r.Errors,
		"missing":      r.Missing,
		"reused_nodes": r.ReusedNodes,
		"reused_bytes": r.ReusedBytes,
		"tokens":       r.Tokens,
		"duration_us":  r.Duration.Microseconds(),
	}
}

func (s *Server) handleGetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := map[string]any{
		"project":   s.projectDir,
		"languages": s.indexer.Registry().List(),
		"history":   s.indexer.Store() != nil,
	}

	if st := s.indexer.Store(); st != nil {
		stats, err := st.Stats(ctx)
		if err != nil {
			slog.Warn("failed to get stats", "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
		}
		result["files"] = stats.Files
		result["parses"] = stats.Records
		result["parses_with_errors"] = stats.ErrorParses
		result["db_size"] = formatBytes(stats.DBSizeBytes)
		if !stats.LastParsed.IsZero() {
			result["last_parsed"] = stats.LastParsed.Format("2006-01-02 15:04:05")
		}
	}
	return jsonResult(result)
}

// formatBytes formats bytes to human readable string.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
