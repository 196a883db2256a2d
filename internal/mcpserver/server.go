// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Quillmark tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nibsbin/quillmark/internal/models"
	"github.com/nibsbin/quillmark/internal/quillservice"
)

// Server wraps the MCP server with Quillmark tools.
type Server struct {
	mcp *server.MCPServer
	svc *quillservice.Service
}

// New creates a new MCP server with all Quillmark tools registered.
func New(svc *quillservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Quillmark",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_quills",
		mcp.WithDescription("List registered quills (name, backend, description)."),
		mcp.WithString("query", mcp.Description("Optional full-text filter")),
	), s.listQuills)

	s.mcp.AddTool(mcp.NewTool("get_quill",
		mcp.WithDescription("Read one quill's catalog metadata and field schema."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Quill name")),
	), s.getQuill)

	s.mcp.AddTool(mcp.NewTool("parse_markdown",
		mcp.WithDescription("Parse an extended markdown document into its JSON form "+
			"(fields, BODY, CARDS). Content MUST follow the canonical document format "+
			"(YAML metadata blocks delimited by ---, CARD blocks for repeating "+
			"sections). Read the contract first via the get_document_contract tool "+
			"or the quillmark://document-format resource."),
		mcp.WithString("markdown", mcp.Required(), mcp.Description("Extended markdown source")),
	), s.parseMarkdown)

	s.mcp.AddTool(mcp.NewTool("render_markdown",
		mcp.WithDescription("Render an extended markdown document through a quill. "+
			"Returns artifacts with base64-encoded content plus lint warnings."),
		mcp.WithString("markdown", mcp.Required(), mcp.Description("Extended markdown source")),
		mcp.WithString("quill", mcp.Description("Quill name (overrides the document's QUILL tag)")),
		mcp.WithString("format", mcp.Description("Output format: html or text (backend default when empty)")),
	), s.renderMarkdown)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the canonical Quillmark document format contract. "+
			"Call this before writing markdown for parse_markdown or render_markdown."),
	), s.getDocumentContract)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Stage a shared render asset from a data URI or http(s) URL. "+
			"Staged assets are available to every render and replace same-named "+
			"predecessors."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data: URI or http(s) URL")),
		mcp.WithString("filename", mcp.Description("Optional target filename")),
	), s.uploadAsset)

	// Resource: document format contract.
	s.mcp.AddResource(
		mcp.NewResource("quillmark://document-format", "Document Format Contract",
			mcp.WithResourceDescription("Canonical extended markdown format for Quillmark documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio serves MCP on stdin/stdout until ctx is cancelled or stdin
// closes. Cancellation and EOF are clean exits.
func (s *Server) ServeStdio(ctx context.Context) error {
	err := server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listQuills(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := ""
	if q, err := req.RequireString("query"); err == nil {
		query = q
	}
	rows, err := s.svc.ListQuills(ctx, query, 50)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if rows == nil {
		rows = []models.QuillInfo{}
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getQuill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := s.svc.GetQuill(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
	}
	schema, err := s.svc.QuillSchema(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload := struct {
		Quill  *models.QuillInfo `json:"quill"`
		Schema json.RawMessage   `json:"schema"`
	}{info, schema}
	out, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) parseMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markdown, err := req.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.ParseDocument(ctx, markdown)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) renderMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markdown, err := req.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r := quillservice.RenderRequest{Markdown: markdown}
	if v, qErr := req.RequireString("quill"); qErr == nil {
		r.Quill = v
	}
	if v, fErr := req.RequireString("format"); fErr == nil {
		r.Format = v
	}
	res, err := s.svc.Render(ctx, r)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Artifact bytes serialize as base64 through encoding/json.
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getDocumentContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readDocumentFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "quillmark://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
