// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the generated site data to LLM tooling via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/theoryandpractice/sitekit/internal/apperr"
	"github.com/theoryandpractice/sitekit/internal/index"
	"github.com/theoryandpractice/sitekit/internal/siteservice"
)

// Service is the part of the site service the tools read from.
type Service interface {
	Sections() []siteservice.SectionInfo
	Section(key string) (any, error)
	Search(ctx context.Context, query, kind string, limit int) ([]index.SearchResult, error)
}

// Server wraps the MCP server with the site data tools.
type Server struct {
	mcp *server.MCPServer
	svc Service
}

// New creates a new MCP server with all tools registered.
func New(svc Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"sitekit",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_sections",
		mcp.WithDescription("List the generated site data sections with their record counts."),
	), s.listSections)

	s.mcp.AddTool(mcp.NewTool("get_section",
		mcp.WithDescription("Return one generated section (collaborators, projects, media, "+
			"selected_publications) as JSON. Read the schema first via get_data_schema "+
			"or the "+DataSchemaURI+" resource."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Section key, e.g. projects")),
	), s.getSection)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Full-text search over people, projects, media mentions and publications."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("kind", mcp.Description("Optional record kind or section key to restrict the search")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("get_data_schema",
		mcp.WithDescription("Returns the description of every section and of the record fields."),
	), s.getDataSchema)

	s.mcp.AddResource(
		mcp.NewResource(DataSchemaURI, "Site Data Schema",
			mcp.WithResourceDescription("Sections of the generated site context and the searchable record fields."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDataSchemaResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listSections(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sections := s.svc.Sections()
	if len(sections) == 0 {
		return mcp.NewToolResultText("no sections generated"), nil
	}
	lines := make([]string, len(sections))
	for i, sec := range sections {
		lines[i] = fmt.Sprintf("%s (%d records)", sec.Key, sec.Records)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getSection(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.Section(key)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown section: %s", key)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetString("kind", ""), req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no results"), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getDataSchema(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DataSchema), nil
}

func (s *Server) readDataSchemaResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DataSchemaURI,
			MIMEType: "text/markdown",
			Text:     DataSchema,
		},
	}, nil
}
