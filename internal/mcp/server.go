// Package mcp exposes read-only CLL Genie submission tools over the Model
// Context Protocol.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/internal/results"
	"github.com/cll-genie-server/internal/service"
)

const (
	defaultServerName    = "cll-genie-server"
	defaultServerVersion = "v1.0.0"
)

// Services are the workflows the tools read from.
type Services struct {
	Samples *service.SampleService
	Reports *service.ReportService
	Results *results.Store
}

// Server represents the CLL Genie MCP server
type Server struct {
	services  *Services
	mcpServer *mcp.Server
	tools     []string
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with all tools registered
func NewServer(cfg domain.MCPConfig, services *Services, logger *logrus.Logger) *Server {
	name := cfg.ServerName
	if name == "" {
		name = defaultServerName
	}
	version := cfg.ServerVersion
	if version == "" {
		version = defaultServerVersion
	}

	server := &Server{
		services:  services,
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		logger:    logger,
	}
	server.registerTools()

	return server
}

// Start serves the tools over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("tools", s.tools).Info("Starting CLL Genie MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Tools returns the registered tool names.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_submissions",
		Description: "List the V-QUEST submissions stored for a sample, with the number of exported reports per submission.",
	}, s.handleListSubmissions)
	s.tools = append(s.tools, "list_submissions")

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_submission",
		Description: "Return the merged V-QUEST results, comments and artifact paths of one submission.",
	}, s.handleGetSubmission)
	s.tools = append(s.tools, "get_submission")

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "suggest_report_summary",
		Description: "Return the Swedish summary text suggested for a submission's clinical report.",
	}, s.handleSuggestSummary)
	s.tools = append(s.tools, "suggest_report_summary")

	s.logger.WithField("tool_count", len(s.tools)).Info("Successfully registered all tools")
}
