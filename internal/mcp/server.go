// Package mcp exposes the diagram collection to AI agents as MCP tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server over the diagram store.
type Server struct {
	store  *diagrams.Store
	engine render.Engine
	theme  func() theme.Theme
	logger *zap.Logger
	mcp    *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithEngine enables the render_diagram tool. current picks the theme; nil
// renders light.
func WithEngine(engine render.Engine, current func() theme.Theme) Option {
	return func(s *Server) {
		s.engine = engine
		s.theme = current
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new MCP server over store.
func NewServer(store *diagrams.Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.theme == nil {
		s.theme = func() theme.Theme { return theme.Light }
	}

	s.mcp = server.NewMCPServer(
		"diagramstudio",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(listDiagramsTool, s.handleListDiagrams)
	s.mcp.AddTool(getDiagramTool, s.handleGetDiagram)
	s.mcp.AddTool(saveDiagramTool, s.handleSaveDiagram)
	s.mcp.AddTool(deleteDiagramTool, s.handleDeleteDiagram)
	s.mcp.AddTool(listTemplatesTool, s.handleListTemplates)
	if s.engine != nil {
		s.mcp.AddTool(renderDiagramTool, s.handleRenderDiagram)
	}
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
