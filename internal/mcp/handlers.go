package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
	"github.com/ziadkadry99/diagramstudio/internal/render"
	"github.com/ziadkadry99/diagramstudio/internal/templates"
)

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleListDiagrams lists the gallery, filtered and sorted like the web view.
func (s *Server) handleListDiagrams(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := diagrams.ParseKind(request.GetString("type", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing diagrams failed: %v", err)), nil
	}

	matched := diagrams.Filter(all, diagrams.Query{
		Search: request.GetString("search", ""),
		Kind:   kind,
		Sort:   diagrams.ParseSort(request.GetString("sort", "")),
	})
	if len(matched) == 0 {
		return mcp.NewToolResultText("No diagrams found."), nil
	}

	rows := make([]diagrams.Summary, 0, len(matched))
	for _, d := range matched {
		rows = append(rows, diagrams.Summarize(d))
	}
	return jsonResult(rows)
}

// handleGetDiagram returns a diagram's metadata followed by its source.
func (s *Server) handleGetDiagram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	d, err := s.store.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading diagram failed: %v", err)), nil
	}
	if d == nil {
		return mcp.NewToolResultError(fmt.Sprintf("No diagram with id %q. Use list_diagrams to find ids.", id)), nil
	}

	return mcp.NewToolResultText(formatDiagram(d)), nil
}

// handleSaveDiagram creates or updates a diagram.
func (s *Server) handleSaveDiagram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := request.RequireString("content")
	if err != nil || strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("missing required parameter: content"), nil
	}

	draft := diagrams.Draft{
		ID:      request.GetString("id", ""),
		Title:   request.GetString("title", ""),
		Content: content,
	}
	// An update keeps the stored thumbnail unless the source changed.
	if draft.ID != "" {
		existing, err := s.store.Get(ctx, draft.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading diagram failed: %v", err)), nil
		}
		if existing != nil && existing.Content == content {
			draft.PreviewImage = existing.PreviewImage
		}
	}

	id, err := s.store.Save(ctx, draft)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("saving diagram failed: %v", err)), nil
	}
	if id == draft.ID {
		return mcp.NewToolResultText(fmt.Sprintf("Updated diagram %s.", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created diagram %s.", id)), nil
}

// handleDeleteDiagram removes a diagram.
func (s *Server) handleDeleteDiagram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	n, err := s.store.DeleteMany(ctx, []string{id})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("deleting diagram failed: %v", err)), nil
	}
	if n == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("No diagram with id %q.", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted diagram %s.", id)), nil
}

// handleListTemplates returns the matching template catalog.
func (s *Server) handleListTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats := templates.Search(request.GetString("search", ""))
	if len(cats) == 0 {
		return mcp.NewToolResultText("No templates found."), nil
	}
	return jsonResult(cats)
}

// handleRenderDiagram renders source with the configured engine.
func (s *Server) handleRenderDiagram(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: content"), nil
	}

	svg, err := s.engine.Render(ctx, content, s.theme())
	if err != nil {
		var syntax *render.SyntaxError
		if errors.As(err, &syntax) {
			return mcp.NewToolResultError("Syntax error: " + syntax.Message), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("rendering failed: %v", err)), nil
	}
	return mcp.NewToolResultText(svg), nil
}

// formatDiagram renders a diagram as text for agent consumption.
func formatDiagram(d *diagrams.SavedDiagram) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID: %s\n", d.ID))
	sb.WriteString(fmt.Sprintf("Title: %s\n", d.DisplayTitle()))
	sb.WriteString(fmt.Sprintf("Type: %s\n", d.Kind().Label()))
	sb.WriteString(fmt.Sprintf("Created: %s\n", time.UnixMilli(d.CreatedAt).UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Updated: %s\n", time.UnixMilli(d.UpdatedAt).UTC().Format(time.RFC3339)))
	sb.WriteString("\n```mermaid\n")
	sb.WriteString(d.Content)
	sb.WriteString("\n```\n")
	return sb.String()
}
