package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
)

func kindNames() []string {
	names := []string{"all"}
	for _, k := range diagrams.Kinds {
		names = append(names, string(k))
	}
	return names
}

// listDiagramsTool defines the list_diagrams MCP tool.
var listDiagramsTool = mcp.NewTool("list_diagrams",
	mcp.WithDescription("List saved Mermaid diagrams with their id, title, type and timestamps."),
	mcp.WithString("search",
		mcp.Description("Case-insensitive text matched against the title and diagram type"),
	),
	mcp.WithString("type",
		mcp.Description("Only list diagrams of this type"),
		mcp.Enum(kindNames()...),
	),
	mcp.WithString("sort",
		mcp.Description("Ordering (default newest)"),
		mcp.Enum("newest", "oldest", "name"),
	),
)

// getDiagramTool defines the get_diagram MCP tool.
var getDiagramTool = mcp.NewTool("get_diagram",
	mcp.WithDescription("Get the Mermaid source and metadata of a saved diagram."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Diagram id as returned by list_diagrams"),
	),
)

// saveDiagramTool defines the save_diagram MCP tool.
var saveDiagramTool = mcp.NewTool("save_diagram",
	mcp.WithDescription("Create a diagram, or update one when id names an existing diagram. Returns the diagram id."),
	mcp.WithString("id",
		mcp.Description("Existing diagram id to update; omit to create"),
	),
	mcp.WithString("title",
		mcp.Description("Diagram title"),
	),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("Mermaid source"),
	),
)

// deleteDiagramTool defines the delete_diagram MCP tool.
var deleteDiagramTool = mcp.NewTool("delete_diagram",
	mcp.WithDescription("Delete a saved diagram."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Diagram id"),
	),
)

// listTemplatesTool defines the list_templates MCP tool.
var listTemplatesTool = mcp.NewTool("list_templates",
	mcp.WithDescription("List the built-in Mermaid templates by category, including their source."),
	mcp.WithString("search",
		mcp.Description("Case-insensitive text matched against template name, description and type"),
	),
)

// renderDiagramTool defines the render_diagram MCP tool.
var renderDiagramTool = mcp.NewTool("render_diagram",
	mcp.WithDescription("Render Mermaid source to SVG. Syntax errors are returned as tool errors."),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("Mermaid source"),
	),
)
