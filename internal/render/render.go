// Package render turns diagram source into SVG markup. The Preview type
// holds the currently displayed result and guarantees that only the most
// recently requested render is ever shown.
package render

import (
	"context"

	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

// Engine renders Mermaid source.
type Engine interface {
	// Render returns SVG markup, or a *SyntaxError when the source does not
	// parse. Any other error means the engine itself failed.
	Render(ctx context.Context, source string, t theme.Theme) (string, error)
}

// SyntaxError reports source the engine could not parse.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string { return e.Message }

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, source string, t theme.Theme) (string, error)

func (f EngineFunc) Render(ctx context.Context, source string, t theme.Theme) (string, error) {
	return f(ctx, source, t)
}
