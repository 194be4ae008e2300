package walker

import (
	"path/filepath"
	"strings"
)

// Format says how a file holds diagrams.
type Format string

const (
	// FormatMermaid is a file that is one diagram.
	FormatMermaid Format = "mermaid"
	// FormatMarkdown is a document with fenced mermaid blocks.
	FormatMarkdown Format = "markdown"
)

var extensionFormats = map[string]Format{
	".mmd":      FormatMermaid,
	".mermaid":  FormatMermaid,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
}

// DetectFormat returns the format implied by a file name, or "" when the
// file cannot hold diagrams.
func DetectFormat(name string) Format {
	return extensionFormats[strings.ToLower(filepath.Ext(name))]
}
