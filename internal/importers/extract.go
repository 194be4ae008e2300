package importers

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/diagramstudio/internal/walker"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Extract returns the diagrams held by a file's contents.
func Extract(f walker.FileInfo, data []byte) []Candidate {
	switch f.Format {
	case walker.FormatMermaid:
		return extractMermaid(f.RelPath, data)
	case walker.FormatMarkdown:
		return extractMarkdown(f.RelPath, data)
	}
	return nil
}

// extractMermaid treats the whole file as one diagram, titled from its
// front matter or else its file name.
func extractMermaid(relPath string, data []byte) []Candidate {
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil
	}
	title := frontMatterTitle(content)
	if title == "" {
		base := filepath.Base(relPath)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return []Candidate{{Title: title, Content: content, Source: relPath}}
}

// frontMatterTitle reads title from a leading "---" YAML block.
func frontMatterTitle(content string) string {
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return ""
	}
	block, _, ok := strings.Cut(rest, "\n---")
	if !ok {
		return ""
	}
	var meta struct {
		Title string `yaml:"title"`
	}
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return ""
	}
	return strings.TrimSpace(meta.Title)
}

// extractMarkdown returns every ```mermaid fenced block, titled by the
// nearest heading above it. Blocks with no heading are numbered.
func extractMarkdown(relPath string, src []byte) []Candidate {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var (
		out     []Candidate
		heading string
		used    = map[string]int{}
		n       int
	)
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := node.(type) {
		case *ast.Heading:
			heading = inlineText(node, src)
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			if !strings.EqualFold(string(node.Language(src)), "mermaid") {
				return ast.WalkSkipChildren, nil
			}
			var buf bytes.Buffer
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			content := strings.TrimSpace(buf.String())
			if content == "" {
				return ast.WalkSkipChildren, nil
			}

			n++
			title := heading
			if title == "" {
				title = fmt.Sprintf("%s #%d", filepath.Base(relPath), n)
			}
			if used[title]++; used[title] > 1 {
				title = fmt.Sprintf("%s (%d)", title, used[title])
			}
			out = append(out, Candidate{Title: title, Content: content, Source: relPath})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

// inlineText flattens the text under an inline container such as a heading.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
