// Package site serves the landing and help pages, rendered from Markdown.
package site

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"go.uber.org/zap"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
	"github.com/ziadkadry99/diagramstudio/internal/session"
	"github.com/ziadkadry99/diagramstudio/internal/templates"
	"github.com/ziadkadry99/diagramstudio/internal/theme"
)

// Options describe the editor behaviour shown on the help page.
type Options struct {
	Autosave bool
	Delay    string
	Logger   *zap.Logger
}

// Site renders the landing and help pages.
type Site struct {
	store  *diagrams.Store
	themes *theme.Manager
	opts   Options
	logger *zap.Logger
	md     goldmark.Markdown
	page   *template.Template
}

type pageData struct {
	Title   string
	Theme   theme.Theme
	Content template.HTML
}

// New creates a Site. themes may be nil.
func New(store *diagrams.Store, themes *theme.Manager, opts Options) *Site {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Site{
		store:  store,
		themes: themes,
		opts:   opts,
		logger: logger,
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
				),
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
		page: template.Must(template.New("page").Parse(pageTemplate)),
	}
}

// RegisterRoutes mounts the pages.
func (s *Site) RegisterRoutes(r chi.Router) {
	r.Get("/", s.handleLanding)
	r.Get("/help", s.handleHelp)
}

func (s *Site) handleLanding(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("listing diagrams", zap.Error(err))
		http.Error(w, "could not load diagrams", http.StatusInternalServerError)
		return
	}
	s.render(w, "Home", landingMarkdown(len(all), templates.All()))
}

func (s *Site) handleHelp(w http.ResponseWriter, r *http.Request) {
	s.render(w, "Help", helpMarkdown(session.Shortcuts(), s.opts))
}

func (s *Site) render(w http.ResponseWriter, title, markdown string) {
	var body bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &body); err != nil {
		s.logger.Error("converting markdown", zap.String("page", title), zap.Error(err))
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}

	t := theme.Light
	if s.themes != nil {
		t = s.themes.Current()
	}
	var out bytes.Buffer
	err := s.page.Execute(&out, pageData{Title: title, Theme: t, Content: template.HTML(body.String())})
	if err != nil {
		s.logger.Error("executing page template", zap.String("page", title), zap.Error(err))
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(out.Bytes())
}

func landingMarkdown(saved int, cats []templates.Category) string {
	var b strings.Builder
	b.WriteString("# Diagram Studio\n\n")
	b.WriteString("Write Mermaid diagrams with a live preview, keep them in a local gallery and export them as SVG or PNG.\n\n")

	noun := "diagrams"
	if saved == 1 {
		noun = "diagram"
	}
	fmt.Fprintf(&b, "You have **%d saved %s**. [Open the gallery](/diagrams) or [start a new diagram](/editor).\n\n", saved, noun)

	b.WriteString("## Start from a template\n\n")
	for _, cat := range cats {
		fmt.Fprintf(&b, "### %s\n\n", cat.Name)
		for _, tpl := range cat.Templates {
			fmt.Fprintf(&b, "- [%s](%s): %s\n", tpl.Name, templates.EditorLink(tpl.Source), tpl.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("## The default diagram\n\n")
	b.WriteString("New diagrams start from this flowchart:\n\n")
	b.WriteString("```mermaid\n" + templates.DefaultSource + "\n```\n\n")
	b.WriteString("See [keyboard shortcuts](/help) for the editor.\n")
	return b.String()
}

func helpMarkdown(shortcuts []session.Shortcut, opts Options) string {
	var b strings.Builder
	b.WriteString("# Help\n\n")
	b.WriteString("## Keyboard shortcuts\n\n")
	b.WriteString("| Shortcut | Action |\n|---|---|\n")
	for _, sc := range shortcuts {
		fmt.Fprintf(&b, "| `%s` | %s |\n", sc.Keys, sc.Description)
	}
	b.WriteString("\n## Saving\n\n")
	if opts.Autosave {
		fmt.Fprintf(&b, "Changes are saved automatically %s after you stop typing. ", opts.Delay)
	} else {
		b.WriteString("Autosave is off. ")
	}
	b.WriteString("Press `Ctrl/Cmd+S` to save at any time. Saving a new diagram adds it to the [gallery](/diagrams).\n")
	return b.String()
}
