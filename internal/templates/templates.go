package templates

import (
	_ "embed"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultTitle is the title given to a fresh editor session.
const DefaultTitle = "Untitled Diagram"

// DefaultSource is loaded into a fresh editor session.
const DefaultSource = `graph TD
    A[Start] --> B{Is it working?}
    B -->|Yes| C[Great!]
    B -->|No| D[Debug]
    D --> B`

// Template is a named starting point for a new diagram.
type Template struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Type        string `yaml:"type" json:"type"`
	Source      string `yaml:"source" json:"source"`
}

// Category groups templates for display.
type Category struct {
	Name      string     `yaml:"category" json:"category"`
	Templates []Template `yaml:"templates" json:"templates"`
}

//go:embed catalog.yaml
var catalogYAML []byte

var (
	catalogOnce sync.Once
	catalog     []Category
	catalogErr  error
)

func load() ([]Category, error) {
	catalogOnce.Do(func() {
		catalogErr = yaml.Unmarshal(catalogYAML, &catalog)
		if catalogErr != nil {
			catalogErr = fmt.Errorf("parsing template catalog: %w", catalogErr)
		}
	})
	return catalog, catalogErr
}

// All returns every category in display order.
func All() []Category {
	cats, err := load()
	if err != nil {
		panic(err)
	}
	out := make([]Category, len(cats))
	for i, c := range cats {
		out[i] = Category{Name: c.Name, Templates: append([]Template(nil), c.Templates...)}
	}
	return out
}

// Search returns the categories holding templates whose name, description,
// or type contains term, case-insensitively. Categories left empty are
// omitted. An empty term returns everything.
func Search(term string) []Category {
	term = strings.ToLower(strings.TrimSpace(term))
	all := All()
	if term == "" {
		return all
	}

	var out []Category
	for _, c := range all {
		var matched []Template
		for _, t := range c.Templates {
			if strings.Contains(strings.ToLower(t.Name), term) ||
				strings.Contains(strings.ToLower(t.Description), term) ||
				strings.Contains(strings.ToLower(t.Type), term) {
				matched = append(matched, t)
			}
		}
		if len(matched) > 0 {
			out = append(out, Category{Name: c.Name, Templates: matched})
		}
	}
	return out
}

// Find looks a template up by name, case-insensitively.
func Find(name string) (Template, bool) {
	name = strings.TrimSpace(name)
	for _, c := range All() {
		for _, t := range c.Templates {
			if strings.EqualFold(t.Name, name) {
				return t, true
			}
		}
	}
	return Template{}, false
}

// Count returns the number of templates in the catalog.
func Count() int {
	n := 0
	for _, c := range All() {
		n += len(c.Templates)
	}
	return n
}

// EditorLink is the URL that opens a new editor session seeded with source.
func EditorLink(source string) string {
	return "/editor?template=" + url.QueryEscape(source)
}

// Decode turns the template query parameter back into diagram source. An
// empty or malformed value yields DefaultSource.
func Decode(param string) string {
	if param == "" {
		return DefaultSource
	}
	src, err := url.QueryUnescape(param)
	if err != nil || strings.TrimSpace(src) == "" {
		return DefaultSource
	}
	return src
}
