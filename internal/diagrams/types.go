package diagrams

import "errors"

// StorageKey is the key the whole diagram collection is persisted under.
const StorageKey = "mermaid-diagrams"

// UntitledTitle is shown wherever a diagram has an empty title.
const UntitledTitle = "Untitled"

// ErrNotFound is returned by operations that require an existing diagram.
var ErrNotFound = errors.New("diagram not found")

// SavedDiagram is one persisted diagram. Timestamps are Unix milliseconds.
type SavedDiagram struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
	PreviewImage string `json:"previewImage,omitempty"`
}

// DisplayTitle returns the title, or "Untitled" when it is empty.
func (d SavedDiagram) DisplayTitle() string {
	return DisplayTitle(d.Title)
}

// Kind classifies the diagram source.
func (d SavedDiagram) Kind() Kind {
	return Classify(d.Content)
}

// Draft is the input to Save. An ID matching an existing diagram updates it;
// any other ID, including empty, creates a new diagram with a fresh ID.
type Draft struct {
	ID           string `json:"id,omitempty"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	PreviewImage string `json:"previewImage,omitempty"`
}

// DisplayTitle maps an empty title to "Untitled".
func DisplayTitle(title string) string {
	if title == "" {
		return UntitledTitle
	}
	return title
}
