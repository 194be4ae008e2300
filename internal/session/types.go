package session

import (
	"context"
	"errors"

	"github.com/ziadkadry99/diagramstudio/internal/diagrams"
)

// ErrClosed is returned by Save after Close.
var ErrClosed = errors.New("session closed")

// Status is the save indicator.
type Status string

const (
	StatusUnsaved Status = "unsaved"
	StatusSaving  Status = "saving"
	StatusSaved   Status = "saved"
)

// Layout is how the editor and preview panes share the screen.
type Layout string

const (
	LayoutSplit   Layout = "split"
	LayoutEditor  Layout = "editor"
	LayoutPreview Layout = "preview"
)

// Next returns the layout that follows l in the cycle.
func (l Layout) Next() Layout {
	switch l {
	case LayoutSplit:
		return LayoutEditor
	case LayoutEditor:
		return LayoutPreview
	default:
		return LayoutSplit
	}
}

// Save triggers reported to metrics.
const (
	triggerManual   = "manual"
	triggerAutosave = "autosave"
)

// State is a snapshot of the session as shown to the user.
type State struct {
	ID            string `json:"id,omitempty"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Dirty         bool   `json:"dirty"`
	Status        Status `json:"status"`
	LastSavedAt   int64  `json:"lastSavedAt,omitempty"`
	Layout        Layout `json:"layout"`
	ShowTemplates bool   `json:"showTemplates"`
	ShowHelp      bool   `json:"showHelp"`
	Error         string `json:"error,omitempty"`
}

// LoadRequest says what a session opens with. ID wins over Template; with
// neither the default diagram is loaded.
type LoadRequest struct {
	ID string
	// Template is the still URL-encoded template parameter.
	Template string
}

// Store is the part of the diagram store a session uses.
type Store interface {
	Get(ctx context.Context, id string) (*diagrams.SavedDiagram, error)
	Save(ctx context.Context, d diagrams.Draft) (string, error)
}

// Thumbnailer turns rendered markup into a preview image data URL, or ""
// when it cannot.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, svg string) string
}
